package domain

import "strings"

// Sentinel answers recorded for rows the batch pipeline could not process.
const (
	BatchErrorReadingInput     = "ERROR reading input"
	BatchErrorGeneratingAnswer = "ERROR generating answer"
)

// AnswerItem is one row of a batch job: a question, its resolved answer and
// the raw metadata tag string from the input file.
type AnswerItem struct {
	Question string
	Answer   string
	Metadata string
}

// QueryTag is a structured metadata filter passed to the knowledge base.
type QueryTag struct {
	Name  string
	Value string
}

// ParseTags splits a `key: value|key: value` metadata string into tags.
// Segments without a colon are skipped.
func ParseTags(metadata string) []QueryTag {
	if strings.TrimSpace(metadata) == "" {
		return nil
	}
	var tags []QueryTag
	for _, segment := range strings.Split(metadata, "|") {
		parts := strings.SplitN(strings.TrimSpace(segment), ":", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if name == "" {
			continue
		}
		tags = append(tags, QueryTag{Name: name, Value: value})
	}
	return tags
}
