// Package batch holds the file codecs of the bulk question pipeline:
// question/answer/metadata rows serialized as CSV or XLSX.
package batch

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/spec-kit/support-assistant/internal/domain"
)

var csvHeader = []string{"question", "answer", "metadata"}

// ParseCSV decodes rows into answer items, in input order. A header row is
// skipped when present; short rows are padded with empty fields.
func ParseCSV(data []byte) ([]domain.AnswerItem, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	items := make([]domain.AnswerItem, 0, len(records))
	for i, record := range records {
		if i == 0 && isCSVHeader(record) {
			continue
		}
		items = append(items, domain.AnswerItem{
			Question: field(record, 0),
			Answer:   field(record, 1),
			Metadata: field(record, 2),
		})
	}
	return items, nil
}

// EncodeCSV serializes items with a header row.
func EncodeCSV(items []domain.AnswerItem) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := writer.Write([]string{item.Question, item.Answer, item.Metadata}); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isCSVHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), csvHeader[0])
}

func field(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return record[idx]
}
