package kb

import (
	"context"
	"errors"

	"github.com/spec-kit/support-assistant/internal/domain"
)

// Partition selects which copy of the knowledge base a call targets. Writes
// land in the staging partition until published; reads normally hit live.
type Partition string

const (
	PartitionLive    Partition = "live"
	PartitionStaging Partition = "staging"
)

// MetadataActivityReferenceID is the metadata key under which a pair stores
// the reference id of the card announcing it in the expert channel.
const MetadataActivityReferenceID = "activityreferenceid"

// Sentinel errors surfaced by gateway implementations.
var (
	// ErrNotReady means the knowledge base exists but has never been
	// published, so the queried partition is not servable yet.
	ErrNotReady = errors.New("knowledge base not published")
	// ErrQuotaExceeded means the backing service throttled the call.
	ErrQuotaExceeded = errors.New("knowledge base quota exceeded")
)

// AnswerState is the outcome of a GenerateAnswer call.
type AnswerState int

const (
	// StateAnswered means at least one match cleared the score threshold.
	StateAnswered AnswerState = iota
	// StateNotFound means the query ran but nothing matched.
	StateNotFound
	// StateNotReady means the knowledge base has not been published yet.
	StateNotReady
)

// Prompt is a follow-up suggestion attached to an answer.
type Prompt struct {
	QnaID       int    `json:"qnaId"`
	DisplayText string `json:"displayText"`
}

// RankedAnswer is a single scored match from the knowledge base.
type RankedAnswer struct {
	ID        int
	Answer    string
	Questions []string
	Score     float64
	Metadata  []domain.QueryTag
	Prompts   []Prompt
}

// AnswerResult is the tri-state outcome of a query. Answers is populated only
// when State is StateAnswered.
type AnswerResult struct {
	State   AnswerState
	Answers []RankedAnswer
}

// Best returns the top-ranked answer, or nil when the result carries none.
func (r *AnswerResult) Best() *RankedAnswer {
	if r == nil || len(r.Answers) == 0 {
		return nil
	}
	return &r.Answers[0]
}

// QueryContext carries the previous turn for prompt follow-ups.
type QueryContext struct {
	PreviousQnaID     int
	PreviousUserQuery string
}

// Gateway abstracts the external question-answering knowledge base.
type Gateway interface {
	// GenerateAnswer queries the given partition. prev may be nil; tags
	// become strict metadata filters.
	GenerateAnswer(ctx context.Context, question string, partition Partition, prev *QueryContext, tags []domain.QueryTag) (*AnswerResult, error)

	// QuestionExists reports whether the staging partition already contains
	// the question, compared case-insensitively after trimming. May return
	// ErrNotReady.
	QuestionExists(ctx context.Context, question string) (bool, error)

	// AddPair appends a new pair to staging and publishes.
	AddPair(ctx context.Context, pair domain.QnaPair, tags []domain.QueryTag) error

	// UpdatePair rewrites an existing pair, resolving it against the given
	// partition, and publishes.
	UpdatePair(ctx context.Context, pairID int, question, answer string, tags []domain.QueryTag) error

	// DeletePair removes a pair and publishes.
	DeletePair(ctx context.Context, pairID int) error

	// DownloadAll fetches every pair in the partition.
	DownloadAll(ctx context.Context, partition Partition) ([]domain.QnaPair, error)

	// IsPublished reports whether the knowledge base has ever been published.
	IsPublished(ctx context.Context) (bool, error)
}
