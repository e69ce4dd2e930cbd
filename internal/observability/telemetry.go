package observability

import (
	"strconv"
	"sync"
	"time"
)

// Event names tracked by the assistant.
const (
	EventMessageReceived        = "MessageReceived"
	EventQuestionAnsweredSingle = "QuestionAnsweredSingle"
	EventQuestionAnsweredBulk   = "QuestionAnsweredBulk"
	EventQuestionTranslatedBulk = "QuestionTranslatedBulk"
	EventAnswersTranslatedBulk  = "AnswersTranslatedBulk"
	EventQuestionAdded          = "QuestionAdded"
	EventQuestionUpdated        = "QuestionUpdated"
)

// Telemetry provides basic in-memory counters for named bot events and
// HTTP traffic.
type Telemetry struct {
	mu           sync.Mutex
	eventCount   map[string]int64
	eventRows    map[string]int64
	eventSeconds map[string]float64
	requestCount map[string]int64
	errorCount   map[string]int64
}

// NewTelemetry initializes telemetry storage.
func NewTelemetry() *Telemetry {
	return &Telemetry{
		eventCount:   make(map[string]int64),
		eventRows:    make(map[string]int64),
		eventSeconds: make(map[string]float64),
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// TrackEvent records one occurrence of a named event with the number of
// items it covered and the elapsed wall time.
func (t *Telemetry) TrackEvent(name string, rows int64, elapsed time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.eventCount[name]++
	t.eventRows[name] += rows
	t.eventSeconds[name] += elapsed.Seconds()
}

// EventCount returns how many times the named event was tracked.
func (t *Telemetry) EventCount(name string) int64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.eventCount[name]
}

// EventRows returns the accumulated item count for the named event.
func (t *Telemetry) EventRows(name string) int64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.eventRows[name]
}

// RecordRequest increments counters for requests.
func (t *Telemetry) RecordRequest(path, method string, status int) {
	if t == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requestCount[key]++
}

// RecordError increments error counters.
func (t *Telemetry) RecordError(path, method, code string) {
	if t == nil {
		return
	}
	key := path + "|" + method + "|" + code
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorCount[key]++
}
