package titles

import (
	"strings"

	"occtitles/pkg/assistant"
)

// JobRequest is what the editor submits. Style may be empty to let the assistant choose.
type JobRequest struct {
	Content string `json:"content"`
	Style   string `json:"style,omitempty"`
}

// JobStatus is the local lifecycle state of one generation job.
type JobStatus string

const (
	StatusCreated        JobStatus = "created"
	StatusMessageSent    JobStatus = "message_sent"
	StatusRunning        JobStatus = "running"
	StatusRequiresAction JobStatus = "requires_action"
	StatusCompleted      JobStatus = "completed"
	StatusFailed         JobStatus = "failed"
	StatusCancelled      JobStatus = "cancelled"
	StatusTimedOut       JobStatus = "timed_out"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}

// JobState is owned by a single Job and never shared or persisted.
type JobState struct {
	ThreadID string    `json:"thread_id,omitempty"`
	RunID    string    `json:"run_id,omitempty"`
	Status   JobStatus `json:"status"`
	Attempts int       `json:"attempts"`
}

// Sentiment of a generated title.
type Sentiment string

const (
	Positive Sentiment = "Positive"
	Negative Sentiment = "Negative"
	Neutral  Sentiment = "Neutral"
)

// NormalizeSentiment maps case variants onto the canonical values.
// Unrecognised values are returned trimmed but otherwise untouched.
func NormalizeSentiment(s string) Sentiment {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "positive":
		return Positive
	case "negative":
		return Negative
	case "neutral":
		return Neutral
	}
	return Sentiment(s)
}

// TitleCandidate is one suggestion returned by the assistant.
type TitleCandidate struct {
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Style     string    `json:"style"`
	Sentiment Sentiment `json:"sentiment"`
	Keywords  []string  `json:"keywords"`
}

// RunHandle identifies a started run and carries the run as returned when it was started.
type RunHandle struct {
	ThreadID string
	RunID    string
	Initial  assistant.RunStatus

	run *assistant.Run
}

// Event reports a job state transition.
type Event struct {
	JobID    string    `json:"job_id"`
	Status   JobStatus `json:"status"`
	Attempts int       `json:"attempts"`
	Detail   string    `json:"detail,omitempty"`
}

// Observer receives job events synchronously. It must not block.
type Observer func(Event)
