package storage

import "time"

// Event is one completed exchange: what the user said and how the legal
// assistant responded. Events are appended in chronological order.
type Event struct {
	Timestamp         time.Time `json:"timestamp"`
	SessionID         string    `json:"session_id"`
	Language          string    `json:"language"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
}

// Recorder abstracts the exchange audit log. Implementations must be
// safe for concurrent use; writes are best-effort and never gate the
// workflow.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions() ([]Event, error)
}
