// Package events publishes service audit events (document indexed, query
// answered) to an optional message bus.
package events

import "time"

// Event subjects published by the service.
const (
	SubjectDocumentIndexed = "document.indexed"
	SubjectQueryAnswered   = "query.answered"
)

// Event is the payload published for every auditable operation.
type Event struct {
	Subject    string         `json:"subject"`
	CorpusKey  string         `json:"corpus_key"`
	DocumentID string         `json:"document_id,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Publisher sends events to a bus. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(event Event) error
	Close() error
}

// Nop is a Publisher that discards all events. Used when no bus is configured.
type Nop struct{}

func (Nop) Publish(Event) error { return nil }
func (Nop) Close() error        { return nil }
