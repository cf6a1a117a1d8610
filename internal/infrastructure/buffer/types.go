package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/storefront/domain"
)

// Bucket is the BoltDB bucket holding audit events that could not reach
// Postgres yet.
const Bucket = "audit"

// Item is a session event waiting to be written to the audit trail.
type Item struct {
	ID        string          `json:"id"`
	Event     json.RawMessage `json:"event"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

// NewItem wraps an event for buffering. The item shares the event ID so a
// replayed write can be deduplicated downstream.
func NewItem(event domain.SessionEvent) (Item, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Item{}, err
	}
	return Item{ID: event.ID, Event: payload, Timestamp: event.OccurredAt}, nil
}

// Decode returns the buffered event.
func (i Item) Decode() (domain.SessionEvent, error) {
	var event domain.SessionEvent
	err := json.Unmarshal(i.Event, &event)
	return event, err
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
