// Package events publishes ledger events after a mutation commits. Publishing is best
// effort: a broker failure never rolls back or fails the ledger operation.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
)

const (
	TypeTransactionCreated = "transaction.created"
	TypeTransferCreated    = "transfer.created"
	TypeReceiptProcessed   = "receipt.processed"
)

// Event is the message body. Only identifiers and amounts travel; consumers re-read state.
type Event struct {
	Type       string       `json:"type"`
	UserID     uint         `json:"user_id"`
	ResourceID uint         `json:"resource_id"`
	AccountIDs []uint       `json:"account_ids,omitempty"`
	Amount     money.Amount `json:"amount"`
	Reference  string       `json:"reference,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

func New(typ string, userID, resourceID uint, amount money.Amount) Event {
	return Event{
		Type:       typ,
		UserID:     userID,
		ResourceID: resourceID,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	}
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func FromJSON(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps events in memory; tests use it to assert what was published.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Close() error { return nil }
