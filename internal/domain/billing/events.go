package billing

import (
	"context"
	"time"
)

// Event types published for bills.
const (
	EventBillGenerated = "bill.generated"
	EventBillPaid      = "bill.paid"
	EventBillUnpaid    = "bill.unpaid"
)

// Event is a bill state change delivered to other systems.
type Event struct {
	Type       string
	Bill       *Bill
	Reason     string
	OccurredAt time.Time
}

// Publisher records events in the caller's transaction.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
