// Package audit records who changed the payment state of a bill and why.
package audit

import (
	"context"
	"time"

	appctx "dairyflow/internal/core/context"
	"dairyflow/internal/core/id"
	"dairyflow/internal/domain"
	"dairyflow/internal/domain/payment"
)

// Action is the audited operation.
type Action string

const (
	ActionPaid   Action = "payment.confirmed"
	ActionUnpaid Action = "payment.reverted"
)

// Entry is one audit record.
type Entry struct {
	EntityType string
	EntityID   id.ID
	Action     Action
	UserID     string
	UserEmail  string
	Reason     string
	Changes    map[string]any
	At         time.Time
}

// Recorder persists entries, in the caller's transaction when there is one.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Register attaches payment audit hooks to the reconciler hook registry.
// Reversals are always audited; confirmations only when withPaid is set.
func Register(hooks *domain.HookRegistry[*payment.Transition], rec Recorder, withPaid bool) {
	hooks.On(domain.AfterUnpaid, TransitionHook(rec))
	if withPaid {
		hooks.On(domain.AfterPaid, TransitionHook(rec))
	}
}

// TransitionHook turns a payment transition into an audit entry attributed to
// the operator in ctx.
func TransitionHook(rec Recorder) domain.Hook[*payment.Transition] {
	return func(ctx context.Context, tr *payment.Transition) error {
		return rec.Record(ctx, FromTransition(ctx, tr))
	}
}

// FromTransition builds the entry for tr.
func FromTransition(ctx context.Context, tr *payment.Transition) Entry {
	e := Entry{
		EntityType: "bill",
		EntityID:   tr.After.ID,
		Action:     ActionPaid,
		Reason:     tr.Reason,
		At:         tr.At,
		Changes: map[string]any{
			"is_paid": map[string]any{"old": tr.Before.IsPaid, "new": tr.After.IsPaid},
		},
	}
	if tr.Kind == payment.KindUnpaid {
		e.Action = ActionUnpaid
	}
	if tr.Before.PaidDate != nil || tr.After.PaidDate != nil {
		e.Changes["paid_date"] = map[string]any{"old": tr.Before.PaidDate, "new": tr.After.PaidDate}
	}
	if tr.Before.PaymentReference != nil || tr.After.PaymentReference != nil {
		e.Changes["payment_reference"] = map[string]any{"old": tr.Before.PaymentReference, "new": tr.After.PaymentReference}
	}
	if u := appctx.GetUser(ctx); u != nil {
		e.UserID = u.UserID
		e.UserEmail = u.Email
	}
	return e
}
