// Package payment moves bills between the unpaid and paid states.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dairyflow/internal/core/apperror"
	"dairyflow/internal/core/id"
	"dairyflow/internal/core/tenant"
	"dairyflow/internal/core/tx"
	"dairyflow/internal/domain"
	"dairyflow/internal/domain/billing"
)

// Kind of a payment transition.
type Kind string

const (
	KindPaid   Kind = "paid"
	KindUnpaid Kind = "unpaid"
)

// Transition is what after-paid and after-unpaid hooks receive. Before holds
// the bill as it was prior to the change.
type Transition struct {
	Kind      Kind
	Before    *billing.Bill
	After     *billing.Bill
	Reason    string
	Reference string
	At        time.Time
}

// Event is a payment confirmation supplied by the external gateway.
type Event struct {
	BillID            id.ID
	ExternalReference string
	Amount            decimal.Decimal
	ConfirmedAt       time.Time
}

// Reconciler applies payment state changes with conditional writes, so two
// racing confirmations cannot both succeed.
type Reconciler struct {
	bills     billing.Repository
	events    billing.Publisher
	txManager tx.Manager
	hooks     *domain.HookRegistry[*Transition]
	now       func() time.Time
}

// Config wires Reconciler dependencies. Events, TxManager and Now are optional.
type Config struct {
	Bills     billing.Repository
	Events    billing.Publisher
	TxManager tx.Manager
	Now       func() time.Time
}

func NewReconciler(cfg Config) *Reconciler {
	r := &Reconciler{
		bills:     cfg.Bills,
		events:    cfg.Events,
		txManager: cfg.TxManager,
		hooks:     domain.NewHookRegistry[*Transition](),
		now:       cfg.Now,
	}
	if r.events == nil {
		r.events = billing.NopPublisher{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Hooks exposes the registry for AfterPaid and AfterUnpaid hooks.
func (r *Reconciler) Hooks() *domain.HookRegistry[*Transition] {
	return r.hooks
}

// MarkPaid records payment of an unpaid bill. A zero paidDate means now.
func (r *Reconciler) MarkPaid(ctx context.Context, billID id.ID, paidDate time.Time, externalReference string) (*billing.Bill, error) {
	now := r.now().UTC()
	if paidDate.IsZero() {
		paidDate = now
	}
	paidDate = paidDate.UTC()

	var ref *string
	if s := strings.TrimSpace(externalReference); s != "" {
		ref = &s
	}

	var updated *billing.Bill
	err := r.inTx(ctx, func(ctx context.Context) error {
		before, err := r.bills.GetByID(ctx, billID)
		if err != nil {
			return err
		}

		updated, err = r.bills.MarkPaid(ctx, billID, paidDate, ref, now)
		if errors.Is(err, billing.ErrNoTransition) {
			return r.classify(ctx, billID, apperror.NewAlreadyPaid(billID.String()))
		}
		if err != nil {
			return fmt.Errorf("mark paid: %w", err)
		}

		if err := r.events.Publish(ctx, billing.Event{Type: billing.EventBillPaid, Bill: updated, OccurredAt: now}); err != nil {
			return fmt.Errorf("publish %s: %w", billing.EventBillPaid, err)
		}
		return r.hooks.Run(ctx, domain.AfterPaid, &Transition{
			Kind:      KindPaid,
			Before:    before,
			After:     updated,
			Reference: externalReference,
			At:        now,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkUnpaid reverts a payment recorded in error. The bill must be paid.
func (r *Reconciler) MarkUnpaid(ctx context.Context, billID id.ID, reason string) (*billing.Bill, error) {
	now := r.now().UTC()

	var updated *billing.Bill
	err := r.inTx(ctx, func(ctx context.Context) error {
		before, err := r.bills.GetByID(ctx, billID)
		if err != nil {
			return err
		}

		updated, err = r.bills.MarkUnpaid(ctx, billID, now)
		if errors.Is(err, billing.ErrNoTransition) {
			return r.classify(ctx, billID, apperror.NewBillNotPaid(billID.String()))
		}
		if err != nil {
			return fmt.Errorf("mark unpaid: %w", err)
		}

		ev := billing.Event{Type: billing.EventBillUnpaid, Bill: updated, Reason: reason, OccurredAt: now}
		if err := r.events.Publish(ctx, ev); err != nil {
			return fmt.Errorf("publish %s: %w", billing.EventBillUnpaid, err)
		}
		return r.hooks.Run(ctx, domain.AfterUnpaid, &Transition{
			Kind:   KindUnpaid,
			Before: before,
			After:  updated,
			Reason: reason,
			At:     now,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ApplyPayment validates a gateway confirmation and marks the bill paid.
// Bills are settled in full only; a smaller amount is rejected.
func (r *Reconciler) ApplyPayment(ctx context.Context, ev Event) (*billing.Bill, error) {
	if strings.TrimSpace(ev.ExternalReference) == "" {
		return nil, apperror.NewValidation("external reference is required")
	}
	if !ev.Amount.IsPositive() {
		return nil, apperror.NewValidation("payment amount must be positive")
	}

	bill, err := r.bills.GetByID(ctx, ev.BillID)
	if err != nil {
		return nil, err
	}
	if bill.IsPaid {
		return nil, apperror.NewAlreadyPaid(ev.BillID.String())
	}
	if ev.Amount.LessThan(bill.TotalAmount) {
		return nil, apperror.NewValidation("partial payments are not supported").
			WithDetail("amount", ev.Amount.String()).
			WithDetail("total_amount", bill.TotalAmount.String())
	}

	return r.MarkPaid(ctx, ev.BillID, ev.ConfirmedAt, ev.ExternalReference)
}

// classify turns a failed conditional write into NOT_FOUND or the state conflict.
func (r *Reconciler) classify(ctx context.Context, billID id.ID, conflict error) error {
	if _, err := r.bills.GetByID(ctx, billID); err != nil {
		return err
	}
	return conflict
}

func (r *Reconciler) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txm, err := tenant.Resolve(ctx, r.txManager)
	if err != nil {
		return apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}
	return txm.RunInTransaction(ctx, fn)
}
