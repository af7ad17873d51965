package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "dairyflow/internal/core/context"
	"dairyflow/internal/core/id"
	"dairyflow/internal/domain"
	"dairyflow/internal/domain/billing"
	"dairyflow/internal/domain/payment"
)

type captureRecorder struct {
	entries []Entry
}

func (c *captureRecorder) Record(_ context.Context, e Entry) error {
	c.entries = append(c.entries, e)
	return nil
}

func reversal() *payment.Transition {
	paidAt := time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC)
	ref := "gw-1"
	before := &billing.Bill{IsPaid: true, PaidDate: &paidAt, PaymentReference: &ref}
	before.ID = id.New()
	after := &billing.Bill{}
	after.ID = before.ID

	return &payment.Transition{
		Kind:   payment.KindUnpaid,
		Before: before,
		After:  after,
		Reason: "charge disputed",
		At:     time.Date(2024, 4, 6, 0, 0, 0, 0, time.UTC),
	}
}

func TestFromTransition_Reversal(t *testing.T) {
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-1", Email: "acc@dairy.test"})
	tr := reversal()

	e := FromTransition(ctx, tr)

	assert.Equal(t, ActionUnpaid, e.Action)
	assert.Equal(t, tr.After.ID, e.EntityID)
	assert.Equal(t, "u-1", e.UserID)
	assert.Equal(t, "acc@dairy.test", e.UserEmail)
	assert.Equal(t, "charge disputed", e.Reason)
	assert.Contains(t, e.Changes, "paid_date")
	assert.Contains(t, e.Changes, "payment_reference")
}

func TestRegister_AuditsReversalsOnly(t *testing.T) {
	hooks := domain.NewHookRegistry[*payment.Transition]()
	rec := &captureRecorder{}
	Register(hooks, rec, false)

	tr := reversal()
	require.NoError(t, hooks.Run(context.Background(), domain.AfterUnpaid, tr))
	require.NoError(t, hooks.Run(context.Background(), domain.AfterPaid, tr))

	require.Len(t, rec.entries, 1)
	assert.Equal(t, ActionUnpaid, rec.entries[0].Action)
}
