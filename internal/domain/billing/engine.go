package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"dairyflow/internal/core/apperror"
	"dairyflow/internal/core/id"
	"dairyflow/internal/core/tenant"
	"dairyflow/internal/core/tx"
	"dairyflow/internal/core/types"
	"dairyflow/internal/domain"
	"dairyflow/internal/domain/client"
	"dairyflow/internal/domain/delivery"
)

// Ledger supplies a client's deliveries for a month.
type Ledger interface {
	ForClientInMonth(ctx context.Context, clientID id.ID, period types.Period) (delivery.Records, error)
}

// Engine generates and lists bills.
type Engine struct {
	bills     Repository
	clients   client.Registry
	ledger    Ledger
	numbers   Numberer
	events    Publisher
	txManager tx.Manager // nil: taken from the tenant context
	hooks     *domain.HookRegistry[*Bill]
	now       func() time.Time
}

// EngineConfig wires Engine dependencies. Events and Now are optional.
type EngineConfig struct {
	Bills     Repository
	Clients   client.Registry
	Ledger    Ledger
	Numbers   Numberer
	Events    Publisher
	TxManager tx.Manager
	Now       func() time.Time
}

func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		bills:     cfg.Bills,
		clients:   cfg.Clients,
		ledger:    cfg.Ledger,
		numbers:   cfg.Numbers,
		events:    cfg.Events,
		txManager: cfg.TxManager,
		hooks:     domain.NewHookRegistry[*Bill](),
		now:       cfg.Now,
	}
	if e.events == nil {
		e.events = NopPublisher{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Hooks exposes the registry for AfterBillCreated hooks.
func (e *Engine) Hooks() *domain.HookRegistry[*Bill] {
	return e.hooks
}

// Failure is a per-client generation error.
type Failure struct {
	ClientID id.ID
	Err      error
}

// GenerationResult reports one GenerateMonthlyBills run.
type GenerationResult struct {
	Period           types.Period
	GeneratedCount   int
	Generated        []*Bill
	SkippedClientIDs []id.ID
	Failures         []Failure
}

// GenerateMonthlyBills bills every active client for period. Clients already
// billed are skipped, including those whose bill was inserted concurrently.
// Errors for one client are collected and do not stop the run.
func (e *Engine) GenerateMonthlyBills(ctx context.Context, period types.Period) (*GenerationResult, error) {
	if !period.Valid() {
		return nil, apperror.NewInvalidPeriod(period.Month, period.Year)
	}

	clients, err := e.clients.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active clients: %w", err)
	}

	res := &GenerationResult{Period: period}
	for _, c := range clients {
		bill, err := e.generateFor(ctx, c, period)
		switch {
		case err == nil && bill == nil:
			res.SkippedClientIDs = append(res.SkippedClientIDs, c.ID)
		case apperror.IsDuplicateBill(err):
			res.SkippedClientIDs = append(res.SkippedClientIDs, c.ID)
		case err != nil:
			res.Failures = append(res.Failures, Failure{ClientID: c.ID, Err: err})
		default:
			res.Generated = append(res.Generated, bill)
		}
	}
	res.GeneratedCount = len(res.Generated)
	return res, nil
}

// generateFor returns (nil, nil) when the client is already billed.
func (e *Engine) generateFor(ctx context.Context, c *client.Client, period types.Period) (*Bill, error) {
	exists, err := e.bills.ExistsForClientPeriod(ctx, c.ID, period)
	if err != nil {
		return nil, fmt.Errorf("check existing bill: %w", err)
	}
	if exists {
		return nil, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	recs, err := e.ledger.ForClientInMonth(ctx, c.ID, period)
	if err != nil {
		return nil, fmt.Errorf("load deliveries: %w", err)
	}

	quantity, source := recs.DeliveredQuantity(), SourceTracked
	if len(recs) == 0 {
		quantity = types.ProjectedQuantity(period.DaysInMonth(), c.DefaultDailyQuantity)
		source = SourceProjected
	}

	bill := NewBill(c.ID, period, quantity, c.RatePerLiter, source, e.now())
	if err := e.persist(ctx, bill); err != nil {
		return nil, err
	}
	return bill, nil
}

// CreateBillInput is a manual bill request. Nil overrides fall back to the
// projected quantity and the client rate.
type CreateBillInput struct {
	ClientID         id.ID
	Period           types.Period
	QuantityOverride *decimal.Decimal
	RateOverride     *decimal.Decimal
}

// CreateBill creates one bill for a client. The existing-bill check precedes
// client and override validation, so a billed period always reports DUPLICATE_BILL.
func (e *Engine) CreateBill(ctx context.Context, in CreateBillInput) (*Bill, error) {
	if !in.Period.Valid() {
		return nil, apperror.NewInvalidPeriod(in.Period.Month, in.Period.Year)
	}

	exists, err := e.bills.ExistsForClientPeriod(ctx, in.ClientID, in.Period)
	if err != nil {
		return nil, fmt.Errorf("check existing bill: %w", err)
	}
	if exists {
		return nil, apperror.NewDuplicateBill(in.ClientID.String(), in.Period.String())
	}

	c, err := client.Billable(ctx, e.clients, in.ClientID)
	if err != nil {
		return nil, err
	}

	quantity := types.ProjectedQuantity(in.Period.DaysInMonth(), c.DefaultDailyQuantity)
	rate := c.RatePerLiter
	source := SourceProjected

	if in.QuantityOverride != nil {
		if !in.QuantityOverride.IsPositive() {
			return nil, apperror.NewValidation("quantity override must be positive").
				WithDetail("field", "quantity")
		}
		if !types.FitsScale(*in.QuantityOverride, types.QuantityScale) {
			return nil, apperror.NewValidation("quantity override has more than 3 decimal places").
				WithDetail("field", "quantity")
		}
		quantity, source = *in.QuantityOverride, SourceManual
	}
	if in.RateOverride != nil {
		if !in.RateOverride.IsPositive() {
			return nil, apperror.NewValidation("rate override must be positive").
				WithDetail("field", "rate")
		}
		if !types.FitsScale(*in.RateOverride, types.MoneyScale) {
			return nil, apperror.NewValidation("rate override has more than 2 decimal places").
				WithDetail("field", "rate")
		}
		rate, source = *in.RateOverride, SourceManual
	}

	bill := NewBill(c.ID, in.Period, quantity, rate, source, e.now())
	if err := e.persist(ctx, bill); err != nil {
		return nil, err
	}
	return bill, nil
}

// persist numbers and inserts bill, publishing bill.generated in the same transaction.
func (e *Engine) persist(ctx context.Context, bill *Bill) error {
	if err := bill.Validate(); err != nil {
		return err
	}

	txm, err := tenant.Resolve(ctx, e.txManager)
	if err != nil {
		return apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}

	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		number, err := e.numbers.NextBillNumber(ctx, bill.Period())
		if err != nil {
			return fmt.Errorf("next bill number: %w", err)
		}
		bill.Number = number

		if err := e.bills.Create(ctx, bill); err != nil {
			if apperror.IsDuplicateBill(err) {
				return err
			}
			return fmt.Errorf("create bill: %w", err)
		}
		if err := e.events.Publish(ctx, Event{Type: EventBillGenerated, Bill: bill, OccurredAt: bill.CreatedAt}); err != nil {
			return fmt.Errorf("publish %s: %w", EventBillGenerated, err)
		}
		return e.hooks.Run(ctx, domain.AfterBillCreated, bill)
	})
}

// GetBillsForPeriod lists bills of period ordered by number.
func (e *Engine) GetBillsForPeriod(ctx context.Context, period types.Period) ([]*Bill, error) {
	if !period.Valid() {
		return nil, apperror.NewInvalidPeriod(period.Month, period.Year)
	}
	return e.bills.ListByPeriod(ctx, period)
}

// GetBillsForClient lists the client's bills, newest period first.
func (e *Engine) GetBillsForClient(ctx context.Context, clientID id.ID) ([]*Bill, error) {
	return e.bills.ListByClient(ctx, clientID)
}

// GetBill returns one bill or NOT_FOUND.
func (e *Engine) GetBill(ctx context.Context, billID id.ID) (*Bill, error) {
	return e.bills.GetByID(ctx, billID)
}
