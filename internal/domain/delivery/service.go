package delivery

import (
	"context"
	"fmt"
	"time"

	"dairyflow/internal/core/apperror"
	"dairyflow/internal/core/id"
	"dairyflow/internal/core/tenant"
	"dairyflow/internal/core/tx"
	"dairyflow/internal/core/types"
	"dairyflow/internal/domain/client"
)

// Service is the delivery ledger.
type Service struct {
	repo      Repository
	clients   client.Registry
	bills     BillLookup
	txManager tx.Manager // nil: taken from the tenant context
	now       func() time.Time
}

// Config wires Service dependencies.
type Config struct {
	Repo      Repository
	Clients   client.Registry
	Bills     BillLookup
	TxManager tx.Manager
	Now       func() time.Time
}

func NewService(cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      cfg.Repo,
		clients:   cfg.Clients,
		bills:     cfg.Bills,
		txManager: cfg.TxManager,
		now:       now,
	}
}

// DaysInMonth is the calendar length of period.
func DaysInMonth(period types.Period) int {
	return period.DaysInMonth()
}

// ForClientInMonth returns the client's records for period ordered by date.
func (s *Service) ForClientInMonth(ctx context.Context, clientID id.ID, period types.Period) (Records, error) {
	if !period.Valid() {
		return nil, apperror.NewInvalidPeriod(period.Month, period.Year)
	}
	recs, err := s.repo.ListForClient(ctx, clientID, period.Start(), period.End())
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return recs, nil
}

// Record stores a day's delivery, replacing an earlier record for the same day.
// Writes into a period already billed for the client fail with PERIOD_CLOSED.
func (s *Service) Record(ctx context.Context, rec Record) (*Record, error) {
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.clients.GetByID(ctx, rec.ClientID); err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewInvalidClient(rec.ClientID.String())
		}
		return nil, err
	}

	period := types.PeriodOf(rec.Day)
	billed, err := s.bills.ExistsForClientPeriod(ctx, rec.ClientID, period)
	if err != nil {
		return nil, fmt.Errorf("check billed period: %w", err)
	}
	if billed {
		return nil, apperror.NewPeriodClosed(period.String()).
			WithDetail("client_id", rec.ClientID.String())
	}

	txm, err := tenant.Resolve(ctx, s.txManager)
	if err != nil {
		return nil, apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}

	rec.UpdatedAt = s.now().UTC()
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Upsert(ctx, &rec); err != nil {
			return fmt.Errorf("upsert delivery: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
