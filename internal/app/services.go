// Package app assembles the billing services over a storage backend.
package app

import (
	"context"
	"fmt"

	"dairyflow/internal/core/tenant"
	"dairyflow/internal/domain/audit"
	"dairyflow/internal/domain/billing"
	"dairyflow/internal/domain/client"
	"dairyflow/internal/domain/delivery"
	"dairyflow/internal/domain/overdue"
	"dairyflow/internal/domain/payment"
	"dairyflow/internal/infrastructure/storage/memory"
	"dairyflow/internal/infrastructure/storage/postgres"
	"dairyflow/internal/infrastructure/storage/postgres/billing_repo"
	"dairyflow/internal/infrastructure/storage/postgres/client_repo"
	"dairyflow/internal/infrastructure/storage/postgres/ledger_repo"
)

// Stores are the persistence ports of the services. Transactions come from
// the tenant bound to the request context.
type Stores struct {
	Clients    client.Registry
	Deliveries delivery.Repository
	Bills      billing.Repository
	Numbers    billing.Numberer
	Events     billing.Publisher
	Audit      audit.Recorder
}

// PostgresStores uses the tenant database of each request.
func PostgresStores(billPrefix string) (Stores, error) {
	auditSvc, err := postgres.NewAuditService(0)
	if err != nil {
		return Stores{}, fmt.Errorf("audit service: %w", err)
	}
	return Stores{
		Clients:    client_repo.NewClientRepo(),
		Deliveries: ledger_repo.NewDeliveryRepo(),
		Bills:      billing_repo.NewBillRepo(),
		Numbers:    billing_repo.NewNumberer(billPrefix),
		Events:     postgres.NewOutboxPublisher(),
		Audit:      auditSvc,
	}, nil
}

// MemoryStores keeps everything in s.
func MemoryStores(s *memory.Store, billPrefix string) Stores {
	return Stores{
		Clients:    s.Clients(),
		Deliveries: s.Deliveries(),
		Bills:      s.Bills(),
		Numbers:    s.Numbers(billPrefix),
		Events:     s.Outbox(),
		Audit:      s.Audit(),
	}
}

// Options tune service behaviour.
type Options struct {
	// AuditPaid also audits payment confirmations; reversals are always audited.
	AuditPaid bool
}

// Services is the billing core wired over one set of stores.
type Services struct {
	Ledger   *delivery.Service
	Billing  *billing.Engine
	Payments *payment.Reconciler
	Overdue  *overdue.Monitor
}

func NewServices(st Stores, opts Options) *Services {
	ledger := delivery.NewService(delivery.Config{
		Repo:    st.Deliveries,
		Clients: st.Clients,
		Bills:   st.Bills,
	})
	engine := billing.NewEngine(billing.EngineConfig{
		Bills:   st.Bills,
		Clients: st.Clients,
		Ledger:  ledger,
		Numbers: st.Numbers,
		Events:  st.Events,
	})
	payments := payment.NewReconciler(payment.Config{
		Bills:  st.Bills,
		Events: st.Events,
	})
	if st.Audit != nil {
		audit.Register(payments.Hooks(), st.Audit, opts.AuditPaid)
	}

	return &Services{
		Ledger:   ledger,
		Billing:  engine,
		Payments: payments,
		Overdue:  overdue.NewMonitor(st.Bills),
	}
}

// TenantSource lists tenants for background jobs and binds a context to one.
type TenantSource interface {
	ListActive(ctx context.Context) ([]*tenant.Tenant, error)
	Bind(ctx context.Context, tenantID string) (context.Context, func(), error)
}
