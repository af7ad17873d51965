package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"dairyflow/internal/core/apperror"
	"dairyflow/internal/core/id"
	"dairyflow/internal/core/tenant"
	"dairyflow/internal/core/types"
	"dairyflow/internal/domain/audit"
	"dairyflow/internal/domain/billing"
	"dairyflow/internal/domain/client"
	"dairyflow/internal/domain/delivery"
	"dairyflow/pkg/numerator"
)

var (
	_ client.Registry     = (*ClientRepo)(nil)
	_ delivery.Repository = (*DeliveryRepo)(nil)
	_ billing.Repository  = (*BillRepo)(nil)
	_ billing.Numberer    = (*Numberer)(nil)
	_ billing.Publisher   = (*Outbox)(nil)
	_ audit.Recorder      = (*AuditLog)(nil)
)

// --- Clients ---

type ClientRepo struct{ s *Store }

func (s *Store) Clients() *ClientRepo { return &ClientRepo{s: s} }

func (r *ClientRepo) ListActive(ctx context.Context) ([]*client.Client, error) {
	var out []*client.Client
	r.s.read(ctx, func(p *partition) {
		for _, c := range p.clients {
			if c.IsActive {
				cp := *c
				out = append(out, &cp)
			}
		}
	})
	slices.SortFunc(out, func(a, b *client.Client) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

func (r *ClientRepo) GetByID(ctx context.Context, clientID id.ID) (*client.Client, error) {
	var out *client.Client
	r.s.read(ctx, func(p *partition) {
		if c, ok := p.clients[clientID]; ok {
			cp := *c
			out = &cp
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("client", clientID.String())
	}
	return out, nil
}

// --- Deliveries ---

type DeliveryRepo struct{ s *Store }

func (s *Store) Deliveries() *DeliveryRepo { return &DeliveryRepo{s: s} }

func (r *DeliveryRepo) Upsert(ctx context.Context, rec *delivery.Record) error {
	return r.s.write(ctx, func(p *partition) error {
		p.deliveries[deliveryKey{rec.ClientID, types.DateOf(rec.Day)}] = *rec
		return nil
	})
}

func (r *DeliveryRepo) ListForClient(ctx context.Context, clientID id.ID, from, to time.Time) (delivery.Records, error) {
	var out delivery.Records
	r.s.read(ctx, func(p *partition) {
		for k, rec := range p.deliveries {
			if k.clientID == clientID && !k.day.Before(from) && k.day.Before(to) {
				out = append(out, rec)
			}
		}
	})
	slices.SortFunc(out, func(a, b delivery.Record) int { return a.Day.Compare(b.Day) })
	return out, nil
}

// --- Bills ---

type BillRepo struct{ s *Store }

func (s *Store) Bills() *BillRepo { return &BillRepo{s: s} }

func (r *BillRepo) Create(ctx context.Context, b *billing.Bill) error {
	return r.s.write(ctx, func(p *partition) error {
		key := billKey{b.ClientID, b.Month, b.Year}
		if _, taken := p.billKeys[key]; taken {
			return apperror.NewDuplicateBill(b.ClientID.String(), b.Period().String())
		}
		p.billKeys[key] = b.ID
		p.bills[b.ID] = b.Clone()
		return nil
	})
}

func (r *BillRepo) GetByID(ctx context.Context, billID id.ID) (*billing.Bill, error) {
	var out *billing.Bill
	r.s.read(ctx, func(p *partition) {
		if b, ok := p.bills[billID]; ok {
			out = b.Clone()
		}
	})
	if out == nil {
		return nil, apperror.NewBillNotFound(billID.String())
	}
	return out, nil
}

func (r *BillRepo) ExistsForClientPeriod(ctx context.Context, clientID id.ID, period types.Period) (bool, error) {
	var ok bool
	r.s.read(ctx, func(p *partition) {
		_, ok = p.billKeys[billKey{clientID, period.Month, period.Year}]
	})
	return ok, nil
}

func (r *BillRepo) list(ctx context.Context, keep func(*billing.Bill) bool) []*billing.Bill {
	var out []*billing.Bill
	r.s.read(ctx, func(p *partition) {
		for _, b := range p.bills {
			if keep(b) {
				out = append(out, b.Clone())
			}
		}
	})
	return out
}

func (r *BillRepo) ListByPeriod(ctx context.Context, period types.Period) ([]*billing.Bill, error) {
	out := r.list(ctx, func(b *billing.Bill) bool { return b.Month == period.Month && b.Year == period.Year })
	slices.SortFunc(out, func(a, b *billing.Bill) int { return strings.Compare(a.Number, b.Number) })
	return out, nil
}

func (r *BillRepo) ListByClient(ctx context.Context, clientID id.ID) ([]*billing.Bill, error) {
	out := r.list(ctx, func(b *billing.Bill) bool { return b.ClientID == clientID })
	slices.SortFunc(out, func(a, b *billing.Bill) int {
		return cmp.Or(cmp.Compare(b.Year, a.Year), cmp.Compare(b.Month, a.Month))
	})
	return out, nil
}

func (r *BillRepo) ListUnpaidDueBefore(ctx context.Context, before time.Time) ([]*billing.Bill, error) {
	out := r.list(ctx, func(b *billing.Bill) bool { return !b.IsPaid && b.DueDate.Before(before) })
	slices.SortFunc(out, func(a, b *billing.Bill) int {
		return cmp.Or(a.DueDate.Compare(b.DueDate), strings.Compare(a.Number, b.Number))
	})
	return out, nil
}

// transition applies change when the stored bill's IsPaid equals wantPaid.
func (r *BillRepo) transition(ctx context.Context, billID id.ID, wantPaid bool, change func(*billing.Bill)) (*billing.Bill, error) {
	var out *billing.Bill
	err := r.s.write(ctx, func(p *partition) error {
		b, ok := p.bills[billID]
		if !ok || b.IsPaid != wantPaid {
			return billing.ErrNoTransition
		}
		change(b)
		out = b.Clone()
		return nil
	})
	return out, err
}

func (r *BillRepo) MarkPaid(ctx context.Context, billID id.ID, paidAt time.Time, reference *string, now time.Time) (*billing.Bill, error) {
	return r.transition(ctx, billID, false, func(b *billing.Bill) {
		b.IsPaid = true
		b.PaidDate = &paidAt
		b.PaymentReference = reference
		b.Touch(now)
	})
}

func (r *BillRepo) MarkUnpaid(ctx context.Context, billID id.ID, now time.Time) (*billing.Bill, error) {
	return r.transition(ctx, billID, true, func(b *billing.Bill) {
		b.IsPaid = false
		b.PaidDate = nil
		b.PaymentReference = nil
		b.Touch(now)
	})
}

// --- Numbers ---

// Numberer issues "<prefix>-YYYY-MM-NNNNN" using a per-period counter.
type Numberer struct {
	s      *Store
	prefix string
}

func (s *Store) Numbers(prefix string) *Numberer { return &Numberer{s: s, prefix: prefix} }

func (n *Numberer) NextBillNumber(ctx context.Context, period types.Period) (string, error) {
	prefix := n.prefix
	if t := tenant.GetTenant(ctx); t != nil && t.BillPrefix != "" {
		prefix = t.BillPrefix
	}
	var seq int64
	_ = n.s.write(ctx, func(p *partition) error {
		key := period.String()
		p.sequences[key]++
		seq = p.sequences[key]
		return nil
	})
	return numerator.Format(numerator.BillConfig(prefix), period.Start(), seq), nil
}

// --- Events ---

// Outbox appends published events to the tenant partition.
type Outbox struct{ s *Store }

func (s *Store) Outbox() *Outbox { return &Outbox{s: s} }

func (o *Outbox) Publish(ctx context.Context, ev billing.Event) error {
	if ev.Bill != nil {
		ev.Bill = ev.Bill.Clone()
	}
	return o.s.write(ctx, func(p *partition) error {
		p.events = append(p.events, ev)
		return nil
	})
}

// --- Audit ---

// AuditLog records audit entries in the tenant partition.
type AuditLog struct{ s *Store }

func (s *Store) Audit() *AuditLog { return &AuditLog{s: s} }

func (a *AuditLog) Record(ctx context.Context, e audit.Entry) error {
	return a.s.write(ctx, func(p *partition) error {
		p.audit = append(p.audit, e)
		return nil
	})
}
