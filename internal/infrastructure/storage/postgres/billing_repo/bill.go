// Package billing_repo stores bills in the tenant database. The TxManager is
// taken from the request context; there is no tenant column, isolation is
// physical.
package billing_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"dairyflow/internal/core/apperror"
	"dairyflow/internal/core/id"
	"dairyflow/internal/core/types"
	"dairyflow/internal/domain/billing"
	"dairyflow/internal/infrastructure/storage/postgres"
)

const tableBills = "bills"

var billColumns = postgres.Columns[billing.Bill]()

// BillRepo implements billing.Repository.
type BillRepo struct{}

var _ billing.Repository = (*BillRepo)(nil)

func NewBillRepo() *BillRepo { return &BillRepo{} }

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func insertBill(b *billing.Bill) squirrel.InsertBuilder {
	vals := postgres.Values(b)
	row := make([]any, len(billColumns))
	for i, col := range billColumns {
		row[i] = vals[col]
	}
	return builder().
		Insert(tableBills).
		Columns(billColumns...).
		Values(row...).
		Suffix("ON CONFLICT (client_id, year, month) DO NOTHING")
}

// Create relies on the (client_id, year, month) unique index: a conflicting
// insert affects no rows and is reported as DUPLICATE_BILL.
// Constraint names from db/migrations.
const (
	constraintClientPeriod = "uq_bills_client_period"
	constraintNumber       = "uq_bills_number"
)

// insertError maps only a (client, period) collision to DUPLICATE_BILL. Any other
// conflict, a bill number clash included, is a real failure.
func insertError(b *billing.Bill, err error) error {
	if postgres.IsUniqueViolation(err) && postgres.ConstraintName(err) == constraintClientPeriod {
		return apperror.NewDuplicateBill(b.ClientID.String(), b.Period().String()).
			WithDetail("constraint", constraintClientPeriod)
	}
	return fmt.Errorf("insert bill %s: %w", b.Number, err)
}

func (r *BillRepo) Create(ctx context.Context, b *billing.Bill) error {
	q, err := postgres.QuerierFrom(ctx)
	if err != nil {
		return err
	}
	sql, args, err := insertBill(b).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return insertError(b, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewDuplicateBill(b.ClientID.String(), b.Period().String())
	}
	return nil
}

func selectBills() squirrel.SelectBuilder {
	return builder().Select(billColumns...).From(tableBills)
}

func (r *BillRepo) GetByID(ctx context.Context, billID id.ID) (*billing.Bill, error) {
	sql, args, err := selectBills().Where(squirrel.Eq{"id": billID}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	b, err := r.get(ctx, sql, args)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewBillNotFound(billID.String())
		}
		return nil, fmt.Errorf("get bill: %w", err)
	}
	return b, nil
}

func existsForClientPeriod(clientID id.ID, period types.Period) squirrel.SelectBuilder {
	return builder().
		Select("1").
		From(tableBills).
		Where(squirrel.Eq{"client_id": clientID, "year": period.Year, "month": period.Month}).
		Prefix("SELECT EXISTS (").
		Suffix(")")
}

func (r *BillRepo) ExistsForClientPeriod(ctx context.Context, clientID id.ID, period types.Period) (bool, error) {
	q, err := postgres.QuerierFrom(ctx)
	if err != nil {
		return false, err
	}
	sql, args, err := existsForClientPeriod(clientID, period).ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	var exists bool
	if err := q.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check bill exists: %w", err)
	}
	return exists, nil
}

func (r *BillRepo) ListByPeriod(ctx context.Context, period types.Period) ([]*billing.Bill, error) {
	return r.list(ctx, selectBills().
		Where(squirrel.Eq{"year": period.Year, "month": period.Month}).
		OrderBy("number"))
}

func (r *BillRepo) ListByClient(ctx context.Context, clientID id.ID) ([]*billing.Bill, error) {
	return r.list(ctx, selectBills().
		Where(squirrel.Eq{"client_id": clientID}).
		OrderBy("year DESC", "month DESC"))
}

func unpaidDueBefore(before time.Time) squirrel.SelectBuilder {
	return selectBills().
		Where(squirrel.Eq{"is_paid": false}).
		Where(squirrel.Lt{"due_date": before}).
		OrderBy("due_date", "number")
}

func (r *BillRepo) ListUnpaidDueBefore(ctx context.Context, before time.Time) ([]*billing.Bill, error) {
	return r.list(ctx, unpaidDueBefore(before))
}

func markPaid(billID id.ID, paidAt time.Time, reference *string, now time.Time) squirrel.UpdateBuilder {
	return builder().
		Update(tableBills).
		Set("is_paid", true).
		Set("paid_date", paidAt.UTC()).
		Set("payment_reference", reference).
		Set("updated_at", now.UTC()).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": billID, "is_paid": false}).
		Suffix("RETURNING " + columnList())
}

func markUnpaid(billID id.ID, now time.Time) squirrel.UpdateBuilder {
	return builder().
		Update(tableBills).
		Set("is_paid", false).
		Set("paid_date", nil).
		Set("payment_reference", nil).
		Set("updated_at", now.UTC()).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": billID, "is_paid": true}).
		Suffix("RETURNING " + columnList())
}

// MarkPaid is a conditional write; of two concurrent confirmations exactly one
// finds the row unpaid.
func (r *BillRepo) MarkPaid(ctx context.Context, billID id.ID, paidAt time.Time, reference *string, now time.Time) (*billing.Bill, error) {
	return r.transition(ctx, markPaid(billID, paidAt, reference, now))
}

func (r *BillRepo) MarkUnpaid(ctx context.Context, billID id.ID, now time.Time) (*billing.Bill, error) {
	return r.transition(ctx, markUnpaid(billID, now))
}

func (r *BillRepo) transition(ctx context.Context, ub squirrel.UpdateBuilder) (*billing.Bill, error) {
	sql, args, err := ub.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}
	b, err := r.get(ctx, sql, args)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, billing.ErrNoTransition
		}
		return nil, fmt.Errorf("update bill payment: %w", err)
	}
	return b, nil
}

func (r *BillRepo) get(ctx context.Context, sql string, args []any) (*billing.Bill, error) {
	q, err := postgres.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}
	var b billing.Bill
	if err := pgxscan.Get(ctx, q, &b, sql, args...); err != nil {
		return nil, err
	}
	normalize(&b)
	return &b, nil
}

func (r *BillRepo) list(ctx context.Context, sb squirrel.SelectBuilder) ([]*billing.Bill, error) {
	q, err := postgres.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var bills []*billing.Bill
	if err := pgxscan.Select(ctx, q, &bills, sql, args...); err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	for _, b := range bills {
		normalize(b)
	}
	return bills, nil
}

// normalize makes DATE columns UTC midnights, matching types.Period.DueDate.
func normalize(b *billing.Bill) {
	b.DueDate = types.DateOf(b.DueDate)
	if b.PaidDate != nil {
		d := b.PaidDate.UTC()
		b.PaidDate = &d
	}
}

func columnList() string {
	return strings.Join(billColumns, ", ")
}
