package dto

import (
	"time"

	"github.com/samber/lo"

	"dairyflow/internal/core/types"
	"dairyflow/internal/domain/overdue"
)

// OverdueQuery selects the evaluation day; empty means today.
type OverdueQuery struct {
	AsOf string `form:"asOf"`
}

func (q OverdueQuery) Instant(now time.Time) (time.Time, error) {
	if q.AsOf == "" {
		return now, nil
	}
	return parseInstant("asOf", q.AsOf)
}

type OverdueEntryResponse struct {
	Bill        BillResponse `json:"bill"`
	DaysOverdue int          `json:"daysOverdue"`
	Bucket      string       `json:"bucket"`
}

type OverdueResponse struct {
	AsOf    string                 `json:"asOf"`
	Items   []OverdueEntryResponse `json:"items"`
	Summary overdue.Summary        `json:"summary"`
}

func FromOverdue(asOf time.Time, entries []overdue.Entry) OverdueResponse {
	return OverdueResponse{
		AsOf: types.DateOf(asOf).Format(types.DateLayout),
		Items: lo.Map(entries, func(e overdue.Entry, _ int) OverdueEntryResponse {
			return OverdueEntryResponse{Bill: FromBill(e.Bill), DaysOverdue: e.DaysOverdue, Bucket: string(e.Bucket)}
		}),
		Summary: overdue.Summarize(entries),
	}
}
