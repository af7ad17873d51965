// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"dairyflow/internal/core/types"
)

// PeriodQuery selects a billing month: ?month=3&year=2024.
type PeriodQuery struct {
	Month int `form:"month" json:"month" binding:"required"`
	Year  int `form:"year" json:"year" binding:"required"`
}

// Period is not range-checked here; the domain reports INVALID_PERIOD.
func (q PeriodQuery) Period() types.Period {
	return types.Period{Month: q.Month, Year: q.Year}
}

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
