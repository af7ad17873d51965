// Package numerator issues gapless, per-period document numbers backed by the
// sys_sequences table of the tenant database.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of pgx used for sequence updates.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Reset selects when a sequence starts over at 1.
type Reset int

const (
	ResetNever Reset = iota
	ResetYear
	ResetMonth
)

// Config describes one numbered document type.
type Config struct {
	Prefix   string // e.g. "MLK"
	PadWidth int    // default 5
	Reset    Reset
}

// BillConfig numbers bills per month: MLK-2024-03-00001.
func BillConfig(prefix string) Config {
	return Config{Prefix: prefix, PadWidth: 5, Reset: ResetMonth}
}

// Service increments sequences with a single UPSERT ... RETURNING, so numbers
// are strictly sequential when called inside the transaction that stores the
// document: a rollback returns the number.
type Service struct {
	querier func(ctx context.Context) Querier
}

// New uses q for every call.
func New(q Querier) *Service {
	return &Service{querier: func(context.Context) Querier { return q }}
}

// NewWithResolver picks the querier per call, e.g. the current tenant transaction.
func NewWithResolver(fn func(ctx context.Context) Querier) *Service {
	return &Service{querier: fn}
}

// Next returns the next formatted number for cfg in the period containing at.
func (s *Service) Next(ctx context.Context, cfg Config, at time.Time) (string, error) {
	if s == nil || s.querier == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	var n int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, Key(cfg, at)).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("next %s number: %w", cfg.Prefix, err)
	}
	return Format(cfg, at, n), nil
}

// Set forces the last issued value, used when importing historical documents.
func (s *Service) Set(ctx context.Context, cfg Config, at time.Time, value int64) error {
	var n int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, Key(cfg, at), value).Scan(&n)
	if err != nil {
		return fmt.Errorf("set %s sequence: %w", cfg.Prefix, err)
	}
	return nil
}

// Key is the sys_sequences key for cfg at the given time.
func Key(cfg Config, at time.Time) string {
	switch cfg.Reset {
	case ResetMonth:
		return cfg.Prefix + "_" + at.UTC().Format("2006_01")
	case ResetYear:
		return cfg.Prefix + "_" + at.UTC().Format("2006")
	default:
		return cfg.Prefix
	}
}

// Format renders n with the prefix and period parts of cfg.
func Format(cfg Config, at time.Time, n int64) string {
	width := cfg.PadWidth
	if width <= 0 {
		width = 5
	}
	switch cfg.Reset {
	case ResetMonth:
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, at.UTC().Format("2006-01"), width, n)
	case ResetYear:
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, at.UTC().Format("2006"), width, n)
	default:
		return fmt.Sprintf("%s-%0*d", cfg.Prefix, width, n)
	}
}

// ParseNumber extracts the trailing counter, or -1.
func ParseNumber(formatted string) int64 {
	i := strings.LastIndexByte(formatted, '-')
	if i < 0 || i == len(formatted)-1 {
		return -1
	}
	n, err := strconv.ParseInt(formatted[i+1:], 10, 64)
	if err != nil {
		return -1
	}
	return n
}
