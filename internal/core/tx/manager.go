// Package tx defines the transaction boundary used by domain services.
// The Postgres implementation lives in infrastructure/storage/postgres and the
// in-memory one in infrastructure/storage/memory.
package tx

import (
	"context"
)

// Manager runs fn inside a transaction. An error from fn rolls back; nested calls
// reuse the transaction already present in ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
