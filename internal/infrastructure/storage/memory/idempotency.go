package memory

import (
	"context"
	"sync"
	"time"

	"dairyflow/internal/core/apperror"
	"dairyflow/internal/core/tenant"
	"dairyflow/internal/infrastructure/storage/postgres"
)

type idemKey struct {
	tenantID string
	key      string
}

type idemRecord struct {
	userID      string
	operation   string
	requestHash string
	status      postgres.IdempotencyStatus
	replay      postgres.IdempotencyReplay
	updatedAt   time.Time
	expiresAt   time.Time
}

// idempotencyKeys lives outside the partitions so transaction rollbacks do not touch it.
type idempotencyKeys struct {
	mu   sync.Mutex
	keys map[idemKey]*idemRecord
}

func newIdempotencyKeys() *idempotencyKeys {
	return &idempotencyKeys{keys: make(map[idemKey]*idemRecord)}
}

// Idempotency is the in-memory counterpart of postgres.IdempotencyStore.
type Idempotency struct {
	keys *idempotencyKeys
	ttl  time.Duration
	now  func() time.Time
}

func (s *Store) Idempotency(ttl time.Duration) *Idempotency {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Idempotency{keys: s.idempotency, ttl: ttl, now: time.Now}
}

func (i *Idempotency) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error) {
	i.keys.mu.Lock()
	defer i.keys.mu.Unlock()

	now := i.now()
	k := idemKey{tenant.GetTenantID(ctx), key}
	rec, ok := i.keys.keys[k]
	if !ok || now.After(rec.expiresAt) {
		i.keys.keys[k] = &idemRecord{
			userID:      userID,
			operation:   operation,
			requestHash: requestHash,
			status:      postgres.IdempotencyStatusPending,
			updatedAt:   now,
			expiresAt:   now.Add(i.ttl),
		}
		return nil, nil
	}
	if rec.userID != userID || rec.operation != operation || rec.requestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key)
	}
	if rec.status != postgres.IdempotencyStatusPending {
		replay := rec.replay
		return &replay, nil
	}
	if now.Sub(rec.updatedAt) <= postgres.StalePendingAfter {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	rec.updatedAt = now
	return nil, nil
}

func (i *Idempotency) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	return i.finish(ctx, key, postgres.IdempotencyStatusSuccess, statusCode, contentType, body)
}

func (i *Idempotency) FailKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	return i.finish(ctx, key, postgres.IdempotencyStatusFailed, statusCode, contentType, body)
}

func (i *Idempotency) ReleaseKey(ctx context.Context, key string) error {
	i.keys.mu.Lock()
	defer i.keys.mu.Unlock()
	k := idemKey{tenant.GetTenantID(ctx), key}
	if rec, ok := i.keys.keys[k]; ok && rec.status == postgres.IdempotencyStatusPending {
		delete(i.keys.keys, k)
	}
	return nil
}

// CleanupExpired drops expired keys of every tenant.
func (i *Idempotency) CleanupExpired(ctx context.Context) (int64, error) {
	i.keys.mu.Lock()
	defer i.keys.mu.Unlock()
	now := i.now()
	var n int64
	for k, rec := range i.keys.keys {
		if now.After(rec.expiresAt) {
			delete(i.keys.keys, k)
			n++
		}
	}
	return n, nil
}

func (i *Idempotency) finish(ctx context.Context, key string, status postgres.IdempotencyStatus, code int, contentType string, body []byte) error {
	i.keys.mu.Lock()
	defer i.keys.mu.Unlock()
	rec, ok := i.keys.keys[idemKey{tenant.GetTenantID(ctx), key}]
	if !ok {
		return nil
	}
	rec.status = status
	rec.replay = postgres.IdempotencyReplay{
		StatusCode:  code,
		ContentType: contentType,
		Body:        append([]byte(nil), body...),
	}
	rec.updatedAt = i.now()
	return nil
}
