package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"dairyflow/internal/core/id"
	"dairyflow/internal/domain/billing"
)

// OutboxStatus is the delivery state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// maxOutboxRetries is the retry count after which a message is marked failed.
const maxOutboxRetries = 5

// OutboxMessage is a row of sys_outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// BillEventPayload is the JSON body of bill events.
type BillEventPayload struct {
	Bill   *billing.Bill `json:"bill"`
	Reason string        `json:"reason,omitempty"`
}

// OutboxPublisher writes bill events into sys_outbox inside the caller's transaction.
type OutboxPublisher struct{}

var _ billing.Publisher = OutboxPublisher{}

func NewOutboxPublisher() OutboxPublisher {
	return OutboxPublisher{}
}

func (OutboxPublisher) Publish(ctx context.Context, ev billing.Event) error {
	txm, err := TxManagerFrom(ctx)
	if err != nil {
		return err
	}
	t := txm.GetTx(ctx)
	if t == nil {
		return fmt.Errorf("outbox publish requires a transaction")
	}
	if ev.Bill == nil {
		return fmt.Errorf("outbox publish: event %s without bill", ev.Type)
	}

	payload, err := json.Marshal(BillEventPayload{Bill: ev.Bill, Reason: ev.Reason})
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	_, err = t.Exec(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id.New(), "bill", ev.Bill.ID, ev.Type, payload, OutboxStatusPending, occurred.UTC())
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// OutboxHandler delivers one message. An error schedules a retry.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error { return f(ctx, msg) }

// OutboxRelay drains pending messages of one tenant database.
type OutboxRelay struct {
	pool      *pgxpool.Pool
	batchSize int
	handler   OutboxHandler
}

func NewOutboxRelay(pool *pgxpool.Pool, batchSize int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{pool: pool, batchSize: batchSize, handler: handler}
}

// ProcessBatch handles up to batchSize due messages and returns how many were
// published. Messages are locked with SKIP LOCKED so relays can run in parallel.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	t, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin outbox batch: %w", err)
	}
	defer func() { _ = t.Rollback(context.Background()) }()

	var msgs []*OutboxMessage
	err = pgxscan.Select(ctx, t, &msgs, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
		       retry_count, last_error, next_retry_at, created_at, published_at
		FROM sys_outbox
		WHERE status = $1
		  AND (next_retry_at IS NULL OR next_retry_at <= now())
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, OutboxStatusPending, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox messages: %w", err)
	}

	published := 0
	for _, msg := range msgs {
		if herr := r.handler.Handle(ctx, msg); herr != nil {
			next := time.Now().UTC().Add(time.Duration(msg.RetryCount+1) * time.Minute)
			_, err := t.Exec(ctx, `
				UPDATE sys_outbox
				SET retry_count = retry_count + 1,
				    last_error = $1,
				    next_retry_at = $2,
				    status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE status END
				WHERE id = $5
			`, herr.Error(), next, maxOutboxRetries, OutboxStatusFailed, msg.ID)
			if err != nil {
				return published, fmt.Errorf("record outbox failure: %w", err)
			}
			continue
		}

		if _, err := t.Exec(ctx,
			`UPDATE sys_outbox SET status = $1, published_at = now() WHERE id = $2`,
			OutboxStatusPublished, msg.ID); err != nil {
			return published, fmt.Errorf("mark outbox published: %w", err)
		}
		published++
	}

	if err := t.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit outbox batch: %w", err)
	}
	return published, nil
}
