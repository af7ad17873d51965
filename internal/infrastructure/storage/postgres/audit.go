package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"dairyflow/internal/core/id"
	"dairyflow/internal/domain/audit"
)

// CompressionAlgo names how sys_audit.changes_compressed is encoded.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the changes size above which entries are compressed.
const DefaultCompressThreshold = 4 * 1024

// AuditRow is a row of sys_audit.
type AuditRow struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            string          `db:"action"`
	UserID            string          `db:"user_id"`
	UserEmail         string          `db:"user_email"`
	Reason            string          `db:"reason"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditService stores audit entries in the tenant database.
type AuditService struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

var _ audit.Recorder = (*AuditService)(nil)

// NewAuditService compresses changes larger than threshold bytes (<= 0 uses the default).
func NewAuditService(threshold int) (*AuditService, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &AuditService{encoder: enc, decoder: dec, threshold: threshold}, nil
}

// Encode builds the row for e, compressing large change sets.
func (s *AuditService) Encode(e audit.Entry) (AuditRow, error) {
	changes, err := json.Marshal(e.Changes)
	if err != nil {
		return AuditRow{}, fmt.Errorf("marshal changes: %w", err)
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}

	row := AuditRow{
		ID:              id.New(),
		EntityType:      e.EntityType,
		EntityID:        e.EntityID,
		Action:          string(e.Action),
		UserID:          e.UserID,
		UserEmail:       e.UserEmail,
		Reason:          e.Reason,
		Changes:         changes,
		CompressionAlgo: CompressionNone,
		CreatedAt:       at.UTC(),
	}
	if len(changes) > s.threshold {
		row.ChangesCompressed = s.encoder.EncodeAll(changes, nil)
		row.Changes = nil
		row.CompressionAlgo = CompressionZstd
	}
	return row, nil
}

// Decode restores compressed changes in place.
func (s *AuditService) Decode(row *AuditRow) error {
	if row.CompressionAlgo != CompressionZstd || len(row.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := s.decoder.DecodeAll(row.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	row.Changes = raw
	row.ChangesCompressed = nil
	return nil
}

func (s *AuditService) Record(ctx context.Context, e audit.Entry) error {
	row, err := s.Encode(e)
	if err != nil {
		return err
	}
	q, err := QuerierFrom(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, user_id, user_email, reason,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, row.ID, row.EntityType, row.EntityID, row.Action, row.UserID, row.UserEmail, row.Reason,
		row.Changes, row.ChangesCompressed, row.CompressionAlgo, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the newest entries of an entity with changes decompressed.
func (s *AuditService) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditRow, error) {
	q, err := QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}
	var rows []AuditRow
	err = pgxscan.Select(ctx, q, &rows, `
		SELECT id, entity_type, entity_id, action, user_id, user_email, reason,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	for i := range rows {
		if err := s.Decode(&rows[i]); err != nil {
			return nil, err
		}
	}
	return rows, nil
}
