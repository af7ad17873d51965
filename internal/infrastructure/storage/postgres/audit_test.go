package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairyflow/internal/core/id"
	"dairyflow/internal/domain/audit"
)

func TestAuditService_SmallChangesStayPlain(t *testing.T) {
	svc, err := NewAuditService(0)
	require.NoError(t, err)

	row, err := svc.Encode(audit.Entry{
		EntityType: "bill",
		EntityID:   id.New(),
		Action:     audit.ActionUnpaid,
		Changes:    map[string]any{"is_paid": map[string]any{"old": true, "new": false}},
	})
	require.NoError(t, err)

	assert.Equal(t, CompressionNone, row.CompressionAlgo)
	assert.JSONEq(t, `{"is_paid":{"old":true,"new":false}}`, string(row.Changes))
	assert.Nil(t, row.ChangesCompressed)
	assert.False(t, row.CreatedAt.IsZero())
}

func TestAuditService_LargeChangesRoundTripThroughZstd(t *testing.T) {
	svc, err := NewAuditService(64)
	require.NoError(t, err)

	note := strings.Repeat("reversal requested by bank ", 20)
	row, err := svc.Encode(audit.Entry{
		EntityType: "bill",
		EntityID:   id.New(),
		Action:     audit.ActionUnpaid,
		Changes:    map[string]any{"note": note},
	})
	require.NoError(t, err)
	require.Equal(t, CompressionZstd, row.CompressionAlgo)
	assert.Nil(t, row.Changes)
	assert.NotEmpty(t, row.ChangesCompressed)

	require.NoError(t, svc.Decode(&row))
	assert.Contains(t, string(row.Changes), note)
	assert.Nil(t, row.ChangesCompressed)
}
