package jwks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veyra/authcore/internal/orm"
)

// TestService_CleanupExpiredKeys_RemovesLapsedGraceKey exercises the full
// ACTIVE-GRACE -> EXPIRED -> deleted lifecycle (spec §4.3, scenario S4's
// second half): a key rotated out of primary status sits in grace with a
// future expires_at, so cleanup must not touch it; once that grace window
// has actually elapsed, cleanup must flip it to EXPIRED and then remove it.
func TestService_CleanupExpiredKeys_RemovesLapsedGraceKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.GetActiveKey(ctx)
	require.NoError(t, err)

	_, err = svc.RotateKeys(ctx, ReasonScheduled)
	require.NoError(t, err)

	cleaned, err := svc.CleanupExpiredKeys(ctx)
	require.NoError(t, err)
	assert.Zero(t, cleaned, "a grace key still inside its window must not be cleaned up")

	row, err := svc.port.FindFirst(ctx, tableKeys, orm.FindFirstOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("key_id").Eq(first.KeyID) },
	})
	require.NoError(t, err)
	require.NotNil(t, row, "grace key must still exist before its window lapses")

	_, err = svc.port.UpdateMany(ctx, tableKeys, orm.UpdateManyOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("key_id").Eq(first.KeyID) },
		Set:   orm.Row{"expires_at": time.Now().Add(-time.Minute)},
	})
	require.NoError(t, err)

	cleaned, err = svc.CleanupExpiredKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleaned)

	row, err = svc.port.FindFirst(ctx, tableKeys, orm.FindFirstOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("key_id").Eq(first.KeyID) },
	})
	require.NoError(t, err)
	assert.Nil(t, row, "lapsed grace key must be deleted once its expires_at has passed")
}
