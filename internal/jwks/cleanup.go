package jwks

import (
	"context"
	"time"

	"github.com/veyra/authcore/internal/coreerr"
	"github.com/veyra/authcore/internal/orm"
)

// CleanupExpiredKeys first transitions any ACTIVE-GRACE key whose
// expires_at has passed into EXPIRED (is_active=false) - the spec §4.3
// state machine step nothing else ever performs, since RotateKeys only
// ever shortens a previous key's expires_at to start its grace period,
// never flips is_active once that grace period elapses - then removes
// rows where is_active=false AND expires_at < now.
func (s *Service) CleanupExpiredKeys(ctx context.Context) (int64, error) {
	now := time.Now()
	if _, err := s.port.UpdateMany(ctx, tableKeys, orm.UpdateManyOptions{
		Where: func(b orm.Builder) orm.Predicate {
			return b.And(
				b.Col("is_active").Eq(true),
				b.Col("expires_at").Lte(now),
			)
		},
		Set: orm.Row{"is_active": false},
	}); err != nil {
		return 0, coreerr.Internal("failed to expire grace-period keys", err)
	}
	s.invalidateCaches()

	count, err := s.port.DeleteMany(ctx, tableKeys, orm.DeleteManyOptions{
		Where: func(b orm.Builder) orm.Predicate {
			return b.And(
				b.Col("is_active").Eq(false),
				b.Col("expires_at").Lt(now),
			)
		},
	})
	if err != nil {
		return 0, coreerr.Internal("failed to clean up expired keys", err)
	}
	return count, nil
}

// CleanupBlacklistedTokens removes blacklist rows older than 24h.
func (s *Service) CleanupBlacklistedTokens(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-24 * time.Hour)
	count, err := s.port.DeleteMany(ctx, tableBlacklist, orm.DeleteManyOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("blacklisted_at").Lt(cutoff) },
	})
	if err != nil {
		return 0, coreerr.Internal("failed to clean up blacklisted tokens", err)
	}
	return count, nil
}

// CleanupExpiredRefreshTokens removes rows where expires_at < now.
func (s *Service) CleanupExpiredRefreshTokens(ctx context.Context) (int64, error) {
	count, err := s.port.DeleteMany(ctx, tableRefresh, orm.DeleteManyOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("expires_at").Lt(time.Now()) },
	})
	if err != nil {
		return 0, coreerr.Internal("failed to clean up expired refresh tokens", err)
	}
	return count, nil
}
