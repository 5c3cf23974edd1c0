package jwks

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"

	"github.com/veyra/authcore/internal/coreerr"
	"github.com/veyra/authcore/internal/orm"
)

const refreshTokenRandomBytes = 32

func randomBase64URLToken() (string, error) {
	buf := make([]byte, refreshTokenRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateRefreshToken returns a cryptographically random base64url token
// and persists only its hash (I2, I3): the raw token exists in memory for
// exactly this call and whatever the caller does with the return value.
func (s *Service) GenerateRefreshToken(ctx context.Context, subjectType, subjectID string, device DeviceInfo) (string, error) {
	raw, err := randomBase64URLToken()
	if err != nil {
		return "", coreerr.Internal("failed to generate refresh token", err)
	}

	now := time.Now()
	row := orm.Row{
		"token_id":            uuid.NewString(),
		"subject_type":        subjectType,
		"subject_id":          subjectID,
		"token_hash":          hashToken(raw),
		"expires_at":          now.Add(s.cfg.RefreshTokenTTL),
		"created_at":          now,
		"is_revoked":          false,
		"device_fingerprint":  device.Fingerprint,
		"ip_address":          device.IPAddress,
		"user_agent":          device.UserAgent,
	}
	if _, err := s.port.Create(ctx, tableRefresh, row); err != nil {
		return "", coreerr.Internal("failed to persist refresh token", err)
	}
	return raw, nil
}

// ValidateRefreshToken returns the stored row for token if it is neither
// revoked nor expired (spec §4.3); otherwise returns a typed failure.
func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (*RefreshTokenRecord, error) {
	row, err := s.port.FindFirst(ctx, tableRefresh, orm.FindFirstOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("token_hash").Eq(hashToken(token)) },
	})
	if err != nil {
		return nil, coreerr.Internal("failed to load refresh token", err)
	}
	record := refreshFromRow(row)
	if record == nil {
		return nil, coreerr.Unauthenticated("refresh token not found")
	}
	if record.IsRevoked {
		return nil, coreerr.Unauthenticated("refresh token has been revoked")
	}
	if !record.ExpiresAt.After(time.Now()) {
		return nil, coreerr.Expired("refresh token has expired")
	}
	return record, nil
}

// RefreshAccessToken validates token, signs a new access JWT for the same
// subject, and - when rotation is enabled - revokes the consumed refresh
// token and issues a replacement (spec §4.3, R2: single-use rotation).
func (s *Service) RefreshAccessToken(ctx context.Context, token string, device DeviceInfo) (*TokenPair, error) {
	record, err := s.ValidateRefreshToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := s.port.UpdateMany(ctx, tableRefresh, orm.UpdateManyOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("token_hash").Eq(hashToken(token)) },
		Set:   orm.Row{"last_used_at": now},
	}); err != nil {
		return nil, coreerr.Internal("failed to stamp refresh token usage", err)
	}

	accessToken, _, err := s.SignJWT(ctx, Payload{
		Subject:     record.SubjectID,
		SubjectType: record.SubjectType,
	}, "", s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	pair := &TokenPair{AccessToken: accessToken, ExpiresAt: now.Add(s.cfg.AccessTokenTTL)}

	if s.cfg.RotationEnabled {
		if err := s.RevokeRefreshToken(ctx, token, RevokeRotation); err != nil {
			return nil, err
		}
		newRefresh, err := s.GenerateRefreshToken(ctx, record.SubjectType, record.SubjectID, device)
		if err != nil {
			return nil, err
		}
		pair.RefreshToken = newRefresh
	} else {
		pair.RefreshToken = token
	}

	return pair, nil
}

// RevokeRefreshToken marks the row matching token's hash as revoked.
func (s *Service) RevokeRefreshToken(ctx context.Context, token string, reason RevocationReason) error {
	now := time.Now()
	_, err := s.port.UpdateMany(ctx, tableRefresh, orm.UpdateManyOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("token_hash").Eq(hashToken(token)) },
		Set: orm.Row{
			"is_revoked":        true,
			"revoked_at":        now,
			"revocation_reason": string(reason),
		},
	})
	if err != nil {
		return coreerr.Internal("failed to revoke refresh token", err)
	}
	return nil
}

// RevokeAllRefreshTokens revokes every unrevoked refresh token for a subject
// (used by destroyAllSessions, spec §4.4).
func (s *Service) RevokeAllRefreshTokens(ctx context.Context, subjectType, subjectID string, reason RevocationReason) error {
	now := time.Now()
	_, err := s.port.UpdateMany(ctx, tableRefresh, orm.UpdateManyOptions{
		Where: func(b orm.Builder) orm.Predicate {
			return b.And(
				b.Col("subject_type").Eq(subjectType),
				b.Col("subject_id").Eq(subjectID),
				b.Col("is_revoked").Eq(false),
			)
		},
		Set: orm.Row{
			"is_revoked":        true,
			"revoked_at":        now,
			"revocation_reason": string(reason),
		},
	})
	if err != nil {
		return coreerr.Internal("failed to revoke refresh tokens for subject", err)
	}
	return nil
}
