package jwks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veyra/authcore/internal/coreerr"
	"github.com/veyra/authcore/internal/orm"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	port := orm.NewMemoryPort()
	cfg := DefaultConfig("authcore-test")
	cfg.AccessTokenTTL = time.Minute
	cfg.RefreshTokenTTL = time.Hour
	svc, err := NewService(context.Background(), port, cfg)
	require.NoError(t, err)
	return svc
}

func TestService_SignAndVerifyJWT_RoundTrips(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, key, err := svc.SignJWT(ctx, Payload{Subject: "user-1", SubjectType: "user"}, "", 0)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotNil(t, key)

	claims, err := svc.VerifyJWT(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "user", claims.SubjectType)
	assert.Equal(t, key.KeyID, claims.KeyID)
}

func TestService_VerifyJWT_BlacklistedTokenFails(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, _, err := svc.SignJWT(ctx, Payload{Subject: "user-1", SubjectType: "user"}, "", 0)
	require.NoError(t, err)

	require.NoError(t, svc.BlacklistToken(ctx, token, BlacklistLogout))

	_, err = svc.VerifyJWT(ctx, token)
	require.Error(t, err)
	assert.Equal(t, coreerr.KindUnauthenticated, coreerr.Of(err))
}

func TestService_RotateKeys_PreviousKeyStillVerifiesDuringGrace(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	oldActive, err := svc.GetActiveKey(ctx)
	require.NoError(t, err)

	token, signedWith, err := svc.SignJWT(ctx, Payload{Subject: "user-1", SubjectType: "user"}, "", 0)
	require.NoError(t, err)
	assert.Equal(t, oldActive.KeyID, signedWith.KeyID)

	newKey, err := svc.RotateKeys(ctx, ReasonManual)
	require.NoError(t, err)
	assert.NotEqual(t, oldActive.KeyID, newKey.KeyID, "P4: rotation must produce a different key id")

	latestActive, err := svc.GetActiveKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, newKey.KeyID, latestActive.KeyID)

	claims, err := svc.VerifyJWT(ctx, token)
	require.NoError(t, err, "P4: the previous key must remain verifiable through its grace period")
	assert.Equal(t, "user-1", claims.Subject)
}

func TestService_GetPublicJWKS_IncludesGraceKeys(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.RotateKeys(ctx, ReasonManual)
	require.NoError(t, err)

	doc, err := svc.GetPublicJWKS(ctx)
	require.NoError(t, err)
	assert.Len(t, doc.Keys, 2, "both the new primary and the grace-period key should be published")
	for _, entry := range doc.Keys {
		assert.NotContains(t, entry, "d", "public JWKS entries must never leak the RSA private exponent")
	}
}

func TestService_RefreshTokenLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	raw, err := svc.GenerateRefreshToken(ctx, "user", "user-1", DeviceInfo{Fingerprint: "fp-1"})
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	record, err := svc.ValidateRefreshToken(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", record.SubjectID)
	assert.NotEqual(t, raw, record.TokenHash, "P3: raw token must never equal the stored hash")

	pair, err := svc.RefreshAccessToken(ctx, raw, DeviceInfo{Fingerprint: "fp-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, raw, pair.RefreshToken, "rotation enabled: a new refresh token must be issued")

	_, err = svc.RefreshAccessToken(ctx, raw, DeviceInfo{Fingerprint: "fp-1"})
	require.Error(t, err, "R2: a rotated refresh token must not be usable twice")
}

func TestService_RevokeAllRefreshTokens(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tok1, err := svc.GenerateRefreshToken(ctx, "user", "user-1", DeviceInfo{})
	require.NoError(t, err)
	tok2, err := svc.GenerateRefreshToken(ctx, "user", "user-1", DeviceInfo{})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAllRefreshTokens(ctx, "user", "user-1", RevokeLogout))

	_, err = svc.ValidateRefreshToken(ctx, tok1)
	assert.Error(t, err)
	_, err = svc.ValidateRefreshToken(ctx, tok2)
	assert.Error(t, err)
}

func TestService_CleanupExpiredRefreshTokens(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	svc.cfg.RefreshTokenTTL = -time.Minute

	_, err := svc.GenerateRefreshToken(ctx, "user", "user-1", DeviceInfo{})
	require.NoError(t, err)

	deleted, err := svc.CleanupExpiredRefreshTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
