package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwkspkg "github.com/veyra/authcore/internal/jwks"
	"github.com/veyra/authcore/internal/orm"
	"github.com/veyra/authcore/internal/resolver"
)

type testUser struct {
	id    string
	email string
}

func newUserResolvers(t *testing.T, users map[string]testUser) *resolver.Registry {
	t.Helper()
	reg := resolver.New()
	err := reg.Register("user", resolver.Resolver{
		GetByID: func(ctx context.Context, id string, port orm.Port) (resolver.Subject, error) {
			u, ok := users[id]
			if !ok {
				return nil, nil
			}
			return resolver.Subject{"id": u.id, "email": u.email}, nil
		},
	})
	require.NoError(t, err)
	return reg
}

func newOpaqueTestService(t *testing.T, users map[string]testUser) *Service {
	t.Helper()
	port := orm.NewMemoryPort()
	cfg := DefaultConfig()
	cfg.DefaultTTL = time.Hour
	svc, err := NewService(port, newUserResolvers(t, users), nil, cfg)
	require.NoError(t, err)
	return svc
}

func newJWTTestService(t *testing.T, users map[string]testUser) (*Service, *jwkspkg.Service) {
	t.Helper()
	port := orm.NewMemoryPort()
	jcfg := jwkspkg.DefaultConfig("authcore-test")
	jcfg.AccessTokenTTL = time.Hour
	jwksSvc, err := jwkspkg.NewService(context.Background(), port, jcfg)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Mode = ModeJWT
	cfg.DefaultTTL = time.Hour
	svc, err := NewService(port, newUserResolvers(t, users), jwksSvc, cfg)
	require.NoError(t, err)
	return svc, jwksSvc
}

func TestService_OpaqueMode_CreateAndVerify(t *testing.T) {
	svc := newOpaqueTestService(t, map[string]testUser{"u1": {id: "u1", email: "a@example.com"}})
	ctx := context.Background()

	token, err := svc.CreateSession(ctx, "user", "u1", 0)
	require.NoError(t, err)
	require.NotEmpty(t, token.Opaque)

	result, err := svc.VerifySession(ctx, token, nil)
	require.NoError(t, err)
	require.NotNil(t, result.Subject, "P1: verification within ttl must return the subject")
	assert.Equal(t, "opaque", result.Type)
}

func TestService_JWTMode_CreateAndVerify(t *testing.T) {
	svc, _ := newJWTTestService(t, map[string]testUser{"u1": {id: "u1", email: "a@example.com"}})
	ctx := context.Background()

	token, err := svc.CreateSession(ctx, "user", "u1", 0)
	require.NoError(t, err)
	require.NotEmpty(t, token.AccessToken)
	require.NotEmpty(t, token.RefreshToken)

	result, err := svc.VerifySession(ctx, token, nil)
	require.NoError(t, err)
	require.NotNil(t, result.Subject)
	assert.Equal(t, "jwt", result.Type)
}

func TestService_DestroySession_IsIdempotent(t *testing.T) {
	svc := newOpaqueTestService(t, map[string]testUser{"u1": {id: "u1"}})
	ctx := context.Background()

	token, err := svc.CreateSession(ctx, "user", "u1", 0)
	require.NoError(t, err)

	require.NoError(t, svc.DestroySession(ctx, token))
	require.NoError(t, svc.DestroySession(ctx, token), "R1: destroying twice must be safe")

	result, err := svc.VerifySession(ctx, token, nil)
	require.NoError(t, err)
	assert.Nil(t, result.Subject)
}

func TestService_VerifySession_ExpiredSessionIsRemoved(t *testing.T) {
	svc := newOpaqueTestService(t, map[string]testUser{"u1": {id: "u1"}})
	ctx := context.Background()

	token, err := svc.CreateSession(ctx, "user", "u1", minSessionTTL)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	_, err = svc.port.UpdateMany(ctx, tableSessions, orm.UpdateManyOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("token").Eq(token.Opaque) },
		Set:   orm.Row{"expires_at": past},
	})
	require.NoError(t, err)

	result, err := svc.VerifySession(ctx, token, nil)
	require.NoError(t, err)
	assert.Nil(t, result.Subject)

	count, err := svc.port.Count(ctx, tableSessions, orm.CountOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "expired session row must be deleted")
}

func TestService_VerifySession_DeviceMismatchInvalidatesSession(t *testing.T) {
	svc := newOpaqueTestService(t, map[string]testUser{"u1": {id: "u1"}})
	svc.cfg.DeviceValidator = func(stored, current DeviceInfo) bool {
		return stored["fingerprint"] == current["fingerprint"]
	}
	svc.cfg.Enhanced = true
	ctx := context.Background()

	token, err := svc.CreateSession(ctx, "user", "u1", 0)
	require.NoError(t, err)

	row, err := svc.port.FindFirst(ctx, tableSessions, orm.FindFirstOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("token").Eq(token.Opaque) },
	})
	require.NoError(t, err)
	_, err = svc.port.Create(ctx, tableDevices, orm.Row{
		"session_id":  asString(row["id"]),
		"device_info": deviceInfoToJSON(DeviceInfo{"fingerprint": "A"}),
		"created_at":  time.Now(),
	})
	require.NoError(t, err)

	result, err := svc.VerifySession(ctx, token, DeviceInfo{"fingerprint": "B"})
	require.NoError(t, err)
	assert.Nil(t, result.Subject, "S6: mismatched device must invalidate verification")

	count, err := svc.port.Count(ctx, tableSessions, orm.CountOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "S6: session row must be left untouched on device mismatch")
}

func TestService_DestroyAllSessions_RevokesRefreshTokens(t *testing.T) {
	svc, jwksSvc := newJWTTestService(t, map[string]testUser{"u1": {id: "u1"}})
	ctx := context.Background()

	tok1, err := svc.CreateSession(ctx, "user", "u1", 0)
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, "user", "u1", 0)
	require.NoError(t, err)

	require.NoError(t, svc.DestroyAllSessions(ctx, "user", "u1"))

	sessions, err := svc.ListSessionsForSubject(ctx, "user", "u1")
	require.NoError(t, err)
	assert.Empty(t, sessions, "P6: no sessions should remain for the subject")

	_, err = jwksSvc.ValidateRefreshToken(ctx, tok1.RefreshToken)
	assert.Error(t, err, "P6: refresh tokens must be revoked")
}
