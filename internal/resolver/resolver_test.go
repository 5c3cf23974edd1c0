package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veyra/authcore/internal/coreerr"
	"github.com/veyra/authcore/internal/orm"
)

func TestRegistry_RegisterAndResolve(t *testing.T) {
	reg := New()
	err := reg.Register("user", Resolver{
		GetByID: func(ctx context.Context, id string, port orm.Port) (Subject, error) {
			return Subject{"id": id, "email": "a@example.com", "password_hash": "secret"}, nil
		},
		Sanitize: func(s Subject) any {
			return map[string]any{"id": s["id"], "email": s["email"]}
		},
	})
	require.NoError(t, err)

	sanitized, err := reg.Resolve(context.Background(), "user", "u1", nil)
	require.NoError(t, err)
	got := sanitized.(map[string]any)
	assert.Equal(t, "u1", got["id"])
	assert.NotContains(t, got, "password_hash", "sanitize must strip sensitive fields")
}

func TestRegistry_Register_DuplicateSubjectTypeConflicts(t *testing.T) {
	reg := New()
	resolver := Resolver{GetByID: func(ctx context.Context, id string, port orm.Port) (Subject, error) { return nil, nil }}
	require.NoError(t, reg.Register("user", resolver))

	err := reg.Register("user", resolver)
	require.Error(t, err)
	assert.Equal(t, coreerr.KindConflict, coreerr.Of(err), "I8: subject type names must be unique")
}

func TestRegistry_Resolve_UnregisteredTypeReturnsResolverMissing(t *testing.T) {
	reg := New()
	_, err := reg.Resolve(context.Background(), "ghost", "id1", nil)
	assert.ErrorIs(t, err, ErrResolverMissing)
}

func TestRegistry_Resolve_SanitizeDefaultsToIdentity(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register("user", Resolver{
		GetByID: func(ctx context.Context, id string, port orm.Port) (Subject, error) {
			return Subject{"id": id}, nil
		},
	}))

	got, err := reg.Resolve(context.Background(), "user", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, Subject{"id": "u1"}, got)
}

func TestRegistry_Resolve_AbsentSubjectReturnsNilNotError(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register("user", Resolver{
		GetByID: func(ctx context.Context, id string, port orm.Port) (Subject, error) { return nil, nil },
	}))

	got, err := reg.Resolve(context.Background(), "user", "missing", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
