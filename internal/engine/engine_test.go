package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veyra/authcore/internal/orm"
	"github.com/veyra/authcore/internal/resolver"
	"github.com/veyra/authcore/internal/session"
)

func newTestEngineWithSessions(t *testing.T) *Engine {
	t.Helper()
	port := orm.NewMemoryPort()
	resolvers := resolver.New()
	require.NoError(t, resolvers.Register("user", resolver.Resolver{
		GetByID: func(ctx context.Context, id string, port orm.Port) (resolver.Subject, error) {
			if id != "u1" {
				return nil, nil
			}
			return resolver.Subject{"id": "u1", "email": "alice@example.com"}, nil
		},
	}))

	cfg := session.DefaultConfig()
	cfg.DefaultTTL = time.Hour
	sessions, err := session.NewService(port, resolvers, nil, cfg)
	require.NoError(t, err)

	return New(port, resolvers, nil, sessions, nil)
}

func TestEngine_CreateSessionFor_And_CheckSession(t *testing.T) {
	e := newTestEngineWithSessions(t)
	ctx := context.Background()

	token, err := e.CreateSessionFor(ctx, "user", "u1", 0, nil)
	require.NoError(t, err)
	require.NotEmpty(t, token.Opaque)

	result, err := e.CheckSession(ctx, token, nil)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, resolver.Subject{"id": "u1", "email": "alice@example.com"}, result.Subject)
}

func TestEngine_CheckSession_UnknownToken_IsInvalid(t *testing.T) {
	e := newTestEngineWithSessions(t)
	result, err := e.CheckSession(context.Background(), session.Token{Opaque: "nonexistent"}, nil)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestEngine_GetIntrospectionData_DescribesPluginSteps(t *testing.T) {
	e := newTestEngine()
	plugin := &Plugin{
		Name: "email-password",
		Steps: map[string]*Step{
			"login": {
				Name:             "login",
				ValidationSchema: `{"type":"object","required":["email"]}`,
				Protocol:         map[string]any{"http": map[string]any{"method": "POST", "auth": false}},
				Run: func(ctx context.Context, engineCtx Ctx, input map[string]any) (map[string]any, error) {
					return map[string]any{"success": true}, nil
				},
			},
			"logout": {
				Name:     "logout",
				Protocol: map[string]any{"http": map[string]any{"method": "POST", "auth": true}},
				Run: func(ctx context.Context, engineCtx Ctx, input map[string]any) (map[string]any, error) {
					return map[string]any{"success": true}, nil
				},
			},
		},
	}
	require.NoError(t, e.RegisterPlugin(plugin))

	data := e.GetIntrospectionData()
	require.Len(t, data, 1)
	assert.Equal(t, "email-password", data[0].Name)
	require.Len(t, data[0].Steps, 2)
	assert.Equal(t, "login", data[0].Steps[0].Name)
	assert.False(t, data[0].Steps[0].RequiresAuth)
	assert.NotNil(t, data[0].Steps[0].InputSchema)
	assert.Equal(t, "logout", data[0].Steps[1].Name)
	assert.True(t, data[0].Steps[1].RequiresAuth)
}

func TestEngine_GetIntrospectionData_MalformedSchemaReturnsEmptyList(t *testing.T) {
	e := newTestEngine()
	plugin := &Plugin{
		Name: "email-password",
		Steps: map[string]*Step{
			"login": {
				Name:             "login",
				ValidationSchema: `{not valid json`,
				Run: func(ctx context.Context, engineCtx Ctx, input map[string]any) (map[string]any, error) {
					return map[string]any{"success": true}, nil
				},
			},
		},
	}
	require.NoError(t, e.RegisterPlugin(plugin))

	data := e.GetIntrospectionData()
	assert.Empty(t, data)
}

func TestEngine_GetUnifiedProfile_AggregatesPlugins(t *testing.T) {
	e := newTestEngine()
	ok := &Plugin{
		Name: "billing",
		GetProfile: func(ctx context.Context, subjectID string, engineCtx Ctx) (map[string]any, error) {
			return map[string]any{"plan": "pro"}, nil
		},
	}
	failing := &Plugin{
		Name: "habits",
		GetProfile: func(ctx context.Context, subjectID string, engineCtx Ctx) (map[string]any, error) {
			return nil, assert.AnError
		},
	}
	require.NoError(t, e.RegisterPlugin(ok))
	require.NoError(t, e.RegisterPlugin(failing))

	profile := e.GetUnifiedProfile(context.Background(), "u1")
	assert.Equal(t, "u1", profile.SubjectID)
	assert.Equal(t, map[string]any{"plan": "pro"}, profile.Plugins["billing"])
	errView, ok2 := profile.Plugins["habits"].(map[string]any)
	require.True(t, ok2)
	assert.Contains(t, errView["error"], assert.AnError.Error())
}

func TestPluginRegistry_Initialize_RunsOnlyOnce(t *testing.T) {
	reg := NewPluginRegistry()
	calls := 0
	require.NoError(t, reg.Register(&Plugin{
		Name: "demo",
		Initialize: func(ctx context.Context, engineCtx Ctx) error {
			calls++
			return nil
		},
	}))

	require.NoError(t, reg.Initialize(context.Background(), Ctx{}))
	require.NoError(t, reg.Initialize(context.Background(), Ctx{}))
	assert.Equal(t, 1, calls)
}
