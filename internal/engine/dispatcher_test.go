package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veyra/authcore/internal/coreerr"
	"github.com/veyra/authcore/internal/orm"
	"github.com/veyra/authcore/internal/resolver"
)

func newTestEngine() *Engine {
	port := orm.NewMemoryPort()
	return New(port, resolver.New(), nil, nil, nil)
}

func hookRecorder(order *[]string, label string) HookFunc {
	return func(ctx context.Context, engineCtx Ctx, data map[string]any) (map[string]any, error) {
		*order = append(*order, label)
		return data, nil
	}
}

// TestExecuteStep_HookOrder_MatchesSpecP7 verifies
// engine.before -> plugin.before -> step.before -> run -> step.after ->
// plugin.after -> engine.after.
func TestExecuteStep_HookOrder_MatchesSpecP7(t *testing.T) {
	e := newTestEngine()
	var order []string

	e.RegisterAuthHook(AuthHook{
		Universal: true,
		Before:    hookRecorder(&order, "engine.before"),
		After:     hookRecorder(&order, "engine.after"),
	})

	plugin := &Plugin{
		Name: "demo",
		RootHooks: StepHooks{
			Before: hookRecorder(&order, "plugin.before"),
			After:  hookRecorder(&order, "plugin.after"),
		},
		Steps: map[string]*Step{
			"ping": {
				Name: "ping",
				Hooks: StepHooks{
					Before: hookRecorder(&order, "step.before"),
					After:  hookRecorder(&order, "step.after"),
				},
				Run: func(ctx context.Context, engineCtx Ctx, input map[string]any) (map[string]any, error) {
					order = append(order, "run")
					return map[string]any{"ok": true}, nil
				},
			},
		},
	}
	require.NoError(t, e.RegisterPlugin(plugin))

	out, err := e.ExecuteStep(context.Background(), "demo", "ping", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, []string{
		"engine.before", "plugin.before", "step.before",
		"run",
		"step.after", "plugin.after", "engine.after",
	}, order)
}

func TestExecuteStep_OnError_ReversesScope(t *testing.T) {
	e := newTestEngine()
	var order []string

	e.RegisterAuthHook(AuthHook{
		Universal: true,
		OnError: func(ctx context.Context, engineCtx Ctx, err error, data map[string]any) (map[string]any, error) {
			order = append(order, "engine.onError")
			return nil, err
		},
	})

	plugin := &Plugin{
		Name: "demo",
		RootHooks: StepHooks{
			OnError: func(ctx context.Context, engineCtx Ctx, err error, data map[string]any) (map[string]any, error) {
				order = append(order, "plugin.onError")
				return nil, err
			},
		},
		Steps: map[string]*Step{
			"fail": {
				Name: "fail",
				Hooks: StepHooks{
					OnError: func(ctx context.Context, engineCtx Ctx, err error, data map[string]any) (map[string]any, error) {
						order = append(order, "step.onError")
						return nil, err
					},
				},
				Run: func(ctx context.Context, engineCtx Ctx, input map[string]any) (map[string]any, error) {
					return nil, coreerr.Internal("boom", nil)
				},
			},
		},
	}
	require.NoError(t, e.RegisterPlugin(plugin))

	_, err := e.ExecuteStep(context.Background(), "demo", "fail", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, []string{"step.onError", "plugin.onError", "engine.onError"}, order)
}

func TestExecuteStep_OnError_CanSuppressError(t *testing.T) {
	e := newTestEngine()
	plugin := &Plugin{
		Name: "demo",
		Steps: map[string]*Step{
			"fail": {
				Name: "fail",
				Hooks: StepHooks{
					OnError: func(ctx context.Context, engineCtx Ctx, err error, data map[string]any) (map[string]any, error) {
						return map[string]any{"success": false, "status": "ev"}, nil
					},
				},
				Run: func(ctx context.Context, engineCtx Ctx, input map[string]any) (map[string]any, error) {
					return nil, coreerr.Internal("boom", nil)
				},
			},
		},
	}
	require.NoError(t, e.RegisterPlugin(plugin))

	out, err := e.ExecuteStep(context.Background(), "demo", "fail", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "ev", out["status"])
}

func TestExecuteStep_UnknownPluginOrStep_RaisesNotFound(t *testing.T) {
	e := newTestEngine()
	_, err := e.ExecuteStep(context.Background(), "missing", "step", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, coreerr.KindNotFound, coreerr.Of(err))

	plugin := &Plugin{Name: "demo", Steps: map[string]*Step{}}
	require.NoError(t, e.RegisterPlugin(plugin))
	_, err = e.ExecuteStep(context.Background(), "demo", "missing", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, coreerr.KindNotFound, coreerr.Of(err))
}

func TestExecuteStep_InputValidation_RejectsBadInput(t *testing.T) {
	e := newTestEngine()
	plugin := &Plugin{
		Name: "demo",
		Steps: map[string]*Step{
			"login": {
				Name:             "login",
				ValidationSchema: `{"type":"object","required":["email"],"properties":{"email":{"type":"string"}}}`,
				Run: func(ctx context.Context, engineCtx Ctx, input map[string]any) (map[string]any, error) {
					return map[string]any{"success": true}, nil
				},
			},
		},
	}
	require.NoError(t, e.RegisterPlugin(plugin))

	_, err := e.ExecuteStep(context.Background(), "demo", "login", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, coreerr.KindInputValidation, coreerr.Of(err))

	out, err := e.ExecuteStep(context.Background(), "demo", "login", map[string]any{"email": "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, true, out["success"])
}

func TestAuthHook_FilterRules(t *testing.T) {
	universal := AuthHook{Universal: true, Phase: PhaseStep}
	assert.True(t, universal.matches("any", "any", PhaseStep))

	scoped := AuthHook{PluginName: "demo", Steps: []string{"login"}, Phase: PhaseStep}
	assert.True(t, scoped.matches("demo", "login", PhaseStep))
	assert.False(t, scoped.matches("other", "login", PhaseStep))
	assert.False(t, scoped.matches("demo", "logout", PhaseStep))

	wrongPhase := AuthHook{Universal: true, Phase: PhaseSession}
	assert.False(t, wrongPhase.matches("demo", "login", PhaseStep))
}
