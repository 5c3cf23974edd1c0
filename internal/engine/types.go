// Package engine implements the composition root (spec §4.5, §6): plugin
// registry, step dispatcher, hook pipeline, and the public Engine API
// (executeStep, createSessionFor, checkSession, introspection,
// getUnifiedProfile). Grounded on the teacher's ServiceContext pattern
// (services/gateway/api/internal/svc/serviceContext.go) generalized from a
// single fixed set of RPC clients to an open plugin registry.
package engine

import (
	"context"

	"github.com/veyra/authcore/internal/session"
)

// Ctx is passed to every step Runner, matching spec §4.5's `ctx = {engine,
// config}`.
type Ctx struct {
	Engine *Engine
	Config map[string]any
}

// Step is one named operation a plugin exposes (spec §4.5).
type Step struct {
	Name             string
	ValidationSchema string // JSON schema text, optional
	OutputSchema     string // JSON schema text, optional
	Inputs           []string
	Protocol         map[string]any
	Hooks            StepHooks
	Run              func(ctx context.Context, engineCtx Ctx, input map[string]any) (map[string]any, error)
}

// StepHooks are the step-scoped before/after/onError hooks (spec §4.5).
type StepHooks struct {
	Before  HookFunc
	After   HookFunc
	OnError ErrorHookFunc
}

// HookFunc may replace the input (before) or output (after) it received.
type HookFunc func(ctx context.Context, engineCtx Ctx, data map[string]any) (map[string]any, error)

// ErrorHookFunc observes a pipeline error; it may suppress it by returning a
// non-nil output and a nil error, or pass it through unchanged.
type ErrorHookFunc func(ctx context.Context, engineCtx Ctx, err error, data map[string]any) (map[string]any, error)

// Plugin groups steps under a name with its own root hooks and optional
// getProfile (used by getUnifiedProfile) and initialize hook.
type Plugin struct {
	Name       string
	Steps      map[string]*Step
	RootHooks  StepHooks
	GetProfile func(ctx context.Context, subjectID string, engineCtx Ctx) (map[string]any, error)
	Initialize func(ctx context.Context, engineCtx Ctx) error
}

// AuthHook is an engine-level hook registered via registerAuthHook, filtered
// by the universality/plugin/step predicate rules of spec §4.5.
type AuthHook struct {
	Universal  bool
	PluginName string // unset (empty) matches any plugin
	Steps      []string
	Phase      Phase
	Before     HookFunc
	After      HookFunc
	OnError    ErrorHookFunc
}

// Phase distinguishes step hooks from session hooks (spec §4.5: "Session
// hooks are a distinct set").
type Phase int

const (
	PhaseStep Phase = iota
	PhaseSession
)

func (h AuthHook) matches(pluginName, stepName string, phase Phase) bool {
	if h.Phase != phase {
		return false
	}
	if h.Universal {
		return true
	}
	if h.PluginName != "" && h.PluginName != pluginName {
		return false
	}
	if len(h.Steps) > 0 && !containsStep(h.Steps, stepName) {
		return false
	}
	return true
}

func containsStep(steps []string, name string) bool {
	for _, s := range steps {
		if s == name {
			return true
		}
	}
	return false
}

// StepOutput is the structured shape plugins return (spec §7: "Plugins
// return structured outputs with {success, message, status}").
type StepOutput struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Status  string         `json:"status,omitempty"`
	Token   *session.Token `json:"token,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}
