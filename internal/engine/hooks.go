package engine

import (
	"context"
	"sync"
)

// HookRegistry holds engine-level auth hooks and session hooks, run in
// registration order (spec §4.5, P7).
type HookRegistry struct {
	mu    sync.Mutex
	hooks []AuthHook
}

// NewHookRegistry returns an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{}
}

// Register adds an engine-level hook (registerAuthHook / registerSessionHook,
// spec §6). Order of registration is preserved across matching hooks.
func (r *HookRegistry) Register(h AuthHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

func (r *HookRegistry) matching(pluginName, stepName string, phase Phase) []AuthHook {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AuthHook, 0, len(r.hooks))
	for _, h := range r.hooks {
		if h.matches(pluginName, stepName, phase) {
			out = append(out, h)
		}
	}
	return out
}

// runBeforeChain runs engine-level before hooks in registration order, each
// allowed to replace the data it receives (spec §4.5 step 3).
func runBeforeChain(ctx context.Context, engineCtx Ctx, hooks []AuthHook, data map[string]any) (map[string]any, error) {
	current := data
	for _, h := range hooks {
		if h.Before == nil {
			continue
		}
		next, err := h.Before(ctx, engineCtx, current)
		if err != nil {
			return current, err
		}
		if next != nil {
			current = next
		}
	}
	return current, nil
}

func runAfterChain(ctx context.Context, engineCtx Ctx, hooks []AuthHook, data map[string]any) (map[string]any, error) {
	current := data
	for _, h := range hooks {
		if h.After == nil {
			continue
		}
		next, err := h.After(ctx, engineCtx, current)
		if err != nil {
			return current, err
		}
		if next != nil {
			current = next
		}
	}
	return current, nil
}

func runOnErrorChain(ctx context.Context, engineCtx Ctx, hooks []AuthHook, cause error, data map[string]any) (map[string]any, error) {
	current := data
	for _, h := range hooks {
		if h.OnError == nil {
			continue
		}
		out, err := h.OnError(ctx, engineCtx, cause, current)
		if err == nil && out != nil {
			// A hook suppressed the error by returning a replacement output.
			return out, nil
		}
	}
	return current, cause
}
