package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/veyra/authcore/internal/coreerr"
)

// PluginRegistry holds plugins by name, invokes initialize exactly once per
// plugin, and exposes introspection (spec §2 "Plugin Registry").
type PluginRegistry struct {
	mu          sync.RWMutex
	plugins     map[string]*Plugin
	initialized map[string]bool
}

// NewPluginRegistry returns an empty registry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{
		plugins:     map[string]*Plugin{},
		initialized: map[string]bool{},
	}
}

// Register adds a plugin. Re-registering under the same name replaces it
// (construction-time only; the engine is immutable after Initialize runs,
// per spec §5(b)).
func (r *PluginRegistry) Register(p *Plugin) error {
	if p.Name == "" {
		return coreerr.InputValidation("name", "plugin name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Name] = p
	return nil
}

// Initialize calls every registered plugin's Initialize hook exactly once
// (spec §2: "invokes initialize exactly once").
func (r *PluginRegistry) Initialize(ctx context.Context, engineCtx Ctx) error {
	r.mu.Lock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	r.mu.Unlock()

	for _, name := range names {
		r.mu.Lock()
		already := r.initialized[name]
		plugin := r.plugins[name]
		r.mu.Unlock()
		if already || plugin.Initialize == nil {
			continue
		}
		if err := plugin.Initialize(ctx, engineCtx); err != nil {
			return fmt.Errorf("engine: plugin %q initialize failed: %w", name, err)
		}
		r.mu.Lock()
		r.initialized[name] = true
		r.mu.Unlock()
	}
	return nil
}

// GetPlugin returns a plugin by name, or nil if absent.
func (r *PluginRegistry) GetPlugin(name string) *Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plugins[name]
}

// GetAllPlugins returns every registered plugin, sorted by name for
// deterministic introspection output.
func (r *PluginRegistry) GetAllPlugins() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetStepInputs returns the named step's declared input keys.
func (r *PluginRegistry) GetStepInputs(pluginName, stepName string) ([]string, error) {
	step, err := r.resolveStep(pluginName, stepName)
	if err != nil {
		return nil, err
	}
	return step.Inputs, nil
}

func (r *PluginRegistry) resolveStep(pluginName, stepName string) (*Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	plugin, ok := r.plugins[pluginName]
	if !ok {
		return nil, coreerr.NotFound(fmt.Sprintf("plugin %q not found", pluginName))
	}
	step, ok := plugin.Steps[stepName]
	if !ok {
		return nil, coreerr.NotFound(fmt.Sprintf("step %q not found on plugin %q", stepName, pluginName))
	}
	return step, nil
}
