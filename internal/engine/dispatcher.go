package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/veyra/authcore/internal/coreerr"
	"github.com/veyra/authcore/internal/metrics"
)

// ExecuteStep implements spec §4.5's eleven-step algorithm:
//
//  1. resolve plugin/step
//  2. validate input against validationSchema
//  3. engine.before hooks
//  4. plugin-root before
//  5. step before
//  6. step.run
//  7. step after
//  8. plugin-root after
//  9. engine.after hooks
//  10. validate output against outputSchema
//  11. return output
//
// Any error from steps 3-9 re-enters the pipeline as onError, scoped
// step -> plugin -> engine, then is re-raised (P7).
func (e *Engine) ExecuteStep(ctx context.Context, pluginName, stepName string, input map[string]any) (output map[string]any, err error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.StepExecutions.WithLabelValues(pluginName, stepName, outcome).Inc()
		metrics.StepLatency.WithLabelValues(pluginName, stepName).Observe(time.Since(start).Seconds())
	}()

	plugin := e.plugins.GetPlugin(pluginName)
	if plugin == nil {
		return nil, coreerr.NotFound(fmt.Sprintf("plugin %q not found", pluginName))
	}
	step, ok := plugin.Steps[stepName]
	if !ok {
		return nil, coreerr.NotFound(fmt.Sprintf("step %q not found on plugin %q", stepName, pluginName))
	}

	if verr := validateInput(step.ValidationSchema, input); verr != nil {
		return nil, verr
	}

	engineCtx := Ctx{Engine: e, Config: e.pluginConfigs[pluginName]}
	engineHooks := e.hooks.matching(pluginName, stepName, PhaseStep)

	data, herr := runBeforeChain(ctx, engineCtx, engineHooks, input)
	if herr != nil {
		return e.handleStepError(ctx, engineCtx, plugin, step, herr, data)
	}

	if plugin.RootHooks.Before != nil {
		data, herr = plugin.RootHooks.Before(ctx, engineCtx, data)
		if herr != nil {
			return e.handleStepError(ctx, engineCtx, plugin, step, herr, data)
		}
	}

	if step.Hooks.Before != nil {
		data, herr = step.Hooks.Before(ctx, engineCtx, data)
		if herr != nil {
			return e.handleStepError(ctx, engineCtx, plugin, step, herr, data)
		}
	}

	result, rerr := step.Run(ctx, engineCtx, data)
	if rerr != nil {
		return e.handleStepError(ctx, engineCtx, plugin, step, rerr, data)
	}

	if step.Hooks.After != nil {
		result, herr = step.Hooks.After(ctx, engineCtx, result)
		if herr != nil {
			return e.handleStepError(ctx, engineCtx, plugin, step, herr, result)
		}
	}

	if plugin.RootHooks.After != nil {
		result, herr = plugin.RootHooks.After(ctx, engineCtx, result)
		if herr != nil {
			return e.handleStepError(ctx, engineCtx, plugin, step, herr, result)
		}
	}

	result, herr = runAfterChain(ctx, engineCtx, engineHooks, result)
	if herr != nil {
		return e.handleStepError(ctx, engineCtx, plugin, step, herr, result)
	}

	if verr := validateOutput(step.OutputSchema, result); verr != nil {
		return nil, verr
	}

	outcome = "ok"
	return result, nil
}

// handleStepError runs the onError chain scoped step -> plugin -> engine
// (spec §4.5: "run step onError, then plugin-root onError, then
// engine-level onError hooks, then re-raise").
func (e *Engine) handleStepError(ctx context.Context, engineCtx Ctx, plugin *Plugin, step *Step, cause error, data map[string]any) (map[string]any, error) {
	current := data
	var suppressed bool

	if step.Hooks.OnError != nil {
		out, err := step.Hooks.OnError(ctx, engineCtx, cause, current)
		if err == nil && out != nil {
			current, suppressed = out, true
		}
	}
	if !suppressed && plugin.RootHooks.OnError != nil {
		out, err := plugin.RootHooks.OnError(ctx, engineCtx, cause, current)
		if err == nil && out != nil {
			current, suppressed = out, true
		}
	}
	if !suppressed {
		engineHooks := e.hooks.matching(plugin.Name, step.Name, PhaseStep)
		current, cause = runOnErrorChain(ctx, engineCtx, engineHooks, cause, current)
		if cause == nil {
			suppressed = true
		}
	}

	if suppressed {
		return current, nil
	}
	logx.WithContext(ctx).Errorf("engine: step %s.%s failed: %v", plugin.Name, step.Name, cause)
	return nil, cause
}
