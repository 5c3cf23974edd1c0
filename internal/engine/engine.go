package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/veyra/authcore/internal/client"
	"github.com/veyra/authcore/internal/jwks"
	"github.com/veyra/authcore/internal/metrics"
	"github.com/veyra/authcore/internal/orm"
	"github.com/veyra/authcore/internal/resolver"
	"github.com/veyra/authcore/internal/scheduler"
	"github.com/veyra/authcore/internal/session"
)

// Engine is the composition root (spec §2, §9): it wires the ORM port, the
// subject resolver registry, the JWKS service, the session service, the
// cleanup scheduler, and the plugin/hook registries, and exposes the
// Engine API transport adapters consume (spec §6). It replaces the
// teacher's DI-container ServiceContext with an explicit handle passed in
// every step's Ctx - "no string-keyed resolution required in typed
// languages" (spec §9).
type Engine struct {
	Port       orm.Port
	Resolvers  *resolver.Registry
	JWKS       *jwks.Service
	Sessions   *session.Service
	Scheduler  *scheduler.Scheduler
	Clients    *client.Registry

	plugins       *PluginRegistry
	hooks         *HookRegistry
	pluginConfigs map[string]map[string]any
}

// New wires an Engine over an already-constructed session/JWKS/scheduler
// stack. Session and JWKS services are optional collaborators constructed
// by the caller (e.g. cmd/authcoredemo) since their configuration
// (opaque vs JWT mode, enhanced mode) varies by deployment.
func New(port orm.Port, resolvers *resolver.Registry, jwksSvc *jwks.Service, sessions *session.Service, sched *scheduler.Scheduler) *Engine {
	return &Engine{
		Port:          port,
		Resolvers:     resolvers,
		JWKS:          jwksSvc,
		Sessions:      sessions,
		Scheduler:     sched,
		Clients:       client.New(port),
		plugins:       NewPluginRegistry(),
		hooks:         NewHookRegistry(),
		pluginConfigs: map[string]map[string]any{},
	}
}

// RegisterPlugin adds a plugin to the registry (construction time only).
func (e *Engine) RegisterPlugin(p *Plugin) error {
	return e.plugins.Register(p)
}

// SetPluginConfig stores config a plugin's steps and cleanup tasks read
// from their Ctx/runner argument.
func (e *Engine) SetPluginConfig(pluginName string, config map[string]any) {
	e.pluginConfigs[pluginName] = config
	if e.Scheduler != nil {
		e.Scheduler.SetPluginConfig(pluginName, config)
	}
}

// Initialize runs every plugin's Initialize hook exactly once (spec §2).
func (e *Engine) Initialize(ctx context.Context) error {
	return e.plugins.Initialize(ctx, Ctx{Engine: e})
}

// RegisterAuthHook adds an engine-level step-scoped hook (spec §6).
func (e *Engine) RegisterAuthHook(h AuthHook) {
	h.Phase = PhaseStep
	e.hooks.Register(h)
}

// RegisterSessionHook adds an engine-level hook scoped to
// createSessionFor/checkSession (spec §4.5: "Session hooks are a distinct
// set").
func (e *Engine) RegisterSessionHook(h AuthHook) {
	h.Phase = PhaseSession
	e.hooks.Register(h)
}

// RegisterSessionResolver proxies to the Subject Resolver Registry (spec §6).
func (e *Engine) RegisterSessionResolver(subjectType string, r resolver.Resolver) error {
	return e.Resolvers.Register(subjectType, r)
}

// RegisterCleanupTask proxies to the Cleanup Scheduler (spec §6).
func (e *Engine) RegisterCleanupTask(task scheduler.CleanupTask) {
	if e.Scheduler != nil {
		e.Scheduler.RegisterCleanupTask(task)
	}
}

// GetAllPlugins proxies to the Plugin Registry (spec §6).
func (e *Engine) GetAllPlugins() []*Plugin { return e.plugins.GetAllPlugins() }

// GetPlugin proxies to the Plugin Registry (spec §6).
func (e *Engine) GetPlugin(name string) *Plugin { return e.plugins.GetPlugin(name) }

// GetStepInputs proxies to the Plugin Registry (spec §6).
func (e *Engine) GetStepInputs(pluginName, stepName string) ([]string, error) {
	return e.plugins.GetStepInputs(pluginName, stepName)
}

// CreateSessionFor runs the session-scoped before/after hooks around
// session.Service.CreateSessionWithMetadata (spec §6, §4.5 "Session hooks").
func (e *Engine) CreateSessionFor(ctx context.Context, subjectType, subjectID string, ttl time.Duration, deviceInfo session.DeviceInfo) (session.Token, error) {
	engineCtx := Ctx{Engine: e}
	hooks := e.hooks.matching(subjectType, "createSessionFor", PhaseSession)

	data := map[string]any{"subjectType": subjectType, "subjectId": subjectID}
	data, err := runBeforeChain(ctx, engineCtx, hooks, data)
	if err != nil {
		_, err = runOnErrorChain(ctx, engineCtx, hooks, err, data)
		return session.Token{}, err
	}

	token, err := e.Sessions.CreateSessionWithMetadata(ctx, subjectType, subjectID, session.CreateOptions{
		TTL:        ttl,
		DeviceInfo: deviceInfo,
	})
	if err != nil {
		_, oerr := runOnErrorChain(ctx, engineCtx, hooks, err, data)
		return session.Token{}, oerr
	}

	if _, err := runAfterChain(ctx, engineCtx, hooks, data); err != nil {
		return token, err
	}
	return token, nil
}

// CheckSessionResult is checkSession's Engine-API return shape (spec §6).
type CheckSessionResult struct {
	Subject any
	Token   session.Token
	Type    string
	Payload map[string]any
	Valid   bool
}

// CheckSession runs the session-scoped before/after hooks around
// session.Service.VerifySession and shapes the result with the {valid} flag
// the Engine API adds on top of VerifyResult (spec §6: "checkSession(token,
// deviceInfo?) -> {subject, token, type?, payload?, valid}").
func (e *Engine) CheckSession(ctx context.Context, token session.Token, deviceInfo session.DeviceInfo) (CheckSessionResult, error) {
	engineCtx := Ctx{Engine: e}
	hooks := e.hooks.matching("", "checkSession", PhaseSession)

	data := map[string]any{"token": token}
	data, err := runBeforeChain(ctx, engineCtx, hooks, data)
	if err != nil {
		_, err = runOnErrorChain(ctx, engineCtx, hooks, err, data)
		return CheckSessionResult{}, err
	}

	result, err := e.Sessions.VerifySession(ctx, token, deviceInfo)
	if err != nil {
		_, oerr := runOnErrorChain(ctx, engineCtx, hooks, err, data)
		return CheckSessionResult{}, oerr
	}
	if _, err := runAfterChain(ctx, engineCtx, hooks, data); err != nil {
		return CheckSessionResult{}, err
	}
	return CheckSessionResult{
		Subject: result.Subject,
		Token:   result.Token,
		Type:    result.Type,
		Payload: result.Payload,
		Valid:   result.Subject != nil,
	}, nil
}

// IntrospectionStep describes one step's shape for getIntrospectionData.
type IntrospectionStep struct {
	Name         string `json:"name"`
	InputSchema  any    `json:"inputSchema,omitempty"`
	OutputSchema any    `json:"outputSchema,omitempty"`
	Protocol     any    `json:"protocol,omitempty"`
	RequiresAuth bool   `json:"requiresAuth"`
}

// IntrospectionPlugin describes one plugin's steps.
type IntrospectionPlugin struct {
	Name  string              `json:"name"`
	Steps []IntrospectionStep `json:"steps"`
}

// GetIntrospectionData implements spec §6's getIntrospectionData: a JSON
// description of every plugin's steps, their schemas, protocol metadata,
// and whether the step requires auth (derived from its protocol metadata's
// `http.auth` flag, falling back to false). Per spec §9's Open Question 4,
// a schema that fails to parse is logged and fails the whole call closed -
// an empty plugin list, not a document silently missing one field - since a
// malformed schema is an authoring bug callers must notice, not paper over.
func (e *Engine) GetIntrospectionData() []IntrospectionPlugin {
	plugins := e.plugins.GetAllPlugins()
	out := make([]IntrospectionPlugin, 0, len(plugins))
	for _, p := range plugins {
		names := make([]string, 0, len(p.Steps))
		for name := range p.Steps {
			names = append(names, name)
		}
		sort.Strings(names)

		steps := make([]IntrospectionStep, 0, len(names))
		for _, name := range names {
			step := p.Steps[name]
			inputSchema, err := schemaToJSON(step.ValidationSchema)
			if err != nil {
				logx.Errorf("engine: introspection: %s.%s input schema: %v", p.Name, step.Name, err)
				return []IntrospectionPlugin{}
			}
			outputSchema, err := schemaToJSON(step.OutputSchema)
			if err != nil {
				logx.Errorf("engine: introspection: %s.%s output schema: %v", p.Name, step.Name, err)
				return []IntrospectionPlugin{}
			}
			steps = append(steps, IntrospectionStep{
				Name:         step.Name,
				InputSchema:  inputSchema,
				OutputSchema: outputSchema,
				Protocol:     step.Protocol,
				RequiresAuth: requiresAuth(step.Protocol),
			})
		}
		out = append(out, IntrospectionPlugin{Name: p.Name, Steps: steps})
	}
	return out
}

func requiresAuth(protocol map[string]any) bool {
	http, ok := protocol["http"].(map[string]any)
	if !ok {
		return false
	}
	auth, _ := http["auth"].(bool)
	return auth
}

// UnifiedProfile is getUnifiedProfile's return shape (spec §6).
type UnifiedProfile struct {
	SubjectID   string         `json:"subjectId"`
	Plugins     map[string]any `json:"plugins"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// GetUnifiedProfile aggregates every plugin's getProfile into one document
// (spec §6: "{subjectId, plugins: {name -> data|{error}}, generatedAt}").
func (e *Engine) GetUnifiedProfile(ctx context.Context, subjectID string) UnifiedProfile {
	profile := UnifiedProfile{
		SubjectID:   subjectID,
		Plugins:     map[string]any{},
		GeneratedAt: time.Now(),
	}
	engineCtx := Ctx{Engine: e}
	for _, p := range e.plugins.GetAllPlugins() {
		if p.GetProfile == nil {
			continue
		}
		data, err := p.GetProfile(ctx, subjectID, engineCtx)
		if err != nil {
			profile.Plugins[p.Name] = map[string]any{"error": fmt.Sprintf("%v", err)}
			metrics.StepExecutions.WithLabelValues(p.Name, "getProfile", "error").Inc()
			continue
		}
		profile.Plugins[p.Name] = data
		metrics.StepExecutions.WithLabelValues(p.Name, "getProfile", "ok").Inc()
	}
	return profile
}
