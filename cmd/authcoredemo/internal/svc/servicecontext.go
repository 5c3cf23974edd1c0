// Package svc wires the demo binary's ServiceContext, the way the
// teacher's goctl-scaffolded services wire theirs (services/gateway/growth/
// internal/svc/serviceContext.go), generalized from a fixed set of RPC
// clients to the authcore Engine and its collaborators.
package svc

import (
	"context"
	"strconv"
	"strings"

	goredis "github.com/zeromicro/go-zero/core/stores/redis"

	"github.com/veyra/authcore/internal/cache"
	"github.com/veyra/authcore/internal/config"
	"github.com/veyra/authcore/internal/engine"
	"github.com/veyra/authcore/internal/jwks"
	"github.com/veyra/authcore/internal/orm"
	"github.com/veyra/authcore/internal/resolver"
	"github.com/veyra/authcore/internal/scheduler"
	"github.com/veyra/authcore/internal/session"
)

// newRedisCache adapts go-zero's "host:port" RedisConf into the internal
// cache package's split Host/Port form.
func newRedisCache(rc goredis.RedisConf) (*cache.RedisCache, error) {
	host, portStr, _ := strings.Cut(rc.Host, ":")
	port, _ := strconv.Atoi(portStr)
	return cache.NewRedisCache(cache.Config{
		Host:     host,
		Port:     port,
		Password: rc.Pass,
	})
}

// ServiceContext bundles the demo binary's config and wired Engine.
type ServiceContext struct {
	Config config.Config
	Engine *engine.Engine
}

// NewServiceContext constructs the ORM port, JWKS service, session service,
// cleanup scheduler, and Engine from Config, and starts the scheduler when
// Scheduler.Enabled is set.
func NewServiceContext(c config.Config) (*ServiceContext, error) {
	port, err := newPort(c)
	if err != nil {
		return nil, err
	}

	resolvers := resolver.New()

	jcfg := jwks.DefaultConfig(c.JWKS.Issuer)
	if c.JWKS.Algorithm != "" {
		jcfg.Algorithm = c.JWKS.Algorithm
	}
	if c.JWKS.RotationIntervalDays > 0 {
		jcfg.RotationIntervalDays = c.JWKS.RotationIntervalDays
	}
	if c.JWKS.GracePeriodDays > 0 {
		jcfg.GracePeriodDays = c.JWKS.GracePeriodDays
	}
	if c.JWKS.AccessTokenTTL > 0 {
		jcfg.AccessTokenTTL = c.JWKS.AccessTokenTTL
	}
	if c.JWKS.RefreshTokenTTL > 0 {
		jcfg.RefreshTokenTTL = c.JWKS.RefreshTokenTTL
	}
	jcfg.RotationEnabled = c.JWKS.RotationEnabled

	jwksSvc, err := jwks.NewService(context.Background(), port, jcfg)
	if err != nil {
		return nil, err
	}
	if c.Redis.Host != "" {
		blacklistCache, err := newRedisCache(c.Redis)
		if err != nil {
			return nil, err
		}
		jwksSvc = jwksSvc.WithBlacklistCache(blacklistCache)
	}

	scfg := session.DefaultConfig()
	if c.Session.Mode == "jwt" {
		scfg.Mode = session.ModeJWT
	}
	scfg.Enhanced = c.Session.Enhanced
	if c.Session.DefaultTTL > 0 {
		scfg.DefaultTTL = c.Session.DefaultTTL
	}
	if c.Session.PreemptiveRefreshWindow > 0 {
		scfg.PreemptiveRefreshWindow = c.Session.PreemptiveRefreshWindow
	}

	sessions, err := session.NewService(port, resolvers, jwksSvc, scfg)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(port)
	if c.Scheduler.Enabled {
		registerBuiltinCleanupTasks(sched, jwksSvc, c)
		sched.Start()
	}

	eng := engine.New(port, resolvers, jwksSvc, sessions, sched)

	return &ServiceContext{Config: c, Engine: eng}, nil
}

func newPort(c config.Config) (orm.Port, error) {
	switch c.Database.Driver {
	case "gorm":
		return orm.NewGormPostgresPort(c.Database.DataSource)
	case "mongo":
		return nil, nil // wired by a dedicated mongo.Client constructor outside this demo's scope
	case "memory":
		return orm.NewMemoryPort(), nil
	default:
		return orm.NewSQLXPostgresPort(c.Database.DataSource)
	}
}

func registerBuiltinCleanupTasks(sched *scheduler.Scheduler, jwksSvc *jwks.Service, c config.Config) {
	sched.RegisterCleanupTask(scheduler.CleanupTask{
		Name:       "jwks.expired_keys",
		PluginName: "jwks",
		IntervalMs: c.Scheduler.ExpiredKeyIntervalMs,
		Enabled:    true,
		Runner: func(ctx context.Context, port orm.Port, pluginConfig map[string]any) scheduler.CleanupResult {
			n, err := jwksSvc.CleanupExpiredKeys(ctx)
			return resultOf(n, err)
		},
	})
	sched.RegisterCleanupTask(scheduler.CleanupTask{
		Name:       "jwks.blacklisted_tokens",
		PluginName: "jwks",
		IntervalMs: c.Scheduler.BlacklistIntervalMs,
		Enabled:    true,
		Runner: func(ctx context.Context, port orm.Port, pluginConfig map[string]any) scheduler.CleanupResult {
			n, err := jwksSvc.CleanupBlacklistedTokens(ctx)
			return resultOf(n, err)
		},
	})
	sched.RegisterCleanupTask(scheduler.CleanupTask{
		Name:       "jwks.expired_refresh_tokens",
		PluginName: "jwks",
		IntervalMs: c.Scheduler.ExpiredRefreshIntervalMs,
		Enabled:    true,
		Runner: func(ctx context.Context, port orm.Port, pluginConfig map[string]any) scheduler.CleanupResult {
			n, err := jwksSvc.CleanupExpiredRefreshTokens(ctx)
			return resultOf(n, err)
		},
	})
}

func resultOf(n int64, err error) scheduler.CleanupResult {
	if err != nil {
		return scheduler.CleanupResult{Errors: []error{err}}
	}
	return scheduler.CleanupResult{Cleaned: int(n)}
}
