package jwks

import (
	"context"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/veyra/authcore/internal/cache"
	"github.com/veyra/authcore/internal/orm"
)

// Service is the JWKS/JWT Service (spec §4.3). It owns no process-wide
// globals; every cache lives on the struct, matching the engine's
// "no module-level timers/state" design note (spec §9).
type Service struct {
	port orm.Port
	cfg  Config

	mu                 sync.Mutex
	activeKeyCache     *Key
	activeKeyCachedAt  time.Time
	publicJWKSCache    *JWKSDocument
	publicJWKSCachedAt time.Time

	// blacklistCache is an optional Redis-backed fast path for
	// IsTokenBlacklisted; nil means "always consult the ORM" (spec §5(a)).
	blacklistCache *cache.RedisCache
}

// WithBlacklistCache attaches a Redis-backed blacklist cache. Optional:
// a Service with no cache attached still satisfies I6 by consulting the
// ORM directly on every check.
func (s *Service) WithBlacklistCache(c *cache.RedisCache) *Service {
	s.blacklistCache = c
	return s
}

// NewService constructs a Service over port. If no active key exists yet,
// one is generated eagerly so GetActiveKey never has to do it under a
// caller's first request (I4 still holds either way).
func NewService(ctx context.Context, port orm.Port, cfg Config) (*Service, error) {
	s := &Service{port: port, cfg: cfg}
	active, err := s.getActiveKeyRow(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil {
		logx.Info("jwks: no active signing key found, generating one")
		if _, err := s.GenerateKeyPair(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}
