package session

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/veyra/authcore/internal/coreerr"
	"github.com/veyra/authcore/internal/jwks"
	"github.com/veyra/authcore/internal/orm"
	"github.com/veyra/authcore/internal/resolver"
)

// Service is the Session Service (spec §4.4). jwksSvc may be nil in opaque
// mode; NewService rejects JWT mode without one.
type Service struct {
	port      orm.Port
	jwksSvc   *jwks.Service
	resolvers *resolver.Registry
	cfg       Config
}

// NewService constructs a Service. jwksSvc may be nil only when cfg.Mode is
// ModeOpaque.
func NewService(port orm.Port, resolvers *resolver.Registry, jwksSvc *jwks.Service, cfg Config) (*Service, error) {
	if cfg.Mode == ModeJWT && jwksSvc == nil {
		return nil, coreerr.Internal("jwt mode requires a jwks service", nil)
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultConfig().DefaultTTL
	}
	if cfg.PreemptiveRefreshWindow <= 0 {
		cfg.PreemptiveRefreshWindow = DefaultConfig().PreemptiveRefreshWindow
	}
	return &Service{port: port, jwksSvc: jwksSvc, resolvers: resolvers, cfg: cfg}, nil
}

const opaqueTokenRandomBytes = 32

func randomOpaqueToken() (string, error) {
	buf := make([]byte, opaqueTokenRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
