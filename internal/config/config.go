// Package config defines the demo binary's configuration tree, loaded the
// way the teacher's goctl-scaffolded services load theirs: a Config struct
// embedding a go-zero *Conf type, populated by conf.MustLoad from YAML, with
// nested structs for each subsystem. Unlike the teacher's RPC/REST services,
// authcoredemo is a single process, so Config embeds rest.RestConf directly
// rather than composing zrpc client/server confs.
package config

import (
	"time"

	"github.com/creasty/defaults"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/rest"
)

// EngineConfig holds the Engine section of the YAML file. NewServiceContext
// does not read it, and the Engine validates step schemas whatever
// SchemaValidation says.
type EngineConfig struct {
	SchemaValidation bool `json:",default=true"`
	StrictMode       bool `json:",default=false"`
}

// JWKSConfig mirrors jwks.Config, loaded from YAML/env instead of
// constructed via jwks.DefaultConfig (spec §4.3).
type JWKSConfig struct {
	Issuer               string        `json:",optional"`
	Algorithm            string        `json:",default=RS256"`
	RotationIntervalDays int           `json:",default=90"`
	GracePeriodDays      int           `json:",default=7"`
	AccessTokenTTL       time.Duration `json:",default=15m"`
	RefreshTokenTTL      time.Duration `json:",default=720h"`
	RotationEnabled      bool          `json:",default=true"`
}

// SessionConfig mirrors session.Config (spec §4.4).
type SessionConfig struct {
	Mode                    string        `json:",default=opaque,options=opaque|jwt"`
	Enhanced                bool          `json:",default=false"`
	DefaultTTL              time.Duration `json:",default=24h"`
	PreemptiveRefreshWindow time.Duration `json:",default=60s"`
}

// SchedulerConfig controls the Cleanup Scheduler (spec §4.6).
type SchedulerConfig struct {
	Enabled                  bool  `json:",default=true"`
	ExpiredKeyIntervalMs     int64 `json:",default=3600000"`
	BlacklistIntervalMs      int64 `json:",default=3600000"`
	ExpiredRefreshIntervalMs int64 `json:",default=3600000"`
}

// Config is the demo binary's top-level configuration, loaded via
// conf.MustLoad the way the teacher's api/rpc entrypoints load theirs.
type Config struct {
	rest.RestConf
	Database struct {
		Driver     string `json:",default=postgres,options=postgres|gorm|mongo|memory"`
		DataSource string `json:",optional"`
	}
	Redis     redis.RedisConf `json:",optional"`
	Engine    EngineConfig
	JWKS      JWKSConfig
	Session   SessionConfig
	Scheduler SchedulerConfig
}

// WithDefaults applies creasty/defaults to cfg, filling zero-valued fields
// that carry a `default:"..."` struct tag. The config structs in this
// package carry only go-zero json:",default=..." tags, which creasty/defaults
// does not read, so WithDefaults leaves their fields unchanged.
func WithDefaults[T any](cfg *T) error {
	return defaults.Set(cfg)
}
