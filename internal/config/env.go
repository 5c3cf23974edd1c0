package config

import "github.com/spf13/viper"

// ApplyEnvOverlay lets a handful of deployment-time secrets override the
// YAML-loaded Config without editing the config file, the way
// jrschumacher-dis.quest's config.Load binds environment variables on top
// of a viper instance. conf.MustLoad stays the source of structural
// config (ports, timeouts, feature flags); this only overlays the values
// an operator would otherwise have to template into etc/authcoredemo.yaml.
func ApplyEnvOverlay(c *Config) {
	v := viper.New()
	v.SetEnvPrefix("AUTHCORE")
	v.AutomaticEnv()

	if dsn := v.GetString("DATABASE_DSN"); dsn != "" {
		c.Database.DataSource = dsn
	}
	if host := v.GetString("REDIS_HOST"); host != "" {
		c.Redis.Host = host
	}
	if pass := v.GetString("REDIS_PASS"); pass != "" {
		c.Redis.Pass = pass
	}
	if issuer := v.GetString("JWKS_ISSUER"); issuer != "" {
		c.JWKS.Issuer = issuer
	}
}
