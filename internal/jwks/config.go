package jwks

import "time"

// Config configures one Service instance. Defaults mirror the teacher's
// GourdianTokenConfig duration/validation style but operate over a rotating
// key set instead of one fixed key pair.
type Config struct {
	// Issuer is stamped into every signed JWT's iss claim and checked on verify.
	Issuer string

	// Algorithm is the JWT signing algorithm; only RS256 is currently wired
	// (spec §4.3 defaults new keys to RS256).
	Algorithm string

	// RotationIntervalDays is how long a freshly generated key stays the
	// sole ACTIVE-PRIMARY key before it is due for rotation.
	RotationIntervalDays int

	// GracePeriodDays is how long a rotated-out key stays ACTIVE-GRACE,
	// still able to verify outstanding tokens, before it expires.
	GracePeriodDays int

	// AccessTokenTTL is the default access-token lifetime used by SignJWT
	// when the caller does not supply one.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is how long a generated refresh token remains valid.
	RefreshTokenTTL time.Duration

	// RotationEnabled mirrors the teacher's RotationEnabled: when true,
	// RefreshAccessToken revokes the consumed refresh token and issues a
	// new one (single-use rotation); when false, the same refresh token
	// may be reused until it expires.
	RotationEnabled bool

	// ActiveKeyCacheTTL bounds how long getActiveKey trusts its cached
	// value before reloading (spec §4.3: "cached active key if fresh (TTL 5 min)").
	ActiveKeyCacheTTL time.Duration

	// PublicJWKSCacheTTL bounds how long GetPublicJWKS trusts its cache.
	PublicJWKSCacheTTL time.Duration
}

// DefaultConfig returns the spec's stated defaults (5-minute caches, RS256).
func DefaultConfig(issuer string) Config {
	return Config{
		Issuer:                issuer,
		Algorithm:             "RS256",
		RotationIntervalDays:  90,
		GracePeriodDays:       7,
		AccessTokenTTL:        15 * time.Minute,
		RefreshTokenTTL:       30 * 24 * time.Hour,
		RotationEnabled:       true,
		ActiveKeyCacheTTL:     5 * time.Minute,
		PublicJWKSCacheTTL:    5 * time.Minute,
	}
}
