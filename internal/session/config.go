package session

import "time"

// Config configures one Service instance (spec §4.4: "two modes toggled at
// initialization").
type Config struct {
	// Mode selects opaque random tokens or JWKS-backed JWTs.
	Mode Mode

	// Enhanced turns on session_device/session_metadata persistence.
	Enhanced bool

	// DefaultTTL is used when CreateSession is called without an explicit ttl.
	DefaultTTL time.Duration

	// PreemptiveRefreshWindow is how far ahead of expiry VerifySession
	// starts a refresh (spec §4.4 step 3: "needsRefresh = expires_at <= now + 60s").
	PreemptiveRefreshWindow time.Duration

	// DeviceValidator, when set, gates verification on device match
	// (spec §4.4 step 5). Nil disables device validation entirely.
	DeviceValidator DeviceValidator

	// GetUserData loads extra payload data embedded in JWTs at creation.
	GetUserData GetUserData
}

// DefaultConfig returns opaque mode with a 24h TTL and the spec's 60s
// pre-emptive refresh window.
func DefaultConfig() Config {
	return Config{
		Mode:                    ModeOpaque,
		DefaultTTL:              24 * time.Hour,
		PreemptiveRefreshWindow: 60 * time.Second,
	}
}

const minSessionTTL = 30 * time.Second
