// Package session implements the Session Service (spec §4.4): dual-mode
// (opaque + JWT) token issuance, hybrid verification with auto-refresh,
// device binding, and the unified session-row lifecycle. It is grounded on
// the teacher's loginLogic/cache session-handling flow, generalized from a
// single opaque-session cache to a table-backed session row that can carry
// either an opaque token or a signed JWT.
package session

import "time"

// Mode selects how sessions are represented on the wire.
type Mode string

const (
	ModeOpaque Mode = "opaque"
	ModeJWT    Mode = "jwt"
)

// Token is the tagged variant spec §9 calls for: Opaque(string) |
// Pair{access,refresh} | None. At most one of Opaque/AccessToken is set;
// neither is set for None.
type Token struct {
	Opaque       string
	AccessToken  string
	RefreshToken string
}

// IsZero reports the "None" variant.
func (t Token) IsZero() bool { return t.Opaque == "" && t.AccessToken == "" }

// primary returns the string the session row is keyed by, regardless of mode.
func (t Token) primary() string {
	if t.AccessToken != "" {
		return t.AccessToken
	}
	return t.Opaque
}

// DeviceInfo is caller-supplied device context, JSON-serialized into
// session_device and optionally mirrored into the JWT payload.
type DeviceInfo map[string]any

// DeviceValidator compares stored vs. current device info and decides
// whether the session may continue to be used (spec §4.4 step 5).
type DeviceValidator func(stored, current DeviceInfo) bool

// GetUserData loads extra data to embed in a JWT payload at session
// creation time (spec §4.4: "configured getUserData(subjectId, orm)").
type GetUserData func(subjectID string) (map[string]any, error)

// CreateOptions configures CreateSessionWithMetadata.
type CreateOptions struct {
	TTL        time.Duration
	DeviceInfo DeviceInfo
	Metadata   map[string]any
}

// VerifyResult is what VerifySession returns.
type VerifyResult struct {
	Subject any
	Token   Token
	Type    string // "jwt" or "opaque", empty when verification failed
	Payload map[string]any
}

// Session is the unified row view (spec §3).
type Session struct {
	ID          string
	SubjectType string
	SubjectID   string
	Token       string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	Device      DeviceInfo
	Metadata    map[string]any
}
