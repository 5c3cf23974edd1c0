// Package jwks implements the JWKS/JWT Service (spec §4.3): asymmetric key
// generation and rotation with a grace period, JWT sign/verify with a
// blacklist, and refresh-token issuance/rotation with hashed-at-rest
// storage. It is grounded on the teacher's gourdiantoken package, which
// owns the same concerns (key parsing, signing, revocation, rotation) for
// a single fixed key pair; this package generalizes that to a rotating set
// of keys addressed by kid and persisted through the orm.Port rather than
// loaded from a fixed PEM file pair.
package jwks

import "time"

// RotationReason classifies why a key rotation happened (spec §3, jwks_key_rotation).
type RotationReason string

const (
	ReasonScheduled  RotationReason = "scheduled"
	ReasonManual     RotationReason = "manual"
	ReasonCompromise RotationReason = "compromise"
)

// BlacklistReason classifies why a JWT was blacklisted (spec §3, jwt_blacklist).
type BlacklistReason string

const (
	BlacklistLogout     BlacklistReason = "logout"
	BlacklistRevocation BlacklistReason = "revocation"
	BlacklistSecurity   BlacklistReason = "security"
)

// RevocationReason classifies why a refresh token was revoked (spec §3, refresh_token).
type RevocationReason string

const (
	RevokeLogout   RevocationReason = "logout"
	RevokeRotation RevocationReason = "rotation"
	RevokeSecurity RevocationReason = "security"
	RevokeExpired  RevocationReason = "expired"
)

// Key is the in-memory view of a jwks_key row.
type Key struct {
	ID           string
	KeyID        string
	Algorithm    string
	PublicJWK    string
	PrivateJWK   string
	IsActive     bool
	CreatedAt    time.Time
	ExpiresAt    *time.Time
	LastUsedAt   *time.Time
	UsageCount   int64
}

// Payload is the set of claims a caller hands to SignJWT; Issuer/IssuedAt/
// ExpiresAt are filled in by the service, not the caller (spec §4.3).
type Payload struct {
	Subject     string
	SubjectType string
	UserData    map[string]any
	DeviceInfo  map[string]any
}

// Claims is what VerifyJWT hands back: the standard claims plus the
// caller-supplied payload fields round-tripped through the token.
type Claims struct {
	Issuer      string
	Subject     string
	SubjectType string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	UserData    map[string]any
	DeviceInfo  map[string]any
	KeyID       string
}

// TokenPair is returned by refresh and by session creation in JWT mode.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// RefreshTokenRecord is the in-memory view of a refresh_token row. The raw
// token is never part of this type (I2) - only its hash.
type RefreshTokenRecord struct {
	ID                string
	TokenID           string
	SubjectType       string
	SubjectID         string
	TokenHash         string
	ExpiresAt         time.Time
	CreatedAt         time.Time
	LastUsedAt        *time.Time
	IsRevoked         bool
	RevokedAt         *time.Time
	RevocationReason  RevocationReason
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string
}

// JWKSDocument is the public JWKS view returned by GetPublicJWKS.
type JWKSDocument struct {
	Keys []map[string]any `json:"keys"`
}

// DeviceInfo is the optional per-refresh-token device context (spec §4.4).
type DeviceInfo struct {
	Fingerprint string
	IPAddress   string
	UserAgent   string
}
