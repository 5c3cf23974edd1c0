package jwks

import (
	"time"

	"github.com/veyra/authcore/internal/orm"
)

const (
	tableKeys      = "jwks_key"
	tableRotations = "jwks_key_rotation"
	tableBlacklist = "jwt_blacklist"
	tableRefresh   = "refresh_token"
)

func keyFromRow(row orm.Row) *Key {
	if row == nil {
		return nil
	}
	k := &Key{
		ID:         asString(row["id"]),
		KeyID:      asString(row["key_id"]),
		Algorithm:  asString(row["algorithm"]),
		PublicJWK:  asString(row["public_key"]),
		PrivateJWK: asString(row["private_key"]),
		IsActive:   asBool(row["is_active"]),
		CreatedAt:  asTime(row["created_at"]),
		ExpiresAt:  asTimePtr(row["expires_at"]),
		LastUsedAt: asTimePtr(row["last_used_at"]),
		UsageCount: asInt64(row["usage_count"]),
	}
	return k
}

func keyToRow(k *Key) orm.Row {
	row := orm.Row{
		"id":          k.ID,
		"key_id":      k.KeyID,
		"algorithm":   k.Algorithm,
		"public_key":  k.PublicJWK,
		"private_key": k.PrivateJWK,
		"is_active":   k.IsActive,
		"created_at":  k.CreatedAt,
		"usage_count": k.UsageCount,
	}
	if k.ExpiresAt != nil {
		row["expires_at"] = *k.ExpiresAt
	} else {
		row["expires_at"] = nil
	}
	if k.LastUsedAt != nil {
		row["last_used_at"] = *k.LastUsedAt
	} else {
		row["last_used_at"] = nil
	}
	return row
}

func refreshFromRow(row orm.Row) *RefreshTokenRecord {
	if row == nil {
		return nil
	}
	return &RefreshTokenRecord{
		ID:                asString(row["id"]),
		TokenID:           asString(row["token_id"]),
		SubjectType:       asString(row["subject_type"]),
		SubjectID:         asString(row["subject_id"]),
		TokenHash:         asString(row["token_hash"]),
		ExpiresAt:         asTime(row["expires_at"]),
		CreatedAt:         asTime(row["created_at"]),
		LastUsedAt:        asTimePtr(row["last_used_at"]),
		IsRevoked:         asBool(row["is_revoked"]),
		RevokedAt:         asTimePtr(row["revoked_at"]),
		RevocationReason:  RevocationReason(asString(row["revocation_reason"])),
		DeviceFingerprint: asString(row["device_fingerprint"]),
		IPAddress:         asString(row["ip_address"]),
		UserAgent:         asString(row["user_agent"]),
	}
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	if v == nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}

func asTimePtr(v any) *time.Time {
	if v == nil {
		return nil
	}
	t, ok := v.(time.Time)
	if !ok {
		return nil
	}
	return &t
}
