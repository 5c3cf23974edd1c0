package session

import (
	"encoding/json"
	"time"

	"github.com/veyra/authcore/internal/orm"
)

const (
	tableSessions = "session"
	tableDevices  = "session_device"
	tableMetadata = "session_metadata"
)

func sessionFromRow(row orm.Row) *Session {
	if row == nil {
		return nil
	}
	s := &Session{
		ID:          asString(row["id"]),
		SubjectType: asString(row["subject_type"]),
		SubjectID:   asString(row["subject_id"]),
		Token:       asString(row["token"]),
		CreatedAt:   asTime(row["created_at"]),
		ExpiresAt:   asTimePtr(row["expires_at"]),
	}
	return s
}

func deviceInfoFromJSON(raw string) DeviceInfo {
	if raw == "" {
		return nil
	}
	var out DeviceInfo
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return DeviceInfo{}
	}
	return out
}

func deviceInfoToJSON(d DeviceInfo) string {
	if d == nil {
		return ""
	}
	b, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return string(b)
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
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
