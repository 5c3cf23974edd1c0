package session

import (
	"context"
	"time"

	"github.com/veyra/authcore/internal/coreerr"
	"github.com/veyra/authcore/internal/jwks"
	"github.com/veyra/authcore/internal/metrics"
	"github.com/veyra/authcore/internal/orm"
)

// CreateSession issues a bare session with no device/metadata rows.
func (s *Service) CreateSession(ctx context.Context, subjectType, subjectID string, ttl time.Duration) (Token, error) {
	return s.CreateSessionWithMetadata(ctx, subjectType, subjectID, CreateOptions{TTL: ttl})
}

// CreateSessionWithMetadata implements spec §4.4's createSessionWithMetadata.
func (s *Service) CreateSessionWithMetadata(ctx context.Context, subjectType, subjectID string, opts CreateOptions) (Token, error) {
	if opts.TTL != 0 && opts.TTL < minSessionTTL {
		return Token{}, coreerr.InputValidation("ttl", "ttl must be at least 30 seconds")
	}
	ttl := opts.TTL
	if ttl == 0 {
		ttl = s.cfg.DefaultTTL
	}

	var userData map[string]any
	if s.cfg.GetUserData != nil {
		data, err := s.cfg.GetUserData(subjectID)
		if err != nil {
			return Token{}, err
		}
		userData = data
	}

	var token Token
	var expiresAt *time.Time

	if s.cfg.Mode == ModeJWT {
		accessToken, _, err := s.jwksSvc.SignJWT(ctx, jwks.Payload{
			Subject:     subjectID,
			SubjectType: subjectType,
			UserData:    userData,
			DeviceInfo:  map[string]any(opts.DeviceInfo),
		}, "", ttl)
		if err != nil {
			return Token{}, err
		}
		refreshToken, err := s.jwksSvc.GenerateRefreshToken(ctx, subjectType, subjectID, jwks.DeviceInfo{})
		if err != nil {
			return Token{}, err
		}
		exp := time.Now().Add(ttl)
		expiresAt = &exp
		token = Token{AccessToken: accessToken, RefreshToken: refreshToken}
	} else {
		opaque, err := randomOpaqueToken()
		if err != nil {
			return Token{}, coreerr.Internal("failed to generate opaque token", err)
		}
		exp := time.Now().Add(ttl)
		expiresAt = &exp
		token = Token{Opaque: opaque}
	}

	row := orm.Row{
		"subject_type": subjectType,
		"subject_id":   subjectID,
		"token":        token.primary(),
		"created_at":   time.Now(),
	}
	if expiresAt != nil {
		row["expires_at"] = *expiresAt
	} else {
		row["expires_at"] = nil
	}
	created, err := s.port.Create(ctx, tableSessions, row)
	if err != nil {
		return Token{}, coreerr.Internal("failed to persist session", err)
	}
	sessionID := asString(created["id"])

	if s.cfg.Enhanced {
		if err := s.writeEnhancedRows(ctx, sessionID, opts.DeviceInfo, opts.Metadata); err != nil {
			return Token{}, err
		}
	}

	metrics.SessionsIssued.WithLabelValues(string(s.cfg.Mode)).Inc()
	return token, nil
}

func (s *Service) writeEnhancedRows(ctx context.Context, sessionID string, device DeviceInfo, metadata map[string]any) error {
	if device != nil {
		if _, err := s.port.Create(ctx, tableDevices, orm.Row{
			"session_id":  sessionID,
			"device_info": deviceInfoToJSON(device),
			"created_at":  time.Now(),
			"updated_at":  time.Now(),
		}); err != nil {
			return coreerr.Internal("failed to persist session device", err)
		}
	}
	for key, value := range metadata {
		if _, err := s.port.Create(ctx, tableMetadata, orm.Row{
			"session_id": sessionID,
			"key":        key,
			"value":      value,
		}); err != nil {
			return coreerr.Internal("failed to persist session metadata", err)
		}
	}
	return nil
}

// VerifySession implements spec §4.4's verifySession algorithm. It never
// raises on a failed verification; every failure path returns a result with
// no subject (fail-closed, per §7).
func (s *Service) VerifySession(ctx context.Context, token Token, current DeviceInfo) (VerifyResult, error) {
	primary := token.primary()
	if primary == "" {
		metrics.SessionsVerified.WithLabelValues("no_token").Inc()
		return VerifyResult{}, nil
	}

	row, err := s.port.FindFirst(ctx, tableSessions, orm.FindFirstOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("token").Eq(primary) },
	})
	if err != nil {
		return VerifyResult{}, coreerr.Internal("failed to load session", err)
	}
	if row == nil {
		metrics.SessionsVerified.WithLabelValues("not_found").Inc()
		return VerifyResult{}, nil
	}
	sess := sessionFromRow(row)

	now := time.Now()
	sessionExpired := sess.ExpiresAt != nil && !sess.ExpiresAt.After(now)
	needsRefresh := sess.ExpiresAt != nil && !sess.ExpiresAt.After(now.Add(s.cfg.PreemptiveRefreshWindow))

	result := VerifyResult{Token: token}
	var claims *jwks.Claims
	if s.cfg.Mode == ModeJWT && s.jwksSvc != nil {
		c, verr := s.jwksSvc.VerifyJWT(ctx, primary)
		if verr == nil {
			claims = c
			result.Type = "jwt"
			result.Payload = map[string]any{
				"subject":      c.Subject,
				"subject_type": c.SubjectType,
				"userData":     c.UserData,
				"deviceInfo":   c.DeviceInfo,
			}
		} else {
			result.Type = "opaque"
		}
	} else {
		result.Type = "opaque"
	}

	if s.cfg.DeviceValidator != nil {
		stored := s.deviceInfoForValidation(ctx, sess, claims)
		if stored != nil && current != nil {
			if !s.cfg.DeviceValidator(stored, current) {
				metrics.SessionsVerified.WithLabelValues("device_mismatch").Inc()
				return VerifyResult{}, nil
			}
		}
	}

	if (sessionExpired || needsRefresh) && token.RefreshToken != "" && s.cfg.Mode == ModeJWT {
		pair, rerr := s.jwksSvc.RefreshAccessToken(ctx, token.RefreshToken, jwks.DeviceInfo{})
		if rerr != nil {
			_, _ = s.deleteSessionRow(ctx, sess)
			_ = s.jwksSvc.RevokeRefreshToken(ctx, token.RefreshToken, jwks.RevokeSecurity)
			metrics.SessionsVerified.WithLabelValues("refresh_failed").Inc()
			return VerifyResult{}, nil
		}
		metrics.SessionsVerified.WithLabelValues("refreshed").Inc()
		return s.rotateSessionRow(ctx, sess, pair)
	}

	if sessionExpired {
		_, _ = s.deleteSessionRow(ctx, sess)
		metrics.SessionsVerified.WithLabelValues("expired").Inc()
		return VerifyResult{}, nil
	}

	subject, rerr := s.resolvers.Resolve(ctx, sess.SubjectType, sess.SubjectID, s.port)
	if rerr != nil {
		metrics.SessionsVerified.WithLabelValues("ok").Inc()
		return VerifyResult{Token: token, Type: result.Type, Payload: result.Payload}, nil
	}
	result.Subject = subject
	metrics.SessionsVerified.WithLabelValues("ok").Inc()
	return result, nil
}

func (s *Service) deviceInfoForValidation(ctx context.Context, sess *Session, claims *jwks.Claims) DeviceInfo {
	if claims != nil && claims.DeviceInfo != nil {
		return DeviceInfo(claims.DeviceInfo)
	}
	row, err := s.port.FindFirst(ctx, tableDevices, orm.FindFirstOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("session_id").Eq(sess.ID) },
	})
	if err != nil || row == nil {
		return nil
	}
	return deviceInfoFromJSON(asString(row["device_info"]))
}

// rotateSessionRow deletes the old session row, inserts a new one for the
// refreshed token pair, and transfers device/metadata rows (spec §4.4 step
// 6, §5 ordering guarantee: delete precedes insert).
func (s *Service) rotateSessionRow(ctx context.Context, old *Session, pair *jwks.TokenPair) (VerifyResult, error) {
	if _, err := s.deleteSessionRowKeepChildren(ctx, old); err != nil {
		return VerifyResult{}, nil
	}

	newRow := orm.Row{
		"subject_type": old.SubjectType,
		"subject_id":   old.SubjectID,
		"token":        pair.AccessToken,
		"created_at":   time.Now(),
		"expires_at":   pair.ExpiresAt,
	}
	created, err := s.port.Create(ctx, tableSessions, newRow)
	if err != nil {
		return VerifyResult{}, nil
	}
	newSessionID := asString(created["id"])

	if s.cfg.Enhanced {
		if _, err := s.port.UpdateMany(ctx, tableDevices, orm.UpdateManyOptions{
			Where: func(b orm.Builder) orm.Predicate { return b.Col("session_id").Eq(old.ID) },
			Set:   orm.Row{"session_id": newSessionID},
		}); err != nil {
			return VerifyResult{}, nil
		}
		if _, err := s.port.UpdateMany(ctx, tableMetadata, orm.UpdateManyOptions{
			Where: func(b orm.Builder) orm.Predicate { return b.Col("session_id").Eq(old.ID) },
			Set:   orm.Row{"session_id": newSessionID},
		}); err != nil {
			return VerifyResult{}, nil
		}
	}

	claims, err := s.jwksSvc.VerifyJWT(ctx, pair.AccessToken)
	if err != nil {
		return VerifyResult{}, nil
	}
	subject, err := s.resolvers.Resolve(ctx, old.SubjectType, old.SubjectID, s.port)
	if err != nil {
		subject = nil
	}
	return VerifyResult{
		Subject: subject,
		Token:   Token{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
		Type:    "jwt",
		Payload: map[string]any{
			"subject":      claims.Subject,
			"subject_type": claims.SubjectType,
			"userData":     claims.UserData,
			"deviceInfo":   claims.DeviceInfo,
		},
	}, nil
}

// deleteSessionRow deletes device+metadata rows then the session row itself
// (I7: destroying a session destroys its children atomically from the
// caller's perspective).
func (s *Service) deleteSessionRow(ctx context.Context, sess *Session) (int64, error) {
	if s.cfg.Enhanced {
		if _, err := s.port.DeleteMany(ctx, tableDevices, orm.DeleteManyOptions{
			Where: func(b orm.Builder) orm.Predicate { return b.Col("session_id").Eq(sess.ID) },
		}); err != nil {
			return 0, err
		}
		if _, err := s.port.DeleteMany(ctx, tableMetadata, orm.DeleteManyOptions{
			Where: func(b orm.Builder) orm.Predicate { return b.Col("session_id").Eq(sess.ID) },
		}); err != nil {
			return 0, err
		}
	}
	return s.deleteSessionRowKeepChildren(ctx, sess)
}

// deleteSessionRowKeepChildren deletes only the session row, leaving its
// device and metadata rows for rotateSessionRow to move to the new session.
func (s *Service) deleteSessionRowKeepChildren(ctx context.Context, sess *Session) (int64, error) {
	return s.port.DeleteMany(ctx, tableSessions, orm.DeleteManyOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("id").Eq(sess.ID) },
	})
}

// DestroySession implements spec §4.4's destroySession. Idempotent (R1): a
// missing session is not an error.
func (s *Service) DestroySession(ctx context.Context, token Token) error {
	primary := token.primary()
	if primary == "" {
		return nil
	}
	row, err := s.port.FindFirst(ctx, tableSessions, orm.FindFirstOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("token").Eq(primary) },
	})
	if err != nil {
		return coreerr.Internal("failed to load session", err)
	}
	if row == nil {
		return nil
	}
	sess := sessionFromRow(row)

	if s.cfg.Mode == ModeJWT && token.RefreshToken != "" {
		if err := s.jwksSvc.BlacklistToken(ctx, token.RefreshToken, jwks.BlacklistLogout); err != nil {
			return err
		}
	}

	_, err = s.deleteSessionRow(ctx, sess)
	if err != nil {
		return coreerr.Internal("failed to destroy session", err)
	}
	metrics.SessionsDestroyed.WithLabelValues("logout").Inc()
	return nil
}

// DestroyAllSessions implements spec §4.4's destroyAllSessions (P6).
func (s *Service) DestroyAllSessions(ctx context.Context, subjectType, subjectID string) error {
	rows, err := s.port.FindMany(ctx, tableSessions, orm.FindManyOptions{
		Where: func(b orm.Builder) orm.Predicate {
			return b.And(b.Col("subject_type").Eq(subjectType), b.Col("subject_id").Eq(subjectID))
		},
	})
	if err != nil {
		return coreerr.Internal("failed to load sessions for subject", err)
	}
	for _, row := range rows {
		sess := sessionFromRow(row)
		if _, err := s.deleteSessionRow(ctx, sess); err != nil {
			return coreerr.Internal("failed to destroy session", err)
		}
		metrics.SessionsDestroyed.WithLabelValues("destroy_all").Inc()
	}
	if s.cfg.Mode == ModeJWT {
		if err := s.jwksSvc.RevokeAllRefreshTokens(ctx, subjectType, subjectID, jwks.RevokeLogout); err != nil {
			return err
		}
	}
	return nil
}

// ListSessionsForSubject returns active sessions for a subject, joined with
// device/metadata when enhanced mode is enabled (spec §4.4).
func (s *Service) ListSessionsForSubject(ctx context.Context, subjectType, subjectID string) ([]Session, error) {
	now := time.Now()
	rows, err := s.port.FindMany(ctx, tableSessions, orm.FindManyOptions{
		Where: func(b orm.Builder) orm.Predicate {
			return b.And(
				b.Col("subject_type").Eq(subjectType),
				b.Col("subject_id").Eq(subjectID),
				b.Or(b.Col("expires_at").IsNull(), b.Col("expires_at").Gt(now)),
			)
		},
	})
	if err != nil {
		return nil, coreerr.Internal("failed to list sessions for subject", err)
	}

	out := make([]Session, 0, len(rows))
	for _, row := range rows {
		sess := *sessionFromRow(row)
		if s.cfg.Enhanced {
			if deviceRow, err := s.port.FindFirst(ctx, tableDevices, orm.FindFirstOptions{
				Where: func(b orm.Builder) orm.Predicate { return b.Col("session_id").Eq(sess.ID) },
			}); err == nil && deviceRow != nil {
				sess.Device = deviceInfoFromJSON(asString(deviceRow["device_info"]))
			}
			if metaRows, err := s.port.FindMany(ctx, tableMetadata, orm.FindManyOptions{
				Where: func(b orm.Builder) orm.Predicate { return b.Col("session_id").Eq(sess.ID) },
			}); err == nil {
				meta := map[string]any{}
				for _, mr := range metaRows {
					meta[asString(mr["key"])] = mr["value"]
				}
				sess.Metadata = meta
			}
		}
		out = append(out, sess)
	}
	return out, nil
}
