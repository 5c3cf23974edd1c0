package jwks

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/veyra/authcore/internal/coreerr"
	"github.com/veyra/authcore/internal/metrics"
	"github.com/veyra/authcore/internal/orm"
)

// hashToken mirrors the teacher's hashToken: a hex-encoded sha256, used
// here to key blacklist rows without storing the raw JWT.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func rsaPrivateKeyFromJWK(jwkJSON string) (*rsa.PrivateKey, error) {
	key, err := jwk.ParseKey([]byte(jwkJSON))
	if err != nil {
		return nil, fmt.Errorf("parse private jwk: %w", err)
	}
	var raw rsa.PrivateKey
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("materialize rsa private key: %w", err)
	}
	return &raw, nil
}

func rsaPublicKeyFromJWK(jwkJSON string) (*rsa.PublicKey, error) {
	key, err := jwk.ParseKey([]byte(jwkJSON))
	if err != nil {
		return nil, fmt.Errorf("parse public jwk: %w", err)
	}
	var raw rsa.PublicKey
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("materialize rsa public key: %w", err)
	}
	return &raw, nil
}

// SignJWT signs payload with the chosen key (default: the active key).
// Header carries {alg, kid}; claims carry {iss, sub, subject_type, iat,
// exp, userData?, deviceInfo?} per spec §6 (JWT on the wire).
func (s *Service) SignJWT(ctx context.Context, payload Payload, keyID string, ttl time.Duration) (string, *Key, error) {
	var signingKey *Key
	var err error
	if keyID != "" {
		signingKey, err = s.getKeyByKid(ctx, keyID)
		if err != nil {
			return "", nil, err
		}
		if signingKey == nil {
			return "", nil, coreerr.NotFound(fmt.Sprintf("signing key %q not found", keyID))
		}
	} else {
		signingKey, err = s.GetActiveKey(ctx)
		if err != nil {
			return "", nil, err
		}
	}

	if ttl <= 0 {
		ttl = s.cfg.AccessTokenTTL
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":          s.cfg.Issuer,
		"sub":          payload.Subject,
		"subject_type": payload.SubjectType,
		"iat":          now.Unix(),
		"exp":          now.Add(ttl).Unix(),
	}
	if payload.UserData != nil {
		claims["userData"] = payload.UserData
	}
	if payload.DeviceInfo != nil {
		claims["deviceInfo"] = payload.DeviceInfo
	}

	privKey, err := rsaPrivateKeyFromJWK(signingKey.PrivateJWK)
	if err != nil {
		return "", nil, coreerr.Internal("failed to materialize signing key", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = signingKey.KeyID

	signed, err := token.SignedString(privKey)
	if err != nil {
		return "", nil, coreerr.Internal("failed to sign jwt", err)
	}

	if _, err := s.port.UpdateMany(ctx, tableKeys, orm.UpdateManyOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("key_id").Eq(signingKey.KeyID) },
		Set: orm.Row{
			"usage_count":  signingKey.UsageCount + 1,
			"last_used_at": now,
		},
	}); err != nil {
		return "", nil, coreerr.Internal("failed to record key usage", err)
	}

	metrics.JWTsSigned.Inc()
	return signed, signingKey, nil
}

// VerifyJWT rejects blacklisted tokens, loads the key named by the token's
// kid header (even if it is only in its grace period), and verifies
// signature, issuer, and expiry (spec §4.3 failure semantics).
func (s *Service) VerifyJWT(ctx context.Context, tokenString string) (*Claims, error) {
	blacklisted, err := s.IsTokenBlacklisted(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		metrics.JWTVerifyFailures.WithLabelValues("blacklisted").Inc()
		return nil, coreerr.Unauthenticated("token has been blacklisted")
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		metrics.JWTVerifyFailures.WithLabelValues("malformed").Inc()
		return nil, coreerr.Unauthenticated("malformed token")
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		metrics.JWTVerifyFailures.WithLabelValues("missing_kid").Inc()
		return nil, coreerr.Unauthenticated("token missing kid header")
	}

	signingKey, err := s.getKeyByKid(ctx, kid)
	if err != nil {
		return nil, err
	}
	if signingKey == nil {
		metrics.JWTVerifyFailures.WithLabelValues("unknown_key").Inc()
		return nil, coreerr.Unauthenticated(fmt.Sprintf("unknown signing key %q", kid))
	}

	pubKey, err := rsaPublicKeyFromJWK(signingKey.PublicJWK)
	if err != nil {
		return nil, coreerr.Internal("failed to materialize verification key", err)
	}

	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return pubKey, nil
	}, jwt.WithIssuer(s.cfg.Issuer))
	if err != nil {
		metrics.JWTVerifyFailures.WithLabelValues("invalid").Inc()
		return nil, coreerr.Unauthenticated(fmt.Sprintf("invalid token: %v", err))
	}
	if !parsed.Valid {
		metrics.JWTVerifyFailures.WithLabelValues("invalid").Inc()
		return nil, coreerr.Unauthenticated("invalid token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		metrics.JWTVerifyFailures.WithLabelValues("invalid_claims").Inc()
		return nil, coreerr.Unauthenticated("invalid token claims")
	}

	return mapClaimsToClaims(claims, kid)
}

func mapClaimsToClaims(claims jwt.MapClaims, kid string) (*Claims, error) {
	out := &Claims{KeyID: kid}
	if v, ok := claims["iss"].(string); ok {
		out.Issuer = v
	}
	if v, ok := claims["sub"].(string); ok {
		out.Subject = v
	}
	if v, ok := claims["subject_type"].(string); ok {
		out.SubjectType = v
	}
	if v, ok := claims["iat"].(float64); ok {
		out.IssuedAt = time.Unix(int64(v), 0)
	}
	if v, ok := claims["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(v), 0)
	}
	if v, ok := claims["userData"].(map[string]any); ok {
		out.UserData = v
	}
	if v, ok := claims["deviceInfo"].(map[string]any); ok {
		out.DeviceInfo = v
	}
	return out, nil
}

// BlacklistToken records a revoked JWT by its hash (never the raw token).
func (s *Service) BlacklistToken(ctx context.Context, token string, reason BlacklistReason) error {
	hash := hashToken(token)
	_, err := s.port.Create(ctx, tableBlacklist, orm.Row{
		"token":          hash,
		"reason":         string(reason),
		"blacklisted_at": time.Now(),
	})
	if err != nil {
		return coreerr.Internal("failed to blacklist token", err)
	}
	if s.blacklistCache != nil {
		if cerr := s.blacklistCache.SetBlacklisted(ctx, hash, 24*time.Hour); cerr != nil {
			logx.WithContext(ctx).Errorf("jwks: failed to populate blacklist cache: %v", cerr)
		}
	}
	return nil
}

// IsTokenBlacklisted checks the blacklist by token hash, consulting the
// Redis cache first when attached (a cache miss always falls through to
// the ORM, so I6 holds even with a cold or unavailable cache).
func (s *Service) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	hash := hashToken(token)
	if s.blacklistCache != nil {
		if hit, cerr := s.blacklistCache.IsBlacklisted(ctx, hash); cerr == nil && hit {
			return true, nil
		}
	}
	row, err := s.port.FindFirst(ctx, tableBlacklist, orm.FindFirstOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("token").Eq(hash) },
	})
	if err != nil {
		return false, coreerr.Internal("failed to check blacklist", err)
	}
	return row != nil, nil
}
