package jwks

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/veyra/authcore/internal/coreerr"
	"github.com/veyra/authcore/internal/metrics"
	"github.com/veyra/authcore/internal/orm"
)

const rsaKeyBits = 2048

// generateKeyMaterial creates a fresh RSA key pair and encodes both halves
// as JWK JSON, the way the teacher's util command wraps an ecdsa key with
// jwk.FromRaw before exporting public/private JWK sets.
func generateKeyMaterial(keyID string) (publicJWK, privateJWK string, err error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return "", "", fmt.Errorf("jwks: generate rsa key: %w", err)
	}

	privKey, err := jwk.FromRaw(priv)
	if err != nil {
		return "", "", fmt.Errorf("jwks: wrap private key as jwk: %w", err)
	}
	if err := privKey.Set(jwk.KeyIDKey, keyID); err != nil {
		return "", "", err
	}
	if err := privKey.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		return "", "", err
	}
	if err := privKey.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return "", "", err
	}

	pubKey, err := privKey.PublicKey()
	if err != nil {
		return "", "", fmt.Errorf("jwks: derive public jwk: %w", err)
	}

	privJSON, err := json.Marshal(privKey)
	if err != nil {
		return "", "", err
	}
	pubJSON, err := json.Marshal(pubKey)
	if err != nil {
		return "", "", err
	}
	return string(pubJSON), string(privJSON), nil
}

// GenerateKeyPair creates, persists, and activates a new signing key (spec §4.3).
func (s *Service) GenerateKeyPair(ctx context.Context) (*Key, error) {
	keyID := uuid.NewString()
	publicJWK, privateJWK, err := generateKeyMaterial(keyID)
	if err != nil {
		return nil, coreerr.Internal("failed to generate key pair", err)
	}

	now := time.Now()
	expiresAt := now.AddDate(0, 0, s.cfg.RotationIntervalDays)
	k := &Key{
		KeyID:      keyID,
		Algorithm:  s.cfg.Algorithm,
		PublicJWK:  publicJWK,
		PrivateJWK: privateJWK,
		IsActive:   true,
		CreatedAt:  now,
		ExpiresAt:  &expiresAt,
	}

	created, err := s.port.Create(ctx, tableKeys, keyToRow(k))
	if err != nil {
		return nil, coreerr.Internal("failed to persist key", err)
	}
	k.ID = asString(created["id"])
	s.invalidateCaches()
	return k, nil
}

// getActiveKeyRow loads the newest row with is_active=true directly from
// storage, bypassing the cache.
func (s *Service) getActiveKeyRow(ctx context.Context) (*Key, error) {
	rows, err := s.port.FindMany(ctx, tableKeys, orm.FindManyOptions{
		Where: func(b orm.Builder) orm.Predicate {
			return b.Col("is_active").Eq(true)
		},
		OrderBy: []orm.OrderBy{{Column: "created_at", Desc: true}},
	})
	if err != nil {
		return nil, coreerr.Internal("failed to load active keys", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return keyFromRow(rows[0]), nil
}

// GetActiveKey returns the cached active key if fresh, else reloads; when no
// unexpired active key exists it rotates to mint one (spec §4.3, I4).
func (s *Service) GetActiveKey(ctx context.Context) (*Key, error) {
	s.mu.Lock()
	if s.activeKeyCache != nil && time.Since(s.activeKeyCachedAt) < s.cfg.ActiveKeyCacheTTL {
		cached := s.activeKeyCache
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	k, err := s.getActiveKeyRow(ctx)
	if err != nil {
		return nil, err
	}
	if k == nil || (k.ExpiresAt != nil && !k.ExpiresAt.After(time.Now())) {
		return s.RotateKeys(ctx, ReasonScheduled)
	}

	s.mu.Lock()
	s.activeKeyCache = k
	s.activeKeyCachedAt = time.Now()
	s.mu.Unlock()
	return k, nil
}

// GetAllActiveKeys returns every active row, including keys still in their
// grace period, so the public JWKS can keep verifying outstanding tokens.
func (s *Service) GetAllActiveKeys(ctx context.Context) ([]*Key, error) {
	rows, err := s.port.FindMany(ctx, tableKeys, orm.FindManyOptions{
		Where: func(b orm.Builder) orm.Predicate {
			return b.Col("is_active").Eq(true)
		},
		OrderBy: []orm.OrderBy{{Column: "created_at", Desc: true}},
	})
	if err != nil {
		return nil, coreerr.Internal("failed to load active keys", err)
	}
	keys := make([]*Key, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, keyFromRow(row))
	}
	return keys, nil
}

// RotateKeys generates a new key, records the rotation, and moves the
// previous active key into its grace period (spec §4.3 state machine).
func (s *Service) RotateKeys(ctx context.Context, reason RotationReason) (*Key, error) {
	previous, err := s.getActiveKeyRow(ctx)
	if err != nil {
		return nil, err
	}

	newKey, err := s.GenerateKeyPair(ctx)
	if err != nil {
		return nil, err
	}

	if previous != nil {
		graceExpiry := time.Now().AddDate(0, 0, s.cfg.GracePeriodDays)
		if _, err := s.port.UpdateMany(ctx, tableKeys, orm.UpdateManyOptions{
			Where: func(b orm.Builder) orm.Predicate { return b.Col("key_id").Eq(previous.KeyID) },
			Set:   orm.Row{"expires_at": graceExpiry},
		}); err != nil {
			return nil, coreerr.Internal("failed to set grace period on previous key", err)
		}
	}

	rotation := orm.Row{
		"new_key_id":      newKey.KeyID,
		"rotation_reason": string(reason),
		"rotated_at":      time.Now(),
	}
	if previous != nil {
		rotation["old_key_id"] = previous.KeyID
	} else {
		rotation["old_key_id"] = nil
	}
	if _, err := s.port.Create(ctx, tableRotations, rotation); err != nil {
		return nil, coreerr.Internal("failed to record rotation", err)
	}

	s.invalidateCaches()
	metrics.KeyRotations.WithLabelValues(string(reason)).Inc()
	if keys, err := s.GetAllActiveKeys(ctx); err == nil {
		metrics.ActiveKeys.Set(float64(len(keys)))
	}
	return newKey, nil
}

// getKeyByKid loads a key by kid regardless of active/grace/expired state,
// since verification must still succeed for outstanding grace-period tokens.
func (s *Service) getKeyByKid(ctx context.Context, kid string) (*Key, error) {
	row, err := s.port.FindFirst(ctx, tableKeys, orm.FindFirstOptions{
		Where: func(b orm.Builder) orm.Predicate { return b.Col("key_id").Eq(kid) },
	})
	if err != nil {
		return nil, coreerr.Internal("failed to load key", err)
	}
	return keyFromRow(row), nil
}

// GetPublicJWKS returns the cached public JWKS document, refreshing when
// the cache has expired (spec §4.3: "cached for 5 min").
func (s *Service) GetPublicJWKS(ctx context.Context) (*JWKSDocument, error) {
	s.mu.Lock()
	if s.publicJWKSCache != nil && time.Since(s.publicJWKSCachedAt) < s.cfg.PublicJWKSCacheTTL {
		cached := s.publicJWKSCache
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	keys, err := s.GetAllActiveKeys(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.After(keys[j].CreatedAt) })

	doc := &JWKSDocument{Keys: make([]map[string]any, 0, len(keys))}
	for _, k := range keys {
		var entry map[string]any
		if err := json.Unmarshal([]byte(k.PublicJWK), &entry); err != nil {
			continue
		}
		entry["kid"] = k.KeyID
		entry["alg"] = k.Algorithm
		entry["use"] = "sig"
		doc.Keys = append(doc.Keys, entry)
	}

	s.mu.Lock()
	s.publicJWKSCache = doc
	s.publicJWKSCachedAt = time.Now()
	s.mu.Unlock()
	return doc, nil
}

func (s *Service) invalidateCaches() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeKeyCache = nil
	s.publicJWKSCache = nil
}
