// Package auth maps API keys to owner identities and enforces per-key rate
// limits at the gateway. Raw keys are never stored; only their SHA-256
// hashes live in the database.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/docforge/rag-pipeline/pkg/errors"
	"github.com/docforge/rag-pipeline/pkg/postgres"
)

const keyPrefix = "rp_"

// APIKeyStore persists and verifies API keys.
type APIKeyStore struct {
	pg *postgres.Client
}

// NewAPIKeyStore creates an APIKeyStore.
func NewAPIKeyStore(pg *postgres.Client) *APIKeyStore {
	return &APIKeyStore{pg: pg}
}

// CreateKey mints a new API key for an owner and returns the raw key. The
// raw key is shown once; only the hash is stored.
func (s *APIKeyStore) CreateKey(ctx context.Context, ownerID, name string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating key material: %w", err)
	}
	key := keyPrefix + hex.EncodeToString(raw)

	_, err := s.pg.DB.ExecContext(ctx, `
		INSERT INTO api_keys (key_hash, owner_id, name, created_at)
		VALUES ($1, $2, $3, NOW())`,
		HashKey(key), ownerID, name)
	if err != nil {
		return "", fmt.Errorf("%w: storing api key: %v", apperrors.ErrPersistence, err)
	}
	return key, nil
}

// Authenticate resolves a raw API key to its owner, or ErrUnauthorized.
func (s *APIKeyStore) Authenticate(ctx context.Context, rawKey string) (string, error) {
	if !strings.HasPrefix(rawKey, keyPrefix) {
		return "", apperrors.ErrUnauthorized
	}

	var ownerID string
	var revoked bool
	err := s.pg.DB.QueryRowContext(ctx, `
		SELECT owner_id, revoked FROM api_keys WHERE key_hash = $1`,
		HashKey(rawKey)).Scan(&ownerID, &revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperrors.ErrUnauthorized
		}
		return "", fmt.Errorf("%w: looking up api key: %v", apperrors.ErrPersistence, err)
	}
	if revoked {
		return "", apperrors.ErrUnauthorized
	}
	return ownerID, nil
}

// RevokeKey marks a key revoked without deleting the audit row.
func (s *APIKeyStore) RevokeKey(ctx context.Context, rawKey string) error {
	res, err := s.pg.DB.ExecContext(ctx, `
		UPDATE api_keys SET revoked = TRUE WHERE key_hash = $1`, HashKey(rawKey))
	if err != nil {
		return fmt.Errorf("%w: revoking api key: %v", apperrors.ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrUnauthorized
	}
	return nil
}

// KeyInfo is a non-secret view of a stored API key.
type KeyInfo struct {
	OwnerID   string
	Name      string
	Revoked   bool
	CreatedAt time.Time
}

// ListKeys returns all stored keys, newest first. Raw keys are not
// recoverable; only metadata is returned.
func (s *APIKeyStore) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	rows, err := s.pg.DB.QueryContext(ctx, `
		SELECT owner_id, name, revoked, created_at
		FROM api_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing api keys: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	var keys []KeyInfo
	for rows.Next() {
		var k KeyInfo
		if err := rows.Scan(&k.OwnerID, &k.Name, &k.Revoked, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning api key: %v", apperrors.ErrPersistence, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// HashKey returns the hex SHA-256 of a raw key.
func HashKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}
