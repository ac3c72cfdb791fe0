package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/promptdeck/promptdeck/internal/identity"
	"github.com/promptdeck/promptdeck/internal/models"
)

// ErrKeyNotFound is returned when revoking a key that does not exist or
// belongs to another user.
var ErrKeyNotFound = errors.New("api key not found")

// APIKeyService issues and revokes opaque keys. The raw key is shown once;
// only the SHA-256 hash is persisted.
type APIKeyService struct {
	db *pgxpool.Pool
}

func NewAPIKeyService(db *pgxpool.Pool) *APIKeyService {
	return &APIKeyService{db: db}
}

func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

func generateKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return "pd_" + hex.EncodeToString(buf), nil
}

// IssueKey creates a key for the user and returns the record plus the raw
// key, which is never recoverable afterwards.
func (s *APIKeyService) IssueKey(ctx context.Context, user models.User, name string, expiresAt *time.Time) (*models.APIKey, string, error) {
	raw, err := generateKey()
	if err != nil {
		return nil, "", err
	}

	ak := models.APIKey{
		UserID:    user.ID,
		Name:      name,
		KeyHash:   HashKey(raw),
		ExpiresAt: expiresAt,
	}
	err = s.db.QueryRow(ctx,
		`INSERT INTO api_keys (id, user_id, name, key_hash, expires_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		uuid.New(), user.ID, name, ak.KeyHash, expiresAt,
	).Scan(&ak.ID, &ak.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("insert api key: %w", err)
	}
	return &ak, raw, nil
}

func (s *APIKeyService) ListKeys(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, name, key_hash, last_used_at, expires_at, created_at
		 FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []models.APIKey
	for rows.Next() {
		var ak models.APIKey
		if err := rows.Scan(&ak.ID, &ak.UserID, &ak.Name, &ak.KeyHash, &ak.LastUsedAt, &ak.ExpiresAt, &ak.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, ak)
	}
	return keys, rows.Err()
}

func (s *APIKeyService) RevokeKey(ctx context.Context, userID, keyID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM api_keys WHERE id = $1 AND user_id = $2`, keyID, userID)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// APIKeyMiddleware authenticates requests by the configured header. A
// missing header passes through to the next authenticator; an unknown or
// expired key is rejected.
type APIKeyMiddleware struct {
	db         *pgxpool.Pool
	headerName string
}

func NewAPIKeyMiddleware(db *pgxpool.Pool, headerName string) *APIKeyMiddleware {
	return &APIKeyMiddleware{db: db, headerName: headerName}
}

func (m *APIKeyMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(m.headerName)
		if key == "" || m.db == nil {
			next.ServeHTTP(w, r)
			return
		}

		hash := HashKey(key)

		var ak models.APIKey
		var user models.User
		err := m.db.QueryRow(r.Context(),
			`SELECT k.id, k.user_id, k.expires_at, u.id, u.name, u.email
			 FROM api_keys k JOIN users u ON u.id = k.user_id
			 WHERE k.key_hash = $1`, hash,
		).Scan(&ak.ID, &ak.UserID, &ak.ExpiresAt, &user.ID, &user.Name, &user.Email)
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "auth lookup failed")
			return
		}

		if ak.ExpiresAt != nil && ak.ExpiresAt.Before(time.Now()) {
			writeError(w, http.StatusUnauthorized, "API key expired")
			return
		}

		m.db.Exec(r.Context(), `UPDATE api_keys SET last_used_at = now() WHERE id = $1`, ak.ID)

		ctx := identity.WithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
