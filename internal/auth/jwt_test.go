package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck/internal/identity"
	"github.com/promptdeck/promptdeck/internal/models"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, claims Claims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authProbe(m *JWTMiddleware) (http.Handler, *models.User, *bool) {
	var seen models.User
	var anonymous bool
	h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := identity.UserFromContext(r.Context())
		seen = u
		anonymous = !ok
	}))
	return h, &seen, &anonymous
}

func TestValidTokenSetsIdentity(t *testing.T) {
	m := NewJWTMiddleware(testSecret)
	h, seen, anonymous := authProbe(m)

	userID := uuid.New()
	token := mintToken(t, Claims{
		Sub:   userID.String(),
		Name:  "Rae",
		Email: "rae@example.com",
	}, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, *anonymous)
	assert.Equal(t, userID, seen.ID)
	assert.Equal(t, "Rae", seen.Name)
}

func TestNameFallsBackToEmailLocalPart(t *testing.T) {
	m := NewJWTMiddleware(testSecret)
	h, seen, _ := authProbe(m)

	token := mintToken(t, Claims{
		Sub:   uuid.New().String(),
		Email: "kit@example.com",
	}, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "kit", seen.Name)
}

func TestMissingTokenPassesThroughAnonymous(t *testing.T) {
	m := NewJWTMiddleware(testSecret)
	h, _, anonymous := authProbe(m)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *anonymous)
}

func TestInvalidTokenRejected(t *testing.T) {
	m := NewJWTMiddleware(testSecret)

	cases := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"wrong secret", mintTokenHelper(t, Claims{Sub: uuid.New().String()}, "other-secret")},
		{"expired", mintTokenHelper(t, Claims{
			Sub: uuid.New().String(),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}, testSecret)},
		{"non-uuid subject", mintTokenHelper(t, Claims{Sub: "user-42"}, testSecret)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _, _ := authProbe(m)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tc.token)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func mintTokenHelper(t *testing.T, claims Claims, secret string) string {
	t.Helper()
	return mintToken(t, claims, secret)
}

func TestHashKeyIsStable(t *testing.T) {
	a := HashKey("pd_abc123")
	b := HashKey("pd_abc123")
	c := HashKey("pd_other")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
