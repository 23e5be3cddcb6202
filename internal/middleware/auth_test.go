package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearth-app/backend/internal/domain"
	"github.com/hearth-app/backend/internal/token"
)

type codecVerifier struct {
	codec *token.Codec
}

func (v codecVerifier) ValidateAccessToken(raw string) (*token.Claims, error) {
	return v.codec.Verify(raw)
}

func newAuthFixture(t *testing.T) (*AuthMiddleware, *token.Codec) {
	t.Helper()
	codec := token.NewCodec("test-secret")
	return NewAuthMiddleware(codecVerifier{codec}), codec
}

func echoIdentity(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		require.True(t, ok)
		role, ok := GetRole(r.Context())
		require.True(t, ok)
		w.Header().Set("X-Test-User", userID.String())
		w.Header().Set("X-Test-Role", role)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateBearerToken(t *testing.T) {
	mw, codec := newAuthFixture(t)
	userID := uuid.New()
	raw, _, err := codec.Issue(userID, domain.RoleMember, true, time.Minute)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	mw.Authenticate(echoIdentity(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID.String(), rec.Header().Get("X-Test-User"))
	assert.Equal(t, domain.RoleMember, rec.Header().Get("X-Test-Role"))
}

func TestAuthenticateCookieFallback(t *testing.T) {
	mw, codec := newAuthFixture(t)
	raw, _, err := codec.Issue(uuid.New(), domain.RoleMember, true, time.Minute)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: raw})
	mw.Authenticate(echoIdentity(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticateRejects(t *testing.T) {
	mw, codec := newAuthFixture(t)

	expired, _, err := codec.Issue(uuid.New(), domain.RoleMember, true, -time.Minute)
	require.NoError(t, err)

	foreign, _, err := token.NewCodec("other-secret").Issue(uuid.New(), domain.RoleMember, true, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no credentials", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong signing key", "Bearer " + foreign, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			mw.Authenticate(echoIdentity(t)).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuthenticateDeactivatedClaims(t *testing.T) {
	mw, codec := newAuthFixture(t)
	raw, _, err := codec.Issue(uuid.New(), domain.RoleMember, false, time.Minute)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	mw.Authenticate(echoIdentity(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminOnly(t *testing.T) {
	mw, codec := newAuthFixture(t)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	chain := mw.Authenticate(mw.AdminOnly(ok))

	member, _, err := codec.Issue(uuid.New(), domain.RoleMember, true, time.Minute)
	require.NoError(t, err)
	admin, _, err := codec.Issue(uuid.New(), domain.RoleAdmin, true, time.Minute)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+member)
	chain.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	chain.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
