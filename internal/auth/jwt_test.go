package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/consultly/collab/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndVerifyToken(t *testing.T) {
	a := NewAuthenticator("test-secret")
	user := &models.User{ID: "u1", Name: "Alice", Email: "alice@example.com", AvatarURL: "https://x/a.png"}

	token, err := a.MintToken(user, time.Hour)
	require.NoError(t, err)

	got, err := a.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	token, err := NewAuthenticator("secret-a").MintToken(&models.User{ID: "u1"}, time.Hour)
	require.NoError(t, err)

	_, err = NewAuthenticator("secret-b").VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyTokenExpired(t *testing.T) {
	a := NewAuthenticator("test-secret")
	token, err := a.MintToken(&models.User{ID: "u1"}, -time.Minute)
	require.NoError(t, err)

	_, err = a.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyTokenMissingSubject(t *testing.T) {
	a := NewAuthenticator("test-secret")
	token, err := a.MintToken(&models.User{}, time.Hour)
	require.NoError(t, err)

	_, err = a.VerifyToken(token)
	assert.Error(t, err)
}

func TestGetUserFromQueryAndHeader(t *testing.T) {
	a := NewAuthenticator("test-secret")
	token, err := a.MintToken(&models.User{ID: "u1", Name: "Alice"}, time.Hour)
	require.NoError(t, err)

	// The WebSocket dial presents the token as a query parameter.
	r := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	user, err := a.GetUser(r.Context(), r)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	// REST calls use the Authorization header.
	r = httptest.NewRequest(http.MethodGet, "/api/rooms/r1/presence", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	user, err = a.GetUser(r.Context(), r)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	r = httptest.NewRequest(http.MethodGet, "/api/rooms/r1/presence", nil)
	_, err = a.GetUser(r.Context(), r)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	a := NewAuthenticator("test-secret")
	token, err := a.MintToken(&models.User{ID: "u1", Name: "Alice"}, time.Hour)
	require.NoError(t, err)

	var seen *models.User
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u1", seen.ID)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
