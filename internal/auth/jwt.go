package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/consultly/collab/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys.
type contextKey string

const userContextKey contextKey = "user"

// Claims carries the participant identity inside a session token.
type Claims struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator validates session tokens minted by the external session
// provider. Tokens are opaque to the rest of this layer.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an authenticator for an HMAC-signed token secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// VerifyToken parses and validates a session token, returning the user.
func (a *Authenticator) VerifyToken(tokenString string) (*models.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token missing subject")
	}
	return &models.User{
		ID:        claims.Subject,
		Name:      claims.Name,
		Email:     claims.Email,
		AvatarURL: claims.AvatarURL,
	}, nil
}

// GetUser extracts the authenticated user from an HTTP request. The token is
// read from the "token" query parameter or the Authorization header, so both
// the WebSocket dial and plain REST calls can present it.
func (a *Authenticator) GetUser(_ context.Context, r *http.Request) (*models.User, error) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		tokenString = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if tokenString == "" {
		return nil, fmt.Errorf("no token presented")
	}
	return a.VerifyToken(tokenString)
}

// Middleware wraps an HTTP handler and adds the user to the context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.GetUser(r.Context(), r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext retrieves the user from the request context.
func UserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// MintToken signs a session token for a user. Production deployments mint
// tokens in the session provider; this exists for the CLI and tests.
func (a *Authenticator) MintToken(user *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
