package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
)

type contextKey string

const adminUsernameContextKey contextKey = "adminUsername"

// CredentialStore verifies operator logins.
type CredentialStore interface {
	Verify(username, password string) error
}

// StaticCredentials is a single operator account configured through the
// environment. PasswordHash is a bcrypt hash.
type StaticCredentials struct {
	Username     string
	PasswordHash string
}

// Verify checks the username case-insensitively and the password against the hash.
func (c StaticCredentials) Verify(username, password string) error {
	if c.Username == "" || c.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	if !strings.EqualFold(strings.TrimSpace(username), c.Username) {
		// Unknown usernames cost one comparison too.
		_ = bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// AdminClaims are the claims of an operator session token.
type AdminClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 operator tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a manager. A non-positive ttl means eight hours.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for username and returns it with its expiry.
func (m *TokenManager) Issue(username string) (string, time.Time, error) {
	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.ttl)
	claims := AdminClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    "admin-service",
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate parses tokenString and returns its claims, or ErrExpiredToken or ErrInvalidToken.
func (m *TokenManager) Validate(tokenString string) (*AdminClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("admin-service"),
		jwt.WithTimeFunc(m.now),
	)
	claims := &AdminClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// operator username in the request context.
func AuthMiddleware(tokens *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(strings.TrimSpace(r.Header.Get("Authorization")))
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "Authorization required")
				return
			}
			claims, err := tokens.Validate(tokenString)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), adminUsernameContextKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminUsername returns the authenticated operator from request context.
func GetAdminUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(adminUsernameContextKey).(string)
	return username, ok
}

func bearerToken(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
