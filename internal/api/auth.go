package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// sessionContextKey is where middleware stores the validated session id.
const sessionContextKey = "session_id"

// TokenService issues and validates the signed session tokens that key
// conversations. Tokens carry only the session id; there are no user
// accounts.
type TokenService struct {
	secretKey []byte

	// SessionDuration bounds how long a chat session token stays valid.
	SessionDuration time.Duration
}

// SessionClaims represents the claims in a session token.
type SessionClaims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// NewTokenService creates a token service with the given signing secret.
func NewTokenService(secretKey string) *TokenService {
	return &TokenService{
		secretKey:       []byte(secretKey),
		SessionDuration: 12 * time.Hour,
	}
}

// CreateSessionToken mints a signed token for a new session id.
func (ts *TokenService) CreateSessionToken(sessionID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.SessionDuration)),
			Issuer:    "daitchat",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// ValidateSessionToken parses a token and returns the session id.
func (ts *TokenService) ValidateSessionToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.secretKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return "", fmt.Errorf("invalid session token claims")
	}
	return claims.SessionID, nil
}

// RequireSession returns middleware that validates the Bearer session
// token and stores the session id on the request context.
func RequireSession(tokenService *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			sessionID, err := tokenService.ValidateSessionToken(tokenParts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired session token")
			}

			c.Set(sessionContextKey, sessionID)
			return next(c)
		}
	}
}

// sessionID extracts the validated session id placed by RequireSession.
func sessionID(c echo.Context) string {
	id, _ := c.Get(sessionContextKey).(string)
	return id
}
