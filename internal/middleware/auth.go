package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jengzang/vehicle-forensics-go/pkg/response"
)

// SubjectKey is the gin context key holding the authenticated token subject
const SubjectKey = "subject"

// ErrEmptySecret is returned when a token is requested without a signing secret
var ErrEmptySecret = errors.New("jwt secret is empty")

// IssueToken signs an HS256 bearer token for subject valid for ttl
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a token signed by IssueToken and returns its claims
func ParseToken(secret, token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Auth requires a valid bearer token when secret is set. Websocket clients
// that cannot set headers may pass the token as the access_token query
// parameter. An empty secret disables authentication.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token == "" {
			token = c.Query("access_token")
		}
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "Missing bearer token")
			return
		}

		claims, err := ParseToken(secret, token)
		if err != nil {
			logger.WithError(err).WithField("client_ip", c.ClientIP()).Warn("Rejected token")
			response.Abort(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}
