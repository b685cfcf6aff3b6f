// Package auth verifies bearer credentials and exposes the stable user id
// that owns every row in the system.
package auth

import (
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"

	"github.com/somasaidi/somasaidi/internal/apperr"
)

const ctxUserKey = "auth_user_id"

// Verifier checks HS256-signed bearer tokens and extracts the subject.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a token, returning the stable user identifier.
func (v *Verifier) Verify(tokenString string) (string, error) {
	claims := new(jwt.StandardClaims)
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.NewValidationError("unexpected signing method", jwt.ValidationErrorSignatureInvalid)
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", apperr.UnauthorizedErr("Invalid token")
	}
	if claims.Subject == "" {
		return "", apperr.UnauthorizedErr("Invalid token")
	}
	return claims.Subject, nil
}

// IssueToken mints a token for userID. Used by the admin tooling and tests.
func (v *Verifier) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.StandardClaims{
		Subject:   userID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Middleware authenticates the request and stores the user id in the gin
// context. The token comes from the Authorization header, or from a token
// query parameter for the SSE endpoint where EventSource cannot set headers.
func Middleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if raw == "" || raw == c.GetHeader("Authorization") {
			raw = c.Query("token")
		}
		if raw == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "No token provided"})
			return
		}

		userID, err := v.Verify(raw)
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": apperr.PublicMessage(err)})
			return
		}

		c.Set(ctxUserKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id set by Middleware.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxUserKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
