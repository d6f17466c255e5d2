package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/BruksfildServices01/consult-scheduler/internal/models"
)

const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

var (
	ErrInvalidToken   = errors.New("invalid_token")
	ErrInvalidPayload = errors.New("invalid_token_payload")
)

// Claims issued by the identity service: sub is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HMAC-signed access tokens.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify returns the user id and role carried by token.
func (v *TokenVerifier) Verify(tokenString string) (userID string, role string, err error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", ErrInvalidToken
	}

	if claims.Subject == "" || !models.IsValidRole(claims.Role) {
		return "", "", ErrInvalidPayload
	}
	return claims.Subject, claims.Role, nil
}

// Authenticate lets the websocket endpoint share the HTTP verifier.
func (v *TokenVerifier) Authenticate(tokenString string) (string, error) {
	userID, _, err := v.Verify(tokenString)
	return userID, err
}

func AuthMiddleware(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_authorization_header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_authorization_header"})
			return
		}

		userID, role, err := verifier.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextUserRole, role)

		c.Next()
	}
}
