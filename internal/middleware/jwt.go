package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	UserIDKey  = "userID"
	CookieName = "jwt"
)

type UserLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// SessionAuth resolves the session token to an existing user id and stores it
// under UserIDKey. The token is read from the jwt cookie, then from a bearer header.
func SessionAuth(secret string, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := sessionToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - no token provided"})
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenMalformed
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - invalid token claims"})
			return
		}

		userID, _ := claims["userId"].(string)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - userId missing in token"})
			return
		}

		if users != nil {
			exists, err := users.Exists(c.Request.Context(), userID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": "unable to verify session, try again"})
				return
			}
			if !exists {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - user not found"})
				return
			}
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

// UserID returns the actor resolved by SessionAuth, or "" when absent.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
