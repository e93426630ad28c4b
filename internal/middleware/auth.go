package middleware

import (
	"net/http"
	"strings"

	"backoffice/server/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ClaimsKey - ключ claims в gin.Context
const ClaimsKey = "claims"

// Claims - полезная нагрузка токена. Токены выпускает внешний сервис авторизации.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"rol"`
	jwt.RegisteredClaims
}

// JWTAuth проверяет Bearer-токен (HMAC). Пустой secret отключает проверку.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("unauthorized", "Autenticación requerida"))
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("unauthorized", "Token inválido o expirado"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// CurrentUser возвращает user_id из токена или пустую строку
func CurrentUser(c *gin.Context) string {
	if claims, ok := c.Get(ClaimsKey); ok {
		if cl, ok := claims.(*Claims); ok {
			return cl.UserID
		}
	}
	return ""
}
