package tokens

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/gaiypov/rabota360-billing/lib/responses"
)

// ContextKey is where the authenticated account id is stored on the echo
// context by the Middleware.
const ContextKey = "AccountID"

type billingClaims struct {
	ID int64 `json:"id"`

	jwt.RegisteredClaims
}

func GenerateAccessToken(secret []byte, expiryInSeconds int, accountId int64) (string, error) {
	claims := &billingClaims{
		ID: accountId,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(expiryInSeconds) * time.Second)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(secret)
}

// Middleware authenticates the Authorization bearer token and puts the
// account id on the context under ContextKey.
func Middleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			if tokenString == "" || tokenString == auth {
				return c.JSON(http.StatusUnauthorized, responses.BadAuthError)
			}

			claims := &billingClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				return c.JSON(http.StatusUnauthorized, responses.BadAuthError)
			}

			c.Set(ContextKey, claims.ID)
			return next(c)
		}
	}
}

// AccountIdFromContext returns the account id set by the Middleware, or 0
// when the request is unauthenticated.
func AccountIdFromContext(c echo.Context) int64 {
	id, _ := c.Get(ContextKey).(int64)
	return id
}
