package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/service"
	"github.com/iliyamo/civic-budget/internal/utils"
)

// JWTAuth validates the Bearer access token and stores the caller as a
// service.Principal in the echo context. Requests without a valid token
// are answered with 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			p, err := principalFromToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			SetPrincipal(c, p)
			return next(c)
		}
	}
}

// OptionalAuth is JWTAuth for routes that also serve anonymous visitors:
// a valid token sets the principal, a missing or invalid one is ignored.
func OptionalAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearer(c); ok {
				if p, err := principalFromToken(secret, raw); err == nil {
					SetPrincipal(c, p)
				}
			}
			return next(c)
		}
	}
}

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}

func principalFromToken(secret, raw string) (service.Principal, error) {
	claims, err := utils.ParseAccessToken(secret, raw)
	if err != nil {
		return service.Principal{}, err
	}
	id, err := claims.UserID()
	if err != nil {
		return service.Principal{}, err
	}
	role := model.Role(claims.Role)
	if !role.Valid() {
		return service.Principal{}, echo.ErrUnauthorized
	}
	return service.Principal{ID: id, Role: role}, nil
}
