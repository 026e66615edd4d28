package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/civic-budget/internal/service"
)

const principalKey = "principal"

// SetPrincipal stores the authenticated caller on the context.
func SetPrincipal(c echo.Context, p service.Principal) { c.Set(principalKey, p) }

// PrincipalFrom returns the caller set by JWTAuth or OptionalAuth.
func PrincipalFrom(c echo.Context) (service.Principal, bool) {
	p, ok := c.Get(principalKey).(service.Principal)
	return p, ok
}

// userID is the rate-limit identity of the caller, "anon" when there is
// none.
func userID(c echo.Context) string {
	if p, ok := PrincipalFrom(c); ok {
		return strconv.FormatUint(p.ID, 10)
	}
	return "anon"
}
