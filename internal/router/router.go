// Package router registers the HTTP routes of the API.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/civic-budget/internal/handler"
	"github.com/iliyamo/civic-budget/internal/middleware"
)

// Handlers bundles every route handler the API exposes.
type Handlers struct {
	Auth       *handler.AuthHandler
	Periods    *handler.PeriodHandler
	Projects   *handler.ProjectHandler
	Moderation *handler.ModerationHandler
	Account    *handler.AccountHandler
	Support    *handler.SupportHandler
}

// Options carries the shared middleware built in main. Limit and Cache may
// be nil.
type Options struct {
	JWTSecret string
	Limit     echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

func (o Options) chain() []echo.MiddlewareFunc {
	if o.Limit == nil {
		return nil
	}
	return []echo.MiddlewareFunc{o.Limit}
}

func (o Options) cached() []echo.MiddlewareFunc {
	if o.Cache == nil {
		return nil
	}
	return []echo.MiddlewareFunc{o.Cache}
}

// Register wires the whole API onto e.
func Register(e *echo.Echo, db *sql.DB, h Handlers, o Options) {
	RegisterRoutes(e, db)
	RegisterAuth(e, h.Auth, o)
	RegisterPublic(e, h, o)
	RegisterAccount(e, h, o)
	RegisterModeration(e, h, o)
	RegisterAdmin(e, h, o)
}

// RegisterRoutes registers routes that do not require authentication and
// sit outside the versioned API. Currently only the health check.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the identity routes. Register, login and the
// refresh endpoints need no session; logout accepts either a refresh token
// in the body or a bearer token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, o Options) {
	g := e.Group("/v1/auth", o.chain()...)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Issues an access token and keeps the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout, middleware.OptionalAuth(o.JWTSecret))

	e.GET("/v1/me", a.Me, append(o.chain(), middleware.JWTAuth(o.JWTSecret))...)
}

// RegisterPublic registers the browse endpoints guests can use. The list
// endpoints go through the response cache; project detail does not, so
// vote counters are never served stale.
func RegisterPublic(e *echo.Echo, h Handlers, o Options) {
	g := e.Group("/v1", o.chain()...)
	g.GET("/periods/active", h.Periods.Active, o.cached()...)
	g.GET("/projects", h.Projects.List, o.cached()...)
	g.GET("/projects/:id", h.Projects.Get)

	// Support chat is open to visitors; a valid bearer token links the
	// ticket to the account.
	g.POST("/support/chat", h.Support.Chat, middleware.OptionalAuth(o.JWTSecret))
	g.GET("/support/tickets/:id", h.Support.GetTicket)
}
