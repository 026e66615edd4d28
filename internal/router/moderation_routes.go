package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/civic-budget/internal/middleware"
	"github.com/iliyamo/civic-budget/internal/model"
)

// RegisterModeration registers staff endpoints. All routes require a valid
// JWT and the MODERATOR or ADMIN role.
func RegisterModeration(e *echo.Echo, h Handlers, o Options) {
	g := e.Group("/v1", append(o.chain(),
		middleware.JWTAuth(o.JWTSecret),
		middleware.RequireRole(model.RoleModerator, model.RoleAdmin),
	)...)

	g.GET("/moderation", h.Moderation.Queue)
	g.POST("/moderation/projects/:id", h.Moderation.ApplyProject)
	g.POST("/moderation/comments/:id", h.Moderation.ApplyComment)
	g.POST("/projects/:id/analyze", h.Moderation.Analyze)

	g.PATCH("/comments/:id", h.Moderation.SetCommentApproval)
	g.DELETE("/comments/:id", h.Moderation.DeleteComment)

	// ---- Support desk ----
	g.GET("/admin/tickets", h.Support.ListTickets)
	g.POST("/admin/tickets/:id", h.Support.AdminAction)
}

// RegisterAdmin registers the period management endpoints for moderators
// and administrators.
func RegisterAdmin(e *echo.Echo, h Handlers, o Options) {
	g := e.Group("/v1/admin", append(o.chain(),
		middleware.JWTAuth(o.JWTSecret),
		middleware.RequireRole(model.RoleModerator, model.RoleAdmin),
	)...)

	g.GET("/periods", h.Periods.List)
	g.POST("/periods", h.Periods.Create)
	g.PATCH("/periods/:id", h.Periods.Update)
	g.DELETE("/periods/:id", h.Periods.Delete)
	g.POST("/periods/:id/end", h.Periods.EndEarly)
}
