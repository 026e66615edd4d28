package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/civic-budget/internal/middleware"
)

// RegisterAccount registers endpoints open to any signed-in user: project
// authoring, voting, comments, the project assistant, the profile and
// company subscriptions. Role and ownership checks happen in the services.
func RegisterAccount(e *echo.Echo, h Handlers, o Options) {
	g := e.Group("/v1", append(o.chain(), middleware.JWTAuth(o.JWTSecret))...)

	// ---- Projects ----
	g.POST("/projects", h.Projects.Create)
	g.PATCH("/projects/:id", h.Projects.Update)
	g.DELETE("/projects/:id", h.Projects.Delete)
	g.POST("/projects/:id/submit", h.Projects.Submit)
	g.POST("/projects/:id/vote", h.Projects.Vote)
	g.POST("/projects/:id/comments", h.Projects.AddComment)
	g.POST("/projects/:id/ai-chat", h.Projects.Chat)

	// ---- Profile ----
	g.GET("/user/profile", h.Account.Profile)
	g.PATCH("/user/profile", h.Account.UpdateProfile)
	g.GET("/user/projects", h.Account.OwnProjects)

	// ---- Subscription (companies) ----
	g.POST("/subscription/purchase", h.Account.PurchaseSubscription)
	g.GET("/subscription/status", h.Account.SubscriptionStatus)
}
