package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/service"
)

// AccountHandler serves the caller's own profile, projects and
// subscription.
type AccountHandler struct {
	Accounts *service.AccountService
	Projects *service.ProjectService
	Log      *slog.Logger
}

type profileReq struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

type subscriptionReq struct {
	Duration string `json:"duration"`
}

func (h *AccountHandler) Profile(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Accounts.Profile(ctx, who)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *AccountHandler) UpdateProfile(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Accounts.UpdateProfile(ctx, who, req.Name, req.Phone)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AccountHandler) OwnProjects(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	ps, err := h.Projects.ListOwnProjects(ctx, who)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"projects": ps})
}

// PurchaseSubscription serves POST /v1/subscription/purchase with
// {"duration": "1_month" | "3_months" | "6_months" | "1_year"}.
func (h *AccountHandler) PurchaseSubscription(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req subscriptionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	plan := model.SubscriptionPlan(strings.ToLower(strings.TrimSpace(req.Duration)))
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Accounts.PurchaseSubscription(ctx, who, plan)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *AccountHandler) SubscriptionStatus(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Accounts.SubscriptionStatus(ctx, who)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}
