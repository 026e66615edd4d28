package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/repository"
	"github.com/iliyamo/civic-budget/internal/service"
)

// PeriodHandler serves the public period lookup and the admin period CRUD.
type PeriodHandler struct {
	Periods *service.PeriodRegistry
	Log     *slog.Logger
}

type periodReq struct {
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

type periodPatchReq struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	IsActive    *bool      `json:"isActive"`
}

// Active serves GET /v1/periods/active.
func (h *PeriodHandler) Active(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	ap, err := h.Periods.GetActive(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ap)
}

// List serves GET /v1/admin/periods?type=&active=true.
func (h *PeriodHandler) List(c echo.Context) error {
	t := model.PeriodType(strings.ToUpper(c.QueryParam("type")))
	ctx, cancel := reqCtx(c)
	defer cancel()
	ps, err := h.Periods.List(ctx, t, c.QueryParam("active") == "true")
	if err != nil {
		return fail(c, h.Log, err)
	}
	if ps == nil {
		ps = []model.Period{}
	}
	return c.JSON(http.StatusOK, echo.Map{"periods": ps})
}

// Create serves POST /v1/admin/periods.
func (h *PeriodHandler) Create(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req periodReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	in := service.NewPeriod{
		Type:        model.PeriodType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Title:       req.Title,
		Description: req.Description,
	}
	if req.StartDate != nil {
		in.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		in.EndDate = *req.EndDate
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Periods.Create(ctx, who, in)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// Update serves PATCH /v1/admin/periods/:id.
func (h *PeriodHandler) Update(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid period id")
	}
	var req periodPatchReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Periods.Update(ctx, who, id, repository.PeriodPatch{
		Title:       req.Title,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// EndEarly serves POST /v1/admin/periods/:id/end.
func (h *PeriodHandler) EndEarly(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid period id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Periods.EndEarly(ctx, who, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Delete serves DELETE /v1/admin/periods/:id.
func (h *PeriodHandler) Delete(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid period id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Periods.Delete(ctx, who, id); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
