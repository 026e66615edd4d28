package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/civic-budget/internal/service"
)

// ModerationHandler serves the staff-only moderation routes.
type ModerationHandler struct {
	Moderation *service.ModerationWorkflow
	Comments   *service.CommentService
	Log        *slog.Logger
}

type moderateReq struct {
	Action string `json:"action"`
	Notes  string `json:"notes"`
}

type approvalReq struct {
	IsApproved *bool `json:"isApproved"`
}

// Queue serves GET /v1/moderation.
func (h *ModerationHandler) Queue(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	q, err := h.Moderation.ModerationQueue(ctx, who)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, q)
}

// ApplyProject serves POST /v1/moderation/projects/:id. The transition is
// bounded by the request budget; the approval analysis keeps its own.
func (h *ModerationHandler) ApplyProject(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid project id")
	}
	var req moderateReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Moderation.Apply(ctx, who, id, req.Action, req.Notes)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// ApplyComment serves POST /v1/moderation/comments/:id.
func (h *ModerationHandler) ApplyComment(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid comment id")
	}
	var req moderateReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Moderation.ApplyComment(ctx, who, id, req.Action); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Analyze serves POST /v1/projects/:id/analyze.
func (h *ModerationHandler) Analyze(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid project id")
	}
	p, err := h.Moderation.AnalyzeProject(c.Request().Context(), who, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// SetCommentApproval serves PATCH /v1/comments/:id.
func (h *ModerationHandler) SetCommentApproval(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid comment id")
	}
	var req approvalReq
	if err := c.Bind(&req); err != nil || req.IsApproved == nil {
		return badRequest(c, "isApproved is required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	cm, err := h.Comments.SetApproval(ctx, who, id, *req.IsApproved)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, cm)
}

// DeleteComment serves DELETE /v1/comments/:id.
func (h *ModerationHandler) DeleteComment(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid comment id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Comments.Delete(ctx, who, id); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
