package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/repository"
	"github.com/iliyamo/civic-budget/internal/service"
)

// ProjectHandler serves the project feed, authoring, voting, comments and
// the project assistant.
type ProjectHandler struct {
	Projects   *service.ProjectService
	Voting     *service.VotingEngine
	Comments   *service.CommentService
	Moderation *service.ModerationWorkflow
	Log        *slog.Logger
}

type projectReq struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	EstimatedBudget *float64 `json:"estimatedBudget"`
	Location        *string  `json:"location"`
	Timeline        *string  `json:"timeline"`
	Benefits        *string  `json:"benefits"`
	TargetAudience  *string  `json:"targetAudience"`
	Draft           bool     `json:"draft"`
}

type projectPatchReq struct {
	Title           *string  `json:"title"`
	Description     *string  `json:"description"`
	Category        *string  `json:"category"`
	EstimatedBudget *float64 `json:"estimatedBudget"`
	Location        *string  `json:"location"`
	Timeline        *string  `json:"timeline"`
	Benefits        *string  `json:"benefits"`
	TargetAudience  *string  `json:"targetAudience"`
}

type voteReq struct {
	IsFor *bool `json:"isFor"`
}

type commentReq struct {
	Content string `json:"content"`
}

type chatReq struct {
	Question string           `json:"question"`
	History  []model.ChatTurn `json:"history"`
}

// List serves GET /v1/projects?status=&category=&page=&limit=.
func (h *ProjectHandler) List(c echo.Context) error {
	q := service.ListQuery{
		Status:   model.ProjectStatus(strings.ToUpper(c.QueryParam("status"))),
		Category: model.Category(strings.ToUpper(c.QueryParam("category"))),
	}
	q.Page, _ = strconv.Atoi(c.QueryParam("page"))
	q.Limit, _ = strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.Projects.ListProjects(ctx, q)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Get serves GET /v1/projects/:id.
func (h *ProjectHandler) Get(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid project id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Projects.GetProject(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Create serves POST /v1/projects.
func (h *ProjectHandler) Create(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req projectReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Projects.CreateProject(ctx, who, service.ProjectFields{
		Title:           req.Title,
		Description:     req.Description,
		Category:        model.Category(strings.ToUpper(req.Category)),
		EstimatedBudget: req.EstimatedBudget,
		Location:        req.Location,
		Timeline:        req.Timeline,
		Benefits:        req.Benefits,
		TargetAudience:  req.TargetAudience,
		Draft:           req.Draft,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// Update serves PATCH /v1/projects/:id.
func (h *ProjectHandler) Update(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid project id")
	}
	var req projectPatchReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	patch := repository.ProjectPatch{
		Title:           req.Title,
		Description:     req.Description,
		EstimatedBudget: req.EstimatedBudget,
		Location:        req.Location,
		Timeline:        req.Timeline,
		Benefits:        req.Benefits,
		TargetAudience:  req.TargetAudience,
	}
	if req.Category != nil {
		cat := model.Category(strings.ToUpper(*req.Category))
		patch.Category = &cat
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Projects.UpdateProject(ctx, who, id, patch)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Delete serves DELETE /v1/projects/:id.
func (h *ProjectHandler) Delete(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid project id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Projects.DeleteProject(ctx, who, id); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Submit serves POST /v1/projects/:id/submit.
func (h *ProjectHandler) Submit(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid project id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Projects.SubmitProject(ctx, who, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Vote serves POST /v1/projects/:id/vote with {"isFor": bool}.
func (h *ProjectHandler) Vote(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid project id")
	}
	var req voteReq
	if err := c.Bind(&req); err != nil || req.IsFor == nil {
		return badRequest(c, "isFor is required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Voting.CastVote(ctx, who, id, *req.IsFor)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// AddComment serves POST /v1/projects/:id/comments.
func (h *ProjectHandler) AddComment(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid project id")
	}
	var req commentReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	cm, err := h.Comments.AddComment(ctx, who, id, req.Content)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, cm)
}

// Chat serves POST /v1/projects/:id/ai-chat. The request deadline comes
// from the assistant's own timeout rather than the storage timeout.
func (h *ProjectHandler) Chat(c echo.Context) error {
	if _, err := principal(c); err != nil {
		return fail(c, h.Log, err)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid project id")
	}
	var req chatReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	answer, err := h.Moderation.ProjectChat(c.Request().Context(), id, req.Question, req.History)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"answer": answer})
}
