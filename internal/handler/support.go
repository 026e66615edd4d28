package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/civic-budget/internal/middleware"
	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/service"
)

// SupportHandler serves the support chat and the staff ticket desk.
type SupportHandler struct {
	Support *service.SupportService
	Log     *slog.Logger
}

type supportChatReq struct {
	TicketID string           `json:"ticketId"`
	Message  string           `json:"message"`
	History  []model.ChatTurn `json:"history"`
}

type ticketActionReq struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// Chat serves POST /v1/support/chat. Anonymous visitors are allowed; a
// bearer token, when valid, attaches the ticket to the account.
func (h *SupportHandler) Chat(c echo.Context) error {
	var req supportChatReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	var who *service.Principal
	if p, ok := middleware.PrincipalFrom(c); ok {
		who = &p
	}
	res, err := h.Support.Chat(c.Request().Context(), who, strings.TrimSpace(req.TicketID), req.Message, req.History)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// GetTicket serves GET /v1/support/tickets/:id.
func (h *SupportHandler) GetTicket(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.Support.GetTicket(ctx, c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}

// ListTickets serves GET /v1/admin/tickets?status=&needsAdmin=true.
func (h *SupportHandler) ListTickets(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	status := model.TicketStatus(strings.ToUpper(c.QueryParam("status")))
	ctx, cancel := reqCtx(c)
	defer cancel()
	ts, err := h.Support.ListTickets(ctx, who, status, c.QueryParam("needsAdmin") == "true")
	if err != nil {
		return fail(c, h.Log, err)
	}
	if ts == nil {
		ts = []model.SupportTicket{}
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": ts})
}

// AdminAction serves POST /v1/admin/tickets/:id.
func (h *SupportHandler) AdminAction(c echo.Context) error {
	who, err := principal(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req ticketActionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.Support.AdminAction(ctx, who, c.Param("id"), strings.ToLower(strings.TrimSpace(req.Action)), req.Message)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}
