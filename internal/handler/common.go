package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/civic-budget/internal/middleware"
	"github.com/iliyamo/civic-budget/internal/service"
)

var requestTimeout = 5 * time.Second

// SetRequestTimeout overrides the per-request storage budget. Non-positive
// values are ignored.
func SetRequestTimeout(d time.Duration) {
	if d > 0 {
		requestTimeout = d
	}
}

// reqCtx bounds the storage work of one request.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

var errNoPrincipal = errors.New("no authenticated principal")

// principal returns the caller set by the JWT middleware.
func principal(c echo.Context) (service.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return service.Principal{}, errNoPrincipal
	}
	return p, nil
}

// idParam parses a positive numeric path parameter.
func idParam(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

var kindStatus = map[service.Kind]int{
	service.KindNotFound:                   http.StatusNotFound,
	service.KindForbidden:                  http.StatusForbidden,
	service.KindNeedsSubscription:          http.StatusPaymentRequired,
	service.KindInsufficientTokens:         http.StatusBadRequest,
	service.KindVotingNotOpen:              http.StatusConflict,
	service.KindDuplicateVote:              http.StatusConflict,
	service.KindIllegalTransition:          http.StatusConflict,
	service.KindConflict:                   http.StatusConflict,
	service.KindSubmissionClosed:           http.StatusConflict,
	service.KindInvalid:                    http.StatusBadRequest,
	service.KindExternalServiceUnavailable: http.StatusServiceUnavailable,
}

// StatusFor maps an error kind to its HTTP status. Errors without a kind
// are internal.
func StatusFor(k service.Kind) int {
	if s, ok := kindStatus[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error", "kind"}. Errors without a kind are logged
// and reported as a generic internal error.
func fail(c echo.Context, log *slog.Logger, err error) error {
	if errors.Is(err, errNoPrincipal) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var se *service.Error
	if errors.As(err, &se) {
		return c.JSON(StatusFor(se.Kind), echo.Map{"error": se.Message, "kind": se.Kind})
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "request timed out"})
	}
	if log == nil {
		log = slog.Default()
	}
	log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "kind": service.KindInvalid})
}
