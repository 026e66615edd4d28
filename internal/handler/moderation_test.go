package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/civic-budget/internal/logging"
	"github.com/iliyamo/civic-budget/internal/middleware"
	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/repository"
	"github.com/iliyamo/civic-budget/internal/service"
)

// deadlineProjects remembers the deadline each storage call was given.
type deadlineProjects struct {
	service.ProjectStore
	project    model.Project
	transition time.Time
	save       time.Time
}

func (s *deadlineProjects) Transition(ctx context.Context, _ uint64, decide func(model.Project) (repository.Decision, error)) (model.Project, error) {
	s.transition, _ = ctx.Deadline()
	d, err := decide(s.project)
	if err != nil {
		return model.Project{}, err
	}
	s.project.Status = d.Change.To
	return s.project, nil
}

func (s *deadlineProjects) SaveAnalysis(ctx context.Context, _ uint64, _ model.Analysis) error {
	s.save, _ = ctx.Deadline()
	return ctx.Err()
}

type deadlineAdvisor struct {
	service.Advisor
	deadline time.Time
	err      error
}

func (a *deadlineAdvisor) Analyze(ctx context.Context, _ model.Project) (*model.Analysis, error) {
	a.deadline, _ = ctx.Deadline()
	a.err = ctx.Err()
	return &model.Analysis{Summary: "Safer crossings near schools."}, nil
}

func TestApplyProjectBudgets(t *testing.T) {
	projects := &deadlineProjects{project: model.Project{ID: 1, AuthorID: 9, Title: "Crossings", Status: model.StatusPendingModeration}}
	advisor := &deadlineAdvisor{}
	wf := service.NewModerationWorkflow(projects, nil, advisor, time.Hour, nil, logging.Discard())
	h := &ModerationHandler{Moderation: wf, Log: logging.Discard()}

	e := echo.New()
	asModerator := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			middleware.SetPrincipal(c, service.Principal{ID: 2, Role: model.RoleModerator})
			return next(c)
		}
	}
	e.POST("/v1/moderation/projects/:id", h.ApplyProject, asModerator)

	start := time.Now()
	req := httptest.NewRequest(http.MethodPost, "/v1/moderation/projects/1", strings.NewReader(`{"action":"approve"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var p model.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, model.StatusApproved, p.Status)
	require.NotNil(t, p.AIAnalysis)

	require.False(t, projects.transition.IsZero(), "transition ran without a deadline")
	assert.False(t, projects.transition.After(start.Add(requestTimeout+time.Second)))

	// The analysis budget is the workflow's, not what is left of the request's.
	assert.NoError(t, advisor.err)
	assert.True(t, advisor.deadline.After(start.Add(30*time.Minute)))
	assert.True(t, projects.save.After(start.Add(30*time.Minute)))
}
