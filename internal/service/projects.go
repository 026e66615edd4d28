package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/queue"
	"github.com/iliyamo/civic-budget/internal/repository"
)

const (
	minTitleLen       = 10
	minDescriptionLen = 100
	defaultPageSize   = 10
	maxPageSize       = 50
)

// ProjectService owns project submission, editing, listing and deletion.
// Status changes go through Transition only.
type ProjectService struct {
	Projects ProjectStore
	Users    UserStore
	Comments CommentStore
	Periods  *PeriodRegistry
	Events   EventPublisher
	Log      *slog.Logger
	Now      func() time.Time
}

func NewProjectService(projects ProjectStore, users UserStore, comments CommentStore, periods *PeriodRegistry, events EventPublisher, log *slog.Logger) *ProjectService {
	return &ProjectService{Projects: projects, Users: users, Comments: comments, Periods: periods, Events: events, Log: log, Now: utcNow}
}

// ProjectFields are the author-supplied project attributes.
type ProjectFields struct {
	Title           string
	Description     string
	Category        model.Category
	EstimatedBudget *float64
	Location        *string
	Timeline        *string
	Benefits        *string
	TargetAudience  *string
	// Draft stores the project as DRAFT; it is submitted later.
	Draft bool
}

func validateTitle(s string) error {
	if utf8.RuneCountInString(s) < minTitleLen {
		return errf(KindInvalid, "title must be at least %d characters", minTitleLen)
	}
	return nil
}

func validateDescription(s string) error {
	if utf8.RuneCountInString(s) < minDescriptionLen {
		return errf(KindInvalid, "description must be at least %d characters", minDescriptionLen)
	}
	return nil
}

func validateCategory(c model.Category) error {
	if !c.Valid() {
		return errf(KindInvalid, "unknown category %q", c)
	}
	return nil
}

func validateBudget(b *float64) error {
	if b != nil && *b < 0 {
		return errf(KindInvalid, "estimatedBudget cannot be negative")
	}
	return nil
}

// CreateProject validates the fields and stores a new project authored by
// who. A non-draft project enters PENDING_MODERATION and is only accepted
// while a submission period is open.
func (s *ProjectService) CreateProject(ctx context.Context, who Principal, f ProjectFields) (model.Project, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	for _, err := range []error{
		validateTitle(f.Title),
		validateDescription(f.Description),
		validateCategory(f.Category),
		validateBudget(f.EstimatedBudget),
	} {
		if err != nil {
			return model.Project{}, err
		}
	}

	if _, err := s.gate(ctx, who, !f.Draft); err != nil {
		return model.Project{}, err
	}

	status := model.StatusPendingModeration
	if f.Draft {
		status = model.StatusDraft
	}
	p := model.Project{
		AuthorID:         who.ID,
		Title:            f.Title,
		Description:      f.Description,
		Category:         f.Category,
		Status:           status,
		EstimatedBudget:  f.EstimatedBudget,
		Location:         f.Location,
		Timeline:         f.Timeline,
		Benefits:         f.Benefits,
		TargetAudience:   f.TargetAudience,
		IsCompanyProject: who.Role == model.RoleCompany,
	}
	id, err := s.Projects.Create(ctx, &p)
	if err != nil {
		return model.Project{}, err
	}
	created, err := s.Projects.GetByID(ctx, id)
	if err != nil {
		return model.Project{}, err
	}
	if status == model.StatusPendingModeration {
		s.announceSubmission(ctx, created, who)
	}
	return created, nil
}

// SubmitProject moves the caller's DRAFT project into moderation.
func (s *ProjectService) SubmitProject(ctx context.Context, who Principal, id uint64) (model.Project, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return model.Project{}, err
	}
	if p.AuthorID != who.ID {
		return model.Project{}, errf(KindForbidden, "only the author can submit this project")
	}
	if _, err := s.gate(ctx, who, true); err != nil {
		return model.Project{}, err
	}
	now := clock(s.Now)
	out, err := s.Projects.Transition(ctx, id, func(cur model.Project) (repository.Decision, error) {
		to, err := Transition(cur.Status, ActionSubmit)
		if err != nil {
			return repository.Decision{}, err
		}
		return repository.Decision{Change: repository.StatusChange{
			To: to, Action: string(ActionSubmit), ActorID: who.ID, At: now,
		}}, nil
	})
	if err != nil {
		return model.Project{}, transitionErr(err, id)
	}
	s.announceSubmission(ctx, out, who)
	return out, nil
}

// gate applies the company subscription rule and, when submitting, the
// open-submission-period rule.
func (s *ProjectService) gate(ctx context.Context, who Principal, submitting bool) (model.User, error) {
	u, err := s.Users.GetByID(ctx, who.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return u, errf(KindNotFound, "user %d not found", who.ID)
		}
		return u, err
	}
	if !HasActiveSubscription(u, clock(s.Now)) {
		return u, errf(KindNeedsSubscription, "an active company subscription is required to submit projects")
	}
	if submitting && s.Periods != nil {
		open, err := s.Periods.IsOpen(ctx, model.PeriodSubmission)
		if err != nil {
			return u, err
		}
		if !open {
			return u, errf(KindSubmissionClosed, "project submission is currently closed")
		}
	}
	return u, nil
}

func (s *ProjectService) announceSubmission(ctx context.Context, p model.Project, who Principal) {
	ev := queue.NewEvent(queue.EventProjectSubmitted)
	ev.ProjectID, ev.ProjectTitle, ev.AuthorID, ev.ActorID = p.ID, p.Title, p.AuthorID, who.ID
	ev.Status = string(p.Status)
	publish(ctx, s.Events, logger(s.Log), ev)
}

// ProjectDetail is a project with its published comments.
type ProjectDetail struct {
	model.Project
	Comments []model.Comment      `json:"comments"`
	History  []model.StatusChange `json:"history"`
}

// GetProject returns a project with its approved comments and its status
// history, oldest change first.
func (s *ProjectService) GetProject(ctx context.Context, id uint64) (ProjectDetail, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return ProjectDetail{}, err
	}
	d := ProjectDetail{Project: p, Comments: []model.Comment{}, History: []model.StatusChange{}}
	if s.Comments != nil {
		cs, err := s.Comments.ListApproved(ctx, id)
		if err != nil {
			return ProjectDetail{}, err
		}
		d.Comments = cs
	}
	hist, err := s.Projects.History(ctx, id)
	if err != nil {
		return ProjectDetail{}, err
	}
	if hist != nil {
		d.History = hist
	}
	return d, nil
}

// ListQuery is the input of ListProjects. Zero values select defaults.
type ListQuery struct {
	Status   model.ProjectStatus
	Category model.Category
	Page     int
	Limit    int
}

// ProjectPage is one page of the project feed.
type ProjectPage struct {
	Projects   []model.Project `json:"projects"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	Total      int             `json:"total"`
	TotalPages int             `json:"totalPages"`
}

// ListProjects returns a page of projects. Without a status filter only
// publicly visible statuses are listed.
func (s *ProjectService) ListProjects(ctx context.Context, q ListQuery) (ProjectPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	f := repository.ProjectFilter{Limit: q.Limit, Offset: (q.Page - 1) * q.Limit}
	if q.Status != "" {
		if !q.Status.Valid() {
			return ProjectPage{}, errf(KindInvalid, "unknown status %q", q.Status)
		}
		f.Statuses = []model.ProjectStatus{q.Status}
	} else {
		f.Statuses = model.PublicStatuses
	}
	if q.Category != "" {
		if err := validateCategory(q.Category); err != nil {
			return ProjectPage{}, err
		}
		f.Category = q.Category
	}
	items, total, err := s.Projects.List(ctx, f)
	if err != nil {
		return ProjectPage{}, err
	}
	return ProjectPage{
		Projects:   items,
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      total,
		TotalPages: (total + q.Limit - 1) / q.Limit,
	}, nil
}

// ListOwnProjects returns the caller's projects with related counts.
func (s *ProjectService) ListOwnProjects(ctx context.Context, who Principal) ([]model.ProjectSummary, error) {
	out, err := s.Projects.ListByAuthor(ctx, who.ID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.ProjectSummary{}
	}
	return out, nil
}

// UpdateProject edits project attributes. The author and MODERATOR, ADMIN
// or CURATOR staff may edit.
func (s *ProjectService) UpdateProject(ctx context.Context, who Principal, id uint64, patch repository.ProjectPatch) (model.Project, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return model.Project{}, err
	}
	if p.AuthorID != who.ID && !who.Is(model.RoleModerator, model.RoleAdmin, model.RoleCurator) {
		return model.Project{}, errf(KindForbidden, "you cannot edit this project")
	}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if err := validateTitle(t); err != nil {
			return model.Project{}, err
		}
		patch.Title = &t
	}
	if patch.Description != nil {
		d := strings.TrimSpace(*patch.Description)
		if err := validateDescription(d); err != nil {
			return model.Project{}, err
		}
		patch.Description = &d
	}
	if patch.Category != nil {
		if err := validateCategory(*patch.Category); err != nil {
			return model.Project{}, err
		}
	}
	if err := validateBudget(patch.EstimatedBudget); err != nil {
		return model.Project{}, err
	}
	if err := s.Projects.Update(ctx, id, patch); err != nil {
		return model.Project{}, err
	}
	return s.load(ctx, id)
}

// DeleteProject removes a project with its votes, comments and
// contributions. Authors may only delete while the project is a draft,
// awaiting or refused moderation, or completed; administrators may delete
// in any status.
func (s *ProjectService) DeleteProject(ctx context.Context, who Principal, id uint64) error {
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case who.Is(model.RoleAdmin):
	case p.AuthorID != who.ID:
		return errf(KindForbidden, "you cannot delete someone else's project")
	case !ownerDeletable[p.Status]:
		return errf(KindForbidden, "a project in status %s cannot be deleted by its author", p.Status)
	}
	if err := s.Projects.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errf(KindNotFound, "project %d not found", id)
		}
		return err
	}
	return nil
}

func (s *ProjectService) load(ctx context.Context, id uint64) (model.Project, error) {
	p, err := s.Projects.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return p, errf(KindNotFound, "project %d not found", id)
	}
	return p, err
}

// transitionErr translates repository failures of a transition.
func transitionErr(err error, id uint64) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return errf(KindNotFound, "project %d not found", id)
	case errors.Is(err, repository.ErrStatusChanged):
		return errf(KindIllegalTransition, "project %d changed status concurrently", id)
	}
	return err
}
