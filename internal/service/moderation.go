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
	defaultAITimeout = 8 * time.Second
	queueListLimit   = 50
	maxChatHistory   = 10
	minQuestionLen   = 3
)

// ModerationWorkflow applies moderator decisions to projects and comments.
type ModerationWorkflow struct {
	Projects  ProjectStore
	Comments  CommentStore
	Advisor   Advisor
	AITimeout time.Duration
	Events    EventPublisher
	Log       *slog.Logger
	Now       func() time.Time
}

func NewModerationWorkflow(projects ProjectStore, comments CommentStore, advisor Advisor, aiTimeout time.Duration, events EventPublisher, log *slog.Logger) *ModerationWorkflow {
	return &ModerationWorkflow{
		Projects:  projects,
		Comments:  comments,
		Advisor:   advisor,
		AITimeout: aiTimeout,
		Events:    events,
		Log:       log,
		Now:       utcNow,
	}
}

// Apply runs one moderation action on a project. The status change, its
// history row and the approval reward commit together under ctx. The AI
// analysis that follows an approval is best effort, never undoes it, and
// runs on its own AITimeout budget detached from ctx's deadline.
func (m *ModerationWorkflow) Apply(ctx context.Context, who Principal, projectID uint64, action string, notes string) (model.Project, error) {
	if !who.isStaff() {
		return model.Project{}, errf(KindForbidden, "only moderators can moderate projects")
	}
	a, ok := parseModerationAction(action)
	if !ok {
		return model.Project{}, errf(KindInvalid, "unknown moderation action %q", action)
	}
	notes = strings.TrimSpace(notes)
	if requiresNotes(a) && notes == "" {
		return model.Project{}, errf(KindInvalid, "notes are required to %s a project", a)
	}
	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}

	now := clock(m.Now)
	p, err := m.Projects.Transition(ctx, projectID, func(cur model.Project) (repository.Decision, error) {
		to, err := Transition(cur.Status, a)
		if err != nil {
			return repository.Decision{}, err
		}
		d := repository.Decision{Change: repository.StatusChange{
			To:        to,
			Action:    string(a),
			Notes:     notesPtr,
			ActorID:   who.ID,
			At:        now,
			Moderated: true,
		}}
		if a == ActionApprove {
			d.AuthorReward = RewardApprovedProject
		}
		return d, nil
	})
	if err != nil {
		return model.Project{}, transitionErr(err, projectID)
	}

	log := logger(m.Log)
	if a == ActionApprove {
		if analysis := m.enrich(context.WithoutCancel(ctx), p); analysis != nil {
			applyAnalysis(&p, *analysis)
		}
	}

	ev := queue.NewEvent(queue.EventProjectModerated)
	ev.ProjectID, ev.ProjectTitle, ev.AuthorID, ev.ActorID = p.ID, p.Title, p.AuthorID, who.ID
	ev.Action, ev.Status, ev.Notes = string(a), string(p.Status), notes
	publish(ctx, m.Events, log, ev)

	log.Info("project moderated", "project_id", p.ID, "action", a, "status", p.Status, "moderator_id", who.ID)
	return p, nil
}

// enrich asks the advisor for an analysis and stores it within one
// AITimeout. Every failure is logged and swallowed.
func (m *ModerationWorkflow) enrich(ctx context.Context, p model.Project) *model.Analysis {
	log := logger(m.Log)
	if m.Advisor == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.aiTimeout())
	defer cancel()
	a, err := m.analyze(ctx, p)
	if err != nil {
		log.Warn("project analysis skipped", "project_id", p.ID, "kind", KindExternalServiceUnavailable, "err", err)
		return nil
	}
	if err := m.Projects.SaveAnalysis(ctx, p.ID, *a); err != nil {
		log.Warn("project analysis not stored", "project_id", p.ID, "kind", KindExternalServiceUnavailable, "err", err)
		return nil
	}
	return a
}

func (m *ModerationWorkflow) aiTimeout() time.Duration {
	if m.AITimeout <= 0 {
		return defaultAITimeout
	}
	return m.AITimeout
}

func (m *ModerationWorkflow) analyze(ctx context.Context, p model.Project) (*model.Analysis, error) {
	actx, cancel := context.WithTimeout(ctx, m.aiTimeout())
	defer cancel()
	a, err := m.Advisor.Analyze(actx, p)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errors.New("advisor returned no analysis")
	}
	return a, nil
}

func applyAnalysis(p *model.Project, a model.Analysis) {
	summary := a.Summary
	p.AIAnalysis = &summary
	p.AIPros = a.Pros
	p.AICons = a.Cons
	p.AIRisks = a.Risks
	p.AIInvestmentAdvantages = a.InvestmentAdvantages
	p.AIEstimatedBudget = a.EstimatedBudget
}

// AnalyzeProject runs and stores an analysis on demand. Unlike the
// analysis after approval, an advisor failure is returned to the caller.
func (m *ModerationWorkflow) AnalyzeProject(ctx context.Context, who Principal, projectID uint64) (model.Project, error) {
	if !who.isStaff() {
		return model.Project{}, errf(KindForbidden, "only moderators can request an analysis")
	}
	p, err := m.project(ctx, projectID)
	if err != nil {
		return model.Project{}, err
	}
	if m.Advisor == nil {
		return model.Project{}, errf(KindExternalServiceUnavailable, "AI analysis is not configured")
	}
	a, err := m.analyze(ctx, p)
	if err != nil {
		logger(m.Log).Warn("project analysis failed", "project_id", p.ID, "err", err)
		return model.Project{}, errf(KindExternalServiceUnavailable, "AI analysis is unavailable")
	}
	if err := m.Projects.SaveAnalysis(ctx, p.ID, *a); err != nil {
		return model.Project{}, err
	}
	applyAnalysis(&p, *a)
	return p, nil
}

// ProjectChat answers a question about a project using the advisor.
func (m *ModerationWorkflow) ProjectChat(ctx context.Context, projectID uint64, question string, history []model.ChatTurn) (string, error) {
	question = strings.TrimSpace(question)
	if utf8.RuneCountInString(question) < minQuestionLen {
		return "", errf(KindInvalid, "question must be at least %d characters", minQuestionLen)
	}
	if len(history) > maxChatHistory {
		return "", errf(KindInvalid, "history may hold at most %d messages", maxChatHistory)
	}
	p, err := m.project(ctx, projectID)
	if err != nil {
		return "", err
	}
	if m.Advisor == nil {
		return "", errf(KindExternalServiceUnavailable, "AI assistant is not configured")
	}
	actx, cancel := context.WithTimeout(ctx, m.aiTimeout())
	defer cancel()
	answer, err := m.Advisor.ProjectChat(actx, p, question, history)
	if err != nil {
		logger(m.Log).Warn("project chat failed", "project_id", p.ID, "err", err)
		return "", errf(KindExternalServiceUnavailable, "AI assistant is unavailable")
	}
	return answer, nil
}

// Queue is the moderator dashboard.
type Queue struct {
	Pending  []model.Project `json:"pendingProjects"`
	Active   []model.Project `json:"activeProjects"`
	Comments []model.Comment `json:"pendingComments"`
}

// ModerationQueue lists projects awaiting moderation, projects currently
// approved or in voting, and unapproved comments.
func (m *ModerationWorkflow) ModerationQueue(ctx context.Context, who Principal) (Queue, error) {
	if !who.isStaff() {
		return Queue{}, errf(KindForbidden, "only moderators can view the moderation queue")
	}
	pending, _, err := m.Projects.List(ctx, repository.ProjectFilter{
		Statuses: []model.ProjectStatus{model.StatusPendingModeration},
		Limit:    queueListLimit,
	})
	if err != nil {
		return Queue{}, err
	}
	active, _, err := m.Projects.List(ctx, repository.ProjectFilter{
		Statuses: []model.ProjectStatus{model.StatusApproved, model.StatusVoting},
		Limit:    queueListLimit,
	})
	if err != nil {
		return Queue{}, err
	}
	q := Queue{Pending: pending, Active: active, Comments: []model.Comment{}}
	if m.Comments != nil {
		if q.Comments, err = m.Comments.ListPending(ctx, queueListLimit); err != nil {
			return Queue{}, err
		}
	}
	return q, nil
}

// ApplyComment approves or rejects a comment. Approving pays the author
// once; rejecting deletes the comment.
func (m *ModerationWorkflow) ApplyComment(ctx context.Context, who Principal, commentID uint64, action string) error {
	if !who.isStaff() {
		return errf(KindForbidden, "only moderators can moderate comments")
	}
	var err error
	switch Action(action) {
	case ActionApprove:
		_, err = m.Comments.Approve(ctx, commentID, RewardApprovedComment)
	case ActionReject:
		err = m.Comments.Delete(ctx, commentID)
	default:
		return errf(KindInvalid, "comment action must be approve or reject")
	}
	if errors.Is(err, repository.ErrNotFound) {
		return errf(KindNotFound, "comment %d not found", commentID)
	}
	return err
}

func (m *ModerationWorkflow) project(ctx context.Context, id uint64) (model.Project, error) {
	p, err := m.Projects.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return p, errf(KindNotFound, "project %d not found", id)
	}
	return p, err
}
