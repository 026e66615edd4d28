package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/queue"
	"github.com/iliyamo/civic-budget/internal/repository"
)

// The store interfaces below are the slices of the repository layer each
// component depends on. *repository.XRepo types satisfy them.

type UserStore interface {
	Create(ctx context.Context, in repository.NewUser, cost int) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	SetSubscription(ctx context.Context, userID uint64, plan model.SubscriptionPlan, start, end time.Time) error
	UpdateProfile(ctx context.Context, userID uint64, name, phone *string) error
	Stats(ctx context.Context, userID uint64) (model.UserStats, error)
}

type ProjectStore interface {
	Create(ctx context.Context, p *model.Project) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.Project, error)
	List(ctx context.Context, f repository.ProjectFilter) ([]model.Project, int, error)
	ListByAuthor(ctx context.Context, authorID uint64) ([]model.ProjectSummary, error)
	Update(ctx context.Context, id uint64, patch repository.ProjectPatch) error
	Transition(ctx context.Context, id uint64, decide func(model.Project) (repository.Decision, error)) (model.Project, error)
	SaveAnalysis(ctx context.Context, projectID uint64, a model.Analysis) error
	History(ctx context.Context, projectID uint64) ([]model.StatusChange, error)
	DeleteCascade(ctx context.Context, projectID uint64) error
}

type VoteStore interface {
	Exists(ctx context.Context, userID, projectID uint64) (bool, error)
	Cast(ctx context.Context, userID, projectID uint64, isFor bool, cost int) (repository.Tally, error)
}

type PeriodStore interface {
	FindOpen(ctx context.Context, t model.PeriodType, now time.Time) (*model.Period, error)
	FindNext(ctx context.Context, t model.PeriodType, now time.Time) (*model.Period, error)
	GetByID(ctx context.Context, id uint64) (model.Period, error)
	List(ctx context.Context, f repository.PeriodFilter) ([]model.Period, error)
	Create(ctx context.Context, p *model.Period) (uint64, error)
	Update(ctx context.Context, id uint64, patch repository.PeriodPatch) error
	EndEarly(ctx context.Context, id uint64, now time.Time) error
	Delete(ctx context.Context, id uint64) error
}

type CommentStore interface {
	Create(ctx context.Context, c *model.Comment, reward int) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.Comment, error)
	ListApproved(ctx context.Context, projectID uint64) ([]model.Comment, error)
	ListPending(ctx context.Context, limit int) ([]model.Comment, error)
	Approve(ctx context.Context, id uint64, reward int) (bool, error)
	Unapprove(ctx context.Context, id uint64) error
	Delete(ctx context.Context, id uint64) error
}

type SupportStore interface {
	CreateTicket(ctx context.Context, t *model.SupportTicket) error
	GetTicket(ctx context.Context, id string) (model.SupportTicket, error)
	AddMessage(ctx context.Context, ticketID, sender, content string) error
	UpdateTicket(ctx context.Context, id string, patch repository.TicketPatch) error
	ListTickets(ctx context.Context, f repository.TicketFilter) ([]model.SupportTicket, error)
}

// Advisor is the generative-model collaborator. Every method may fail; the
// caller decides whether a failure matters.
type Advisor interface {
	Analyze(ctx context.Context, p model.Project) (*model.Analysis, error)
	ProjectChat(ctx context.Context, p model.Project, question string, history []model.ChatTurn) (string, error)
	ModerateComment(ctx context.Context, text string) (model.CommentVerdict, error)
	SupportChat(ctx context.Context, message string, history []model.ChatTurn, userName string) (model.SupportReply, error)
}

// EventPublisher delivers domain events after a successful commit.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// publish sends ev when a publisher is configured. Failures are logged and
// never reach the caller: the write they describe has already committed.
func publish(ctx context.Context, p EventPublisher, log *slog.Logger, ev queue.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		log.Warn("event publish failed", "type", ev.Type, "project_id", ev.ProjectID, "err", err)
	}
}

func utcNow() time.Time { return time.Now().UTC() }

func clock(now func() time.Time) time.Time {
	if now == nil {
		return utcNow()
	}
	return now()
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
