package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/civic-budget/internal/model"
)

// ProjectRepo persists projects, their status history and the vote
// counters. Users is needed to pay the author reward inside a transition.
type ProjectRepo struct {
	DB    *sql.DB
	Users *UserRepo
}

func NewProjectRepo(db *sql.DB, users *UserRepo) *ProjectRepo {
	return &ProjectRepo{DB: db, Users: users}
}

const projectColumns = `p.id, p.author_id, u.name, p.title, p.description, p.category, p.status,
	p.estimated_budget, p.location, p.timeline, p.benefits, p.target_audience, p.is_company_project,
	p.votes_for, p.votes_against, p.fundraising_goal, p.fundraising_raised,
	p.moderation_notes, p.moderated_at, p.moderated_by,
	p.ai_analysis, p.ai_pros, p.ai_cons, p.ai_risks, p.ai_investment_advantages, p.ai_estimated_budget,
	p.created_at, p.updated_at`

const projectFrom = ` FROM projects p JOIN users u ON u.id = p.author_id`

func scanProject(row interface{ Scan(...any) error }) (model.Project, error) {
	var p model.Project
	err := row.Scan(&p.ID, &p.AuthorID, &p.AuthorName, &p.Title, &p.Description, &p.Category, &p.Status,
		&p.EstimatedBudget, &p.Location, &p.Timeline, &p.Benefits, &p.TargetAudience, &p.IsCompanyProject,
		&p.VotesFor, &p.VotesAgainst, &p.FundraisingGoal, &p.FundraisingRaised,
		&p.ModerationNotes, &p.ModeratedAt, &p.ModeratedBy,
		&p.AIAnalysis, &p.AIPros, &p.AICons, &p.AIRisks, &p.AIInvestmentAdvantages, &p.AIEstimatedBudget,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Create inserts a new project and returns its id.
func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO projects (author_id, title, description, category, status, estimated_budget,
		 location, timeline, benefits, target_audience, is_company_project)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.AuthorID, p.Title, p.Description, p.Category, p.Status, p.EstimatedBudget,
		p.Location, p.Timeline, p.Benefits, p.TargetAudience, p.IsCompanyProject)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a project with its author's display name.
func (r *ProjectRepo) GetByID(ctx context.Context, id uint64) (model.Project, error) {
	p, err := scanProject(r.DB.QueryRowContext(ctx,
		"SELECT "+projectColumns+projectFrom+" WHERE p.id=? LIMIT 1", id))
	return p, notFound(err)
}

// GetByIDForUpdate locks the project row for the rest of tx.
func (r *ProjectRepo) GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint64) (model.Project, error) {
	p, err := scanProject(tx.QueryRowContext(ctx,
		"SELECT "+projectColumns+projectFrom+" WHERE p.id=? FOR UPDATE", id))
	return p, notFound(err)
}

// ProjectFilter narrows List. An empty Statuses slice matches any status.
type ProjectFilter struct {
	Statuses []model.ProjectStatus
	Category model.Category
	Limit    int
	Offset   int
}

// List returns one page of projects, newest first, together with the
// total number of matching rows.
func (r *ProjectRepo) List(ctx context.Context, f ProjectFilter) ([]model.Project, int, error) {
	var (
		where []string
		args  []any
	)
	if len(f.Statuses) > 0 {
		where = append(where, "p.status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, s)
		}
	}
	if f.Category != "" {
		where = append(where, "p.category = ?")
		args = append(args, f.Category)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects p"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+projectColumns+projectFrom+cond+" ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?",
		append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Project, 0, f.Limit)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// ListByAuthor returns the author's projects with related-row counts.
func (r *ProjectRepo) ListByAuthor(ctx context.Context, authorID uint64) ([]model.ProjectSummary, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+projectColumns+`,
		 (SELECT COUNT(*) FROM votes v WHERE v.project_id = p.id),
		 (SELECT COUNT(*) FROM comments c WHERE c.project_id = p.id),
		 (SELECT COUNT(*) FROM contributions k WHERE k.project_id = p.id)`+
			projectFrom+" WHERE p.author_id=? ORDER BY p.created_at DESC", authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ProjectSummary
	for rows.Next() {
		var s model.ProjectSummary
		p := &s.Project
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.AuthorName, &p.Title, &p.Description, &p.Category, &p.Status,
			&p.EstimatedBudget, &p.Location, &p.Timeline, &p.Benefits, &p.TargetAudience, &p.IsCompanyProject,
			&p.VotesFor, &p.VotesAgainst, &p.FundraisingGoal, &p.FundraisingRaised,
			&p.ModerationNotes, &p.ModeratedAt, &p.ModeratedBy,
			&p.AIAnalysis, &p.AIPros, &p.AICons, &p.AIRisks, &p.AIInvestmentAdvantages, &p.AIEstimatedBudget,
			&p.CreatedAt, &p.UpdatedAt,
			&s.Counts.Votes, &s.Counts.Comments, &s.Counts.Contributions); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ProjectPatch lists the editable project fields. Nil means unchanged.
type ProjectPatch struct {
	Title           *string
	Description     *string
	Category        *model.Category
	EstimatedBudget *float64
	Location        *string
	Timeline        *string
	Benefits        *string
	TargetAudience  *string
}

// Update applies the non-nil fields of patch. An empty patch is a no-op.
func (r *ProjectRepo) Update(ctx context.Context, id uint64, patch ProjectPatch) error {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.EstimatedBudget != nil {
		add("estimated_budget", *patch.EstimatedBudget)
	}
	if patch.Location != nil {
		add("location", *patch.Location)
	}
	if patch.Timeline != nil {
		add("timeline", *patch.Timeline)
	}
	if patch.Benefits != nil {
		add("benefits", *patch.Benefits)
	}
	if patch.TargetAudience != nil {
		add("target_audience", *patch.TargetAudience)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := r.DB.ExecContext(ctx, "UPDATE projects SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	return err
}

// StatusChange describes one lifecycle transition to persist.
type StatusChange struct {
	ProjectID uint64
	From      model.ProjectStatus
	To        model.ProjectStatus
	Action    string
	Notes     *string
	ActorID   uint64
	At        time.Time
	// Moderated also stamps moderation_notes, moderated_at and moderated_by.
	Moderated bool
}

// TransitionTx moves the project from c.From to c.To only if it is still
// in c.From, and appends the history row. ErrStatusChanged means another
// writer got there first and nothing was written.
func (r *ProjectRepo) TransitionTx(ctx context.Context, tx *sql.Tx, c StatusChange) error {
	var (
		res sql.Result
		err error
	)
	if c.Moderated {
		res, err = tx.ExecContext(ctx,
			`UPDATE projects SET status=?, moderation_notes=?, moderated_at=?, moderated_by=?
			 WHERE id=? AND status=?`,
			c.To, c.Notes, c.At, c.ActorID, c.ProjectID, c.From)
	} else {
		res, err = tx.ExecContext(ctx,
			"UPDATE projects SET status=? WHERE id=? AND status=?", c.To, c.ProjectID, c.From)
	}
	if err != nil {
		return err
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStatusChanged
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO project_status_history (project_id, from_status, to_status, action, notes, changed_by, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		c.ProjectID, c.From, c.To, c.Action, c.Notes, c.ActorID, c.At)
	return err
}

// Decision is what the caller of Transition chose to do with the locked
// project. ProjectID and From are filled in from the locked row.
type Decision struct {
	Change       StatusChange
	AuthorReward int
}

// Transition locks the project, lets decide inspect it, then persists the
// chosen change, its history row and the optional author reward in one
// transaction. An error from decide aborts without writing anything and is
// returned unchanged.
func (r *ProjectRepo) Transition(ctx context.Context, id uint64, decide func(model.Project) (Decision, error)) (model.Project, error) {
	var out model.Project
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		p, err := r.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		d, err := decide(p)
		if err != nil {
			return err
		}
		d.Change.ProjectID, d.Change.From = p.ID, p.Status
		if err := r.TransitionTx(ctx, tx, d.Change); err != nil {
			return err
		}
		if d.AuthorReward > 0 {
			if err := r.Users.CreditTx(ctx, tx, p.AuthorID, d.AuthorReward); err != nil {
				return err
			}
		}
		p.Status = d.Change.To
		if d.Change.Moderated {
			at, by := d.Change.At, d.Change.ActorID
			p.ModerationNotes, p.ModeratedAt, p.ModeratedBy = d.Change.Notes, &at, &by
		}
		out = p
		return nil
	})
	return out, err
}

// History returns the project's status changes, oldest first.
func (r *ProjectRepo) History(ctx context.Context, projectID uint64) ([]model.StatusChange, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, project_id, from_status, to_status, action, notes, changed_by, created_at
		 FROM project_status_history WHERE project_id=? ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.StatusChange
	for rows.Next() {
		var h model.StatusChange
		if err := rows.Scan(&h.ID, &h.ProjectID, &h.FromStatus, &h.ToStatus, &h.Action, &h.Notes, &h.ChangedBy, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// IncrementVoteTx bumps the matching counter with an in-database
// increment. It only touches projects that are still in VOTING, so a
// concurrent close cannot be voted through; ErrStatusChanged reports that.
func (r *ProjectRepo) IncrementVoteTx(ctx context.Context, tx *sql.Tx, projectID uint64, isFor bool) error {
	q := "UPDATE projects SET votes_against = votes_against + 1 WHERE id=? AND status=?"
	if isFor {
		q = "UPDATE projects SET votes_for = votes_for + 1 WHERE id=? AND status=?"
	}
	res, err := tx.ExecContext(ctx, q, projectID, model.StatusVoting)
	if err != nil {
		return err
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStatusChanged
	}
	return nil
}

// SaveAnalysis stores an AI analysis on the project.
func (r *ProjectRepo) SaveAnalysis(ctx context.Context, projectID uint64, a model.Analysis) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE projects SET ai_analysis=?, ai_pros=?, ai_cons=?, ai_risks=?, ai_investment_advantages=?,
		 ai_estimated_budget=? WHERE id=?`,
		a.Summary, model.StringList(a.Pros), model.StringList(a.Cons), model.StringList(a.Risks),
		model.StringList(a.InvestmentAdvantages), a.EstimatedBudget, projectID)
	return err
}

// DeleteCascade removes the project and every row that references it in
// one transaction, children first.
func (r *ProjectRepo) DeleteCascade(ctx context.Context, projectID uint64) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		for _, q := range []string{
			"DELETE FROM votes WHERE project_id=?",
			"DELETE FROM comments WHERE project_id=?",
			"DELETE FROM comment_rewards WHERE project_id=?",
			"DELETE FROM contributions WHERE project_id=?",
			"DELETE FROM project_status_history WHERE project_id=?",
		} {
			if _, err := tx.ExecContext(ctx, q, projectID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE id=?", projectID)
		if err != nil {
			return err
		}
		ok, err := affectedOne(res)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		return nil
	})
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
