package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/civic-budget/internal/model"
)

// CommentRepo persists project comments. Approving a comment and crediting
// its author's reward happen in the same transaction. The reward is paid
// once per (user, project), however many comments the user publishes there.
type CommentRepo struct {
	DB    *sql.DB
	Users *UserRepo
}

func NewCommentRepo(db *sql.DB, users *UserRepo) *CommentRepo {
	return &CommentRepo{DB: db, Users: users}
}

const commentColumns = `c.id, c.project_id, c.user_id, u.name, c.content, c.is_approved, c.ai_moderated,
	c.ai_toxicity_score, c.created_at`

const commentFrom = " FROM comments c JOIN users u ON u.id = c.user_id"

func scanComment(row interface{ Scan(...any) error }) (model.Comment, error) {
	var c model.Comment
	err := row.Scan(&c.ID, &c.ProjectID, &c.UserID, &c.UserName, &c.Content, &c.IsApproved,
		&c.AIModerated, &c.AIToxicityScore, &c.CreatedAt)
	return c, err
}

// Create inserts the comment. When it is already approved the author is
// credited reward tokens in the same transaction, unless an earlier comment
// on the project already paid them.
func (r *CommentRepo) Create(ctx context.Context, c *model.Comment, reward int) (uint64, error) {
	var id uint64
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO comments (project_id, user_id, content, is_approved, ai_moderated, ai_toxicity_score)
			 VALUES (?,?,?,?,?,?)`,
			c.ProjectID, c.UserID, c.Content, c.IsApproved, c.AIModerated, c.AIToxicityScore)
		if err != nil {
			return err
		}
		last, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = uint64(last)
		if c.IsApproved {
			return r.rewardOnceTx(ctx, tx, c.UserID, c.ProjectID, reward)
		}
		return nil
	})
	return id, err
}

// rewardOnceTx claims the (user, project) comment reward and credits it.
// A second claim changes no row and pays nothing.
func (r *CommentRepo) rewardOnceTx(ctx context.Context, tx *sql.Tx, userID, projectID uint64, reward int) error {
	if reward <= 0 {
		return nil
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO comment_rewards (user_id, project_id) VALUES (?,?)
		 ON DUPLICATE KEY UPDATE user_id = user_id`,
		userID, projectID)
	if err != nil {
		return err
	}
	first, err := affectedOne(res)
	if err != nil || !first {
		return err
	}
	return r.Users.CreditTx(ctx, tx, userID, reward)
}

// GetByID fetches a comment.
func (r *CommentRepo) GetByID(ctx context.Context, id uint64) (model.Comment, error) {
	c, err := scanComment(r.DB.QueryRowContext(ctx, "SELECT "+commentColumns+commentFrom+" WHERE c.id=?", id))
	return c, notFound(err)
}

// ListApproved returns the project's published comments, newest first.
func (r *CommentRepo) ListApproved(ctx context.Context, projectID uint64) ([]model.Comment, error) {
	return r.list(ctx, "SELECT "+commentColumns+commentFrom+
		" WHERE c.project_id=? AND c.is_approved=TRUE ORDER BY c.created_at DESC", projectID)
}

// ListPending returns comments waiting for a moderator, oldest first.
func (r *CommentRepo) ListPending(ctx context.Context, limit int) ([]model.Comment, error) {
	return r.list(ctx, "SELECT "+commentColumns+commentFrom+
		" WHERE c.is_approved=FALSE ORDER BY c.created_at ASC LIMIT ?", limit)
}

func (r *CommentRepo) list(ctx context.Context, q string, args ...any) ([]model.Comment, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Approve publishes a pending comment and credits its author's reward if
// the project's reward was not claimed yet. It reports false when the
// comment was already approved.
func (r *CommentRepo) Approve(ctx context.Context, id uint64, reward int) (bool, error) {
	changed := false
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var (
			userID, projectID uint64
			approved          bool
		)
		if err := tx.QueryRowContext(ctx,
			"SELECT user_id, project_id, is_approved FROM comments WHERE id=? FOR UPDATE", id).
			Scan(&userID, &projectID, &approved); err != nil {
			return notFound(err)
		}
		if approved {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "UPDATE comments SET is_approved=TRUE WHERE id=?", id); err != nil {
			return err
		}
		changed = true
		return r.rewardOnceTx(ctx, tx, userID, projectID, reward)
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// Unapprove hides a comment without deleting it.
func (r *CommentRepo) Unapprove(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE comments SET is_approved=FALSE WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a comment.
func (r *CommentRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM comments WHERE id=?", id)
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
}
