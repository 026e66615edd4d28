package repository

import (
	"context"
	"database/sql"
)

// VoteRepo persists votes. Cast is the only writer and keeps the vote row,
// the voter's balance and the project counter consistent.
type VoteRepo struct {
	DB       *sql.DB
	Users    *UserRepo
	Projects *ProjectRepo
}

func NewVoteRepo(db *sql.DB, users *UserRepo, projects *ProjectRepo) *VoteRepo {
	return &VoteRepo{DB: db, Users: users, Projects: projects}
}

// Tally is the state observed inside the vote transaction after the
// writes were applied.
type Tally struct {
	VotesFor     int
	VotesAgainst int
	TokensLeft   int
}

// Exists reports whether the user already voted on the project.
func (r *VoteRepo) Exists(ctx context.Context, userID, projectID uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM votes WHERE user_id=? AND project_id=? LIMIT 1", userID, projectID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Cast records a vote in a single transaction:
//
//  1. insert the vote row (ErrDuplicateVote on the unique key),
//  2. debit cost tokens from the voter (ErrInsufficientTokens),
//  3. increment the project's for/against counter (ErrStatusChanged when
//     the project left VOTING).
//
// Any failure rolls the whole unit back.
func (r *VoteRepo) Cast(ctx context.Context, userID, projectID uint64, isFor bool, cost int) (Tally, error) {
	var t Tally
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO votes (user_id, project_id, is_for) VALUES (?,?,?)",
			userID, projectID, isFor); err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicateVote
			}
			return err
		}
		if err := r.Users.DebitTx(ctx, tx, userID, cost); err != nil {
			return err
		}
		if err := r.Projects.IncrementVoteTx(ctx, tx, projectID, isFor); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx,
			"SELECT votes_for, votes_against FROM projects WHERE id=?", projectID).
			Scan(&t.VotesFor, &t.VotesAgainst); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, "SELECT tokens FROM users WHERE id=?", userID).Scan(&t.TokensLeft)
	})
	if err != nil {
		return Tally{}, err
	}
	return t, nil
}
