// Package repository holds the MySQL persistence layer. Repositories wrap
// a *sql.DB, use plain SQL with ? placeholders, and expose *Tx variants
// of the methods that must join a caller's transaction.
//
// The sentinel errors below let the service layer tell business-rule
// failures apart from infrastructure failures without inspecting driver
// errors itself.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a uniqueness rule
// that is not covered by a more specific sentinel.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned by UserRepo.Create for a duplicate email.
var ErrEmailExists = errors.New("email already exists")

// ErrDuplicateVote is returned when the (user, project) vote already
// exists. The unique key makes this authoritative even under races.
var ErrDuplicateVote = errors.New("duplicate vote")

// ErrInsufficientTokens is returned by a guarded debit that would take the
// balance below zero. No row is changed in that case.
var ErrInsufficientTokens = errors.New("insufficient tokens")

// ErrStatusChanged is returned by compare-and-set status writes when the
// row is no longer in the expected status.
var ErrStatusChanged = errors.New("status changed concurrently")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// notFound maps sql.ErrNoRows to ErrNotFound and leaves other errors alone.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// withTx runs fn inside a transaction and commits when fn returns nil.
// Any error, including a failed commit, leaves the transaction rolled back.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// affectedOne reports whether exactly one row was changed.
func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
