package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/civic-budget/internal/model"
)

// PeriodRepo persists submission and voting windows.
type PeriodRepo struct{ DB *sql.DB }

func NewPeriodRepo(db *sql.DB) *PeriodRepo { return &PeriodRepo{DB: db} }

const periodColumns = "id, type, title, description, start_date, end_date, is_active, ended_early, created_by, created_at"

func scanPeriod(row interface{ Scan(...any) error }) (model.Period, error) {
	var p model.Period
	err := row.Scan(&p.ID, &p.Type, &p.Title, &p.Description, &p.StartDate, &p.EndDate,
		&p.IsActive, &p.EndedEarly, &p.CreatedBy, &p.CreatedAt)
	return p, err
}

func (r *PeriodRepo) one(ctx context.Context, q string, args ...any) (*model.Period, error) {
	p, err := scanPeriod(r.DB.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindOpen returns the most recently created period of type t that is
// open at now, or nil.
func (r *PeriodRepo) FindOpen(ctx context.Context, t model.PeriodType, now time.Time) (*model.Period, error) {
	return r.one(ctx,
		"SELECT "+periodColumns+` FROM periods
		 WHERE type=? AND is_active=TRUE AND ended_early=FALSE AND start_date<=? AND end_date>=?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		t, now, now)
}

// FindNext returns the soonest period of type t starting after now, or nil.
func (r *PeriodRepo) FindNext(ctx context.Context, t model.PeriodType, now time.Time) (*model.Period, error) {
	return r.one(ctx,
		"SELECT "+periodColumns+` FROM periods
		 WHERE type=? AND is_active=TRUE AND ended_early=FALSE AND start_date>?
		 ORDER BY start_date ASC, id ASC LIMIT 1`,
		t, now)
}

// GetByID fetches a period.
func (r *PeriodRepo) GetByID(ctx context.Context, id uint64) (model.Period, error) {
	p, err := scanPeriod(r.DB.QueryRowContext(ctx, "SELECT "+periodColumns+" FROM periods WHERE id=?", id))
	return p, notFound(err)
}

// PeriodFilter narrows List. OpenAt, when non-zero, keeps only periods
// open at that instant.
type PeriodFilter struct {
	Type   model.PeriodType
	OpenAt time.Time
}

// List returns periods ordered by start date, latest first.
func (r *PeriodRepo) List(ctx context.Context, f PeriodFilter) ([]model.Period, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "type=?")
		args = append(args, f.Type)
	}
	if !f.OpenAt.IsZero() {
		where = append(where, "is_active=TRUE AND ended_early=FALSE AND start_date<=? AND end_date>=?")
		args = append(args, f.OpenAt, f.OpenAt)
	}
	q := "SELECT " + periodColumns + " FROM periods"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, q+" ORDER BY start_date DESC, id DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Period{}
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts a period and returns its id.
func (r *PeriodRepo) Create(ctx context.Context, p *model.Period) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO periods (type, title, description, start_date, end_date, is_active, created_by)
		 VALUES (?,?,?,?,?,?,?)`,
		p.Type, p.Title, p.Description, p.StartDate, p.EndDate, p.IsActive, p.CreatedBy)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// PeriodPatch lists the editable period fields. Nil means unchanged.
type PeriodPatch struct {
	Title       *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
	IsActive    *bool
}

// Update applies the non-nil fields of patch.
func (r *PeriodRepo) Update(ctx context.Context, id uint64, patch PeriodPatch) error {
	var (
		sets []string
		args []any
	)
	if patch.Title != nil {
		sets, args = append(sets, "title=?"), append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets, args = append(sets, "description=?"), append(args, *patch.Description)
	}
	if patch.StartDate != nil {
		sets, args = append(sets, "start_date=?"), append(args, *patch.StartDate)
	}
	if patch.EndDate != nil {
		sets, args = append(sets, "end_date=?"), append(args, *patch.EndDate)
	}
	if patch.IsActive != nil {
		sets, args = append(sets, "is_active=?"), append(args, *patch.IsActive)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := r.DB.ExecContext(ctx, "UPDATE periods SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	return err
}

// EndEarly closes a period at now. ErrConflict means it had already been
// ended early.
func (r *PeriodRepo) EndEarly(ctx context.Context, id uint64, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE periods SET ended_early=TRUE, end_date=? WHERE id=? AND ended_early=FALSE", now, id)
	if err != nil {
		return err
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// Delete removes a period.
func (r *PeriodRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM periods WHERE id=?", id)
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
