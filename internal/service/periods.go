package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/repository"
)

// PeriodRegistry answers which submission and voting windows are open and
// lets administrators manage them.
type PeriodRegistry struct {
	Periods PeriodStore
	Now     func() time.Time
}

func NewPeriodRegistry(periods PeriodStore) *PeriodRegistry {
	return &PeriodRegistry{Periods: periods, Now: utcNow}
}

// GetActive resolves, for each period type, the open period or else the
// next upcoming one. It has no side effects.
func (r *PeriodRegistry) GetActive(ctx context.Context) (model.ActivePeriods, error) {
	now := clock(r.Now)
	var out model.ActivePeriods
	for _, t := range []model.PeriodType{model.PeriodSubmission, model.PeriodVoting} {
		open, next, err := r.resolve(ctx, t, now)
		if err != nil {
			return model.ActivePeriods{}, err
		}
		if t == model.PeriodSubmission {
			out.Submission, out.NextSubmission = open, next
		} else {
			out.Voting, out.NextVoting = open, next
		}
	}
	return out, nil
}

func (r *PeriodRegistry) resolve(ctx context.Context, t model.PeriodType, now time.Time) (open, next *model.Period, err error) {
	open, err = r.Periods.FindOpen(ctx, t, now)
	if err != nil {
		return nil, nil, fmt.Errorf("find open %s period: %w", t, err)
	}
	if open != nil {
		return open, nil, nil
	}
	next, err = r.Periods.FindNext(ctx, t, now)
	if err != nil {
		return nil, nil, fmt.Errorf("find next %s period: %w", t, err)
	}
	return nil, next, nil
}

// IsOpen reports whether a period of type t is open now.
func (r *PeriodRegistry) IsOpen(ctx context.Context, t model.PeriodType) (bool, error) {
	p, err := r.Periods.FindOpen(ctx, t, clock(r.Now))
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// List returns periods, optionally of one type and optionally only those
// open now.
func (r *PeriodRegistry) List(ctx context.Context, t model.PeriodType, openOnly bool) ([]model.Period, error) {
	if t != "" && !t.Valid() {
		return nil, errf(KindInvalid, "unknown period type %q", t)
	}
	f := repository.PeriodFilter{Type: t}
	if openOnly {
		f.OpenAt = clock(r.Now)
	}
	return r.Periods.List(ctx, f)
}

// NewPeriod is the input of Create.
type NewPeriod struct {
	Type        model.PeriodType
	Title       string
	Description *string
	StartDate   time.Time
	EndDate     time.Time
}

// Create adds a period. Only one period of a type may be open at a time;
// creating a second one while the first is open is a Conflict.
func (r *PeriodRegistry) Create(ctx context.Context, who Principal, in NewPeriod) (model.Period, error) {
	if !who.isStaff() {
		return model.Period{}, errf(KindForbidden, "only moderators and administrators manage periods")
	}
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case !in.Type.Valid():
		return model.Period{}, errf(KindInvalid, "type must be SUBMISSION or VOTING")
	case in.Title == "":
		return model.Period{}, errf(KindInvalid, "title is required")
	case in.StartDate.IsZero() || in.EndDate.IsZero():
		return model.Period{}, errf(KindInvalid, "startDate and endDate are required")
	case !in.EndDate.After(in.StartDate):
		return model.Period{}, errf(KindInvalid, "endDate must be after startDate")
	}

	open, err := r.Periods.FindOpen(ctx, in.Type, clock(r.Now))
	if err != nil {
		return model.Period{}, err
	}
	if open != nil {
		return model.Period{}, errf(KindConflict, "a %s period is already open (id %d)", in.Type, open.ID)
	}

	by := who.ID
	p := model.Period{
		Type:        in.Type,
		Title:       in.Title,
		Description: in.Description,
		StartDate:   in.StartDate.UTC(),
		EndDate:     in.EndDate.UTC(),
		IsActive:    true,
		CreatedBy:   &by,
	}
	id, err := r.Periods.Create(ctx, &p)
	if err != nil {
		return model.Period{}, err
	}
	return r.get(ctx, id)
}

// Update patches a period's title, description, dates or active flag.
func (r *PeriodRegistry) Update(ctx context.Context, who Principal, id uint64, patch repository.PeriodPatch) (model.Period, error) {
	if !who.isStaff() {
		return model.Period{}, errf(KindForbidden, "only moderators and administrators manage periods")
	}
	cur, err := r.get(ctx, id)
	if err != nil {
		return model.Period{}, err
	}
	start, end := cur.StartDate, cur.EndDate
	if patch.StartDate != nil {
		start = *patch.StartDate
	}
	if patch.EndDate != nil {
		end = *patch.EndDate
	}
	if !end.After(start) {
		return model.Period{}, errf(KindInvalid, "endDate must be after startDate")
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return model.Period{}, errf(KindInvalid, "title cannot be empty")
	}
	if err := r.Periods.Update(ctx, id, patch); err != nil {
		return model.Period{}, err
	}
	return r.get(ctx, id)
}

// EndEarly closes a period now.
func (r *PeriodRegistry) EndEarly(ctx context.Context, who Principal, id uint64) (model.Period, error) {
	if !who.isStaff() {
		return model.Period{}, errf(KindForbidden, "only moderators and administrators manage periods")
	}
	if _, err := r.get(ctx, id); err != nil {
		return model.Period{}, err
	}
	if err := r.Periods.EndEarly(ctx, id, clock(r.Now)); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.Period{}, errf(KindConflict, "period %d has already been ended", id)
		}
		return model.Period{}, err
	}
	return r.get(ctx, id)
}

// Delete removes a period.
func (r *PeriodRegistry) Delete(ctx context.Context, who Principal, id uint64) error {
	if !who.isStaff() {
		return errf(KindForbidden, "only moderators and administrators manage periods")
	}
	if err := r.Periods.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errf(KindNotFound, "period %d not found", id)
		}
		return err
	}
	return nil
}

func (r *PeriodRegistry) get(ctx context.Context, id uint64) (model.Period, error) {
	p, err := r.Periods.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return p, errf(KindNotFound, "period %d not found", id)
	}
	return p, err
}
