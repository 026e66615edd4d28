package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/civic-budget/internal/model"
)

var periodCols = []string{
	"id", "type", "title", "description", "start_date", "end_date",
	"is_active", "ended_early", "created_by", "created_at",
}

func TestFindOpen(t *testing.T) {
	db, mock := newMock(t)
	r := NewPeriodRepo(db)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	start, end := now.AddDate(0, 0, -3), now.AddDate(0, 0, 4)

	mock.ExpectQuery(q("start_date<=? AND end_date>=?")).
		WithArgs(string(model.PeriodVoting), now, now).
		WillReturnRows(sqlmock.NewRows(periodCols).
			AddRow(2, "VOTING", "Spring vote", nil, start, end, true, false, 1, start))

	p, err := r.FindOpen(context.Background(), model.PeriodVoting, now)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, uint64(2), p.ID)
	assert.Equal(t, model.PeriodVoting, p.Type)
	assert.True(t, p.OpenAt(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOpenNone(t *testing.T) {
	db, mock := newMock(t)
	r := NewPeriodRepo(db)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q("start_date<=? AND end_date>=?")).
		WithArgs(string(model.PeriodSubmission), now, now).
		WillReturnRows(sqlmock.NewRows(periodCols))

	p, err := r.FindOpen(context.Background(), model.PeriodSubmission, now)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindNextOrdersBySoonestStart(t *testing.T) {
	db, mock := newMock(t)
	r := NewPeriodRepo(db)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	start := now.AddDate(0, 1, 0)

	mock.ExpectQuery(q("start_date>?") + ".*" + q("ORDER BY start_date ASC, id ASC LIMIT 1")).
		WithArgs(string(model.PeriodVoting), now).
		WillReturnRows(sqlmock.NewRows(periodCols).
			AddRow(5, "VOTING", "Autumn vote", "city-wide", start, start.AddDate(0, 0, 14), true, false, nil, now))

	p, err := r.FindNext(context.Background(), model.PeriodVoting, now)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, start, p.StartDate)
	require.NotNil(t, p.Description)
	assert.Equal(t, "city-wide", *p.Description)
	assert.Nil(t, p.CreatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}
