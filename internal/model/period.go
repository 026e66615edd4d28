package model

import "time"

// PeriodType distinguishes submission windows from voting windows.
type PeriodType string

const (
	PeriodSubmission PeriodType = "SUBMISSION"
	PeriodVoting     PeriodType = "VOTING"
)

// Valid reports whether t is a known period type.
func (t PeriodType) Valid() bool { return t == PeriodSubmission || t == PeriodVoting }

// Period represents a row of the `periods` table: an administrator
// defined window during which project submission or voting is open.
//
// A period is open at instant t when IsActive is set, EndedEarly is not,
// and StartDate <= t <= EndDate.
type Period struct {
	ID          uint64     `json:"id"`
	Type        PeriodType `json:"type"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     time.Time  `json:"endDate"`
	IsActive    bool       `json:"isActive"`
	EndedEarly  bool       `json:"endedEarly"`
	CreatedBy   *uint64    `json:"createdBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// OpenAt reports whether the period accepts activity at t.
func (p Period) OpenAt(t time.Time) bool {
	return p.IsActive && !p.EndedEarly && !t.Before(p.StartDate) && !t.After(p.EndDate)
}

// ActivePeriods is the answer of the period registry. Next* are only set
// when no period of that type is currently open.
type ActivePeriods struct {
	Submission     *Period `json:"submission"`
	Voting         *Period `json:"voting"`
	NextSubmission *Period `json:"nextSubmission"`
	NextVoting     *Period `json:"nextVoting"`
}
