package model

import "time"

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	StatusDraft              ProjectStatus = "DRAFT"
	StatusPendingModeration  ProjectStatus = "PENDING_MODERATION"
	StatusModerationRejected ProjectStatus = "MODERATION_REJECTED"
	StatusApproved           ProjectStatus = "APPROVED"
	StatusVoting             ProjectStatus = "VOTING"
	StatusFundraising        ProjectStatus = "FUNDRAISING"
	StatusInProgress         ProjectStatus = "IN_PROGRESS"
	StatusCompleted          ProjectStatus = "COMPLETED"
	StatusCancelled          ProjectStatus = "CANCELLED"
)

// AllStatuses lists every lifecycle state in declaration order.
var AllStatuses = []ProjectStatus{
	StatusDraft,
	StatusPendingModeration,
	StatusModerationRejected,
	StatusApproved,
	StatusVoting,
	StatusFundraising,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

// PublicStatuses are the states listed on the public project feed when
// no explicit status filter is given.
var PublicStatuses = []ProjectStatus{
	StatusApproved,
	StatusVoting,
	StatusFundraising,
	StatusInProgress,
	StatusCompleted,
}

// Valid reports whether s is a known status.
func (s ProjectStatus) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no moderation action can move the project on.
func (s ProjectStatus) Terminal() bool {
	return s == StatusModerationRejected || s == StatusCompleted || s == StatusCancelled
}

// Category is the fixed set of project topics.
type Category string

const (
	CategoryInfrastructure Category = "INFRASTRUCTURE"
	CategoryBeautification Category = "BEAUTIFICATION"
	CategorySocial         Category = "SOCIAL"
	CategoryCommercial     Category = "COMMERCIAL"
	CategoryEnvironmental  Category = "ENVIRONMENTAL"
	CategoryCultural       Category = "CULTURAL"
	CategorySports         Category = "SPORTS"
	CategoryEducation      Category = "EDUCATION"
	CategoryHealthcare     Category = "HEALTHCARE"
	CategoryOther          Category = "OTHER"
)

var categories = map[Category]bool{
	CategoryInfrastructure: true,
	CategoryBeautification: true,
	CategorySocial:         true,
	CategoryCommercial:     true,
	CategoryEnvironmental:  true,
	CategoryCultural:       true,
	CategorySports:         true,
	CategoryEducation:      true,
	CategoryHealthcare:     true,
	CategoryOther:          true,
}

// Valid reports whether c is one of the ten known categories.
func (c Category) Valid() bool { return categories[c] }

// Project represents a row of the `projects` table.
//
// VotesFor and VotesAgainst are denormalised counters maintained only by
// the vote transaction; their sum equals the number of vote rows for the
// project. The AI* fields are written only by the advisory client and
// stay nil until an analysis has been stored.
type Project struct {
	ID                     uint64        `json:"id"`
	AuthorID               uint64        `json:"authorId"`
	AuthorName             string        `json:"authorName,omitempty"`
	Title                  string        `json:"title"`
	Description            string        `json:"description"`
	Category               Category      `json:"category"`
	Status                 ProjectStatus `json:"status"`
	EstimatedBudget        *float64      `json:"estimatedBudget,omitempty"`
	Location               *string       `json:"location,omitempty"`
	Timeline               *string       `json:"timeline,omitempty"`
	Benefits               *string       `json:"benefits,omitempty"`
	TargetAudience         *string       `json:"targetAudience,omitempty"`
	IsCompanyProject       bool          `json:"isCompanyProject"`
	VotesFor               int           `json:"votesFor"`
	VotesAgainst           int           `json:"votesAgainst"`
	FundraisingGoal        *float64      `json:"fundraisingGoal,omitempty"`
	FundraisingRaised      *float64      `json:"fundraisingRaised,omitempty"`
	ModerationNotes        *string       `json:"moderationNotes,omitempty"`
	ModeratedAt            *time.Time    `json:"moderatedAt,omitempty"`
	ModeratedBy            *uint64       `json:"moderatedBy,omitempty"`
	AIAnalysis             *string       `json:"aiAnalysis,omitempty"`
	AIPros                 StringList    `json:"aiPros,omitempty"`
	AICons                 StringList    `json:"aiCons,omitempty"`
	AIRisks                StringList    `json:"aiRisks,omitempty"`
	AIInvestmentAdvantages StringList    `json:"aiInvestmentAdvantages,omitempty"`
	AIEstimatedBudget      *float64      `json:"aiEstimatedBudget,omitempty"`
	CreatedAt              time.Time     `json:"createdAt"`
	UpdatedAt              time.Time     `json:"updatedAt"`
}

// ProjectCounts carries the related-row counts shown on the owner's list.
type ProjectCounts struct {
	Votes         int `json:"votes"`
	Comments      int `json:"comments"`
	Contributions int `json:"contributions"`
}

// ProjectSummary is a project with its related-row counts.
type ProjectSummary struct {
	Project
	Counts ProjectCounts `json:"_count"`
}

// Analysis is the structured project assessment produced by the AI
// advisory collaborator.
type Analysis struct {
	Summary              string   `json:"summary"`
	Pros                 []string `json:"pros"`
	Cons                 []string `json:"cons"`
	Risks                []string `json:"risks"`
	InvestmentAdvantages []string `json:"investmentAdvantages"`
	EstimatedBudget      *float64 `json:"estimatedBudget,omitempty"`
}

// StatusChange is a row of `project_status_history`.
type StatusChange struct {
	ID         uint64        `json:"id"`
	ProjectID  uint64        `json:"projectId"`
	FromStatus ProjectStatus `json:"fromStatus"`
	ToStatus   ProjectStatus `json:"toStatus"`
	Action     string        `json:"action"`
	Notes      *string       `json:"notes,omitempty"`
	ChangedBy  uint64        `json:"changedBy"`
	CreatedAt  time.Time     `json:"createdAt"`
}
