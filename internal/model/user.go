package model

import "time"

// Role is the access role carried by a user account and by the
// access token issued for it.
type Role string

const (
	RoleCitizen   Role = "CITIZEN"
	RoleCompany   Role = "COMPANY"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
	RoleCurator   Role = "CURATOR"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleCompany, RoleModerator, RoleAdmin, RoleCurator:
		return true
	}
	return false
}

// IsStaff reports whether the role may act on the moderation queue.
func (r Role) IsStaff() bool { return r == RoleModerator || r == RoleAdmin }

// SubscriptionPlan names a purchasable company subscription length.
type SubscriptionPlan string

const (
	PlanOneMonth    SubscriptionPlan = "1_month"
	PlanThreeMonths SubscriptionPlan = "3_months"
	PlanSixMonths   SubscriptionPlan = "6_months"
	PlanOneYear     SubscriptionPlan = "1_year"
)

// Months returns the number of calendar months the plan covers, or zero
// for an unknown plan.
func (p SubscriptionPlan) Months() int {
	switch p {
	case PlanOneMonth:
		return 1
	case PlanThreeMonths:
		return 3
	case PlanSixMonths:
		return 6
	case PlanOneYear:
		return 12
	}
	return 0
}

// User represents a row of the `users` table.
//
// Tokens is the spendable vote balance and is never negative. The
// subscription window is only meaningful for COMPANY accounts; both
// ends are nil until a subscription has been purchased.
type User struct {
	ID                uint64     `json:"id"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	Name              string     `json:"name"`
	Phone             *string    `json:"phone,omitempty"`
	Role              Role       `json:"role"`
	Tokens            int        `json:"tokens"`
	CompanyName       *string    `json:"companyName,omitempty"`
	CompanyINN        *string    `json:"companyInn,omitempty"`
	SubscriptionType  *string    `json:"subscriptionType,omitempty"`
	SubscriptionStart *time.Time `json:"subscriptionStart,omitempty"`
	SubscriptionEnd   *time.Time `json:"subscriptionEnd,omitempty"`
	IsActive          bool       `json:"isActive"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// SubscriptionActiveAt reports whether the subscription window covers t.
// The window is half-open: start <= t < end.
func (u User) SubscriptionActiveAt(t time.Time) bool {
	if u.SubscriptionStart == nil || u.SubscriptionEnd == nil {
		return false
	}
	return !t.Before(*u.SubscriptionStart) && t.Before(*u.SubscriptionEnd)
}

// UserStats holds per-user activity counts shown on the profile page.
type UserStats struct {
	Projects      int `json:"projects"`
	Votes         int `json:"votes"`
	Comments      int `json:"comments"`
	Contributions int `json:"contributions"`
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
