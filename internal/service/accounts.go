package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/repository"
)

// AccountService handles registration, profiles and company subscriptions.
type AccountService struct {
	Users      UserStore
	BcryptCost int
	Now        func() time.Time
}

func NewAccountService(users UserStore, bcryptCost int) *AccountService {
	return &AccountService{Users: users, BcryptCost: bcryptCost, Now: utcNow}
}

// Registration is the input of Register.
type Registration struct {
	Email       string
	Password    string
	Name        string
	Phone       *string
	Role        model.Role
	CompanyName *string
	CompanyINN  *string
}

// Register validates and creates a CITIZEN or COMPANY account with the
// starting token grant.
func (s *AccountService) Register(ctx context.Context, in Registration) (model.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if in.Role == "" {
		in.Role = model.RoleCitizen
	}
	if _, err := mail.ParseAddress(in.Email); err != nil || in.Email == "" {
		return model.User{}, errf(KindInvalid, "a valid email is required")
	}
	if utf8.RuneCountInString(in.Password) < 6 {
		return model.User{}, errf(KindInvalid, "password must be at least 6 characters")
	}
	if utf8.RuneCountInString(in.Name) < 2 {
		return model.User{}, errf(KindInvalid, "name must be at least 2 characters")
	}
	if in.Role != model.RoleCitizen && in.Role != model.RoleCompany {
		return model.User{}, errf(KindInvalid, "role must be CITIZEN or COMPANY")
	}
	if in.Role == model.RoleCompany && (blank(in.CompanyName) || blank(in.CompanyINN)) {
		return model.User{}, errf(KindInvalid, "companies must provide companyName and companyInn")
	}

	id, err := s.Users.Create(ctx, repository.NewUser{
		Email:       in.Email,
		Password:    in.Password,
		Name:        in.Name,
		Phone:       in.Phone,
		Role:        in.Role,
		Tokens:      RewardRegistration,
		CompanyName: in.CompanyName,
		CompanyINN:  in.CompanyINN,
	}, s.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.User{}, errf(KindConflict, "email already registered")
		}
		return model.User{}, err
	}
	return s.Users.GetByID(ctx, id)
}

// Profile is a user with activity counts and subscription state.
type Profile struct {
	User         model.User         `json:"user"`
	Stats        model.UserStats    `json:"_count"`
	Subscription SubscriptionStatus `json:"subscription"`
}

// Profile loads the caller's profile.
func (s *AccountService) Profile(ctx context.Context, who Principal) (Profile, error) {
	u, err := s.user(ctx, who.ID)
	if err != nil {
		return Profile{}, err
	}
	stats, err := s.Users.Stats(ctx, who.ID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{User: u, Stats: stats, Subscription: subscriptionOf(u, clock(s.Now))}, nil
}

// UpdateProfile changes the caller's name and/or phone.
func (s *AccountService) UpdateProfile(ctx context.Context, who Principal, name, phone *string) (model.User, error) {
	if name != nil {
		n := strings.TrimSpace(*name)
		if utf8.RuneCountInString(n) < 2 {
			return model.User{}, errf(KindInvalid, "name must be at least 2 characters")
		}
		name = &n
	}
	if err := s.Users.UpdateProfile(ctx, who.ID, name, phone); err != nil {
		return model.User{}, err
	}
	return s.user(ctx, who.ID)
}

// SubscriptionStatus describes a company subscription window.
type SubscriptionStatus struct {
	Active    bool       `json:"active"`
	Type      *string    `json:"type,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

func subscriptionOf(u model.User, now time.Time) SubscriptionStatus {
	return SubscriptionStatus{
		Active:    u.SubscriptionActiveAt(now),
		Type:      u.SubscriptionType,
		StartDate: u.SubscriptionStart,
		EndDate:   u.SubscriptionEnd,
	}
}

// HasActiveSubscription is the single gate for company accounts: a
// COMPANY user may vote, create or submit projects only while its
// subscription window covers now. Other roles always pass.
func HasActiveSubscription(u model.User, now time.Time) bool {
	return u.Role != model.RoleCompany || u.SubscriptionActiveAt(now)
}

// PurchaseSubscription starts a subscription window for a company now.
func (s *AccountService) PurchaseSubscription(ctx context.Context, who Principal, plan model.SubscriptionPlan) (SubscriptionStatus, error) {
	if who.Role != model.RoleCompany {
		return SubscriptionStatus{}, errf(KindForbidden, "subscriptions are available to companies only")
	}
	months := plan.Months()
	if months == 0 {
		return SubscriptionStatus{}, errf(KindInvalid, "unknown subscription plan %q", plan)
	}
	start := clock(s.Now)
	end := start.AddDate(0, months, 0)
	if err := s.Users.SetSubscription(ctx, who.ID, plan, start, end); err != nil {
		return SubscriptionStatus{}, err
	}
	p := string(plan)
	return SubscriptionStatus{Active: true, Type: &p, StartDate: &start, EndDate: &end}, nil
}

// SubscriptionStatus reports the caller's subscription state.
func (s *AccountService) SubscriptionStatus(ctx context.Context, who Principal) (SubscriptionStatus, error) {
	u, err := s.user(ctx, who.ID)
	if err != nil {
		return SubscriptionStatus{}, err
	}
	return subscriptionOf(u, clock(s.Now)), nil
}

// SeedAdmin creates the bootstrap staff account if no user with that email
// exists. role must be MODERATOR or ADMIN; empty means MODERATOR. It
// reports whether an account was created.
func (s *AccountService) SeedAdmin(ctx context.Context, email, password, name string, role model.Role, tokens int) (bool, error) {
	if role == "" {
		role = model.RoleModerator
	}
	if !role.IsStaff() {
		return false, errf(KindInvalid, "seed role must be MODERATOR or ADMIN, got %q", role)
	}
	_, err := s.Users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	_, err = s.Users.Create(ctx, repository.NewUser{
		Email:    email,
		Password: password,
		Name:     name,
		Role:     role,
		Tokens:   tokens,
	}, s.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return false, nil
	}
	return err == nil, err
}

func (s *AccountService) user(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.Users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return u, errf(KindNotFound, "user %d not found", id)
	}
	return u, err
}

func blank(s *string) bool { return s == nil || strings.TrimSpace(*s) == "" }
