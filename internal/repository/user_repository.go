package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/utils"
)

// UserRepo persists accounts and owns the token ledger columns.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NewUser carries the fields required to create an account.
type NewUser struct {
	Email       string
	Password    string
	Name        string
	Phone       *string
	Role        model.Role
	Tokens      int
	CompanyName *string
	CompanyINN  *string
}

const userColumns = `id, email, password_hash, name, phone, role, tokens, company_name, company_inn,
	subscription_type, subscription_start, subscription_end, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.Role, &u.Tokens,
		&u.CompanyName, &u.CompanyINN, &u.SubscriptionType, &u.SubscriptionStart, &u.SubscriptionEnd,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create hashes the password and inserts the user with its starting
// balance. It returns ErrEmailExists for a duplicate email.
func (r *UserRepo) Create(ctx context.Context, in NewUser, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	hash, err := utils.HashPassword(in.Password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, name, phone, role, tokens, company_name, company_inn)
		 VALUES (?,?,?,?,?,?,?,?)`,
		email, hash, in.Name, in.Phone, in.Role, in.Tokens, in.CompanyName, in.CompanyINN)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	return u, notFound(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	return u, notFound(err)
}

// CreditTx adds amount tokens to the user's balance inside the caller's
// transaction. Every reward is paid alongside the write that earns it.
func (r *UserRepo) CreditTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int) error {
	res, err := tx.ExecContext(ctx, "UPDATE users SET tokens = tokens + ? WHERE id = ?", amount, userID)
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

// DebitTx removes amount tokens inside the caller's transaction. The
// guard in the WHERE clause makes the check and the write one atomic
// statement; ErrInsufficientTokens means nothing was changed.
func (r *UserRepo) DebitTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET tokens = tokens - ? WHERE id = ? AND tokens >= ?", amount, userID, amount)
	if err != nil {
		return err
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientTokens
	}
	return nil
}

// SetSubscription records a purchased company subscription window.
func (r *UserRepo) SetSubscription(ctx context.Context, userID uint64, plan model.SubscriptionPlan, start, end time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET subscription_type=?, subscription_start=?, subscription_end=? WHERE id=?",
		string(plan), start, end, userID)
	return err
}

// UpdateProfile changes the editable profile fields. Nil leaves a field
// untouched.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID uint64, name, phone *string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name = COALESCE(?, name), phone = COALESCE(?, phone) WHERE id=?",
		name, phone, userID)
	return err
}

// Stats counts the user's related rows for the profile page.
func (r *UserRepo) Stats(ctx context.Context, userID uint64) (model.UserStats, error) {
	var s model.UserStats
	err := r.DB.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM projects WHERE author_id = ?),
		(SELECT COUNT(*) FROM votes WHERE user_id = ?),
		(SELECT COUNT(*) FROM comments WHERE user_id = ?),
		(SELECT COUNT(*) FROM contributions WHERE user_id = ?)`,
		userID, userID, userID, userID).Scan(&s.Projects, &s.Votes, &s.Comments, &s.Contributions)
	return s, err
}
