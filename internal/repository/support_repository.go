package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/civic-budget/internal/model"
)

// SupportRepo persists support tickets and their messages.
type SupportRepo struct{ DB *sql.DB }

func NewSupportRepo(db *sql.DB) *SupportRepo { return &SupportRepo{DB: db} }

const ticketColumns = "id, user_id, user_email, user_name, status, category, needs_admin, created_at, updated_at"

func scanTicket(row interface{ Scan(...any) error }) (model.SupportTicket, error) {
	var t model.SupportTicket
	err := row.Scan(&t.ID, &t.UserID, &t.UserEmail, &t.UserName, &t.Status, &t.Category,
		&t.NeedsAdmin, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// CreateTicket inserts a ticket; t.ID must already be set.
func (r *SupportRepo) CreateTicket(ctx context.Context, t *model.SupportTicket) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO support_tickets (id, user_id, user_email, user_name, status, category)
		 VALUES (?,?,?,?,?,?)`,
		t.ID, t.UserID, t.UserEmail, t.UserName, t.Status, t.Category)
	return err
}

// GetTicket fetches a ticket together with its messages, oldest first.
func (r *SupportRepo) GetTicket(ctx context.Context, id string) (model.SupportTicket, error) {
	t, err := scanTicket(r.DB.QueryRowContext(ctx,
		"SELECT "+ticketColumns+" FROM support_tickets WHERE id=?", id))
	if err != nil {
		return t, notFound(err)
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, ticket_id, sender, content, created_at FROM support_messages WHERE ticket_id=? ORDER BY created_at, id", id)
	if err != nil {
		return t, err
	}
	defer rows.Close()
	t.Messages = []model.SupportMessage{}
	for rows.Next() {
		var m model.SupportMessage
		if err := rows.Scan(&m.ID, &m.TicketID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return t, err
		}
		t.Messages = append(t.Messages, m)
	}
	return t, rows.Err()
}

// AddMessage appends a message to the ticket.
func (r *SupportRepo) AddMessage(ctx context.Context, ticketID, sender, content string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO support_messages (ticket_id, sender, content) VALUES (?,?,?)", ticketID, sender, content)
	return err
}

// TicketPatch lists the mutable ticket fields. Nil means unchanged.
type TicketPatch struct {
	Status     *model.TicketStatus
	Category   *string
	NeedsAdmin *bool
}

// UpdateTicket applies patch and always bumps updated_at.
func (r *SupportRepo) UpdateTicket(ctx context.Context, id string, patch TicketPatch) error {
	sets := []string{"updated_at=UTC_TIMESTAMP()"}
	var args []any
	if patch.Status != nil {
		sets, args = append(sets, "status=?"), append(args, *patch.Status)
	}
	if patch.Category != nil {
		sets, args = append(sets, "category=?"), append(args, *patch.Category)
	}
	if patch.NeedsAdmin != nil {
		sets, args = append(sets, "needs_admin=?"), append(args, *patch.NeedsAdmin)
	}
	args = append(args, id)
	_, err := r.DB.ExecContext(ctx, "UPDATE support_tickets SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	return err
}

// TicketFilter narrows ListTickets.
type TicketFilter struct {
	Status         model.TicketStatus
	NeedsAdminOnly bool
}

// ListTickets returns tickets needing an admin first, then by recency.
// Messages are not loaded.
func (r *SupportRepo) ListTickets(ctx context.Context, f TicketFilter) ([]model.SupportTicket, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where, args = append(where, "status=?"), append(args, f.Status)
	}
	if f.NeedsAdminOnly {
		where = append(where, "needs_admin=TRUE")
	}
	q := "SELECT " + ticketColumns + " FROM support_tickets"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, q+" ORDER BY needs_admin DESC, updated_at DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.SupportTicket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
