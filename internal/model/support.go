package model

import "time"

// TicketStatus is the state of a support ticket.
type TicketStatus string

const (
	TicketOpen   TicketStatus = "OPEN"
	TicketClosed TicketStatus = "CLOSED"
)

// SupportTicket is a row of `support_tickets`. ID is a random UUID so
// that anonymous visitors can resume their conversation without being
// able to enumerate other tickets.
type SupportTicket struct {
	ID         string           `json:"id"`
	UserID     *uint64          `json:"userId,omitempty"`
	UserEmail  *string          `json:"userEmail,omitempty"`
	UserName   *string          `json:"userName,omitempty"`
	Status     TicketStatus     `json:"status"`
	Category   string           `json:"category"`
	NeedsAdmin bool             `json:"needsAdmin"`
	Messages   []SupportMessage `json:"messages"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// Message senders.
const (
	SenderUser  = "user"
	SenderAI    = "ai"
	SenderAdmin = "admin"
)

// SupportMessage is a row of `support_messages`.
type SupportMessage struct {
	ID        uint64    `json:"id"`
	TicketID  string    `json:"ticketId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// SupportReply is the AI chatbot answer for a support message.
type SupportReply struct {
	Answer     string `json:"answer"`
	NeedsAdmin bool   `json:"needsAdmin"`
	Category   string `json:"category"`
}
