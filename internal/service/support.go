package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/repository"
)

const (
	minSupportMessageLen  = 2
	defaultTicketCategory = "GENERAL"
	supportFallbackAnswer = "Our assistant is unavailable right now. Your message has been passed to the support team and an administrator will reply here."
)

// SupportService runs the support desk: an AI-first chat with hand-off to
// staff.
type SupportService struct {
	Tickets   SupportStore
	Users     UserStore
	Advisor   Advisor
	AITimeout time.Duration
	Log       *slog.Logger
	NewID     func() string
}

func NewSupportService(tickets SupportStore, users UserStore, advisor Advisor, aiTimeout time.Duration, log *slog.Logger) *SupportService {
	return &SupportService{Tickets: tickets, Users: users, Advisor: advisor, AITimeout: aiTimeout, Log: log, NewID: uuid.NewString}
}

// ChatResult is the ticket after a chat exchange plus the reply just given.
type ChatResult struct {
	Ticket     model.SupportTicket `json:"ticket"`
	Answer     string              `json:"aiResponse"`
	NeedsAdmin bool                `json:"needsAdmin"`
	Category   string              `json:"category"`
}

// Chat records a visitor message and the assistant's reply. who may be nil
// for anonymous visitors. An empty ticketID opens a new ticket.
func (s *SupportService) Chat(ctx context.Context, who *Principal, ticketID, message string, history []model.ChatTurn) (ChatResult, error) {
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) < minSupportMessageLen {
		return ChatResult{}, errf(KindInvalid, "message is too short")
	}
	if len(history) > maxChatHistory {
		history = history[len(history)-maxChatHistory:]
	}

	var userName string
	if ticketID == "" {
		t := model.SupportTicket{Status: model.TicketOpen, Category: defaultTicketCategory}
		if who != nil && s.Users != nil {
			if u, err := s.Users.GetByID(ctx, who.ID); err == nil {
				id, email, name := u.ID, u.Email, u.Name
				t.UserID, t.UserEmail, t.UserName = &id, &email, &name
				userName = u.Name
			}
		}
		t.ID = s.newID()
		if err := s.Tickets.CreateTicket(ctx, &t); err != nil {
			return ChatResult{}, err
		}
		ticketID = t.ID
	} else {
		t, err := s.ticket(ctx, ticketID)
		if err != nil {
			return ChatResult{}, err
		}
		if t.UserName != nil {
			userName = *t.UserName
		}
	}

	if err := s.Tickets.AddMessage(ctx, ticketID, model.SenderUser, message); err != nil {
		return ChatResult{}, err
	}

	reply := s.ask(ctx, message, history, userName)
	if err := s.Tickets.AddMessage(ctx, ticketID, model.SenderAI, reply.Answer); err != nil {
		return ChatResult{}, err
	}
	patch := repository.TicketPatch{Category: &reply.Category}
	if reply.NeedsAdmin {
		yes := true
		patch.NeedsAdmin = &yes
	}
	if err := s.Tickets.UpdateTicket(ctx, ticketID, patch); err != nil {
		return ChatResult{}, err
	}

	t, err := s.ticket(ctx, ticketID)
	if err != nil {
		return ChatResult{}, err
	}
	return ChatResult{Ticket: t, Answer: reply.Answer, NeedsAdmin: reply.NeedsAdmin, Category: reply.Category}, nil
}

// ask returns the assistant's reply, or a fixed hand-off answer flagged
// for an administrator when the assistant fails.
func (s *SupportService) ask(ctx context.Context, message string, history []model.ChatTurn, userName string) model.SupportReply {
	fallback := model.SupportReply{Answer: supportFallbackAnswer, NeedsAdmin: true, Category: defaultTicketCategory}
	if s.Advisor == nil {
		return fallback
	}
	timeout := s.AITimeout
	if timeout <= 0 {
		timeout = defaultAITimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	r, err := s.Advisor.SupportChat(actx, message, history, userName)
	if err != nil {
		logger(s.Log).Warn("support assistant failed; handing off", "kind", KindExternalServiceUnavailable, "err", err)
		return fallback
	}
	if r.Category == "" {
		r.Category = defaultTicketCategory
	}
	return r
}

// GetTicket returns a ticket with its messages.
func (s *SupportService) GetTicket(ctx context.Context, id string) (model.SupportTicket, error) {
	return s.ticket(ctx, id)
}

// ListTickets lists tickets for staff.
func (s *SupportService) ListTickets(ctx context.Context, who Principal, status model.TicketStatus, needsAdminOnly bool) ([]model.SupportTicket, error) {
	if !who.isStaff() {
		return nil, errf(KindForbidden, "only staff can list support tickets")
	}
	if status != "" && status != model.TicketOpen && status != model.TicketClosed {
		return nil, errf(KindInvalid, "status must be OPEN or CLOSED")
	}
	return s.Tickets.ListTickets(ctx, repository.TicketFilter{Status: status, NeedsAdminOnly: needsAdminOnly})
}

// AdminAction lets staff reply to, close or reopen a ticket.
func (s *SupportService) AdminAction(ctx context.Context, who Principal, id, action, message string) (model.SupportTicket, error) {
	if !who.isStaff() {
		return model.SupportTicket{}, errf(KindForbidden, "only staff can act on support tickets")
	}
	if _, err := s.ticket(ctx, id); err != nil {
		return model.SupportTicket{}, err
	}
	no := false
	switch action {
	case "reply":
		message = strings.TrimSpace(message)
		if message == "" {
			return model.SupportTicket{}, errf(KindInvalid, "message is required to reply")
		}
		if err := s.Tickets.AddMessage(ctx, id, model.SenderAdmin, message); err != nil {
			return model.SupportTicket{}, err
		}
		if err := s.Tickets.UpdateTicket(ctx, id, repository.TicketPatch{NeedsAdmin: &no}); err != nil {
			return model.SupportTicket{}, err
		}
	case "close":
		closed := model.TicketClosed
		if err := s.Tickets.UpdateTicket(ctx, id, repository.TicketPatch{Status: &closed, NeedsAdmin: &no}); err != nil {
			return model.SupportTicket{}, err
		}
	case "reopen":
		open := model.TicketOpen
		if err := s.Tickets.UpdateTicket(ctx, id, repository.TicketPatch{Status: &open}); err != nil {
			return model.SupportTicket{}, err
		}
	default:
		return model.SupportTicket{}, errf(KindInvalid, "action must be reply, close or reopen")
	}
	return s.ticket(ctx, id)
}

func (s *SupportService) ticket(ctx context.Context, id string) (model.SupportTicket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.SupportTicket{}, errf(KindNotFound, "ticket %q not found", id)
	}
	t, err := s.Tickets.GetTicket(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return t, errf(KindNotFound, "ticket %q not found", id)
	}
	return t, err
}

func (s *SupportService) newID() string {
	if s.NewID == nil {
		return uuid.NewString()
	}
	return s.NewID()
}
