// Package notify sends e-mail to users about things that happened to them.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"strings"

	mail "github.com/go-mail/mail/v2"

	"github.com/iliyamo/civic-budget/internal/config"
	"github.com/iliyamo/civic-budget/internal/queue"
)

// Sender delivers one message. *mail.Dialer implements it.
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

// Mailer composes and sends notification mail.
type Mailer struct {
	From   string
	Sender Sender
}

// NewMailer returns a Mailer for cfg, or nil when mail is not configured.
func NewMailer(cfg config.MailConfig) *Mailer {
	if !cfg.Enabled() {
		return nil
	}
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify,
	}
	return &Mailer{From: cfg.From, Sender: d}
}

// Send mails an HTML body to the recipients. No recipients is a no-op.
func (m *Mailer) Send(to []string, subject, body string) error {
	if len(to) == 0 {
		return nil
	}
	msg := mail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)
	return m.Sender.DialAndSend(msg)
}

// Decision describes a moderation outcome to report to a project author.
type Decision struct {
	ProjectID    uint64
	ProjectTitle string
	Action       string
	Status       string
	Notes        string
}

// ModerationDecision tells an author what a moderator did to their project.
func (m *Mailer) ModerationDecision(to string, d Decision) error {
	subject, body := moderationMail(d)
	return m.Send([]string{to}, subject, body)
}

var actionVerbs = map[string]string{
	"approve":      "approved",
	"reject":       "rejected",
	"start_voting": "opened for voting",
	"close":        "closed",
}

func moderationMail(d Decision) (string, string) {
	verb, ok := actionVerbs[d.Action]
	if !ok {
		verb = "updated"
	}
	subject := fmt.Sprintf("Your project %q was %s", d.ProjectTitle, verb)

	var b strings.Builder
	fmt.Fprintf(&b, "<p>Your project <b>%s</b> (#%d) was %s by a moderator.</p>",
		html.EscapeString(d.ProjectTitle), d.ProjectID, verb)
	fmt.Fprintf(&b, "<p>Current status: %s</p>", html.EscapeString(d.Status))
	if d.Notes != "" {
		fmt.Fprintf(&b, "<p>Moderator notes: %s</p>", html.EscapeString(d.Notes))
	}
	return subject, b.String()
}

// EmailLookup resolves a user id to an e-mail address.
type EmailLookup func(ctx context.Context, userID uint64) (string, error)

// AuthorNotifier mails project authors when a moderator acts on their
// project. It is driven by the activity consumer.
type AuthorNotifier struct {
	Mailer *Mailer
	Email  EmailLookup
}

// NotifyModeration implements queue.ModerationNotifier.
func (n *AuthorNotifier) NotifyModeration(ctx context.Context, ev queue.Event) error {
	if n == nil || n.Mailer == nil || ev.AuthorID == 0 {
		return nil
	}
	to, err := n.Email(ctx, ev.AuthorID)
	if err != nil {
		return fmt.Errorf("lookup author %d: %w", ev.AuthorID, err)
	}
	return n.Mailer.ModerationDecision(to, Decision{
		ProjectID:    ev.ProjectID,
		ProjectTitle: ev.ProjectTitle,
		Action:       ev.Action,
		Status:       ev.Status,
		Notes:        ev.Notes,
	})
}
