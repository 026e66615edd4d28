package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ModerationNotifier is told about moderation decisions after they have
// been recorded in the activity log.
type ModerationNotifier interface {
	NotifyModeration(ctx context.Context, ev Event) error
}

// Consumer reads domain events from the queue, appends one line per event
// to the activity log and forwards moderation events to Notifier.
type Consumer struct {
	URL         string
	Queue       string
	ActivityLog string
	Notifier    ModerationNotifier
	Log         *slog.Logger
}

// Run connects to RabbitMQ and consumes until ctx is cancelled. Broker
// failures are retried with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	log := c.logger()
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warn("activity consumer: dial failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("activity consumer: consume loop ended; reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger().Warn("activity consumer: set QoS failed", "err", err)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(ctx, d.Body); err != nil {
				c.logger().Error("activity consumer: handle message failed", "message_id", d.MessageId, "err", err)
				// reject without requeue to avoid tight redelivery loops
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle processes one message body. A failing notifier is logged but
// does not fail the message: the activity line is already written.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event has no type")
	}
	if err := c.appendLine(FormatActivity(ev)); err != nil {
		return err
	}
	if ev.Type == EventProjectModerated && c.Notifier != nil {
		if err := c.Notifier.NotifyModeration(ctx, ev); err != nil {
			c.logger().Warn("activity consumer: notify author failed", "project_id", ev.ProjectID, "err", err)
		}
	}
	return nil
}

func (c *Consumer) appendLine(line string) error {
	path := c.ActivityLog
	if path == "" {
		path = filepath.Join("logs", "activity.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open activity log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write activity log: %w", err)
	}
	return nil
}

// FormatActivity renders ev as a single newline-terminated log line.
func FormatActivity(ev Event) string {
	ts := ev.OccurredAt.UTC().Format(time.RFC3339)
	var b strings.Builder
	switch ev.Type {
	case EventVoteCast:
		side := "against"
		if ev.IsFor != nil && *ev.IsFor {
			side = "for"
		}
		fmt.Fprintf(&b, "[%s] Vote cast | project_id=%d | user_id=%d | side=%s | votes_for=%d | votes_against=%d",
			ts, ev.ProjectID, ev.ActorID, side, ev.VotesFor, ev.VotesAgainst)
	case EventProjectSubmitted:
		fmt.Fprintf(&b, "[%s] Project submitted | project_id=%d | author_id=%d | title=%q | status=%s",
			ts, ev.ProjectID, ev.AuthorID, ev.ProjectTitle, ev.Status)
	case EventProjectModerated:
		fmt.Fprintf(&b, "[%s] Project moderated | project_id=%d | moderator_id=%d | action=%s | status=%s",
			ts, ev.ProjectID, ev.ActorID, ev.Action, ev.Status)
		if ev.Notes != "" {
			fmt.Fprintf(&b, " | notes=%q", ev.Notes)
		}
	default:
		fmt.Fprintf(&b, "[%s] %s | project_id=%d | actor_id=%d", ts, ev.Type, ev.ProjectID, ev.ActorID)
	}
	b.WriteByte('\n')
	return b.String()
}

func (c *Consumer) logger() *slog.Logger {
	if c.Log == nil {
		return slog.Default()
	}
	return c.Log
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
