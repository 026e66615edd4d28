// Package queue carries domain events over RabbitMQ: a publisher used by
// the service layer after commits, and a consumer that records activity
// and notifies project authors.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event; it doubles as the AMQP message type.
type EventType string

const (
	EventVoteCast         EventType = "vote.cast"
	EventProjectSubmitted EventType = "project.submitted"
	EventProjectModerated EventType = "project.moderated"
)

// Event is the payload published for every domain event. Fields that do
// not apply to a type are left zero and omitted from the JSON.
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	OccurredAt   time.Time `json:"occurred_at"`
	ProjectID    uint64    `json:"project_id"`
	ProjectTitle string    `json:"project_title,omitempty"`
	AuthorID     uint64    `json:"author_id,omitempty"`
	ActorID      uint64    `json:"actor_id"`
	Action       string    `json:"action,omitempty"`
	Status       string    `json:"status,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	IsFor        *bool     `json:"is_for,omitempty"`
	VotesFor     int       `json:"votes_for,omitempty"`
	VotesAgainst int       `json:"votes_against,omitempty"`
}

// NewEvent stamps a fresh id and the current UTC time.
func NewEvent(t EventType) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: time.Now().UTC()}
}
