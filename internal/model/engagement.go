package model

import "time"

// Vote is a row of the `votes` table. At most one vote exists per
// (UserID, ProjectID) pair; votes are immutable once cast.
type Vote struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"userId"`
	ProjectID uint64    `json:"projectId"`
	IsFor     bool      `json:"isFor"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is a row of the `comments` table.
type Comment struct {
	ID              uint64    `json:"id"`
	ProjectID       uint64    `json:"projectId"`
	UserID          uint64    `json:"userId"`
	UserName        string    `json:"userName,omitempty"`
	Content         string    `json:"content"`
	IsApproved      bool      `json:"isApproved"`
	AIModerated     bool      `json:"aiModerated"`
	AIToxicityScore *float64  `json:"aiToxicityScore,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// CommentVerdict is the AI moderation result for a comment.
type CommentVerdict struct {
	IsAppropriate bool     `json:"isAppropriate"`
	ToxicityScore float64  `json:"toxicityScore"`
	Reason        string   `json:"reason,omitempty"`
	Flags         []string `json:"flags,omitempty"`
}

// Approved applies the publication threshold to the verdict.
func (v CommentVerdict) Approved() bool { return v.IsAppropriate && v.ToxicityScore < 5 }

// ChatTurn is one message of a conversation history sent to the AI.
type ChatTurn struct {
	Role    string `json:"role"` // user | assistant
	Content string `json:"content"`
}
