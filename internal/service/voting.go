package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/queue"
	"github.com/iliyamo/civic-budget/internal/repository"
)

// VotingEngine validates and records votes.
type VotingEngine struct {
	Users    UserStore
	Projects ProjectStore
	Votes    VoteStore
	Events   EventPublisher
	Log      *slog.Logger
	Now      func() time.Time
}

func NewVotingEngine(users UserStore, projects ProjectStore, votes VoteStore, events EventPublisher, log *slog.Logger) *VotingEngine {
	return &VotingEngine{Users: users, Projects: projects, Votes: votes, Events: events, Log: log, Now: utcNow}
}

// VoteResult is the outcome of a successful vote.
type VoteResult struct {
	ProjectID    uint64 `json:"projectId"`
	IsFor        bool   `json:"isFor"`
	VotesFor     int    `json:"votesFor"`
	VotesAgainst int    `json:"votesAgainst"`
	TokensLeft   int    `json:"tokensLeft"`
}

// CastVote checks, in order: the voter exists, a company voter has an
// active subscription, the voter holds at least one token, the project
// exists, the project is in VOTING, and the voter has not voted on it yet.
// The first failing check decides the error. On success the vote row, the
// token debit and the counter increment are written as one transaction.
func (e *VotingEngine) CastVote(ctx context.Context, who Principal, projectID uint64, isFor bool) (VoteResult, error) {
	now := clock(e.Now)

	u, err := e.Users.GetByID(ctx, who.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return VoteResult{}, errf(KindNotFound, "user %d not found", who.ID)
		}
		return VoteResult{}, err
	}
	if !HasActiveSubscription(u, now) {
		return VoteResult{}, errf(KindNeedsSubscription, "an active company subscription is required to vote")
	}
	if _, err := ApplyDelta(u.Tokens, -CostVote); err != nil {
		return VoteResult{}, errf(KindInsufficientTokens, "not enough tokens to vote: balance is %d", u.Tokens)
	}

	p, err := e.Projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return VoteResult{}, errf(KindNotFound, "project %d not found", projectID)
		}
		return VoteResult{}, err
	}
	if p.Status != model.StatusVoting {
		return VoteResult{}, errf(KindVotingNotOpen, "voting is not open for this project (status %s)", p.Status)
	}

	voted, err := e.Votes.Exists(ctx, u.ID, projectID)
	if err != nil {
		return VoteResult{}, err
	}
	if voted {
		return VoteResult{}, errf(KindDuplicateVote, "you have already voted on this project")
	}

	tally, err := e.Votes.Cast(ctx, u.ID, projectID, isFor, CostVote)
	switch {
	case errors.Is(err, repository.ErrDuplicateVote):
		return VoteResult{}, errf(KindDuplicateVote, "you have already voted on this project")
	case errors.Is(err, repository.ErrInsufficientTokens):
		return VoteResult{}, errf(KindInsufficientTokens, "not enough tokens to vote")
	case errors.Is(err, repository.ErrStatusChanged):
		return VoteResult{}, errf(KindVotingNotOpen, "voting closed for this project")
	case err != nil:
		return VoteResult{}, err
	}

	ev := queue.NewEvent(queue.EventVoteCast)
	ev.ProjectID, ev.ProjectTitle, ev.AuthorID, ev.ActorID = p.ID, p.Title, p.AuthorID, u.ID
	ev.IsFor, ev.VotesFor, ev.VotesAgainst = &isFor, tally.VotesFor, tally.VotesAgainst
	publish(ctx, e.Events, logger(e.Log), ev)

	return VoteResult{
		ProjectID:    projectID,
		IsFor:        isFor,
		VotesFor:     tally.VotesFor,
		VotesAgainst: tally.VotesAgainst,
		TokensLeft:   tally.TokensLeft,
	}, nil
}
