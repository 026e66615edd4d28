package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/civic-budget/internal/logging"
	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/queue"
	"github.com/iliyamo/civic-budget/internal/repository"
)

type votingFixture struct {
	users    *fakeUsers
	projects *fakeProjects
	votes    *fakeVotes
	events   *fakeEvents
	engine   *VotingEngine
}

func newVotingFixture(users ...model.User) *votingFixture {
	f := &votingFixture{users: newFakeUsers(users...), events: &fakeEvents{}}
	f.projects = newFakeProjects(f.users,
		model.Project{ID: 1, AuthorID: 9, Title: "Park benches", Status: model.StatusVoting},
		model.Project{ID: 2, AuthorID: 9, Title: "Bike lanes", Status: model.StatusApproved},
	)
	f.votes = newFakeVotes(f.users, f.projects)
	f.engine = NewVotingEngine(f.users, f.projects, f.votes, f.events, logging.Discard())
	f.engine.Now = fixedNow
	return f
}

func citizen(id uint64, tokens int) model.User {
	return model.User{ID: id, Email: "u@x.io", Name: "Citizen", Role: model.RoleCitizen, Tokens: tokens, IsActive: true}
}

func company(id uint64, tokens int, subscribed bool) model.User {
	u := model.User{ID: id, Email: "c@x.io", Name: "Company", Role: model.RoleCompany, Tokens: tokens, IsActive: true}
	if subscribed {
		start, end := t0.Add(-time.Hour), t0.Add(30*24*time.Hour)
		u.SubscriptionStart, u.SubscriptionEnd = &start, &end
	}
	return u
}

func TestCastVoteHappyPath(t *testing.T) {
	f := newVotingFixture(citizen(10, 5))

	res, err := f.engine.CastVote(context.Background(), Principal{ID: 10, Role: model.RoleCitizen}, 1, true)
	require.NoError(t, err)

	assert.Equal(t, VoteResult{ProjectID: 1, IsFor: true, VotesFor: 1, VotesAgainst: 0, TokensLeft: 4}, res)
	assert.Equal(t, 4, f.users.tokens(10))
	assert.Equal(t, []queue.EventType{queue.EventVoteCast}, f.events.types())
}

func TestCastVotePreconditionOrder(t *testing.T) {
	cases := []struct {
		name    string
		user    model.User
		project uint64
		voted   bool
		want    Kind
	}{
		{"unknown voter", citizen(99, 5), 1, false, KindNotFound},
		{"company without subscription, no tokens, closed project", company(10, 0, false), 2, false, KindNeedsSubscription},
		{"no tokens on a closed project", citizen(10, 0), 2, false, KindInsufficientTokens},
		{"no tokens on a missing project", citizen(10, 0), 404, false, KindInsufficientTokens},
		{"missing project", citizen(10, 3), 404, false, KindNotFound},
		{"project not in voting, already voted", citizen(10, 3), 2, true, KindVotingNotOpen},
		{"already voted", citizen(10, 3), 1, true, KindDuplicateVote},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newVotingFixture(tc.user)
			if tc.voted {
				f.votes.voted[[2]uint64{10, tc.project}] = true
			}
			who := Principal{ID: 10, Role: tc.user.Role}

			_, err := f.engine.CastVote(context.Background(), who, tc.project, true)
			require.Error(t, err)
			assert.Equal(t, tc.want, KindOf(err))
			assert.Zero(t, f.votes.calls, "nothing may be written after a failed check")
			assert.Empty(t, f.events.types())
		})
	}
}

func TestCastVoteSubscribedCompany(t *testing.T) {
	f := newVotingFixture(company(10, 2, true))
	_, err := f.engine.CastVote(context.Background(), Principal{ID: 10, Role: model.RoleCompany}, 1, false)
	require.NoError(t, err)
	p, _ := f.projects.GetByID(context.Background(), 1)
	assert.Equal(t, 1, p.VotesAgainst)
}

func TestCastVoteTwiceIsDuplicate(t *testing.T) {
	f := newVotingFixture(citizen(10, 5))
	who := Principal{ID: 10, Role: model.RoleCitizen}

	_, err := f.engine.CastVote(context.Background(), who, 1, true)
	require.NoError(t, err)
	_, err = f.engine.CastVote(context.Background(), who, 1, false)
	assert.True(t, IsKind(err, KindDuplicateVote))

	p, _ := f.projects.GetByID(context.Background(), 1)
	assert.Equal(t, 1, p.VotesFor+p.VotesAgainst)
	assert.Equal(t, 4, f.users.tokens(10))
}

func TestCastVoteMapsStoreRaces(t *testing.T) {
	cases := map[error]Kind{
		repository.ErrDuplicateVote:      KindDuplicateVote,
		repository.ErrInsufficientTokens: KindInsufficientTokens,
		repository.ErrStatusChanged:      KindVotingNotOpen,
	}
	for storeErr, want := range cases {
		f := newVotingFixture(citizen(10, 5))
		f.votes.castErr = storeErr
		_, err := f.engine.CastVote(context.Background(), Principal{ID: 10, Role: model.RoleCitizen}, 1, true)
		assert.Equal(t, want, KindOf(err), storeErr.Error())
	}

	f := newVotingFixture(citizen(10, 5))
	f.votes.castErr = errBoom
	_, err := f.engine.CastVote(context.Background(), Principal{ID: 10, Role: model.RoleCitizen}, 1, true)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, Kind(""), KindOf(err))
}

func TestCastVotePublishFailureIsIgnored(t *testing.T) {
	f := newVotingFixture(citizen(10, 5))
	f.events.err = errBoom
	_, err := f.engine.CastVote(context.Background(), Principal{ID: 10, Role: model.RoleCitizen}, 1, true)
	assert.NoError(t, err)
}
