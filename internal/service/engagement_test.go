package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/civic-budget/internal/logging"
	"github.com/iliyamo/civic-budget/internal/model"
)

func newCommentFixture(advisor Advisor) (*CommentService, *fakeUsers, *fakeComments) {
	users := newFakeUsers(citizen(10, 5))
	projects := newFakeProjects(users,
		model.Project{ID: 1, AuthorID: 9, Status: model.StatusVoting},
		model.Project{ID: 2, AuthorID: 9, Status: model.StatusApproved})
	comments := newFakeComments(users)
	return NewCommentService(comments, projects, advisor, 0, logging.Discard()), users, comments
}

func TestAddCommentReward(t *testing.T) {
	who := Principal{ID: 10, Role: model.RoleCitizen}
	ctx := context.Background()

	t.Run("clean comment is published and paid", func(t *testing.T) {
		s, users, _ := newCommentFixture(&fakeAdvisor{verdict: model.CommentVerdict{IsAppropriate: true, ToxicityScore: 1}})
		c, err := s.AddComment(ctx, who, 1, "Great idea!")
		require.NoError(t, err)
		assert.True(t, c.IsApproved)
		assert.True(t, c.AIModerated)
		assert.Equal(t, 5+RewardApprovedComment, users.tokens(10))
	})

	t.Run("toxic comment is held without reward", func(t *testing.T) {
		s, users, _ := newCommentFixture(&fakeAdvisor{verdict: model.CommentVerdict{IsAppropriate: true, ToxicityScore: 7}})
		c, err := s.AddComment(ctx, who, 1, "Terrible idea")
		require.NoError(t, err)
		assert.False(t, c.IsApproved)
		assert.Equal(t, 5, users.tokens(10))
	})

	t.Run("screening failure publishes", func(t *testing.T) {
		s, users, _ := newCommentFixture(&fakeAdvisor{err: errBoom})
		c, err := s.AddComment(ctx, who, 1, "Nice")
		require.NoError(t, err)
		assert.True(t, c.IsApproved)
		require.NotNil(t, c.AIToxicityScore)
		assert.Zero(t, *c.AIToxicityScore)
		assert.Equal(t, 6, users.tokens(10))
	})

	t.Run("no advisor publishes unscreened", func(t *testing.T) {
		s, _, _ := newCommentFixture(nil)
		c, err := s.AddComment(ctx, who, 1, "Nice")
		require.NoError(t, err)
		assert.True(t, c.IsApproved)
		assert.False(t, c.AIModerated)
	})
}

func TestCommentRewardOncePerProject(t *testing.T) {
	who := Principal{ID: 10, Role: model.RoleCitizen}
	ctx := context.Background()
	s, users, _ := newCommentFixture(nil)

	for i := 0; i < 3; i++ {
		c, err := s.AddComment(ctx, who, 1, "Still a great idea")
		require.NoError(t, err)
		assert.True(t, c.IsApproved)
	}
	assert.Equal(t, 5+RewardApprovedComment, users.tokens(10))

	_, err := s.AddComment(ctx, who, 2, "Also worth doing")
	require.NoError(t, err)
	assert.Equal(t, 5+2*RewardApprovedComment, users.tokens(10))
}

func TestAddCommentValidation(t *testing.T) {
	s, _, comments := newCommentFixture(nil)
	who := Principal{ID: 10, Role: model.RoleCitizen}

	_, err := s.AddComment(context.Background(), who, 1, " a ")
	assert.True(t, IsKind(err, KindInvalid))
	_, err = s.AddComment(context.Background(), who, 1, strings.Repeat("x", 1001))
	assert.True(t, IsKind(err, KindInvalid))
	_, err = s.AddComment(context.Background(), who, 2, "hello there")
	assert.True(t, IsKind(err, KindNotFound))
	assert.Empty(t, comments.byID)
}

func TestSupportChatFallsBackToAdmin(t *testing.T) {
	tickets := newFakeTickets()
	s := NewSupportService(tickets, newFakeUsers(citizen(10, 5)), &fakeAdvisor{err: errBoom}, 0, logging.Discard())
	s.NewID = func() string { return "5f0c7c1e-8d4a-4b8e-9a0e-3f1d2c3b4a59" }

	who := Principal{ID: 10, Role: model.RoleCitizen}
	res, err := s.Chat(context.Background(), &who, "", "My vote is missing", nil)
	require.NoError(t, err)

	assert.True(t, res.NeedsAdmin)
	assert.Equal(t, supportFallbackAnswer, res.Answer)
	assert.Equal(t, "5f0c7c1e-8d4a-4b8e-9a0e-3f1d2c3b4a59", res.Ticket.ID)
	assert.True(t, res.Ticket.NeedsAdmin)
	require.NotNil(t, res.Ticket.UserName)
	assert.Equal(t, "Citizen", *res.Ticket.UserName)
	require.Len(t, res.Ticket.Messages, 2)
	assert.Equal(t, model.SenderUser, res.Ticket.Messages[0].Sender)
	assert.Equal(t, model.SenderAI, res.Ticket.Messages[1].Sender)
}

func TestSupportChatAnonymousAndAdminActions(t *testing.T) {
	tickets := newFakeTickets()
	advisor := &fakeAdvisor{reply: model.SupportReply{Answer: "Open the projects page.", Category: "PROJECTS"}}
	s := NewSupportService(tickets, nil, advisor, 0, logging.Discard())
	ctx := context.Background()

	res, err := s.Chat(ctx, nil, "", "Where are the projects?", nil)
	require.NoError(t, err)
	assert.False(t, res.NeedsAdmin)
	assert.Equal(t, "PROJECTS", res.Ticket.Category)
	assert.Nil(t, res.Ticket.UserID)
	id := res.Ticket.ID

	_, err = s.Chat(ctx, nil, "not-a-uuid", "hello", nil)
	assert.True(t, IsKind(err, KindNotFound))

	_, err = s.AdminAction(ctx, Principal{ID: 10, Role: model.RoleCitizen}, id, "close", "")
	assert.True(t, IsKind(err, KindForbidden))
	_, err = s.AdminAction(ctx, moderator, id, "reply", " ")
	assert.True(t, IsKind(err, KindInvalid))

	tk, err := s.AdminAction(ctx, moderator, id, "reply", "We are on it.")
	require.NoError(t, err)
	assert.Equal(t, model.SenderAdmin, tk.Messages[len(tk.Messages)-1].Sender)

	tk, err = s.AdminAction(ctx, moderator, id, "close", "")
	require.NoError(t, err)
	assert.Equal(t, model.TicketClosed, tk.Status)

	list, err := s.ListTickets(ctx, moderator, model.TicketClosed, false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	_, err = s.ListTickets(ctx, moderator, "PENDING", false)
	assert.True(t, IsKind(err, KindInvalid))
}
