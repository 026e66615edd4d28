package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/civic-budget/internal/logging"
	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/queue"
)

var moderator = Principal{ID: 2, Role: model.RoleModerator}

type moderationFixture struct {
	users    *fakeUsers
	projects *fakeProjects
	comments *fakeComments
	advisor  *fakeAdvisor
	events   *fakeEvents
	wf       *ModerationWorkflow
}

func newModerationFixture(status model.ProjectStatus) *moderationFixture {
	f := &moderationFixture{
		users:   newFakeUsers(citizen(9, 5)),
		advisor: &fakeAdvisor{},
		events:  &fakeEvents{},
	}
	f.projects = newFakeProjects(f.users, model.Project{ID: 1, AuthorID: 9, Title: "Playground", Status: status})
	f.comments = newFakeComments(f.users)
	f.wf = NewModerationWorkflow(f.projects, f.comments, f.advisor, 0, f.events, logging.Discard())
	f.wf.Now = fixedNow
	return f
}

func TestApproveSurvivesAIFailure(t *testing.T) {
	f := newModerationFixture(model.StatusPendingModeration)
	f.advisor.err = errBoom

	p, err := f.wf.Apply(context.Background(), moderator, 1, "approve", "")
	require.NoError(t, err)

	assert.Equal(t, model.StatusApproved, p.Status)
	assert.Nil(t, p.AIAnalysis)
	assert.Equal(t, 5+RewardApprovedProject, f.users.tokens(9))
	assert.Equal(t, 1, f.advisor.calls)
	assert.Empty(t, f.projects.analyses)
	require.Len(t, f.projects.changes, 1)
	assert.Equal(t, model.StatusPendingModeration, f.projects.changes[0].From)
	assert.Equal(t, []queue.EventType{queue.EventProjectModerated}, f.events.types())
}

func TestApproveWithEmptyAnalysis(t *testing.T) {
	f := newModerationFixture(model.StatusPendingModeration)
	f.advisor.analysis, f.advisor.err = nil, nil

	p, err := f.wf.Apply(context.Background(), moderator, 1, "approve", "")
	require.NoError(t, err)

	assert.Equal(t, model.StatusApproved, p.Status)
	assert.Nil(t, p.AIAnalysis)
	assert.Nil(t, p.AIPros)
	assert.Equal(t, 1, f.advisor.calls)
	assert.Zero(t, f.projects.saves)
	assert.Empty(t, f.projects.analyses)
	assert.Equal(t, 5+RewardApprovedProject, f.users.tokens(9))

	g := newModerationFixture(model.StatusApproved)
	_, err = g.wf.AnalyzeProject(context.Background(), moderator, 1)
	assert.True(t, IsKind(err, KindExternalServiceUnavailable))
	assert.Zero(t, g.projects.saves)
}

func TestApproveStoresAnalysis(t *testing.T) {
	f := newModerationFixture(model.StatusPendingModeration)
	f.advisor.analysis = &model.Analysis{Summary: "solid", Pros: []string{"cheap"}}

	p, err := f.wf.Apply(context.Background(), moderator, 1, "approve", "")
	require.NoError(t, err)

	require.NotNil(t, p.AIAnalysis)
	assert.Equal(t, "solid", *p.AIAnalysis)
	assert.Equal(t, model.StringList{"cheap"}, p.AIPros)
	assert.Contains(t, f.projects.analyses, uint64(1))
}

func TestApproveAnalysisOutlivesCaller(t *testing.T) {
	f := newModerationFixture(model.StatusPendingModeration)
	f.advisor.analysis = &model.Analysis{Summary: "Shade for the sandpit."}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := f.wf.Apply(ctx, moderator, 1, "approve", "")
	require.NoError(t, err)

	assert.Equal(t, model.StatusApproved, p.Status)
	assert.NoError(t, f.advisor.ctxErr)
	require.NotNil(t, p.AIAnalysis)
	assert.Equal(t, 1, f.projects.saves)
}

func TestApproveAnalysisNotStoredStillApproves(t *testing.T) {
	f := newModerationFixture(model.StatusPendingModeration)
	f.advisor.analysis = &model.Analysis{Summary: "solid"}
	f.projects.saveErr = errBoom

	p, err := f.wf.Apply(context.Background(), moderator, 1, "approve", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, p.Status)
	assert.Nil(t, p.AIAnalysis)
}

func TestStartVotingThenApproveIsIllegal(t *testing.T) {
	f := newModerationFixture(model.StatusPendingModeration)

	p, err := f.wf.Apply(context.Background(), moderator, 1, "start_voting", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusVoting, p.Status)

	_, err = f.wf.Apply(context.Background(), moderator, 1, "approve", "")
	assert.True(t, IsKind(err, KindIllegalTransition))
	assert.Equal(t, model.StatusVoting, f.projects.status(1))
	assert.Equal(t, 5, f.users.tokens(9), "no reward for a refused approval")
	assert.Zero(t, f.advisor.calls)
}

func TestApplyChecks(t *testing.T) {
	f := newModerationFixture(model.StatusPendingModeration)
	ctx := context.Background()

	_, err := f.wf.Apply(ctx, Principal{ID: 9, Role: model.RoleCitizen}, 1, "approve", "")
	assert.True(t, IsKind(err, KindForbidden))

	_, err = f.wf.Apply(ctx, Principal{ID: 3, Role: model.RoleCurator}, 1, "approve", "")
	assert.True(t, IsKind(err, KindForbidden))

	_, err = f.wf.Apply(ctx, moderator, 1, "publish", "")
	assert.True(t, IsKind(err, KindInvalid))

	_, err = f.wf.Apply(ctx, moderator, 1, "reject", "   ")
	assert.True(t, IsKind(err, KindInvalid))

	_, err = f.wf.Apply(ctx, moderator, 404, "approve", "")
	assert.True(t, IsKind(err, KindNotFound))

	assert.Equal(t, model.StatusPendingModeration, f.projects.status(1))
	assert.Empty(t, f.events.types())
}

func TestRejectRecordsNotes(t *testing.T) {
	f := newModerationFixture(model.StatusPendingModeration)

	p, err := f.wf.Apply(context.Background(), Principal{ID: 1, Role: model.RoleAdmin}, 1, "reject", " duplicate ")
	require.NoError(t, err)
	assert.Equal(t, model.StatusModerationRejected, p.Status)
	require.NotNil(t, p.ModerationNotes)
	assert.Equal(t, "duplicate", *p.ModerationNotes)
	assert.Equal(t, 5, f.users.tokens(9))
	assert.Equal(t, "duplicate", f.events.events[0].Notes)
}

func TestAnalyzeProjectSurfacesAIFailure(t *testing.T) {
	f := newModerationFixture(model.StatusApproved)
	f.advisor.err = errBoom
	_, err := f.wf.AnalyzeProject(context.Background(), moderator, 1)
	assert.True(t, IsKind(err, KindExternalServiceUnavailable))

	f.wf.Advisor = nil
	_, err = f.wf.AnalyzeProject(context.Background(), moderator, 1)
	assert.True(t, IsKind(err, KindExternalServiceUnavailable))
}

func TestProjectChatValidation(t *testing.T) {
	f := newModerationFixture(model.StatusVoting)
	f.advisor.answer = "It costs 10k."
	ctx := context.Background()

	_, err := f.wf.ProjectChat(ctx, 1, "hi", nil)
	assert.True(t, IsKind(err, KindInvalid))

	_, err = f.wf.ProjectChat(ctx, 1, "How much?", make([]model.ChatTurn, maxChatHistory+1))
	assert.True(t, IsKind(err, KindInvalid))

	got, err := f.wf.ProjectChat(ctx, 1, "How much?", nil)
	require.NoError(t, err)
	assert.Equal(t, "It costs 10k.", got)
}

func TestModerationQueueAndComments(t *testing.T) {
	f := newModerationFixture(model.StatusPendingModeration)
	ctx := context.Background()
	id, _ := f.comments.Create(ctx, &model.Comment{ProjectID: 1, UserID: 9, Content: "hidden"}, 0)

	q, err := f.wf.ModerationQueue(ctx, moderator)
	require.NoError(t, err)
	assert.Len(t, q.Pending, 1)
	assert.Empty(t, q.Active)
	assert.Len(t, q.Comments, 1)

	require.NoError(t, f.wf.ApplyComment(ctx, moderator, id, "approve"))
	require.NoError(t, f.wf.ApplyComment(ctx, moderator, id, "approve"))
	assert.Equal(t, 5+RewardApprovedComment, f.users.tokens(9), "approval pays once")

	second, _ := f.comments.Create(ctx, &model.Comment{ProjectID: 1, UserID: 9, Content: "held too"}, 0)
	require.NoError(t, f.wf.ApplyComment(ctx, moderator, second, "approve"))
	assert.Equal(t, 5+RewardApprovedComment, f.users.tokens(9), "one reward per project")

	assert.True(t, IsKind(f.wf.ApplyComment(ctx, moderator, id, "close"), KindInvalid))
	require.NoError(t, f.wf.ApplyComment(ctx, moderator, id, "reject"))
	assert.True(t, IsKind(f.wf.ApplyComment(ctx, moderator, id, "reject"), KindNotFound))
}
