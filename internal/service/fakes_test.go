package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/queue"
	"github.com/iliyamo/civic-budget/internal/repository"
)

var (
	errBoom = errors.New("boom")
	t0      = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func fixedNow() time.Time { return t0 }

// ---- users ----

type fakeUsers struct {
	mu      sync.Mutex
	byID    map[uint64]model.User
	nextID  uint64
	created []repository.NewUser
}

func newFakeUsers(us ...model.User) *fakeUsers {
	f := &fakeUsers{byID: map[uint64]model.User{}, nextID: 100}
	for _, u := range us {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, in repository.NewUser, _ int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == in.Email {
			return 0, repository.ErrEmailExists
		}
	}
	f.nextID++
	f.created = append(f.created, in)
	f.byID[f.nextID] = model.User{
		ID: f.nextID, Email: in.Email, Name: in.Name, Role: in.Role, Tokens: in.Tokens, IsActive: true,
	}
	return f.nextID, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) SetSubscription(_ context.Context, id uint64, plan model.SubscriptionPlan, start, end time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID[id]
	p := string(plan)
	u.SubscriptionType, u.SubscriptionStart, u.SubscriptionEnd = &p, &start, &end
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id uint64, name, phone *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID[id]
	if name != nil {
		u.Name = *name
	}
	if phone != nil {
		u.Phone = phone
	}
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) Stats(context.Context, uint64) (model.UserStats, error) {
	return model.UserStats{}, nil
}

func (f *fakeUsers) tokens(id uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].Tokens
}

func (f *fakeUsers) credit(id uint64, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID[id]
	u.Tokens += n
	f.byID[id] = u
}

// ---- projects ----

type fakeProjects struct {
	mu        sync.Mutex
	byID      map[uint64]model.Project
	nextID    uint64
	users     *fakeUsers
	changes   []repository.StatusChange
	saveErr   error
	analyses  map[uint64]model.Analysis
	saves     int
	deleted   []uint64
	lastQuery repository.ProjectFilter
}

func newFakeProjects(users *fakeUsers, ps ...model.Project) *fakeProjects {
	f := &fakeProjects{byID: map[uint64]model.Project{}, nextID: 500, users: users, analyses: map[uint64]model.Analysis{}}
	for _, p := range ps {
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeProjects) Create(_ context.Context, p *model.Project) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	f.byID[p.ID] = *p
	return p.ID, nil
}

func (f *fakeProjects) GetByID(_ context.Context, id uint64) (model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return model.Project{}, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeProjects) List(_ context.Context, flt repository.ProjectFilter) ([]model.Project, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = flt
	want := map[model.ProjectStatus]bool{}
	for _, s := range flt.Statuses {
		want[s] = true
	}
	var out []model.Project
	for _, p := range f.byID {
		if len(want) > 0 && !want[p.Status] {
			continue
		}
		if flt.Category != "" && p.Category != flt.Category {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeProjects) ListByAuthor(_ context.Context, author uint64) ([]model.ProjectSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ProjectSummary
	for _, p := range f.byID {
		if p.AuthorID == author {
			out = append(out, model.ProjectSummary{Project: p})
		}
	}
	return out, nil
}

func (f *fakeProjects) Update(_ context.Context, id uint64, patch repository.ProjectPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	f.byID[id] = p
	return nil
}

// Transition mirrors the repository contract: decide sees the current row,
// and the change plus reward apply together or not at all.
func (f *fakeProjects) Transition(_ context.Context, id uint64, decide func(model.Project) (repository.Decision, error)) (model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return model.Project{}, repository.ErrNotFound
	}
	d, err := decide(p)
	if err != nil {
		return model.Project{}, err
	}
	d.Change.ProjectID, d.Change.From = id, p.Status
	p.Status = d.Change.To
	if d.Change.Moderated {
		p.ModeratedBy = &d.Change.ActorID
		p.ModerationNotes = d.Change.Notes
	}
	f.byID[id] = p
	f.changes = append(f.changes, d.Change)
	if d.AuthorReward > 0 && f.users != nil {
		f.users.credit(p.AuthorID, d.AuthorReward)
	}
	return p, nil
}

func (f *fakeProjects) History(_ context.Context, id uint64) ([]model.StatusChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.StatusChange
	for i, c := range f.changes {
		if c.ProjectID != id {
			continue
		}
		out = append(out, model.StatusChange{
			ID: uint64(i + 1), ProjectID: c.ProjectID, FromStatus: c.From, ToStatus: c.To,
			Action: c.Action, Notes: c.Notes, ChangedBy: c.ActorID, CreatedAt: c.At,
		})
	}
	return out, nil
}

func (f *fakeProjects) SaveAnalysis(_ context.Context, id uint64, a model.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.analyses[id] = a
	return nil
}

func (f *fakeProjects) DeleteCascade(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeProjects) status(id uint64) model.ProjectStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].Status
}

// ---- votes ----

type fakeVotes struct {
	mu       sync.Mutex
	users    *fakeUsers
	projects *fakeProjects
	voted    map[[2]uint64]bool
	castErr  error
	calls    int
}

func newFakeVotes(users *fakeUsers, projects *fakeProjects) *fakeVotes {
	return &fakeVotes{users: users, projects: projects, voted: map[[2]uint64]bool{}}
}

func (f *fakeVotes) Exists(_ context.Context, userID, projectID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.voted[[2]uint64{userID, projectID}], nil
}

func (f *fakeVotes) Cast(_ context.Context, userID, projectID uint64, isFor bool, cost int) (repository.Tally, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.castErr != nil {
		return repository.Tally{}, f.castErr
	}
	key := [2]uint64{userID, projectID}
	if f.voted[key] {
		return repository.Tally{}, repository.ErrDuplicateVote
	}
	if f.users.tokens(userID) < cost {
		return repository.Tally{}, repository.ErrInsufficientTokens
	}
	f.voted[key] = true
	f.users.credit(userID, -cost)

	f.projects.mu.Lock()
	p := f.projects.byID[projectID]
	if isFor {
		p.VotesFor++
	} else {
		p.VotesAgainst++
	}
	f.projects.byID[projectID] = p
	f.projects.mu.Unlock()

	return repository.Tally{VotesFor: p.VotesFor, VotesAgainst: p.VotesAgainst, TokensLeft: f.users.tokens(userID)}, nil
}

// ---- periods ----

type fakePeriods struct {
	mu      sync.Mutex
	periods []model.Period
	nextID  uint64
}

func (f *fakePeriods) FindOpen(_ context.Context, t model.PeriodType, now time.Time) (*model.Period, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.periods {
		if p.Type == t && p.OpenAt(now) {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakePeriods) FindNext(_ context.Context, t model.PeriodType, now time.Time) (*model.Period, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *model.Period
	for _, p := range f.periods {
		if p.Type != t || !p.IsActive || p.EndedEarly || !p.StartDate.After(now) {
			continue
		}
		if best == nil || p.StartDate.Before(best.StartDate) {
			p := p
			best = &p
		}
	}
	return best, nil
}

func (f *fakePeriods) GetByID(_ context.Context, id uint64) (model.Period, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.periods {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Period{}, repository.ErrNotFound
}

func (f *fakePeriods) List(_ context.Context, flt repository.PeriodFilter) ([]model.Period, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Period
	for _, p := range f.periods {
		if flt.Type != "" && p.Type != flt.Type {
			continue
		}
		if !flt.OpenAt.IsZero() && !p.OpenAt(flt.OpenAt) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePeriods) Create(_ context.Context, p *model.Period) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	f.periods = append(f.periods, *p)
	return p.ID, nil
}

func (f *fakePeriods) Update(_ context.Context, id uint64, patch repository.PeriodPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.periods {
		if f.periods[i].ID != id {
			continue
		}
		if patch.Title != nil {
			f.periods[i].Title = *patch.Title
		}
		if patch.StartDate != nil {
			f.periods[i].StartDate = *patch.StartDate
		}
		if patch.EndDate != nil {
			f.periods[i].EndDate = *patch.EndDate
		}
		if patch.IsActive != nil {
			f.periods[i].IsActive = *patch.IsActive
		}
		return nil
	}
	return repository.ErrNotFound
}

func (f *fakePeriods) EndEarly(_ context.Context, id uint64, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.periods {
		if f.periods[i].ID == id {
			if f.periods[i].EndedEarly {
				return repository.ErrConflict
			}
			f.periods[i].EndedEarly = true
			f.periods[i].EndDate = now
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakePeriods) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.periods {
		if f.periods[i].ID == id {
			f.periods = append(f.periods[:i], f.periods[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

// ---- comments ----

type fakeComments struct {
	mu      sync.Mutex
	byID    map[uint64]model.Comment
	nextID  uint64
	users   *fakeUsers
	rewards map[[2]uint64]bool
}

func newFakeComments(users *fakeUsers) *fakeComments {
	return &fakeComments{byID: map[uint64]model.Comment{}, users: users, rewards: map[[2]uint64]bool{}}
}

// rewardOnce pays the (user, project) comment reward the first time only.
func (f *fakeComments) rewardOnce(c model.Comment, reward int) {
	key := [2]uint64{c.UserID, c.ProjectID}
	if reward <= 0 || f.rewards[key] {
		return
	}
	f.rewards[key] = true
	f.users.credit(c.UserID, reward)
}

func (f *fakeComments) Create(_ context.Context, c *model.Comment, reward int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = f.nextID
	f.byID[c.ID] = *c
	if c.IsApproved {
		f.rewardOnce(*c, reward)
	}
	return c.ID, nil
}

func (f *fakeComments) GetByID(_ context.Context, id uint64) (model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return model.Comment{}, repository.ErrNotFound
	}
	return c, nil
}

func (f *fakeComments) ListApproved(_ context.Context, projectID uint64) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Comment{}
	for _, c := range f.byID {
		if c.ProjectID == projectID && c.IsApproved {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeComments) ListPending(_ context.Context, limit int) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Comment{}
	for _, c := range f.byID {
		if !c.IsApproved && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeComments) Approve(_ context.Context, id uint64, reward int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if c.IsApproved {
		return false, nil
	}
	c.IsApproved = true
	f.byID[id] = c
	f.rewardOnce(c, reward)
	return true, nil
}

func (f *fakeComments) Unapprove(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.IsApproved = false
	f.byID[id] = c
	return nil
}

func (f *fakeComments) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

// ---- support ----

type fakeTickets struct {
	mu      sync.Mutex
	tickets map[string]model.SupportTicket
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{tickets: map[string]model.SupportTicket{}}
}

func (f *fakeTickets) CreateTicket(_ context.Context, t *model.SupportTicket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets[t.ID] = *t
	return nil
}

func (f *fakeTickets) GetTicket(_ context.Context, id string) (model.SupportTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return model.SupportTicket{}, repository.ErrNotFound
	}
	return t, nil
}

func (f *fakeTickets) AddMessage(_ context.Context, id, sender, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Messages = append(t.Messages, model.SupportMessage{TicketID: id, Sender: sender, Content: content})
	f.tickets[id] = t
	return nil
}

func (f *fakeTickets) UpdateTicket(_ context.Context, id string, patch repository.TicketPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return repository.ErrNotFound
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Category != nil {
		t.Category = *patch.Category
	}
	if patch.NeedsAdmin != nil {
		t.NeedsAdmin = *patch.NeedsAdmin
	}
	f.tickets[id] = t
	return nil
}

func (f *fakeTickets) ListTickets(_ context.Context, flt repository.TicketFilter) ([]model.SupportTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.SupportTicket{}
	for _, t := range f.tickets {
		if flt.Status != "" && t.Status != flt.Status {
			continue
		}
		if flt.NeedsAdminOnly && !t.NeedsAdmin {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ---- advisor and events ----

type fakeAdvisor struct {
	analysis *model.Analysis
	verdict  model.CommentVerdict
	reply    model.SupportReply
	answer   string
	err      error
	calls    int
	ctxErr   error
}

func (f *fakeAdvisor) Analyze(ctx context.Context, _ model.Project) (*model.Analysis, error) {
	f.calls++
	f.ctxErr = ctx.Err()
	return f.analysis, f.err
}

func (f *fakeAdvisor) ProjectChat(context.Context, model.Project, string, []model.ChatTurn) (string, error) {
	f.calls++
	return f.answer, f.err
}

func (f *fakeAdvisor) ModerateComment(context.Context, string) (model.CommentVerdict, error) {
	f.calls++
	return f.verdict, f.err
}

func (f *fakeAdvisor) SupportChat(context.Context, string, []model.ChatTurn, string) (model.SupportReply, error) {
	f.calls++
	return f.reply, f.err
}

type fakeEvents struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (f *fakeEvents) Publish(_ context.Context, ev queue.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakeEvents) types() []queue.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]queue.EventType, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}
