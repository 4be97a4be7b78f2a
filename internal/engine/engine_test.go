package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"example.com/backstage/services/gamebot/internal/command"
	"example.com/backstage/services/gamebot/internal/metrics"
	"example.com/backstage/services/gamebot/internal/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

type stubDates map[string]time.Time

func (s stubDates) Parse(text string, _ time.Time) (time.Time, bool) {
	t, ok := s[text]
	return t, ok
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Announce(ctx context.Context, event models.Event) (string, error) {
	args := m.Called(ctx, event)
	return args.String(0), args.Error(1)
}

func (m *MockNotifier) Post(ctx context.Context, channelID string, notice models.Notice) error {
	return m.Called(ctx, channelID, notice).Error(0)
}

func (m *MockNotifier) DirectMessage(ctx context.Context, userID string, notice models.Notice) error {
	return m.Called(ctx, userID, notice).Error(0)
}

func (m *MockNotifier) RevertReaction(ctx context.Context, event models.Event, userID string) error {
	return m.Called(ctx, event, userID).Error(0)
}

type MockRoles struct {
	mock.Mock
}

func (m *MockRoles) CreateRole(ctx context.Context, guildID, name string) (string, error) {
	args := m.Called(ctx, guildID, name)
	return args.String(0), args.Error(1)
}

func (m *MockRoles) Grant(ctx context.Context, guildID, roleID, userID string) error {
	return m.Called(ctx, guildID, roleID, userID).Error(0)
}

func (m *MockRoles) Revoke(ctx context.Context, guildID, roleID, userID string) error {
	return m.Called(ctx, guildID, roleID, userID).Error(0)
}

func (m *MockRoles) DeleteRole(ctx context.Context, guildID, roleID string) error {
	return m.Called(ctx, guildID, roleID).Error(0)
}

type recordingPublisher struct {
	mu      sync.Mutex
	records []models.Lifecycle
}

func (p *recordingPublisher) Publish(_ context.Context, record models.Lifecycle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, record)
	return nil
}

func (p *recordingPublisher) types() []models.LifecycleType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.LifecycleType
	for _, r := range p.records {
		out = append(out, r.Type)
	}
	return out
}

// fakeTimer keeps armed callbacks until the test fires them
type fakeTimer struct {
	mu    sync.Mutex
	armed map[uuid.UUID]func()
}

func (f *fakeTimer) Arm(_ time.Time, fn func()) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.armed[id] = fn
	return id, nil
}

func (f *fakeTimer) Cancel(handle uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.armed, handle)
	return nil
}

// callbacks returns the currently armed callbacks without disarming them
func (f *fakeTimer) callbacks() []func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []func()
	for _, fn := range f.armed {
		out = append(out, fn)
	}
	return out
}

func (f *fakeTimer) fireAll() {
	f.mu.Lock()
	fns := make([]func(), 0, len(f.armed))
	for id, fn := range f.armed {
		fns = append(fns, fn)
		delete(f.armed, id)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type harness struct {
	engine    *Engine
	notifier  *MockNotifier
	roles     *MockRoles
	timer     *fakeTimer
	publisher *recordingPublisher
	metrics   *metrics.Metrics
	stop      func()
}

func newHarness(t *testing.T, policy Policy) *harness {
	t.Helper()

	h := &harness{
		notifier:  new(MockNotifier),
		roles:     new(MockRoles),
		timer:     &fakeTimer{armed: make(map[uuid.UUID]func())},
		publisher: &recordingPublisher{},
		metrics:   metrics.NewMetrics(),
	}
	dates := stubDates{"future": now.Add(2 * time.Hour), "past": now.Add(-time.Hour)}
	clock := clockwork.NewFakeClockAt(now)

	h.engine = New(Deps{
		Processor:  command.NewProcessor(dates, clock),
		Timer:      h.timer,
		Notifier:   h.notifier,
		Roles:      h.roles,
		Publishers: []Publisher{h.publisher},
		Metrics:    h.metrics,
		Clock:      clock,
	}, policy)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.engine.Run(ctx)
	}()
	h.stop = func() {
		cancel()
		<-done
	}
	t.Cleanup(h.stop)
	return h
}

// createEvent schedules an event announced as msg-1 with role role-1
func (h *harness) createEvent(t *testing.T, args map[string]string) models.Event {
	t.Helper()

	h.roles.On("CreateRole", mock.Anything, "guild-1", mock.Anything).Return("role-1", nil).Once()
	h.notifier.On("Announce", mock.Anything, mock.Anything).Return("msg-1", nil).Once()

	ev, err := h.engine.Create(context.Background(), models.CreateRequest{
		Args:      args,
		CreatedBy: "creator",
		GuildID:   "guild-1",
		ChannelID: "chan-1",
	})
	require.NoError(t, err)
	return ev
}

func noticeOf(kind models.NoticeKind) interface{} {
	return mock.MatchedBy(func(n models.Notice) bool { return n.Kind == kind })
}

func TestCreateSchedulesEvent(t *testing.T) {
	h := newHarness(t, Policy{RolePrefix: "Signups: "})

	h.roles.On("CreateRole", mock.Anything, "guild-1", "Signups: Raid Night").Return("role-1", nil).Once()
	h.notifier.On("Announce", mock.Anything, mock.MatchedBy(func(ev models.Event) bool {
		return ev.Name == "Raid Night" && ev.RoleID == "role-1"
	})).Return("msg-1", nil).Once()

	ev, err := h.engine.Create(context.Background(), models.CreateRequest{
		Args:      map[string]string{"name": "Raid Night", "time": "future", "minplayers": "2", "maxplayers": "4"},
		CreatedBy: "creator",
		GuildID:   "guild-1",
		ChannelID: "chan-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "msg-1", ev.ID)
	assert.Equal(t, "role-1", ev.RoleID)
	assert.Equal(t, now.Add(2*time.Hour), ev.StartTime)
	assert.Empty(t, ev.Signups)
	h.roles.AssertExpectations(t)
	h.notifier.AssertExpectations(t)

	live, err := h.engine.List(context.Background(), "guild-1")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "msg-1", live[0].ID)

	other, err := h.engine.List(context.Background(), "guild-2")
	require.NoError(t, err)
	assert.Empty(t, other)

	assert.Equal(t, []models.LifecycleType{models.LifecycleCreated}, h.publisher.types())
	assert.Equal(t, int64(1), h.metrics.Counter(metrics.EventsCreated))
	assert.Len(t, h.timer.callbacks(), 1)
}

func TestCreateValidationFailureHasNoSideEffects(t *testing.T) {
	h := newHarness(t, Policy{})

	_, err := h.engine.Create(context.Background(), models.CreateRequest{
		Args:    map[string]string{"name": "Raid", "time": "past"},
		GuildID: "guild-1",
	})
	require.Error(t, err)
	assert.True(t, models.IsValidationCode(err, models.PastTime))

	h.roles.AssertNotCalled(t, "CreateRole", mock.Anything, mock.Anything, mock.Anything)
	h.notifier.AssertNotCalled(t, "Announce", mock.Anything, mock.Anything)
	assert.Empty(t, h.timer.callbacks())
	assert.Equal(t, int64(1), h.metrics.Counter(metrics.ValidationFailures))
}

func TestCreateAnnounceFailureDeletesRole(t *testing.T) {
	h := newHarness(t, Policy{})

	h.roles.On("CreateRole", mock.Anything, "guild-1", "Raid").Return("role-1", nil).Once()
	h.notifier.On("Announce", mock.Anything, mock.Anything).Return("", errors.New("missing permissions")).Once()
	h.roles.On("DeleteRole", mock.Anything, "guild-1", "role-1").Return(nil).Once()

	_, err := h.engine.Create(context.Background(), models.CreateRequest{
		Args:    map[string]string{"name": "Raid", "time": "future"},
		GuildID: "guild-1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing permissions")

	h.roles.AssertExpectations(t)
	live, err := h.engine.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestJoinAndLeaveSideEffects(t *testing.T) {
	h := newHarness(t, Policy{})
	h.createEvent(t, map[string]string{"name": "Raid", "time": "future"})

	h.roles.On("Grant", mock.Anything, "guild-1", "role-1", "u1").Return(nil).Once()
	h.roles.On("Revoke", mock.Anything, "guild-1", "role-1", "u1").Return(nil).Once()
	h.notifier.On("DirectMessage", mock.Anything, "u1", noticeOf(models.NoticeSignedUp)).Return(nil).Once()
	h.notifier.On("DirectMessage", mock.Anything, "u1", noticeOf(models.NoticeUnregistered)).Return(nil).Once()

	ctx := context.Background()
	res, err := h.engine.Join(ctx, "msg-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.Joined, res.Outcome)
	assert.Equal(t, []string{"u1"}, res.Event.Signups)

	res, err = h.engine.Join(ctx, "msg-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.AlreadySignedUp, res.Outcome)

	res, err = h.engine.Leave(ctx, "msg-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.Left, res.Outcome)
	assert.Empty(t, res.Event.Signups)

	res, err = h.engine.Leave(ctx, "msg-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.NotSignedUp, res.Outcome)

	res, err = h.engine.Join(ctx, "unknown", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.EventNotFound, res.Outcome)

	h.roles.AssertExpectations(t)
	h.notifier.AssertExpectations(t)
	assert.Equal(t, int64(3), h.metrics.Counter(metrics.SignupsIgnored))
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	h := newHarness(t, Policy{})
	h.createEvent(t, map[string]string{"name": "Duel", "time": "future", "maxplayers": "1"})

	h.roles.On("Grant", mock.Anything, "guild-1", "role-1", mock.Anything).Return(nil)
	h.notifier.On("DirectMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.notifier.On("RevertReaction", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	users := []string{"u1", "u2"}
	outcomes := make([]models.SignupOutcome, len(users))
	var wg sync.WaitGroup
	for i, user := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.engine.Join(context.Background(), "msg-1", user)
			assert.NoError(t, err)
			outcomes[i] = res.Outcome
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []models.SignupOutcome{models.Joined, models.EventFull}, outcomes)
	h.roles.AssertNumberOfCalls(t, "Grant", 1)
	h.notifier.AssertNumberOfCalls(t, "RevertReaction", 1)

	live, err := h.engine.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Len(t, live[0].Signups, 1)
}

func TestFireResolvesByQuorum(t *testing.T) {
	tests := []struct {
		name       string
		minPlayers string
		notice     models.NoticeKind
		lifecycle  models.LifecycleType
		counter    string
	}{
		{"quorum met", "1", models.NoticeStarting, models.LifecycleStarted, metrics.EventsStarted},
		{"quorum missed", "2", models.NoticeNotEnough, models.LifecycleCancelled, metrics.EventsCancelledQuorum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Policy{})
			h.createEvent(t, map[string]string{"name": "Raid", "time": "future", "minplayers": tt.minPlayers})

			h.roles.On("Grant", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
			h.notifier.On("DirectMessage", mock.Anything, "u1", noticeOf(models.NoticeSignedUp)).Return(nil)
			_, err := h.engine.Join(context.Background(), "msg-1", "u1")
			require.NoError(t, err)

			h.notifier.On("Post", mock.Anything, "chan-1", noticeOf(tt.notice)).Return(nil).Once()
			h.notifier.On("DirectMessage", mock.Anything, "u1", noticeOf(tt.notice)).Return(nil).Once()

			h.timer.fireAll()

			h.notifier.AssertExpectations(t)
			h.roles.AssertNotCalled(t, "DeleteRole", mock.Anything, mock.Anything, mock.Anything)
			assert.Equal(t, int64(1), h.metrics.Counter(tt.counter))
			assert.Equal(t, []models.LifecycleType{models.LifecycleCreated, tt.lifecycle}, h.publisher.types())

			live, err := h.engine.List(context.Background(), "")
			require.NoError(t, err)
			assert.Empty(t, live)
		})
	}
}

func TestFireWithoutMinimumAlwaysStarts(t *testing.T) {
	h := newHarness(t, Policy{})
	h.createEvent(t, map[string]string{"name": "Raid", "time": "future"})

	h.notifier.On("Post", mock.Anything, "chan-1", noticeOf(models.NoticeStarting)).Return(nil).Once()
	h.timer.fireAll()

	h.notifier.AssertExpectations(t)
	h.notifier.AssertNotCalled(t, "DirectMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoleDeletedOnResolveWhenConfigured(t *testing.T) {
	h := newHarness(t, Policy{DeleteRoleOnResolve: true})
	h.createEvent(t, map[string]string{"name": "Raid", "time": "future"})

	h.notifier.On("Post", mock.Anything, "chan-1", mock.Anything).Return(nil)
	h.roles.On("DeleteRole", mock.Anything, "guild-1", "role-1").Return(nil).Once()

	h.timer.fireAll()
	h.roles.AssertExpectations(t)
}

func TestManualCancelPreventsFire(t *testing.T) {
	h := newHarness(t, Policy{})
	h.createEvent(t, map[string]string{"name": "Raid", "time": "future"})

	late := h.timer.callbacks()
	require.Len(t, late, 1)

	h.notifier.On("Post", mock.Anything, "chan-1", noticeOf(models.NoticeCancelled)).Return(nil).Once()
	h.roles.On("DeleteRole", mock.Anything, "guild-1", "role-1").Return(nil).Once()

	ev, err := h.engine.Cancel(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", ev.ID)
	assert.Empty(t, h.timer.callbacks())

	// a fire that raced the cancel finds nothing to resolve
	late[0]()

	h.notifier.AssertNumberOfCalls(t, "Post", 1)
	h.roles.AssertExpectations(t)
	assert.Equal(t, int64(1), h.metrics.Counter(metrics.EventsCancelledManual))
	assert.Equal(t, int64(0), h.metrics.Counter(metrics.EventsStarted))

	_, err = h.engine.Cancel(context.Background(), "msg-1")
	assert.True(t, errors.Is(err, models.ErrEventNotFound))
}

func TestCancelByUserRequiresCreator(t *testing.T) {
	h := newHarness(t, Policy{})
	h.createEvent(t, map[string]string{"name": "Raid", "time": "future"})

	_, err := h.engine.CancelByUser(context.Background(), "msg-1", "someone-else")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotCreator))

	live, err := h.engine.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, live, 1)

	h.notifier.On("Post", mock.Anything, "chan-1", noticeOf(models.NoticeCancelled)).Return(nil).Once()
	h.roles.On("DeleteRole", mock.Anything, "guild-1", "role-1").Return(nil).Once()

	_, err = h.engine.CancelByUser(context.Background(), "msg-1", "creator")
	require.NoError(t, err)
	h.notifier.AssertExpectations(t)
}

func TestResolutionFanoutContinuesPastFailures(t *testing.T) {
	h := newHarness(t, Policy{FanoutLimit: 2})
	h.createEvent(t, map[string]string{"name": "Raid", "time": "future"})

	h.roles.On("Grant", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.notifier.On("DirectMessage", mock.Anything, mock.Anything, noticeOf(models.NoticeSignedUp)).Return(nil)
	for _, u := range []string{"u1", "u2", "u3"} {
		_, err := h.engine.Join(context.Background(), "msg-1", u)
		require.NoError(t, err)
	}

	h.notifier.On("Post", mock.Anything, "chan-1", noticeOf(models.NoticeStarting)).Return(errors.New("channel gone")).Once()
	h.notifier.On("DirectMessage", mock.Anything, "u2", noticeOf(models.NoticeStarting)).Return(errors.New("dms closed")).Once()
	h.notifier.On("DirectMessage", mock.Anything, "u1", noticeOf(models.NoticeStarting)).Return(nil).Once()
	h.notifier.On("DirectMessage", mock.Anything, "u3", noticeOf(models.NoticeStarting)).Return(nil).Once()

	h.timer.fireAll()

	h.notifier.AssertExpectations(t)
	assert.Equal(t, int64(2), h.metrics.Counter(metrics.CollaboratorFailures))
	assert.Equal(t, int64(1), h.metrics.Counter(metrics.EventsStarted))
}

func TestStoppedEngineRejectsIntents(t *testing.T) {
	h := newHarness(t, Policy{})
	h.stop()

	_, err := h.engine.Join(context.Background(), "msg-1", "u1")
	assert.True(t, errors.Is(err, models.ErrEngineStopped))

	_, err = h.engine.List(context.Background(), "")
	assert.True(t, errors.Is(err, models.ErrEngineStopped))
}
