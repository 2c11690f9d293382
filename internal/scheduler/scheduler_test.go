package scheduler_test

import (
	"context"
	"errors"
	"log/slog"
	"postwatch/internal/domain"
	"postwatch/internal/notify"
	"postwatch/internal/scheduler"
	"postwatch/internal/source"
	"postwatch/internal/store"
	"postwatch/internal/watch"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBackend struct {
	mu      sync.Mutex
	state   domain.WatchState
	saveErr error
}

func (b *memoryBackend) Load(_ context.Context) (domain.WatchState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state.Clone(), nil
}

func (b *memoryBackend) Save(_ context.Context, state domain.WatchState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.saveErr != nil {
		return b.saveErr
	}
	b.state = state.Clone()
	return nil
}

func (b *memoryBackend) Close() error { return nil }

func (b *memoryBackend) setSaveErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.saveErr = err
}

type stubSource struct {
	mu      sync.Mutex
	items   map[string]domain.Item
	errs    map[string]error
	calls   []string
	onFetch func(handle string)
}

func (s *stubSource) FetchLatest(_ context.Context, handle string) (domain.Item, error) {
	s.mu.Lock()
	s.calls = append(s.calls, handle)
	onFetch := s.onFetch
	item, hasItem := s.items[handle]
	err := s.errs[handle]
	s.mu.Unlock()

	if onFetch != nil {
		onFetch(handle)
	}

	if err != nil {
		return domain.Item{}, err
	}
	if !hasItem {
		return domain.Item{}, domain.Transient("no stub item", nil)
	}
	return item, nil
}

func (s *stubSource) fetched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.calls...)
}

type stubNotifier struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (n *stubNotifier) Send(_ context.Context, _ int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.err != nil {
		return n.err
	}
	n.texts = append(n.texts, text)
	return nil
}

func (n *stubNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]string(nil), n.texts...)
}

func (n *stubNotifier) setErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.err = err
}

type fixture struct {
	backend  *memoryBackend
	service  *watch.Service
	source   *stubSource
	notifier *stubNotifier
	sched    *scheduler.Scheduler
}

func newFixture(t *testing.T, ctx context.Context, users ...string) *fixture {
	t.Helper()

	state := domain.NewWatchState()
	state.Users = append(state.Users, users...)
	backend := &memoryBackend{state: state}

	st, err := store.Open(context.Background(), backend)
	require.NoError(t, err)

	svc := watch.NewService(st, time.Minute, slog.Default())
	src := &stubSource{items: map[string]domain.Item{}, errs: map[string]error{}}
	n := &stubNotifier{}
	d := notify.NewDispatcher(n, 42, source.NewLinks(""), slog.Default())

	return &fixture{
		backend:  backend,
		service:  svc,
		source:   src,
		notifier: n,
		sched:    scheduler.New(ctx, svc, src, d, time.Minute, slog.Default()),
	}
}

func TestTickNotifiesNewItemOnce(t *testing.T) {
	f := newFixture(t, context.Background(), "alice")
	f.source.items["alice"] = domain.Item{ID: "100", Body: "hi"}
	ctx := context.Background()

	report := f.sched.Tick(ctx)

	assert.Equal(t, scheduler.Report{Accounts: 1, Sent: 1}, report)
	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "alice")
	assert.Contains(t, sent[0], "(https://x.com/alice/status/100)")

	cursor, ok := f.service.Cursor("alice")
	assert.True(t, ok)
	assert.Equal(t, "100", cursor)
	assert.Equal(t, "100", f.backend.state.LastIDs["alice"])

	report = f.sched.Tick(ctx)

	assert.Equal(t, scheduler.Report{Accounts: 1, Unchanged: 1}, report)
	assert.Len(t, f.notifier.sent(), 1)
}

func TestTickSendFailureRetriesNextTick(t *testing.T) {
	f := newFixture(t, context.Background(), "alice")
	f.source.items["alice"] = domain.Item{ID: "100", Body: "hi"}
	f.notifier.setErr(errors.New("telegram is down"))
	ctx := context.Background()

	report := f.sched.Tick(ctx)

	assert.Equal(t, 1, report.SendErrors)
	_, ok := f.service.Cursor("alice")
	assert.False(t, ok)

	f.notifier.setErr(nil)
	report = f.sched.Tick(ctx)

	assert.Equal(t, 1, report.Sent)
	assert.Len(t, f.notifier.sent(), 1)
	cursor, _ := f.service.Cursor("alice")
	assert.Equal(t, "100", cursor)
}

func TestTickSkipsFailingAccountsInOrder(t *testing.T) {
	f := newFixture(t, context.Background(), "gone", "alice", "flaky", "bob")
	f.source.errs["gone"] = domain.ErrAccountNotFound
	f.source.errs["flaky"] = domain.Transient("do request", errors.New("timeout"))
	f.source.items["alice"] = domain.Item{ID: "1", Body: "a"}
	f.source.items["bob"] = domain.Item{ID: "2", Body: "b"}

	report := f.sched.Tick(context.Background())

	assert.Equal(t, scheduler.Report{Accounts: 4, Sent: 2, NotFound: 1, SourceErrors: 1}, report)
	assert.Equal(t, []string{"gone", "alice", "flaky", "bob"}, f.source.fetched())
	assert.Equal(t, []string{"gone", "alice", "flaky", "bob"}, f.service.List())

	_, ok := f.service.Cursor("flaky")
	assert.False(t, ok)

	sent := f.notifier.sent()
	require.Len(t, sent, 2)
	assert.True(t, strings.Contains(sent[0], "alice"))
	assert.True(t, strings.Contains(sent[1], "bob"))
}

func TestTickChangedIDIsNotifiedAgain(t *testing.T) {
	f := newFixture(t, context.Background(), "alice")
	f.source.items["alice"] = domain.Item{ID: "100", Body: "hi"}
	ctx := context.Background()

	f.sched.Tick(ctx)

	f.source.mu.Lock()
	f.source.items["alice"] = domain.Item{ID: "99", Body: "older but different"}
	f.source.mu.Unlock()

	report := f.sched.Tick(ctx)

	assert.Equal(t, 1, report.Sent)
	cursor, _ := f.service.Cursor("alice")
	assert.Equal(t, "99", cursor)
}

func TestTickCommitFailureKeepsOldCursor(t *testing.T) {
	f := newFixture(t, context.Background(), "alice")
	f.source.items["alice"] = domain.Item{ID: "100", Body: "hi"}
	f.backend.setSaveErr(errors.New("disk full"))
	ctx := context.Background()

	report := f.sched.Tick(ctx)

	assert.Equal(t, scheduler.Report{Accounts: 1, Sent: 1, CommitErrors: 1}, report)
	_, ok := f.service.Cursor("alice")
	assert.False(t, ok)

	f.backend.setSaveErr(nil)
	report = f.sched.Tick(ctx)

	assert.Equal(t, scheduler.Report{Accounts: 1, Sent: 1}, report)
	cursor, _ := f.service.Cursor("alice")
	assert.Equal(t, "100", cursor)
}

func TestAddDuringTickIsKeptForNextTick(t *testing.T) {
	f := newFixture(t, context.Background(), "alice")
	f.source.items["alice"] = domain.Item{ID: "100", Body: "hi"}
	f.source.items["bob"] = domain.Item{ID: "7", Body: "yo"}
	ctx := context.Background()

	var state scheduler.State
	f.source.onFetch = func(handle string) {
		if handle != "alice" {
			return
		}
		state = f.sched.State()

		// The lock is not held during a fetch, so this must not block.
		reply, err := f.service.Add(ctx, "bob")
		assert.NoError(t, err)
		assert.Equal(t, store.Added, reply.Result)
	}

	report := f.sched.Tick(ctx)

	assert.Equal(t, scheduler.Polling, state)
	assert.Equal(t, scheduler.Idle, f.sched.State())
	assert.Equal(t, 1, report.Accounts)
	assert.Equal(t, []string{"alice"}, f.source.fetched())
	assert.Equal(t, []string{"alice", "bob"}, f.service.List())

	f.source.mu.Lock()
	f.source.onFetch = nil
	f.source.mu.Unlock()

	report = f.sched.Tick(ctx)

	assert.Equal(t, scheduler.Report{Accounts: 2, Sent: 1, Unchanged: 1}, report)
	cursor, _ := f.service.Cursor("bob")
	assert.Equal(t, "7", cursor)
}

func TestStartRunsFirstTickAndStopWaits(t *testing.T) {
	f := newFixture(t, context.Background(), "alice")
	f.source.items["alice"] = domain.Item{ID: "100", Body: "hi"}

	fetched := make(chan struct{}, 1)
	f.source.onFetch = func(string) {
		select {
		case fetched <- struct{}{}:
		default:
		}
	}

	require.NoError(t, f.sched.Start())

	select {
	case <-fetched:
	case <-time.After(5 * time.Second):
		t.Fatal("first tick did not run")
	}

	f.sched.Stop()

	assert.Equal(t, scheduler.Idle, f.sched.State())
	cursor, _ := f.service.Cursor("alice")
	assert.Equal(t, "100", cursor)
}

func TestStartWithCancelledContextSkipsTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFixture(t, ctx, "alice")
	f.source.items["alice"] = domain.Item{ID: "100", Body: "hi"}

	require.NoError(t, f.sched.Start())
	f.sched.Stop()

	assert.Empty(t, f.source.fetched())
	assert.Empty(t, f.notifier.sent())
}

func TestStartRejectsShortInterval(t *testing.T) {
	svc := watch.NewService(nil, 0, slog.Default())
	sched := scheduler.New(context.Background(), svc, &stubSource{}, nil, 500*time.Millisecond, slog.Default())

	assert.Error(t, sched.Start())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", scheduler.Idle.String())
	assert.Equal(t, "polling", scheduler.Polling.String())
}
