package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"postwatch/internal/domain"
	"postwatch/internal/source"
	"postwatch/internal/watch"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

const MinInterval = time.Second

type State int32

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// Watchlist is the lock-guarded view of the watch state used by a tick.
type Watchlist interface {
	Snapshot() []string
	Cursor(handle string) (string, bool)
	Commit(ctx context.Context, handle string, itemID string) error
}

type Dispatcher interface {
	Notify(ctx context.Context, handle string, item domain.Item) error
}

// Report summarizes one tick.
type Report struct {
	Accounts     int
	Sent         int
	Unchanged    int
	NotFound     int
	SourceErrors int
	SendErrors   int
	CommitErrors int
}

type Scheduler struct {
	ctx        context.Context
	cron       *cron.Cron
	interval   time.Duration
	watchlist  Watchlist
	source     source.Source
	dispatcher Dispatcher
	state      atomic.Int32
	firstRun   sync.WaitGroup
	log        *slog.Logger
}

func New(
	ctx context.Context,
	watchlist Watchlist,
	src source.Source,
	dispatcher Dispatcher,
	interval time.Duration,
	log *slog.Logger,
) *Scheduler {
	logger := cronLogger{log: log}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	return &Scheduler{
		ctx:        ctx,
		cron:       c,
		interval:   interval,
		watchlist:  watchlist,
		source:     src,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Start schedules a tick every interval and runs the first one right away.
func (s *Scheduler) Start() error {
	if s.interval < MinInterval {
		return fmt.Errorf("interval is too short (interval = %s, min = %s)", s.interval, MinInterval)
	}

	id := s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(s.runTick))

	// The wrapped job shares the skip-if-running guard with scheduled runs.
	job := s.cron.Entry(id).WrappedJob
	s.cron.Start()
	s.firstRun.Go(job.Run)

	return nil
}

// Stop stops scheduling new ticks and waits for a running one to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.firstRun.Wait()
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

func (s *Scheduler) runTick() {
	select {
	case <-s.ctx.Done():
		s.log.InfoContext(s.ctx, "Scheduler context is done",
			"error", s.ctx.Err())
		return
	default:
	}

	// A started tick runs to completion even if shutdown begins meanwhile.
	ctx := context.WithoutCancel(s.ctx)
	start := time.Now()

	report := s.Tick(ctx)

	s.log.InfoContext(ctx, "Tick is finished",
		"accounts", report.Accounts,
		"sent", report.Sent,
		"unchanged", report.Unchanged,
		"notFound", report.NotFound,
		"sourceErrors", report.SourceErrors,
		"sendErrors", report.SendErrors,
		"commitErrors", report.CommitErrors,
		"durationSeconds", time.Since(start).Seconds())
}

// Tick makes one pass over a snapshot of the watch-set in listed order.
// Per-account failures are logged and counted, never returned.
func (s *Scheduler) Tick(ctx context.Context) Report {
	s.state.Store(int32(Polling))
	defer s.state.Store(int32(Idle))

	handles := s.watchlist.Snapshot()
	report := Report{Accounts: len(handles)}

	for _, h := range handles {
		s.processAccount(ctx, h, &report)
	}

	return report
}

func (s *Scheduler) processAccount(ctx context.Context, h string, report *Report) {
	item, err := s.source.FetchLatest(ctx, h)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			report.NotFound++
			s.log.WarnContext(ctx, "Account is not found",
				"error", err,
				"handle", h)

			return
		}

		report.SourceErrors++
		s.log.ErrorContext(ctx, "Failed to fetch latest item",
			"error", err,
			"handle", h)

		return
	}

	cursor, hasCursor := s.watchlist.Cursor(h)
	if watch.Detect(cursor, hasCursor, item) == watch.Unchanged {
		report.Unchanged++
		return
	}

	if err = s.dispatcher.Notify(ctx, h, item); err != nil {
		report.SendErrors++
		s.log.ErrorContext(ctx, "Failed to send notification",
			"error", err,
			"handle", h,
			"itemID", item.ID,
			"cursor", cursor)

		return
	}

	report.Sent++

	if err = s.watchlist.Commit(ctx, h, item.ID); err != nil {
		report.CommitErrors++
		s.log.ErrorContext(ctx, "Failed to commit cursor",
			"error", err,
			"handle", h,
			"itemID", item.ID)
	}
}

type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
