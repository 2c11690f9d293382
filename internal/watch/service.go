package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"postwatch/internal/domain"
	"postwatch/internal/handle"
	"postwatch/internal/store"
	"sync"
	"time"
)

type AddReply struct {
	Handle string
	Result store.AddResult
}

type Status struct {
	Count    int
	Interval time.Duration
}

func (s Status) IntervalSeconds() int {
	return int(s.Interval / time.Second)
}

// Service owns the WatchStore and the single mutex that serializes every
// access to it. The command surface and the poll scheduler share one
// Service; neither calls the network while holding the lock.
type Service struct {
	mu           sync.Mutex
	store        *store.WatchStore
	interval     time.Duration
	profileBases []string
	log          *slog.Logger
}

// NewService builds the service. profileBases are extra sites whose profile
// URLs /add accepts, besides x.com and twitter.com.
func NewService(
	s *store.WatchStore,
	interval time.Duration,
	log *slog.Logger,
	profileBases ...string,
) *Service {
	return &Service{
		store:        s,
		interval:     interval,
		profileBases: profileBases,
		log:          log,
	}
}

// Add normalizes raw and inserts it into the watch-set. An unusable
// argument returns an error wrapping domain.ErrInvalidHandle.
func (s *Service) Add(ctx context.Context, raw string) (AddReply, error) {
	h, err := handle.Normalize(raw, s.profileBases...)
	if err != nil {
		return AddReply{}, fmt.Errorf("normalize handle: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.store.AddAccount(ctx, h)
	if err != nil {
		return AddReply{Handle: h}, fmt.Errorf("add account: %w", err)
	}

	if res == store.Added {
		s.log.InfoContext(ctx, "Account is added",
			"handle", h,
			"count", s.store.Count())
	}

	return AddReply{Handle: h, Result: res}, nil
}

func (s *Service) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.ListAccounts()
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{Count: s.store.Count(), Interval: s.interval}
}

// Snapshot returns the accounts to process in one tick. Later additions do
// not affect a snapshot already taken.
func (s *Service) Snapshot() []string {
	return s.List()
}

func (s *Service) Cursor(h string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.GetCursor(h)
}

// Commit advances the cursor for h and persists it. On a failed save the
// previous cursor stays in effect, so the item is retried next tick.
func (s *Service) Commit(ctx context.Context, h string, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SetCursor(ctx, h, itemID); err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}

	return nil
}

func (s *Service) State() domain.WatchState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.State()
}

func IsInvalidArgument(err error) bool {
	return errors.Is(err, domain.ErrInvalidHandle)
}
