package store

import (
	"context"
	"fmt"
	"postwatch/internal/domain"
	"slices"
)

type AddResult int

const (
	Added AddResult = iota
	AlreadyPresent
)

func (r AddResult) String() string {
	switch r {
	case Added:
		return "added"
	case AlreadyPresent:
		return "already_present"
	default:
		return "unknown"
	}
}

// Backend durably stores the whole WatchState as one unit.
type Backend interface {
	Load(ctx context.Context) (domain.WatchState, error)
	Save(ctx context.Context, state domain.WatchState) error
	Close() error
}

// WatchStore keeps the working copy of WatchState and writes it through to
// the backend on every mutation. It is not safe for concurrent use; callers
// serialize access.
type WatchStore struct {
	backend Backend
	state   domain.WatchState
}

func Open(ctx context.Context, backend Backend) (*WatchStore, error) {
	state, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	return &WatchStore{backend: backend, state: state.Normalize()}, nil
}

func (s *WatchStore) Save(ctx context.Context) error {
	if err := s.backend.Save(ctx, s.state.Clone()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// AddAccount appends handle to the watch-set. A failed save rolls the insert
// back so memory never runs ahead of the durable copy.
func (s *WatchStore) AddAccount(ctx context.Context, handle string) (AddResult, error) {
	if slices.Contains(s.state.Users, handle) {
		return AlreadyPresent, nil
	}

	s.state.Users = append(s.state.Users, handle)

	if err := s.Save(ctx); err != nil {
		s.state.Users = s.state.Users[:len(s.state.Users)-1]
		return Added, err
	}

	return Added, nil
}

func (s *WatchStore) ListAccounts() []string {
	return slices.Clone(s.state.Users)
}

func (s *WatchStore) Count() int {
	return len(s.state.Users)
}

// SetCursor records itemID as the last notified item for handle. Unknown
// handles are stored too; stale cursors are never purged.
func (s *WatchStore) SetCursor(ctx context.Context, handle string, itemID string) error {
	prev, hadPrev := s.state.LastIDs[handle]
	s.state.LastIDs[handle] = itemID

	if err := s.Save(ctx); err != nil {
		if hadPrev {
			s.state.LastIDs[handle] = prev
		} else {
			delete(s.state.LastIDs, handle)
		}
		return err
	}

	return nil
}

func (s *WatchStore) GetCursor(handle string) (string, bool) {
	id, ok := s.state.LastIDs[handle]
	return id, ok
}

func (s *WatchStore) State() domain.WatchState {
	return s.state.Clone()
}

func (s *WatchStore) Close() error {
	return s.backend.Close()
}
