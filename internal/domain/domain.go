package domain

import "slices"

// Item is the latest content unit fetched for an account. It is never
// persisted beyond its ID becoming a cursor value.
type Item struct {
	ID   string
	Body string
}

// WatchState is the only persisted entity: the ordered watch-set plus the
// last notified item ID per handle.
type WatchState struct {
	Users   []string          `json:"users"`
	LastIDs map[string]string `json:"last_ids"`
}

func NewWatchState() WatchState {
	return WatchState{
		Users:   []string{},
		LastIDs: map[string]string{},
	}
}

// Normalize replaces nil collections with empty ones so that a decoded
// `null` behaves like the empty state.
func (s WatchState) Normalize() WatchState {
	if s.Users == nil {
		s.Users = []string{}
	}
	if s.LastIDs == nil {
		s.LastIDs = map[string]string{}
	}
	return s
}

func (s WatchState) Clone() WatchState {
	clone := WatchState{
		Users:   slices.Clone(s.Users),
		LastIDs: make(map[string]string, len(s.LastIDs)),
	}
	if clone.Users == nil {
		clone.Users = []string{}
	}

	for handle, id := range s.LastIDs {
		clone.LastIDs[handle] = id
	}

	return clone
}
