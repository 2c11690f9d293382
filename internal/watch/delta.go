package watch

import "postwatch/internal/domain"

type Delta int

const (
	Unchanged Delta = iota
	New
)

func (d Delta) String() string {
	if d == New {
		return "new"
	}
	return "unchanged"
}

// Detect classifies item against the stored cursor. IDs are compared as
// opaque strings; an account without a cursor always yields New.
func Detect(cursor string, hasCursor bool, item domain.Item) Delta {
	if !hasCursor || cursor != item.ID {
		return New
	}
	return Unchanged
}
