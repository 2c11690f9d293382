package source

import (
	"fmt"
	"strings"
)

const DefaultPermalinkBase = "https://x.com"

// Links builds user-facing URLs for handles and items.
type Links struct {
	Base string
}

func NewLinks(base string) Links {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultPermalinkBase
	}

	return Links{Base: base}
}

func (l Links) Profile(handle string) string {
	return fmt.Sprintf("%s/%s", l.base(), handle)
}

func (l Links) Status(handle string, itemID string) string {
	return fmt.Sprintf("%s/%s/status/%s", l.base(), handle, itemID)
}

func (l Links) base() string {
	if l.Base == "" {
		return DefaultPermalinkBase
	}
	return l.Base
}
