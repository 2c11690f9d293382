package notify

import (
	"context"
	"fmt"
	"log/slog"
	"postwatch/internal/domain"
	"postwatch/internal/markdown"
	"postwatch/internal/source"
	"strings"
)

const emptyBodyPlaceholder = "(no text)"

// Notifier delivers a rendered MarkdownV2 message to a destination chat.
type Notifier interface {
	Send(ctx context.Context, destination int64, text string) error
}

// Dispatcher renders a delta into the notification template and sends it to
// the single configured destination.
type Dispatcher struct {
	notifier    Notifier
	destination int64
	links       source.Links
	log         *slog.Logger
}

func NewDispatcher(notifier Notifier, destination int64, links source.Links, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		notifier:    notifier,
		destination: destination,
		links:       links,
		log:         log,
	}
}

// Notify returns nil only when the message was sent. Every failure wraps
// domain.ErrSendFailed.
func (d *Dispatcher) Notify(ctx context.Context, handle string, item domain.Item) error {
	text := d.Render(handle, item)

	if err := d.notifier.Send(ctx, d.destination, text); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSendFailed, err)
	}

	d.log.InfoContext(ctx, "Notification is sent",
		"handle", handle,
		"itemID", item.ID,
		"destination", d.destination)

	return nil
}

func (d *Dispatcher) Render(handle string, item domain.Item) string {
	body := strings.ToValidUTF8(strings.TrimSpace(item.Body), "?")
	if body == "" {
		body = emptyBodyPlaceholder
	}

	permalink := d.links.Status(handle, item.ID)

	header := fmt.Sprintf("🕊 *New post from @%s*\n\n", markdown.EscapeV2(handle))
	footer := "\n\n🔗 " + markdown.Link(permalink, permalink)

	// Long posts are cut so the header and the permalink always fit.
	bodyLimit := markdown.TelegramMessageMaxLength - markdown.Length(header) - markdown.Length(footer)

	var b strings.Builder
	b.WriteString(header)
	b.WriteString(markdown.EscapeV2Truncated(body, bodyLimit))
	b.WriteString(footer)

	return b.String()
}
