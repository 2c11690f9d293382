package bot

import (
	"context"
	"fmt"
	"postwatch/internal/markdown"
	"postwatch/internal/store"
	"postwatch/internal/watch"
	"strings"
)

const welcomeText = `👋 *Hi\! I relay new posts from watched accounts\.*

Commands:
/add username \- watch an account
/list \- watched accounts
/status \- bot status`

const (
	usageText     = "❗ Usage: /add username \\(without @\\)"
	emptyListText = "📭 Nothing is watched yet\\. Add someone with /add"
	failedText    = "❌ Failed\\."

	listHeader         = "📋 *Watched accounts:*\n"
	listContinueHeader = "📋 *Watched accounts \\(continue\\):*\n"
)

// reply runs the command in text and returns the MarkdownV2 answer, split
// into messages that each fit the Telegram limit. Text that is not a command
// gets no answer. The answer is always usable; a non-nil error is for
// logging only.
func (b *Bot) reply(ctx context.Context, text string) ([]string, error) {
	command, arg := parseCommand(text)

	switch command {
	case "":
		return nil, nil
	case "add":
		message, err := b.handleAddCommand(ctx, arg)
		return []string{message}, err
	case "list":
		return b.handleListCommand(), nil
	case "status":
		return []string{b.handleStatusCommand()}, nil
	default:
		return []string{welcomeText}, nil
	}
}

func (b *Bot) handleAddCommand(ctx context.Context, arg string) (string, error) {
	if arg == "" {
		return usageText, nil
	}

	res, err := b.service.Add(ctx, arg)
	if err != nil {
		if watch.IsInvalidArgument(err) {
			return fmt.Sprintf("❗ %s is not a valid username\\.\n\n%s", markdown.EscapeV2(arg), usageText), nil
		}

		return failedText, fmt.Errorf("add account: %w", err)
	}

	profile := markdown.EscapeV2(b.links.Profile(res.Handle))
	h := markdown.EscapeV2(res.Handle)

	if res.Result == store.AlreadyPresent {
		return fmt.Sprintf("⚠️ @%s is already watched\\.\n🔗 %s", h, profile), nil
	}

	return fmt.Sprintf("✅ Now watching @%s\n🔗 %s", h, profile), nil
}

func (b *Bot) handleListCommand() []string {
	handles := b.service.List()
	if len(handles) == 0 {
		return []string{emptyListText}
	}

	lines := make([]string, 0, len(handles))
	for _, h := range handles {
		lines = append(lines, fmt.Sprintf("\n@%s → %s",
			markdown.EscapeV2(h),
			markdown.EscapeV2(b.links.Profile(h))))
	}

	return splitMessages(listHeader, listContinueHeader, lines)
}

// splitMessages packs lines after header into as few messages as fit the
// Telegram limit. Every message after the first starts with continueHeader.
func splitMessages(header string, continueHeader string, lines []string) []string {
	var messages []string
	var current strings.Builder

	current.WriteString(header)
	headerLength := markdown.Length(header)
	currentLength := headerLength

	for _, line := range lines {
		lineLength := markdown.Length(line)

		if currentLength+lineLength > markdown.TelegramMessageMaxLength && currentLength > headerLength {
			messages = append(messages, current.String())
			current.Reset()
			current.WriteString(continueHeader)
			headerLength = markdown.Length(continueHeader)
			currentLength = headerLength
		}

		current.WriteString(line)
		currentLength += lineLength
	}

	return append(messages, current.String())
}

func (b *Bot) handleStatusCommand() string {
	status := b.service.Status()

	return fmt.Sprintf("🟢 Bot is running\\.\nChecking %d accounts every %d sec\\.",
		status.Count,
		status.IntervalSeconds())
}

// parseCommand splits "/cmd@botname arg ..." into "cmd" and the first
// argument. Text that is not a command yields an empty command.
func parseCommand(text string) (string, string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", ""
	}

	command, _, _ := strings.Cut(strings.TrimPrefix(fields[0], "/"), "@")
	command = strings.ToLower(command)

	if len(fields) < 2 {
		return command, ""
	}

	return command, fields[1]
}
