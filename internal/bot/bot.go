package bot

import (
	"context"
	"fmt"
	"log/slog"
	"postwatch/internal/ratelimiter"
	"postwatch/internal/source"
	"postwatch/internal/watch"
	"slices"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const updateProcessingTimeout = 60 * time.Second

type messenger interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
}

type Bot struct {
	api          *tgbot.Bot
	messenger    messenger
	rateLimiter  *ratelimiter.RateLimiter
	service      *watch.Service
	links        source.Links
	allowedUsers []int64
	log          *slog.Logger
}

func New(
	token string,
	service *watch.Service,
	links source.Links,
	allowedUsers []int64,
	log *slog.Logger,
) (*Bot, error) {
	b := newBot(nil, service, links, allowedUsers, log)

	api, err := tgbot.New(
		strings.TrimSpace(token),
		tgbot.WithDefaultHandler(b.handleUpdate),
		tgbot.WithWorkers(1),
		tgbot.WithErrorsHandler(func(err error) {
			log.Error("Failed to get updates",
				"error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	b.api = api
	b.messenger = api

	return b, nil
}

func newBot(
	m messenger,
	service *watch.Service,
	links source.Links,
	allowedUsers []int64,
	log *slog.Logger,
) *Bot {
	return &Bot{
		messenger:    m,
		rateLimiter:  ratelimiter.New(log),
		service:      service,
		links:        links,
		allowedUsers: allowedUsers,
		log:          log,
	}
}

// Start registers the command list and long-polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	if _, err := b.api.SetMyCommands(ctx, &tgbot.SetMyCommandsParams{
		Commands: botCommands(),
	}); err != nil {
		b.log.WarnContext(ctx, "Failed to set bot commands",
			"error", err)
	}

	b.api.Start(ctx)

	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

// Send delivers a MarkdownV2 message with link previews disabled.
func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	if err := b.rateLimiter.Wait(ctx, chatID); err != nil {
		return err
	}

	if _, err := b.messenger.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: tgbot.True(),
		},
	}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update == nil || update.Message == nil {
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	message := update.Message
	chatID := message.Chat.ID

	var userID int64
	var username string
	if message.From != nil {
		userID = message.From.ID
		username = message.From.Username
	}

	if !b.userAllowed(userID) {
		b.log.DebugContext(updateCtx, "User is not allowed",
			"userID", userID,
			"chatID", chatID,
			"username", username,
			"chatType", message.Chat.Type)

		return
	}

	texts, err := b.reply(updateCtx, message.Text)
	if err != nil {
		b.log.ErrorContext(updateCtx, "Failed to handle command",
			"error", err,
			"chatID", chatID,
			"userID", userID,
			"messageID", message.ID)
	}

	for i, text := range texts {
		if err = b.Send(updateCtx, chatID, text); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to send reply",
				"error", err,
				"chatID", chatID,
				"userID", userID,
				"messageID", message.ID,
				"part", i+1,
				"parts", len(texts))

			return
		}
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

func botCommands() []models.BotCommand {
	return []models.BotCommand{
		{Command: "add", Description: "Watch an account"},
		{Command: "list", Description: "Watched accounts"},
		{Command: "status", Description: "Bot status"},
		{Command: "help", Description: "Show help"},
	}
}
