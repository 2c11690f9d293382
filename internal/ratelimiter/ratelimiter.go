package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
	burst           = 1
)

// RateLimiter paces outgoing messages per chat so the bot stays within
// Telegram's per-chat flood limits.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	log      *slog.Logger
}

func New(log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[int64]*rate.Limiter),
		log:      log,
	}
}

// Wait blocks until a message may be sent to chatID or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, chatID int64) error {
	limiter := rl.limiter(chatID)

	if limiter.Tokens() < burst {
		rl.log.DebugContext(ctx, "Rate limiting message",
			"chatID", chatID,
			"rate", getRate(chatID))
	}

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}

	return nil
}

func (rl *RateLimiter) limiter(chatID int64) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[chatID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(getRate(chatID)), burst)
		rl.limiters[chatID] = limiter
	}

	return limiter
}

func getRate(chatID int64) time.Duration {
	if chatID < 0 {
		return groupChatRate
	}
	return privateChatRate
}
