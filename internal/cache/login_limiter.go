package cache

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// LoginLimiter counts login attempts per client in a fixed Redis window.
type LoginLimiter struct {
	client   *redisv9.Client
	attempts int
	window   time.Duration
}

func NewLoginLimiter(client *redisv9.Client, attempts int, window time.Duration) *LoginLimiter {
	if attempts <= 0 {
		attempts = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &LoginLimiter{
		client:   client,
		attempts: attempts,
		window:   window,
	}
}

// Allow increments the window counter for the client and reports whether the
// attempt is within the limit. The first attempt in a window sets the expiry.
func (l *LoginLimiter) Allow(ctx context.Context, clientIP string) (bool, error) {
	key := l.attemptKey(clientIP)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis incr login counter failed: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("redis expire login counter failed: %w", err)
		}
	}
	return count <= int64(l.attempts), nil
}

func (l *LoginLimiter) attemptKey(clientIP string) string {
	return fmt.Sprintf("board:login:attempts:%s", clientIP)
}
