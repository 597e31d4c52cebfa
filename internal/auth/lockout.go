package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lockout tracks consecutive failed logins per account in Redis. Counters
// expire on their own after the window; a successful login resets them.
type Lockout struct {
	client *redis.Client
	max    int
	window time.Duration
}

// NewLockout constructs a Lockout limiter.
func NewLockout(client *redis.Client, max int, window time.Duration) *Lockout {
	return &Lockout{client: client, max: max, window: window}
}

// Note records a failed attempt and reports whether the account crossed the
// lockout threshold with this failure.
func (l *Lockout) Note(ctx context.Context, email string) (bool, error) {
	if l == nil || l.client == nil {
		return false, nil
	}
	key := l.key(email)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("auth: lockout incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("auth: lockout expire: %w", err)
		}
	}
	return count >= int64(l.max), nil
}

// Reset clears the failure counter after a successful login.
func (l *Lockout) Reset(ctx context.Context, email string) error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Del(ctx, l.key(email)).Err()
}

func (l *Lockout) key(email string) string {
	return "login_failures:" + strings.ToLower(email)
}
