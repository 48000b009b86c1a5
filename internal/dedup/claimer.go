// Package dedup guards a message against concurrent processing by two sync
// runs. The processed_emails ledger remains the source of truth.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Claimer hands out short-lived claims on (user, email) pairs.
type Claimer interface {
	// Claim reports whether the caller may process the message.
	Claim(ctx context.Context, userID, emailID string) bool
	Release(ctx context.Context, userID, emailID string)
}

// Noop grants every claim. It is used when no redis is configured.
type Noop struct{}

func (Noop) Claim(context.Context, string, string) bool { return true }
func (Noop) Release(context.Context, string, string)    {}

type RedisClaimer struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisClaimer(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisClaimer {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisClaimer{rdb: rdb, ttl: ttl, prefix: "purchase-sync:claim", logger: logger}
}

func (c *RedisClaimer) key(userID, emailID string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, userID, emailID)
}

// Claim fails open: when redis is unreachable the message is processed and
// the ledger's unique key decides.
func (c *RedisClaimer) Claim(ctx context.Context, userID, emailID string) bool {
	key := c.key(userID, emailID)
	ok, err := c.rdb.SetNX(ctx, key, 1, c.ttl).Result()
	if err != nil {
		c.logger.Warn("dedup.claim.redis_failed", "user_id", userID, "email_id", emailID, "error", err)
		return true
	}
	if !ok {
		c.logger.Info("dedup.claim.held", "user_id", userID, "email_id", emailID, "key", key)
	}
	return ok
}

func (c *RedisClaimer) Release(ctx context.Context, userID, emailID string) {
	if err := c.rdb.Del(ctx, c.key(userID, emailID)).Err(); err != nil {
		c.logger.Warn("dedup.release.redis_failed", "user_id", userID, "email_id", emailID, "error", err)
	}
}
