package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	usernameKeyPrefix = "loan-engine:customer-id:"
	DefaultTTL        = 10 * time.Minute
)

// Directory resolves usernames to customer ids.
type Directory interface {
	CustomerIDByUsername(ctx context.Context, username string) (int64, error)
}

// CustomerDirectory keeps username lookups in Redis in front of another Directory.
// Redis failures are logged and the lookup falls through; only successful lookups are cached.
type CustomerDirectory struct {
	client redis.Cmdable
	next   Directory
	ttl    time.Duration
	logger *slog.Logger
}

func NewCustomerDirectory(client redis.Cmdable, next Directory, ttl time.Duration, logger *slog.Logger) *CustomerDirectory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CustomerDirectory{
		client: client,
		next:   next,
		ttl:    ttl,
		logger: logger.With("component", "CustomerDirectoryCache"),
	}
}

func usernameKey(username string) string {
	return usernameKeyPrefix + username
}

func (d *CustomerDirectory) CustomerIDByUsername(ctx context.Context, username string) (int64, error) {
	key := usernameKey(username)

	id, err := d.client.Get(ctx, key).Int64()
	switch {
	case err == nil:
		d.logger.DebugContext(ctx, "Customer id served from cache", slog.String("username", username))
		return id, nil
	case !errors.Is(err, redis.Nil):
		d.logger.WarnContext(ctx, "Cache read failed, falling back to storage", slog.String("key", key), slog.Any("error", err))
	}

	id, err = d.next.CustomerIDByUsername(ctx, username)
	if err != nil {
		return 0, err
	}

	if err := d.client.Set(ctx, key, strconv.FormatInt(id, 10), d.ttl).Err(); err != nil {
		d.logger.WarnContext(ctx, "Cache write failed", slog.String("key", key), slog.Any("error", err))
	}
	return id, nil
}
