package cache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/outfit-wizard-api/pkg/config"
)

const (
	dialTimeout = 3 * time.Second
	ioTimeout   = time.Second
	pingTries   = 3
)

// Options maps the Redis settings onto client options.
func Options(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	}
}

// NewRedis returns a connected client, or nil when Redis is disabled.
// The preference cache is optional, so callers decide how to treat errors.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	opts := Options(cfg)
	client := redis.NewClient(opts)

	var err error
	for attempt := 1; attempt <= pingTries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return client, nil
		}
		select {
		case <-ctx.Done():
			attempt = pingTries
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		}
	}
	_ = client.Close()
	return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
}
