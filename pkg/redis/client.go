package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/ledgersync/pkg/config"
	"github.com/angelmondragon/ledgersync/pkg/logger"
)

const (
	keyNamespace  = "ledgersync"
	lockPrefix    = "lock"
	lastRunPrefix = "last_run"
	historyPrefix = "run_history"

	// HistoryLimit caps the summaries kept per mode.
	HistoryLimit = 50
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = redis.Nil

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
	LPush(context.Context, string, ...any) *redis.IntCmd
	LTrim(context.Context, string, int64, int64) *redis.StatusCmd
	LRange(context.Context, string, int64, int64) *redis.StringSliceCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
}

// Client wraps the redis operations used for run coordination and run summaries.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// New bootstraps a Redis client with pooling/timeouts and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Debug(ctx, "redis connection established")
	}
	return &Client{store: raw, raw: raw}, nil
}

// Configured reports whether the config names a Redis server at all.
func Configured(cfg config.RedisConfig) bool {
	return strings.TrimSpace(cfg.URL) != "" || strings.TrimSpace(cfg.Address) != ""
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if !Configured(cfg) {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Set stores a string value with an optional TTL.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Set(ctx, key, value, ttl).Err()
}

// Get returns a string value stored at key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.store == nil {
		return "", errors.New("redis client not initialized")
	}
	return c.store.Get(ctx, key).Result()
}

// SetNX sets a value only if the key does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errors.New("redis client not initialized")
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

// Del removes the provided keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Del(ctx, keys...).Err()
}

// LockKey returns the key guarding exclusive runs of name.
func (c *Client) LockKey(name string) string {
	return c.buildKey(lockPrefix, name)
}

// LastRunKey returns the key holding the latest run summary for mode.
func (c *Client) LastRunKey(mode string) string {
	return c.buildKey(lastRunPrefix, mode)
}

// HistoryKey returns the list holding recent run summaries for mode, newest first.
func (c *Client) HistoryKey(mode string) string {
	return c.buildKey(historyPrefix, mode)
}

// StoreLastRun records a serialized run summary for mode: it becomes the latest run and is
// pushed onto the history, trimmed to HistoryLimit. Both keys share ttl, renewed each run.
func (c *Client) StoreLastRun(ctx context.Context, mode string, payload []byte, ttl time.Duration) error {
	if err := c.Set(ctx, c.LastRunKey(mode), string(payload), ttl); err != nil {
		return err
	}
	history := c.HistoryKey(mode)
	if err := c.store.LPush(ctx, history, string(payload)).Err(); err != nil {
		return fmt.Errorf("push run history: %w", err)
	}
	if err := c.store.LTrim(ctx, history, 0, HistoryLimit-1).Err(); err != nil {
		return fmt.Errorf("trim run history: %w", err)
	}
	if ttl > 0 {
		if err := c.store.Expire(ctx, history, ttl).Err(); err != nil {
			return fmt.Errorf("expire run history: %w", err)
		}
	}
	return nil
}

// LastRun reads the latest run summary for mode; ErrNotFound when none was recorded.
func (c *Client) LastRun(ctx context.Context, mode string) ([]byte, error) {
	value, err := c.Get(ctx, c.LastRunKey(mode))
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

// RunHistory returns up to limit summaries for mode, newest first. An empty history is not
// an error.
func (c *Client) RunHistory(ctx context.Context, mode string, limit int) ([][]byte, error) {
	if c.store == nil {
		return nil, errors.New("redis client not initialized")
	}
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	values, err := c.store.LRange(ctx, c.HistoryKey(mode), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(values))
	for _, v := range values {
		out = append(out, []byte(v))
	}
	return out, nil
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func (c *Client) buildKey(parts ...string) string {
	if len(parts) == 0 {
		return keyNamespace
	}
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part == "" {
			continue
		}
		clean = append(clean, strings.TrimSpace(part))
	}
	return strings.Join(clean, ":")
}
