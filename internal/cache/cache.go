// Package cache stores serialized nested summaries in redis, keyed by reload.
// Reload ids are unique across processes, so a shared or restarted redis never
// serves summaries of another dataset.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/visionzero/backend/internal/domain"
	"github.com/visionzero/backend/internal/logger"
	"github.com/visionzero/backend/internal/metrics"
)

// SummaryCache caches nested summaries per reload id and mode
type SummaryCache interface {
	GetNested(ctx context.Context, reloadID string, mode domain.ModeType) (*domain.NestedSummary, bool)
	SetNested(ctx context.Context, reloadID string, mode domain.ModeType, summary *domain.NestedSummary)
	Close() error
}

// Key builds the redis key of one nested summary
func Key(reloadID string, mode domain.ModeType) string {
	return fmt.Sprintf("visionzero:nested:%s:%s", reloadID, mode)
}

// Redis is a SummaryCache backed by a redis client
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to url and pings it. An empty url, a bad url or an unreachable
// server yields a Nop cache; the failure is logged and never fatal.
func NewRedis(ctx context.Context, url string, ttl time.Duration) SummaryCache {
	if url == "" {
		return Nop{}
	}
	if !strings.Contains(url, "://") {
		url = "redis://" + url
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		logger.L().Warn("redis_url_invalid", "err", err)
		return Nop{}
	}
	opt.DialTimeout = 2 * time.Second

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.L().Warn("redis_unreachable", "addr", opt.Addr, "err", err)
		_ = client.Close()
		return Nop{}
	}
	logger.L().Info("redis_connected", "addr", opt.Addr, "ttl", ttl.String())
	return &Redis{client: client, ttl: ttl}
}

// GetNested returns the cached summary; decode and transport errors count as misses
func (c *Redis) GetNested(ctx context.Context, reloadID string, mode domain.ModeType) (*domain.NestedSummary, bool) {
	s, err := c.client.Get(ctx, Key(reloadID, mode)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L().Debug("redis_get_failed", "err", err)
		}
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	var out domain.NestedSummary
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.Inc()
	return &out, true
}

// SetNested stores summary with the configured TTL
func (c *Redis) SetNested(ctx context.Context, reloadID string, mode domain.ModeType, summary *domain.NestedSummary) {
	b, err := json.Marshal(summary)
	if err != nil {
		logger.L().Warn("cache_encode_failed", "mode", mode, "err", err)
		return
	}
	if err := c.client.Set(ctx, Key(reloadID, mode), b, c.ttl).Err(); err != nil {
		logger.L().Debug("redis_set_failed", "err", err)
	}
}

// Close closes the client
func (c *Redis) Close() error {
	return c.client.Close()
}

// Nop never caches
type Nop struct{}

func (Nop) GetNested(context.Context, string, domain.ModeType) (*domain.NestedSummary, bool) {
	metrics.CacheMissesTotal.Inc()
	return nil, false
}

func (Nop) SetNested(context.Context, string, domain.ModeType, *domain.NestedSummary) {}

func (Nop) Close() error { return nil }
