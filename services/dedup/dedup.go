// Package dedup remembers push-ingress message ids in Redis so repeated webhook deliveries
// short-circuit before classification. The violation ledger remains authoritative.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/interfaces"
	"github.com/customeros/violationstack/internal/tracing"
)

const (
	DefaultTTL = 72 * time.Hour

	keyPrefix = "violationstack:seen:"
)

type redisCommands interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

type Filter struct {
	rdb redisCommands
	ttl time.Duration
}

func NewFilter(rdb redisCommands, ttl time.Duration) *Filter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Filter{rdb: rdb, ttl: ttl}
}

// NewFromConfig returns a no-op filter when Redis is not configured.
func NewFromConfig(cfg *config.RedisConfig) interfaces.DedupFilter {
	if cfg == nil || cfg.Addr == "" {
		return NoopFilter{}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewFilter(rdb, cfg.DedupTTL)
}

func Key(tenantID, messageID string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, tenantID, messageID)
}

func (f *Filter) Seen(ctx context.Context, key string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "DedupFilter.Seen")
	defer span.Finish()
	tracing.TagComponentService(span)

	n, err := f.rdb.Exists(ctx, key).Result()
	if err != nil {
		tracing.TraceErr(span, err)
		return false, errors.Wrap(err, "dedup EXISTS")
	}
	return n > 0, nil
}

func (f *Filter) Mark(ctx context.Context, key string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "DedupFilter.Mark")
	defer span.Finish()
	tracing.TagComponentService(span)

	if _, err := f.rdb.SetNX(ctx, key, 1, f.ttl).Result(); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "dedup SETNX")
	}
	return nil
}

type NoopFilter struct{}

func (NoopFilter) Seen(context.Context, string) (bool, error) {
	return false, nil
}

func (NoopFilter) Mark(context.Context, string) error {
	return nil
}
