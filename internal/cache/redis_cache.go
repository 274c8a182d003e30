package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"fiadopos/internal/domain"
)

const summaryKey = "fiadopos:summary:v1"

// Redis caches the dashboard summary in a Redis instance. Failures are
// logged and swallowed: the cache is an accelerator, never a source of
// truth.
type Redis struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, addr string, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context) (*domain.SummaryReport, bool) {
	raw, err := r.client.Get(ctx, summaryKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("[cache] WARN: summary get failed: %v", err)
		return nil, false
	}
	var report domain.SummaryReport
	if err := json.Unmarshal(raw, &report); err != nil {
		log.Printf("[cache] WARN: summary decode failed, dropping entry: %v", err)
		r.Invalidate(ctx)
		return nil, false
	}
	return &report, true
}

func (r *Redis) Set(ctx context.Context, report *domain.SummaryReport, ttl time.Duration) {
	raw, err := json.Marshal(report)
	if err != nil {
		log.Printf("[cache] WARN: summary encode failed: %v", err)
		return
	}
	if err := r.client.Set(ctx, summaryKey, raw, ttl).Err(); err != nil {
		log.Printf("[cache] WARN: summary set failed: %v", err)
	}
}

func (r *Redis) Invalidate(ctx context.Context) {
	if err := r.client.Del(ctx, summaryKey).Err(); err != nil {
		log.Printf("[cache] WARN: summary invalidate failed: %v", err)
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
