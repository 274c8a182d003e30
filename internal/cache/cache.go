package cache

import (
	"context"
	"time"

	"fiadopos/internal/domain"
)

// SummaryCache holds the computed dashboard summary so repeated report
// requests do not rescan the full dataset. Misses and backend failures are
// treated the same: callers recompute.
type SummaryCache interface {
	Get(ctx context.Context) (*domain.SummaryReport, bool)
	Set(ctx context.Context, report *domain.SummaryReport, ttl time.Duration)
	Invalidate(ctx context.Context)
	Close() error
}

// Noop is used when Redis is not configured.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (*Noop) Get(context.Context) (*domain.SummaryReport, bool)         { return nil, false }
func (*Noop) Set(context.Context, *domain.SummaryReport, time.Duration) {}
func (*Noop) Invalidate(context.Context)                                {}
func (*Noop) Close() error                                              { return nil }
