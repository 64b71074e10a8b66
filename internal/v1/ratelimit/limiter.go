// Package ratelimit throttles inbound WebSocket events per client using an
// in-memory token store. Cross-process sharing is not needed: each room
// lives in exactly one process, so there is no Redis-backed store here.
package ratelimit

import (
	"context"
	"fmt"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/partyline/soundclash/internal/v1/config"
	"github.com/partyline/soundclash/internal/v1/logging"
	"github.com/partyline/soundclash/internal/v1/metrics"
)

// RateLimiter enforces a per-client event rate for inbound WebSocket traffic.
type RateLimiter struct {
	wsEvents *limiter.Limiter
}

// NewRateLimiter builds a RateLimiter from the configured
// RATE_LIMIT_WS_EVENTS rate (e.g. "20-S" for 20 events per second).
func NewRateLimiter(cfg *config.Config) (*RateLimiter, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsEvents)
	if err != nil {
		return nil, fmt.Errorf("invalid WS event rate: %w", err)
	}

	store := memory.NewStore()
	return &RateLimiter{
		wsEvents: limiter.New(store, rate),
	}, nil
}

// Allow reports whether clientID may emit another event of eventType right
// now, recording the decision in metrics. Buckets are keyed by connection
// and event name, so a flood of one event cannot starve a client's other
// events. Fails open: a store error is logged but does not block the
// client, since availability of the game matters more than strict
// enforcement of a local counter.
func (rl *RateLimiter) Allow(ctx context.Context, clientID, eventType string) bool {
	metrics.RateLimitRequests.WithLabelValues(eventType).Inc()

	result, err := rl.wsEvents.Get(ctx, clientID+":"+eventType)
	if err != nil {
		logging.Error(ctx, "rate limiter store failed", zap.Error(err))
		return true
	}

	if result.Reached {
		metrics.RateLimitExceeded.WithLabelValues(eventType).Inc()
		return false
	}
	return true
}
