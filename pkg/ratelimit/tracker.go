package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for throttle tracking.
var (
	genieThrottled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "genie_api_throttled",
		Help: "1 when the Opsgenie API reports THROTTLED, 0 otherwise",
	})

	genieThrottleEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genie_api_throttle_events_total",
		Help: "Total number of responses carrying a THROTTLED rate limit state",
	})

	genieThrottleWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genie_api_throttle_waits_total",
		Help: "Total number of requests delayed due to remote throttling",
	})
)

// staleAfter is how long a throttle signal is honored before being ignored.
const staleAfter = 2 * time.Minute

// Tracker monitors the Opsgenie rate limit headers and tells callers when to
// back off. State lives in memory; when a Redis client is supplied it is
// mirrored there so multiple exporter instances sharing one API key see the
// same throttle signal.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	mu    sync.RWMutex
	state ThrottleState
}

// NewTracker creates a new throttle tracker. redisClient may be nil for
// single-process use.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		state:  ThrottleState{State: StateOK, LastUpdate: time.Now()},
	}
}

// GetState retrieves the current throttle state, preferring Redis when
// configured. Missing Redis data falls back to the in-memory state.
func (t *Tracker) GetState(ctx context.Context) (*ThrottleState, error) {
	if t.redis == nil {
		t.mu.RLock()
		defer t.mu.RUnlock()
		s := t.state
		return &s, nil
	}

	stateStr, err := t.redis.Get(ctx, RedisKeyState).Result()
	if err == redis.Nil {
		t.mu.RLock()
		defer t.mu.RUnlock()
		s := t.state
		return &s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get throttle state: %w", err)
	}

	reason, err := t.redis.Get(ctx, RedisKeyReason).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get throttle reason: %w", err)
	}

	period, err := t.redis.Get(ctx, RedisKeyPeriodSeconds).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get throttle period: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get throttle last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse throttle last update: %w", err)
		}
	}

	return &ThrottleState{
		State:         stateStr,
		Reason:        reason,
		PeriodSeconds: period,
		LastUpdate:    lastUpdate,
	}, nil
}

// UpdateFromHeaders parses the X-RateLimit-* response headers and records the
// new state. Responses without the headers leave the state untouched.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	stateStr := headers.Get("X-RateLimit-State")
	if stateStr == "" {
		return nil
	}

	now := time.Now()
	state := ThrottleState{
		State:      stateStr,
		Reason:     headers.Get("X-RateLimit-Reason"),
		LastUpdate: now,
	}

	if periodStr := headers.Get("X-RateLimit-Period-In-Sec"); periodStr != "" {
		period, err := strconv.Atoi(periodStr)
		if err != nil {
			return fmt.Errorf("parse X-RateLimit-Period-In-Sec header: %w", err)
		}
		state.PeriodSeconds = period
	}

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	if t.redis != nil {
		pipe := t.redis.Pipeline()
		pipe.Set(ctx, RedisKeyState, state.State, 0)
		pipe.Set(ctx, RedisKeyReason, state.Reason, 0)
		pipe.Set(ctx, RedisKeyPeriodSeconds, state.PeriodSeconds, 0)

		lastUpdateJSON, err := json.Marshal(state.LastUpdate)
		if err != nil {
			return fmt.Errorf("marshal throttle last update: %w", err)
		}
		pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, 0)

		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("store throttle state in redis: %w", err)
		}
	}

	if state.IsThrottled() {
		genieThrottled.Set(1)
		genieThrottleEventsTotal.Inc()
		t.logger.Warn().
			Str("reason", state.Reason).
			Int("period_seconds", state.PeriodSeconds).
			Msg("Opsgenie API reports THROTTLED")
	} else {
		genieThrottled.Set(0)
	}

	return nil
}

// WaitIfThrottled pauses the caller while the API reports throttling. It is
// called before every request in addition to the Pacer's token wait. Returns
// the context error if cancelled during the pause.
func (t *Tracker) WaitIfThrottled(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		// Redis trouble must not take the fetch down with it.
		t.logger.Warn().Err(err).Msg("Throttle state unavailable, continuing")
		return nil
	}

	if !state.IsThrottled() || state.IsStale(staleAfter) {
		return nil
	}

	wait := state.BackoffDuration()
	genieThrottleWaitsTotal.Inc()
	t.logger.Warn().
		Dur("wait", wait).
		Str("reason", state.Reason).
		Msg("Backing off for remote throttle window")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
