package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// DefaultRequestsPerSecond matches the pacing the exporter has always used
// between alert list pages (one request every 500ms).
const DefaultRequestsPerSecond = 2

// Pacer is a token bucket shared by every concurrent fetch task. Each task
// waits for a token before issuing a request, so N parallel chunk workers
// collectively stay under the configured rate instead of each pacing only
// itself.
type Pacer struct {
	limiter *rate.Limiter
	tracker *Tracker
}

// NewPacer creates a pacer allowing requestsPerSecond sustained requests with
// a burst of one. Zero or negative rates fall back to the default. tracker
// may be nil when remote throttle signals should be ignored.
func NewPacer(requestsPerSecond float64, tracker *Tracker) *Pacer {
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultRequestsPerSecond
	}
	return &Pacer{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		tracker: tracker,
	}
}

// Wait blocks until a request may be issued: first any remote throttle
// backoff, then the token bucket. Returns the context error when cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.tracker != nil {
		if err := p.tracker.WaitIfThrottled(ctx); err != nil {
			return err
		}
	}
	return p.limiter.Wait(ctx)
}

// WaitN blocks until n requests may be issued, for callers whose single
// logical operation fans out into several HTTP requests.
func (p *Pacer) WaitN(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := p.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
