// Package ratelimit paces outgoing Opsgenie API requests and tracks the
// remote throttle state reported by the X-RateLimit-* response headers.
// A single Pacer is shared by every concurrent fetch task so the combined
// request rate stays below the account limit.
package ratelimit

import (
	"time"
)

// Redis keys for shared throttle state storage.
const (
	RedisKeyState         = "genie:rate_limit:state"
	RedisKeyReason        = "genie:rate_limit:reason"
	RedisKeyPeriodSeconds = "genie:rate_limit:period_seconds"
	RedisKeyLastUpdate    = "genie:rate_limit:last_update"
)

// Values of the X-RateLimit-State header.
const (
	StateOK        = "OK"
	StateThrottled = "THROTTLED"
)

// ThrottleState is the most recent rate limit state reported by the API.
// When a Redis client is configured the state is shared across exporter
// instances using the same API key.
type ThrottleState struct {
	// State is the raw X-RateLimit-State value (OK or THROTTLED).
	State string `json:"state"`

	// Reason is the X-RateLimit-Reason value when throttled.
	Reason string `json:"reason"`

	// PeriodSeconds is the X-RateLimit-Period-In-Sec window length.
	PeriodSeconds int `json:"period_seconds"`

	// LastUpdate is when this state was last refreshed from headers.
	LastUpdate time.Time `json:"last_update"`
}

// IsThrottled reports whether the API signalled throttling.
func (s *ThrottleState) IsThrottled() bool {
	return s.State == StateThrottled
}

// IsStale returns true if the state is older than maxAge. Stale throttle
// state is treated as healthy rather than blocking requests forever.
func (s *ThrottleState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// BackoffDuration returns how long a caller should pause when throttled.
// The reported period is used when present, bounded to keep a single pause
// from stalling a fetch indefinitely.
func (s *ThrottleState) BackoffDuration() time.Duration {
	if !s.IsThrottled() {
		return 0
	}
	d := time.Duration(s.PeriodSeconds) * time.Second
	if d <= 0 {
		d = 1 * time.Second
	}
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}
