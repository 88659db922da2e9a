// Package fetch retrieves alerts over a caller-supplied time range. Ranges
// up to a week are paged sequentially; wider ranges are split into week-sized
// chunks fetched by a worker pool, merged, and re-sorted. A shared pacer
// bounds the combined request rate across all workers.
package fetch

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/oncall-tools/genie-export/pkg/alert"
	"github.com/oncall-tools/genie-export/pkg/gateway"
	"github.com/oncall-tools/genie-export/pkg/logging"
	"github.com/oncall-tools/genie-export/pkg/ratelimit"
)

// chunkSpan is the widest range fetched as a single paged sequence. Anything
// wider is partitioned into chunks of at most this span.
const chunkSpan = 7 * 24 * time.Hour

// maxPageSize is the list endpoint's page size ceiling.
const maxPageSize = 100

// Prometheus metrics for fetch operations.
var (
	genieFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "genie_fetch_duration_seconds",
		Help:    "Whole-fetch duration in seconds by fetch path",
		Buckets: []float64{1, 5, 15, 60, 300, 900},
	}, []string{"path"})

	genieChunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genie_fetch_chunks_total",
		Help: "Total time chunks fetched by outcome",
	}, []string{"outcome"})

	genieDetailFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genie_fetch_detail_failures_total",
		Help: "Total alerts dropped because their detail fetch failed",
	})
)

// TimeRange is a closed interval of instants, Start <= End.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the range.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (r TimeRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}

// Request describes one fetch: the time range, an optional status filter
// ("" or "all" fetches every status) and an optional cap on the number of
// alerts returned (0 means unbounded).
type Request struct {
	Range  TimeRange
	Status string
	Cap    int
}

// FailureStage names where a partial failure happened.
type FailureStage string

const (
	// StageChunk is a whole time chunk that returned nothing.
	StageChunk FailureStage = "chunk"

	// StageDetail is a single alert whose detail fetch failed.
	StageDetail FailureStage = "detail"
)

// Failure records one tolerated partial failure.
type Failure struct {
	Stage FailureStage

	// Chunk is the failed chunk's range (StageChunk only).
	Chunk *TimeRange

	// AlertID is the dropped alert (StageDetail only).
	AlertID string

	Err error
}

func (f Failure) String() string {
	switch f.Stage {
	case StageChunk:
		return fmt.Sprintf("chunk %s: %v", f.Chunk, f.Err)
	case StageDetail:
		return fmt.Sprintf("alert %s: %v", f.AlertID, f.Err)
	default:
		return f.Err.Error()
	}
}

// Result is the outcome of one fetch. Failures lists every chunk or alert
// that was dropped; callers can distinguish a complete result from a
// best-effort one.
type Result struct {
	Alerts   []alert.Detail
	Failures []Failure
}

// Partial reports whether anything was dropped along the way.
func (r *Result) Partial() bool {
	return len(r.Failures) > 0
}

// Gateway is the alert API surface the fetcher drives.
type Gateway interface {
	ListAlerts(ctx context.Context, q gateway.ListQuery) (*gateway.Page, error)
	ListAlertsCursor(ctx context.Context, cursor string) (*gateway.Page, error)
	GetAlert(ctx context.Context, id string) (alert.Detail, error)
}

// Config holds fetcher configuration.
type Config struct {
	// MaxConcurrency bounds simultaneously in-flight chunk fetches
	// (default: runtime.GOMAXPROCS(0)).
	MaxConcurrency int

	// Pacer is shared across all workers. A default pacer at
	// ratelimit.DefaultRequestsPerSecond is created when nil.
	Pacer *ratelimit.Pacer

	// ProgressEvery controls how often the detail pass logs progress
	// (default: every 25 alerts).
	ProgressEvery int
}

// Fetcher orchestrates list pagination, chunked parallel fetching and the
// per-alert detail pass.
type Fetcher struct {
	gw     Gateway
	config Config
	logger zerolog.Logger
}

// New creates a fetcher over the given gateway.
func New(gw Gateway, config Config) *Fetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = runtime.GOMAXPROCS(0)
	}
	if config.Pacer == nil {
		config.Pacer = ratelimit.NewPacer(ratelimit.DefaultRequestsPerSecond, nil)
	}
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = 25
	}

	return &Fetcher{
		gw:     gw,
		config: config,
		logger: logging.NewLogger("fetcher"),
	}
}

// Fetch retrieves the alerts matching req, detail records included, newest
// first. Chunk and detail failures are tolerated and reported in the Result;
// an error is returned only when the request is invalid or the entire range
// is unreachable.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	if req.Range.Start.After(req.Range.End) {
		return nil, fmt.Errorf("invalid range: start %s after end %s",
			req.Range.Start.Format(time.RFC3339), req.Range.End.Format(time.RFC3339))
	}
	if req.Cap < 0 {
		return nil, fmt.Errorf("invalid cap %d", req.Cap)
	}

	start := time.Now()

	var (
		summaries []alert.Summary
		failures  []Failure
		path      string
	)

	if req.Range.Duration() > chunkSpan {
		path = "chunked"
		var err error
		summaries, failures, err = f.fetchChunked(ctx, req.Range, req.Status, req.Cap)
		if err != nil {
			return nil, err
		}
	} else {
		path = "sequential"
		var err error
		summaries, err = f.fetchRange(ctx, req.Range, req.Status, req.Cap)
		if err != nil {
			return nil, err
		}
	}

	f.logger.Info().
		Str("path", path).
		Int("alerts", len(summaries)).
		Int("failed_chunks", len(failures)).
		Msg("Summary fetch complete, fetching details")

	result := &Result{
		Alerts:   make([]alert.Detail, 0, len(summaries)),
		Failures: failures,
	}

	for i, summary := range summaries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// GetAlert issues two requests (detail plus activity log).
		if err := f.config.Pacer.WaitN(ctx, 2); err != nil {
			return nil, err
		}

		detail, err := f.gw.GetAlert(ctx, summary.ID())
		if err != nil {
			genieDetailFailuresTotal.Inc()
			f.logger.Warn().
				Err(err).
				Str("alert_id", summary.ID()).
				Msg("Detail fetch failed, dropping alert")
			result.Failures = append(result.Failures, Failure{
				Stage:   StageDetail,
				AlertID: summary.ID(),
				Err:     err,
			})
			continue
		}
		result.Alerts = append(result.Alerts, detail)

		if (i+1)%f.config.ProgressEvery == 0 {
			f.logger.Info().
				Int("processed", i+1).
				Int("total", len(summaries)).
				Msg("Detail fetch progress")
		}
	}

	genieFetchDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())

	f.logger.Info().
		Str("path", path).
		Int("alerts", len(result.Alerts)).
		Int("failures", len(result.Failures)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return result, nil
}
