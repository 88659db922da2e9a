package fetch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/oncall-tools/genie-export/pkg/alert"
)

// partition splits a range into chunks of at most chunkSpan, walking backward
// from the end. Chunks are contiguous, non-overlapping, newest first, and
// their union equals the original range. The oldest chunk absorbs the
// remainder when the range is not a whole number of weeks.
func partition(r TimeRange) []TimeRange {
	var chunks []TimeRange

	end := r.End
	for end.After(r.Start) {
		start := end.Add(-chunkSpan)
		if start.Before(r.Start) {
			start = r.Start
		}
		chunks = append(chunks, TimeRange{Start: start, End: end})
		end = start
	}

	if len(chunks) == 0 {
		// Zero-length range still covers a single instant.
		chunks = []TimeRange{r}
	}
	return chunks
}

// chunkResult carries one chunk's outcome off its worker.
type chunkResult struct {
	index  int
	chunk  TimeRange
	alerts []alert.Summary
	err    error
}

// fetchChunked fetches a wide range as parallel week-sized chunks. Each chunk
// runs uncapped; maxAlerts is applied only after the merge so the final list
// is the most-recent alerts across the whole range, not a per-chunk slice.
// A failing chunk is logged and contributes zero records; siblings are
// unaffected. When every chunk fails the whole range was unreachable and an
// error wrapping the chunk errors is returned instead.
func (f *Fetcher) fetchChunked(ctx context.Context, r TimeRange, status string, maxAlerts int) ([]alert.Summary, []Failure, error) {
	chunks := partition(r)

	f.logger.Info().
		Int("chunks", len(chunks)).
		Int("workers", f.config.MaxConcurrency).
		Str("range", r.String()).
		Msg("Starting chunked parallel fetch")

	jobs := make(chan int, len(chunks))
	results := make(chan chunkResult, len(chunks))

	for i := range chunks {
		jobs <- i
	}
	close(jobs)

	workers := f.config.MaxConcurrency
	if workers > len(chunks) {
		workers = len(chunks)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				select {
				case <-ctx.Done():
					results <- chunkResult{index: idx, chunk: chunks[idx], err: ctx.Err()}
					continue
				default:
				}

				alerts, err := f.fetchRange(ctx, chunks[idx], status, 0)
				results <- chunkResult{index: idx, chunk: chunks[idx], alerts: alerts, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		merged   []alert.Summary
		failures []Failure
	)
	for res := range results {
		if res.err != nil {
			genieChunksTotal.WithLabelValues("failed").Inc()
			f.logger.Warn().
				Err(res.err).
				Str("chunk", res.chunk.String()).
				Msg("Chunk fetch failed, continuing with remaining chunks")

			chunk := res.chunk
			failures = append(failures, Failure{
				Stage: StageChunk,
				Chunk: &chunk,
				Err:   res.err,
			})
			continue
		}

		genieChunksTotal.WithLabelValues("ok").Inc()
		merged = append(merged, res.alerts...)
	}

	if len(failures) == len(chunks) {
		errs := make([]error, 0, len(failures))
		for _, failure := range failures {
			errs = append(errs, failure.Err)
		}
		return nil, nil, fmt.Errorf("all %d chunks failed fetching %s: %w",
			len(chunks), r, errors.Join(errs...))
	}

	// Adjacent chunks share a boundary instant and both bounds are
	// inclusive, so an alert created exactly on a boundary shows up twice.
	seen := make(map[string]bool, len(merged))
	deduped := merged[:0]
	for _, s := range merged {
		id := s.ID()
		if id != "" && seen[id] {
			continue
		}
		seen[id] = true
		deduped = append(deduped, s)
	}
	merged = deduped

	// Chunks finish in arbitrary order; re-sort globally, newest first.
	// Ordering of equal timestamps is unspecified.
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].CreatedAt().After(merged[j].CreatedAt())
	})

	if maxAlerts > 0 && len(merged) > maxAlerts {
		merged = merged[:maxAlerts]
	}

	f.logger.Info().
		Int("alerts", len(merged)).
		Int("failed_chunks", len(failures)).
		Msg("Chunked fetch merged")

	return merged, failures, nil
}
