package fetch

import (
	"context"
	"fmt"

	"github.com/oncall-tools/genie-export/pkg/alert"
	"github.com/oncall-tools/genie-export/pkg/gateway"
)

// buildQuery renders the search expression for one range: inclusive createdAt
// bounds in unix seconds, plus a status clause when a filter is set.
func buildQuery(r TimeRange, status string) string {
	query := fmt.Sprintf("createdAt>=%d createdAt<=%d", r.Start.Unix(), r.End.Unix())
	if status != "" && status != "all" {
		query += " AND status:" + status
	}
	return query
}

// fetchRange pages through all alerts in one range, newest first, honoring
// maxAlerts (0 = unbounded). The shared pacer is waited on before every page.
// Any gateway failure discards accumulated pages and fails the whole range.
func (f *Fetcher) fetchRange(ctx context.Context, r TimeRange, status string, maxAlerts int) ([]alert.Summary, error) {
	limit := maxPageSize
	if maxAlerts > 0 && maxAlerts < limit {
		limit = maxAlerts
	}

	query := buildQuery(r, status)

	f.logger.Debug().
		Str("query", query).
		Int("limit", limit).
		Msg("Starting range pagination")

	var all []alert.Summary
	cursor := ""

	for {
		if err := f.config.Pacer.Wait(ctx); err != nil {
			return nil, &RangeError{Range: r, Err: err}
		}

		var (
			page *gateway.Page
			err  error
		)
		if cursor == "" {
			page, err = f.gw.ListAlerts(ctx, gateway.ListQuery{Query: query, Limit: limit})
		} else {
			// The cursor alone identifies the next page.
			page, err = f.gw.ListAlertsCursor(ctx, cursor)
		}
		if err != nil {
			return nil, &RangeError{Range: r, Err: err}
		}

		all = append(all, page.Alerts...)

		if maxAlerts > 0 && len(all) >= maxAlerts {
			f.logger.Debug().
				Int("cap", maxAlerts).
				Int("fetched", len(all)).
				Msg("Cap reached, truncating")
			return all[:maxAlerts], nil
		}

		if page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor

		f.logger.Debug().
			Int("fetched", len(all)).
			Msg("Following next page cursor")
	}
}
