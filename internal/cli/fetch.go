package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/oncall-tools/genie-export/internal/config"
	"github.com/oncall-tools/genie-export/pkg/export"
	"github.com/oncall-tools/genie-export/pkg/fetch"
	"github.com/oncall-tools/genie-export/pkg/gateway"
	"github.com/oncall-tools/genie-export/pkg/logging"
	"github.com/oncall-tools/genie-export/pkg/metrics"
	"github.com/oncall-tools/genie-export/pkg/ratelimit"
)

// dateLayout is the accepted format for --start and --end.
const dateLayout = "2006-01-02"

var fetchFlags struct {
	configPath  string
	apiKey      string
	days        int
	start       string
	end         string
	status      string
	limit       int
	output      string
	metricsAddr string
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch alerts and write them to an Excel file",
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchFlags.configPath, "config", "", "Path to YAML config file")
	fetchCmd.Flags().StringVar(&fetchFlags.apiKey, "api-key", "", "Opsgenie API key (read-only is sufficient)")
	fetchCmd.Flags().IntVar(&fetchFlags.days, "days", 7, "Number of days to look back (ignored when --start/--end are set)")
	fetchCmd.Flags().StringVar(&fetchFlags.start, "start", "", "Range start date (YYYY-MM-DD)")
	fetchCmd.Flags().StringVar(&fetchFlags.end, "end", "", "Range end date (YYYY-MM-DD, inclusive)")
	fetchCmd.Flags().StringVar(&fetchFlags.status, "status", "all", "Alert status filter (all, open, closed, acked)")
	fetchCmd.Flags().IntVar(&fetchFlags.limit, "limit", 100, "Maximum number of alerts to fetch (0 = unbounded)")
	fetchCmd.Flags().StringVar(&fetchFlags.output, "output", "opsgenie_alerts.xlsx", "Output Excel file name")
	fetchCmd.Flags().StringVar(&fetchFlags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the fetch")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(fetchFlags.configPath)
	if err != nil {
		return err
	}
	if fetchFlags.apiKey != "" {
		cfg.API.Key = fetchFlags.apiKey
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("cli")

	if cfg.API.Key == "" {
		return fmt.Errorf("api key required (--api-key, GENIE_API_KEY, or config file)")
	}
	if !validStatus(fetchFlags.status) {
		return fmt.Errorf("status %q is not one of all, open, closed, acked", fetchFlags.status)
	}
	if fetchFlags.limit < 0 {
		return fmt.Errorf("limit must be >= 0 (got %d)", fetchFlags.limit)
	}

	timeRange, err := resolveRange(fetchFlags.days, fetchFlags.start, fetchFlags.end, time.Now().UTC())
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		pingCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		defer redisClient.Close()
	}

	tracker := ratelimit.NewTracker(redisClient, logging.NewLogger("ratelimit"))
	pacer := ratelimit.NewPacer(cfg.Fetch.RequestsPerSecond, tracker)

	gw, err := gateway.New(gateway.Config{
		APIKey:  cfg.API.Key,
		BaseURL: cfg.API.BaseURL,
		Timeout: time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		Tracker: tracker,
	})
	if err != nil {
		return err
	}

	if fetchFlags.metricsAddr != "" {
		go func() {
			logger.Info().Str("addr", fetchFlags.metricsAddr).Msg("Serving metrics")
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(fetchFlags.metricsAddr, mux); err != nil {
				logger.Warn().Err(err).Msg("Metrics listener stopped")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("range", timeRange.String()).
		Str("status", fetchFlags.status).
		Int("limit", fetchFlags.limit).
		Msg("Fetching alerts")

	fetcher := fetch.New(gw, fetch.Config{
		MaxConcurrency: cfg.Fetch.MaxConcurrency,
		Pacer:          pacer,
	})

	result, err := fetcher.Fetch(ctx, fetch.Request{
		Range:  timeRange,
		Status: fetchFlags.status,
		Cap:    fetchFlags.limit,
	})
	if err != nil {
		return err
	}

	if result.Partial() {
		logger.Warn().
			Int("failures", len(result.Failures)).
			Msg("Result is partial, some chunks or alert details were dropped")
		for _, failure := range result.Failures {
			logger.Warn().Str("failure", failure.String()).Msg("Partial failure")
		}
	}

	if len(result.Alerts) == 0 {
		logger.Warn().Msg("No alerts matched the criteria, nothing to export")
		return nil
	}

	rows := export.BuildRows(result.Alerts)
	data, err := export.WriteExcel(rows)
	if err != nil {
		return fmt.Errorf("build spreadsheet: %w", err)
	}

	if err := os.WriteFile(fetchFlags.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fetchFlags.output, err)
	}

	logger.Info().
		Int("alerts", len(result.Alerts)).
		Str("output", fetchFlags.output).
		Msg("Export complete")

	return nil
}

// validStatus reports whether s is an accepted status filter.
func validStatus(s string) bool {
	switch s {
	case "all", "open", "closed", "acked":
		return true
	default:
		return false
	}
}

// resolveRange turns the flag combination into a concrete time range.
// Explicit --start/--end win over --days; the end date is inclusive, so it
// extends to the last instant of that day.
func resolveRange(days int, start, end string, now time.Time) (fetch.TimeRange, error) {
	if (start == "") != (end == "") {
		return fetch.TimeRange{}, fmt.Errorf("--start and --end must be given together")
	}

	if start != "" {
		startDay, err := time.Parse(dateLayout, start)
		if err != nil {
			return fetch.TimeRange{}, fmt.Errorf("parse --start: %w", err)
		}
		endDay, err := time.Parse(dateLayout, end)
		if err != nil {
			return fetch.TimeRange{}, fmt.Errorf("parse --end: %w", err)
		}

		r := fetch.TimeRange{
			Start: startDay,
			End:   endDay.Add(24*time.Hour - time.Second),
		}
		if r.Start.After(r.End) {
			return fetch.TimeRange{}, fmt.Errorf("start %s is after end %s", start, end)
		}
		return r, nil
	}

	if days <= 0 {
		return fetch.TimeRange{}, fmt.Errorf("--days must be positive (got %d)", days)
	}
	return fetch.TimeRange{
		Start: now.AddDate(0, 0, -days),
		End:   now,
	}, nil
}
