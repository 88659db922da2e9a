// Package gateway implements the Opsgenie alert API client: one call per
// HTTP request, uniform error reporting, no retries. Retry and pacing policy
// belongs to callers (pkg/fetch).
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/oncall-tools/genie-export/pkg/alert"
	"github.com/oncall-tools/genie-export/pkg/logging"
	"github.com/oncall-tools/genie-export/pkg/ratelimit"
)

// DefaultBaseURL is the production Opsgenie API root.
const DefaultBaseURL = "https://api.opsgenie.com/v2"

// Prometheus metrics for API operations.
var (
	genieRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genie_requests_total",
		Help: "Total Opsgenie API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	genieRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "genie_request_duration_seconds",
		Help:    "Opsgenie API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	genieErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genie_errors_total",
		Help: "Total Opsgenie API errors by class",
	}, []string{"class"})
)

// Client is the Opsgenie alert API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	tracker    *ratelimit.Tracker
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// APIKey is the Opsgenie API key (read-only access is sufficient).
	APIKey string

	// BaseURL overrides the API root (default: DefaultBaseURL). Used by tests.
	BaseURL string

	// Timeout per HTTP request (default: 30s).
	Timeout time.Duration

	// Tracker receives rate limit header updates. Optional.
	Tracker *ratelimit.Tracker
}

// New creates a new Opsgenie API client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		tracker:    cfg.Tracker,
		logger:     logging.NewLogger("gateway"),
	}, nil
}

// ListQuery describes one alert list request.
type ListQuery struct {
	// Query is the Opsgenie search expression, e.g.
	// "createdAt>=1755648000 createdAt<=1756252800 AND status:open".
	Query string

	// Limit is the page size (API ceiling: 100).
	Limit int
}

// Page is one page of alert summaries.
type Page struct {
	Alerts []alert.Summary

	// NextCursor is the opaque next-page URL from paging.next, or "" when
	// this was the last page.
	NextCursor string
}

// listResponse is the wire shape of GET /alerts.
type listResponse struct {
	Data   []map[string]any `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// detailResponse is the wire shape of GET /alerts/{id}.
type detailResponse struct {
	Data map[string]any `json:"data"`
}

// logsResponse is the wire shape of GET /alerts/{id}/logs.
type logsResponse struct {
	Data []any `json:"data"`
}

// ListAlerts fetches one page of alerts matching q.
func (c *Client) ListAlerts(ctx context.Context, q ListQuery) (*Page, error) {
	params := url.Values{}
	params.Set("query", q.Query)
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("sort", "createdAt")
	params.Set("order", "desc")

	return c.fetchListPage(ctx, c.baseURL+"/alerts?"+params.Encode())
}

// ListAlertsCursor fetches the page identified by an opaque next-page URL
// returned in a previous Page. The cursor alone determines the page; no other
// query parameters are sent.
func (c *Client) ListAlertsCursor(ctx context.Context, cursor string) (*Page, error) {
	if cursor == "" {
		return nil, fmt.Errorf("empty cursor")
	}
	return c.fetchListPage(ctx, cursor)
}

func (c *Client) fetchListPage(ctx context.Context, requestURL string) (*Page, error) {
	body, err := c.get(ctx, requestURL, "/alerts")
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{
			ErrorClass: ErrorClassServer,
			Message:    fmt.Sprintf("malformed list response: %v", err),
			Err:        err,
		}
	}

	alerts := make([]alert.Summary, 0, len(resp.Data))
	for _, raw := range resp.Data {
		alerts = append(alerts, alert.Summary(raw))
	}

	return &Page{Alerts: alerts, NextCursor: resp.Paging.Next}, nil
}

// GetAlert fetches the full record for one alert, including its audit log
// entries merged under the "logs" key.
func (c *Client) GetAlert(ctx context.Context, id string) (alert.Detail, error) {
	if id == "" {
		return nil, fmt.Errorf("empty alert id")
	}

	alertURL := c.baseURL + "/alerts/" + url.PathEscape(id)

	body, err := c.get(ctx, alertURL, "/alerts/{id}")
	if err != nil {
		return nil, err
	}

	var resp detailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{
			ErrorClass: ErrorClassServer,
			Message:    fmt.Sprintf("malformed detail response: %v", err),
			Err:        err,
		}
	}
	detail := alert.Detail(resp.Data)

	logsBody, err := c.get(ctx, alertURL+"/logs", "/alerts/{id}/logs")
	if err != nil {
		return nil, err
	}

	var logs logsResponse
	if err := json.Unmarshal(logsBody, &logs); err != nil {
		return nil, &APIError{
			ErrorClass: ErrorClassServer,
			Message:    fmt.Sprintf("malformed logs response: %v", err),
			Err:        err,
		}
	}
	detail.SetLogEntries(logs.Data)

	return detail, nil
}

// get performs one authenticated GET. endpoint is the metrics label, not the
// request path.
func (c *Client) get(ctx context.Context, requestURL, endpoint string) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		genieRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "GenieKey "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Msg("Executing Opsgenie request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		genieErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		genieRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    err.Error(),
			Err:        err,
		}
	}
	defer resp.Body.Close()

	if c.tracker != nil {
		if err := c.tracker.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit state from headers")
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		genieErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    fmt.Sprintf("read response body: %v", err),
			Err:        err,
		}
	}

	genieRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errClass := classifyStatus(resp.StatusCode)
		genieErrorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Opsgenie request error")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    remoteMessage(body, resp.Status),
		}
	}

	return body, nil
}

// remoteMessage extracts the API's error message from a response body, or
// falls back to the HTTP status text.
func remoteMessage(body []byte, statusText string) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return statusText
}
