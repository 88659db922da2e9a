//go:build integration

package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestTracker_Integration_SharedState(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	logger := zerolog.Nop()

	// Two trackers sharing one Redis, as two exporter instances would.
	writer := NewTracker(redisClient, logger)
	reader := NewTracker(redisClient, logger)

	headers := http.Header{}
	headers.Set("X-RateLimit-State", "THROTTLED")
	headers.Set("X-RateLimit-Reason", "ACCOUNT")
	headers.Set("X-RateLimit-Period-In-Sec", "10")

	if err := writer.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	state, err := reader.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}

	if !state.IsThrottled() {
		t.Error("Second tracker should observe the throttle state written by the first")
	}
	if state.Reason != "ACCOUNT" {
		t.Errorf("Reason = %q, want %q", state.Reason, "ACCOUNT")
	}
	if state.PeriodSeconds != 10 {
		t.Errorf("PeriodSeconds = %d, want 10", state.PeriodSeconds)
	}
	if state.IsStale(time.Minute) {
		t.Error("Freshly written state should not be stale")
	}
}

func TestTracker_Integration_NoStateYet(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, zerolog.Nop())

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.IsThrottled() {
		t.Error("Empty Redis should yield a healthy default state")
	}
}
