package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/config"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/gateway"
	"github.com/DanielPopoola/claims-settlement/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	partner gateway.Partner
	calls   atomic.Int32
	respond func(ctx context.Context, attempt int) (*gateway.Response, error)
}

func (c *scriptedClient) Partner() gateway.Partner { return c.partner }

func (c *scriptedClient) Invoke(ctx context.Context, _ string, _ any) (*gateway.Response, error) {
	n := int(c.calls.Add(1))
	return c.respond(ctx, n)
}

func testConfig() gateway.Config {
	return gateway.Config{
		ConnectTimeout:       50 * time.Millisecond,
		ReadTimeout:          50 * time.Millisecond,
		MaxAttempts:          3,
		BaseDelay:            20 * time.Millisecond,
		Multiplier:           2,
		MaxBackoff:           time.Second,
		FailureRateThreshold: 0.5,
		WindowSize:           10,
		MinimumCalls:         10,
		Cooldown:             time.Minute,
	}
}

func ok() (*gateway.Response, error) {
	return &gateway.Response{Success: true, StatusCode: http.StatusOK, Payload: []byte(`{"status":"ok"}`)}, nil
}

func TestGateway_RetriesUntilSuccess(t *testing.T) {
	client := &scriptedClient{partner: gateway.VehicleRegistry, respond: func(_ context.Context, attempt int) (*gateway.Response, error) {
		if attempt < 3 {
			return &gateway.Response{Retryable: true, StatusCode: http.StatusServiceUnavailable}, nil
		}
		return ok()
	}}
	cfg := testConfig()
	gw := gateway.New(client, cfg, gateway.WithMetrics(metrics.New(prometheus.NewRegistry())))

	outcome := gw.Call(context.Background(), "verify", nil)

	require.True(t, outcome.Succeeded(), "unexpected error: %v", outcome.Err)
	assert.Equal(t, 3, outcome.Attempts)
	assert.GreaterOrEqual(t, outcome.Elapsed, cfg.Backoff(0)+cfg.Backoff(1))
	assert.Equal(t, gateway.VehicleRegistry, outcome.Call.Partner)
}

func TestGateway_BusinessRejectionIsNotRetried(t *testing.T) {
	client := &scriptedClient{partner: gateway.VehicleRegistry, respond: func(context.Context, int) (*gateway.Response, error) {
		return &gateway.Response{StatusCode: http.StatusUnprocessableEntity, Reason: "vehicle reported stolen"}, nil
	}}
	gw := gateway.New(client, testConfig())

	outcome := gw.Call(context.Background(), "verify", nil)

	require.NotNil(t, outcome.Err)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, gateway.KindRejected, outcome.Err.Kind)
	assert.True(t, outcome.Err.IsBusinessRejection())
	assert.Equal(t, http.StatusUnprocessableEntity, outcome.Err.StatusCode)
	assert.Contains(t, outcome.Err.Error(), "vehicle reported stolen")
}

func TestGateway_FaultIsNotBusinessRejection(t *testing.T) {
	client := &scriptedClient{partner: gateway.PaymentProcessor, respond: func(context.Context, int) (*gateway.Response, error) {
		return &gateway.Response{StatusCode: http.StatusUnauthorized, Fault: true}, nil
	}}
	gw := gateway.New(client, testConfig())

	outcome := gw.Call(context.Background(), "disburse", nil)

	require.NotNil(t, outcome.Err)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, gateway.KindRejected, outcome.Err.Kind)
	assert.False(t, outcome.Err.IsBusinessRejection())
	assert.True(t, outcome.Err.Transient())
}

func TestGateway_TooManyRequestsIsRetriedUntilExhausted(t *testing.T) {
	client := &scriptedClient{partner: gateway.LossHistory, respond: func(context.Context, int) (*gateway.Response, error) {
		return &gateway.Response{Retryable: true, StatusCode: http.StatusTooManyRequests}, nil
	}}
	cfg := testConfig()
	cfg.BaseDelay = time.Millisecond
	gw := gateway.New(client, cfg)

	outcome := gw.Call(context.Background(), "check", nil)

	require.NotNil(t, outcome.Err)
	assert.Equal(t, gateway.KindRetriesExhausted, outcome.Err.Kind)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, int32(3), client.calls.Load())

	last, ok := gateway.AsIntegrationError(outcome.Err.Err)
	require.True(t, ok)
	assert.Equal(t, gateway.KindUnreachable, last.Kind)
	assert.Equal(t, http.StatusTooManyRequests, last.StatusCode)
}

func TestGateway_PerAttemptTimeout(t *testing.T) {
	client := &scriptedClient{partner: gateway.PaymentProcessor, respond: func(ctx context.Context, _ int) (*gateway.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	cfg := testConfig()
	cfg.ConnectTimeout = 10 * time.Millisecond
	cfg.ReadTimeout = 10 * time.Millisecond
	cfg.BaseDelay = time.Millisecond
	gw := gateway.New(client, cfg)

	outcome := gw.Call(context.Background(), "disburse", nil)

	require.NotNil(t, outcome.Err)
	assert.Equal(t, gateway.KindRetriesExhausted, outcome.Err.Kind)
	assert.Equal(t, 3, outcome.Attempts)
	var last *gateway.IntegrationError
	require.True(t, errors.As(outcome.Err.Err, &last))
	assert.Equal(t, gateway.KindTimeout, last.Kind)
	assert.True(t, errors.Is(outcome.Err, context.DeadlineExceeded))
}

func TestGateway_TransportErrorIsUnreachable(t *testing.T) {
	client := &scriptedClient{partner: gateway.PolicyRating, respond: func(context.Context, int) (*gateway.Response, error) {
		return nil, errors.New("connection refused")
	}}
	cfg := testConfig()
	cfg.MaxAttempts = 1
	gw := gateway.New(client, cfg)

	outcome := gw.Call(context.Background(), "coverage", nil)

	require.NotNil(t, outcome.Err)
	assert.Equal(t, gateway.KindRetriesExhausted, outcome.Err.Kind)
	last, ok := gateway.AsIntegrationError(outcome.Err.Err)
	require.True(t, ok)
	assert.Equal(t, gateway.KindUnreachable, last.Kind)
}

func TestGateway_CircuitOpensAndFailsFast(t *testing.T) {
	client := &scriptedClient{partner: gateway.VehicleRegistry, respond: func(context.Context, int) (*gateway.Response, error) {
		return &gateway.Response{Retryable: true, StatusCode: http.StatusBadGateway}, nil
	}}
	cfg := testConfig()
	cfg.MaxAttempts = 1
	cfg.WindowSize = 4
	cfg.MinimumCalls = 4
	gw := gateway.New(client, cfg)

	for range 4 {
		outcome := gw.Call(context.Background(), "verify", nil)
		require.NotNil(t, outcome.Err)
	}
	require.Equal(t, gateway.StateOpen, gw.Breaker().State())

	start := time.Now()
	outcome := gw.Call(context.Background(), "verify", nil)

	require.NotNil(t, outcome.Err)
	assert.Equal(t, gateway.KindCircuitOpen, outcome.Err.Kind)
	assert.Equal(t, 0, outcome.Attempts)
	assert.Equal(t, int32(4), client.calls.Load(), "open circuit must not reach the partner")
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestGateway_HalfOpenProbeClosesCircuit(t *testing.T) {
	healthy := atomic.Bool{}
	client := &scriptedClient{partner: gateway.VehicleRegistry, respond: func(context.Context, int) (*gateway.Response, error) {
		if healthy.Load() {
			return ok()
		}
		return nil, errors.New("connection reset")
	}}
	now := time.Now()
	cfg := testConfig()
	cfg.MaxAttempts = 1
	cfg.WindowSize = 2
	cfg.MinimumCalls = 2
	gw := gateway.New(client, cfg, gateway.WithBreakerOptions(gateway.WithClock(func() time.Time { return now })))

	gw.Call(context.Background(), "verify", nil)
	gw.Call(context.Background(), "verify", nil)
	require.Equal(t, gateway.StateOpen, gw.Breaker().State())

	now = now.Add(cfg.Cooldown)
	healthy.Store(true)
	outcome := gw.Call(context.Background(), "verify", nil)

	require.True(t, outcome.Succeeded())
	assert.Equal(t, gateway.StateClosed, gw.Breaker().State())
}

func TestGateway_BusinessRejectionsDoNotOpenCircuit(t *testing.T) {
	client := &scriptedClient{partner: gateway.PaymentProcessor, respond: func(context.Context, int) (*gateway.Response, error) {
		return &gateway.Response{StatusCode: http.StatusPaymentRequired}, nil
	}}
	cfg := testConfig()
	cfg.WindowSize = 2
	cfg.MinimumCalls = 2
	gw := gateway.New(client, cfg)

	for range 5 {
		gw.Call(context.Background(), "disburse", nil)
	}

	assert.Equal(t, gateway.StateClosed, gw.Breaker().State())
}

func TestGateway_CancelledContext(t *testing.T) {
	client := &scriptedClient{partner: gateway.LossHistory, respond: func(context.Context, int) (*gateway.Response, error) {
		return ok()
	}}
	gw := gateway.New(client, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := gw.Call(ctx, "check", nil)

	require.NotNil(t, outcome.Err)
	assert.Equal(t, gateway.KindTimeout, outcome.Err.Kind)
	assert.Equal(t, int32(0), client.calls.Load())
	assert.ErrorIs(t, outcome.Err, context.Canceled)
}

func TestGateway_CancelledDuringBackoff(t *testing.T) {
	client := &scriptedClient{partner: gateway.LossHistory, respond: func(context.Context, int) (*gateway.Response, error) {
		return &gateway.Response{Retryable: true, StatusCode: http.StatusServiceUnavailable}, nil
	}}
	cfg := testConfig()
	cfg.BaseDelay = time.Second
	gw := gateway.New(client, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	outcome := gw.Call(ctx, "check", nil)

	require.NotNil(t, outcome.Err)
	assert.Equal(t, gateway.KindTimeout, outcome.Err.Kind)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Less(t, outcome.Elapsed, time.Second)
}

func TestConfig_Backoff(t *testing.T) {
	cfg := gateway.Config{BaseDelay: 100 * time.Millisecond, Multiplier: 2, MaxBackoff: 500 * time.Millisecond}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 500 * time.Millisecond},
		{10, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.Backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestConfigFrom_CarriesPartnerSettings(t *testing.T) {
	cfg := gateway.ConfigFrom(config.PartnerConfig{
		ConnectTimeout:       time.Second,
		ReadTimeout:          2 * time.Second,
		MaxAttempts:          4,
		BaseDelay:            100 * time.Millisecond,
		Multiplier:           3,
		MaxBackoff:           5 * time.Second,
		Jitter:               250 * time.Millisecond,
		FailureRateThreshold: 0.4,
		WindowSize:           50,
		MinimumCalls:         5,
		Cooldown:             time.Minute,
	})

	assert.Equal(t, 4, cfg.MaxAttempts)
	assert.Equal(t, 3.0, cfg.Multiplier)
	assert.Equal(t, 250*time.Millisecond, cfg.Jitter)
	assert.Equal(t, 0.4, cfg.FailureRateThreshold)
	assert.Equal(t, time.Minute, cfg.Cooldown)
}

func TestGateway_JitterIsAddedToBackoff(t *testing.T) {
	client := &scriptedClient{partner: gateway.LossHistory, respond: func(_ context.Context, attempt int) (*gateway.Response, error) {
		if attempt == 1 {
			return &gateway.Response{Retryable: true, StatusCode: http.StatusBadGateway}, nil
		}
		return ok()
	}}
	cfg := testConfig()
	cfg.Jitter = 40 * time.Millisecond
	gw := gateway.New(client, cfg)

	outcome := gw.Call(context.Background(), "check", nil)

	require.True(t, outcome.Succeeded(), "unexpected error: %v", outcome.Err)
	assert.Equal(t, 2, outcome.Attempts)
	assert.GreaterOrEqual(t, outcome.Elapsed, cfg.Backoff(0))
	assert.Less(t, outcome.Elapsed, time.Second)
}

func TestSet_UnknownPartner(t *testing.T) {
	set := gateway.NewSet()

	outcome := set.Execute(context.Background(), gateway.Call{Partner: gateway.LossHistory, Operation: "check"})

	require.NotNil(t, outcome.Err)
	assert.Equal(t, gateway.KindRejected, outcome.Err.Kind)
	assert.False(t, outcome.Err.IsBusinessRejection())
}
