package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Prometheus metrics for rate limit tracking.
var (
	errorsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reqflow_errors_remaining",
		Help: "Number of errors remaining in the current upstream error budget window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reqflow_rate_limit_blocks_total",
		Help: "Total number of requests blocked due to critical error budget",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reqflow_rate_limit_throttles_total",
		Help: "Total number of requests throttled due to warning error budget",
	})
)

// DefaultThrottleDelay is how long a request waits in the warning state.
const DefaultThrottleDelay = 1 * time.Second

// Option configures a Tracker.
type Option func(*Tracker)

// WithHeaders overrides the header names carrying the error budget.
func WithHeaders(remain, reset string) Option {
	return func(t *Tracker) {
		if remain != "" {
			t.remainHeader = remain
		}
		if reset != "" {
			t.resetHeader = reset
		}
	}
}

// WithThrottleDelay overrides DefaultThrottleDelay.
func WithThrottleDelay(d time.Duration) Option {
	return func(t *Tracker) {
		if d >= 0 {
			t.throttleDelay = d
		}
	}
}

// Tracker monitors the upstream error budget and gates requests.
type Tracker struct {
	store         Store
	logger        zerolog.Logger
	loads         singleflight.Group
	remainHeader  string
	resetHeader   string
	throttleDelay time.Duration
}

// NewTracker creates a tracker over store.
func NewTracker(store Store, logger zerolog.Logger, opts ...Option) *Tracker {
	if store == nil {
		panic("rate limit store cannot be nil")
	}
	t := &Tracker{
		store:         store,
		logger:        logger,
		remainHeader:  DefaultRemainHeader,
		resetHeader:   DefaultResetHeader,
		throttleDelay: DefaultThrottleDelay,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// GetState returns the current state, or a default healthy state when none
// has been stored. Concurrent calls share one store read.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	v, err, _ := t.loads.Do("state", func() (any, error) {
		return t.store.Load(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("load rate limit state: %w", err)
	}

	state, _ := v.(*State)
	if state == nil {
		t.logger.Debug().Msg("No rate limit state stored, returning default healthy state")
		return defaultState(), nil
	}
	copied := *state
	return &copied, nil
}

// UpdateFromHeaders parses the budget headers and stores the new state.
// Responses without the remain header are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(t.remainHeader)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", t.remainHeader, err)
	}

	resetStr := headers.Get(t.resetHeader)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", t.resetHeader)
	}

	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", t.resetHeader, err)
	}

	now := time.Now()
	state := &State{
		ErrorsRemaining: remain,
		ResetAt:         now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate:      now,
	}
	state.UpdateHealth()

	if err := t.store.Save(ctx, state); err != nil {
		return err
	}

	errorsRemaining.Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("errors_remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Error budget CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("errors_remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Error budget WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("errors_remaining", remain).
			Time("reset_at", state.ResetAt).
			Bool("is_healthy", state.IsHealthy).
			Msg("Error budget state updated")
	}

	return nil
}

// ShouldAllowRequest reports whether a request may be sent. It returns false
// in the critical state and waits for the throttle delay in the warning state.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, err
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("errors_remaining", state.ErrorsRemaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Error budget critical - blocking request")
		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("errors_remaining", state.ErrorsRemaining).
			Dur("delay", t.throttleDelay).
			Msg("Error budget warning - throttling request")
		rateLimitThrottlesTotal.Inc()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.throttleDelay):
		}
	}

	return true, nil
}
