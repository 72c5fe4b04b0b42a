// Package ratelimit tracks the upstream API's error budget and gates requests.
// It reads the remaining-error and reset headers of every response so that a
// client stops sending requests before the upstream starts rejecting it.
package ratelimit

import (
	"time"
)

// Default header names carrying the error budget.
const (
	DefaultRemainHeader = "X-Error-Limit-Remain"
	DefaultResetHeader  = "X-Error-Limit-Reset"
)

// Thresholds for rate limit decisions.
const (
	// ErrorThresholdCritical blocks all requests when errors remaining falls below this value.
	ErrorThresholdCritical = 5

	// ErrorThresholdWarning applies throttling when errors remaining falls below this value.
	ErrorThresholdWarning = 20

	// ErrorThresholdHealthy indicates normal operation.
	ErrorThresholdHealthy = 50
)

// State represents the current error budget of the upstream API.
type State struct {
	// ErrorsRemaining is the number of errors allowed before the upstream blocks requests.
	ErrorsRemaining int `json:"errors_remaining"`

	// ResetAt is when the error budget window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last updated.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when ErrorsRemaining >= ErrorThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// defaultState is assumed until the first budget headers are seen.
func defaultState() *State {
	now := time.Now()
	return &State{
		ErrorsRemaining: 100,
		ResetAt:         now.Add(60 * time.Second),
		LastUpdate:      now,
		IsHealthy:       true,
	}
}

// IsStale returns true if the state data is older than the given duration.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked.
// A window that has already reset never blocks.
func (s *State) NeedsCriticalBlock() bool {
	return s.ErrorsRemaining < ErrorThresholdCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.ErrorsRemaining < ErrorThresholdWarning && s.TimeUntilReset() > 0 && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the budget resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current ErrorsRemaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.ErrorsRemaining >= ErrorThresholdHealthy
}
