package transport

import (
	"fmt"
	"sync"
	"time"
)

// Clock abstracts time so breaker tests can drive cooldowns deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// BreakerState is the circuit breaker status.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	// Threshold is the consecutive-failure count that opens the circuit.
	Threshold int
	// Window bounds how long a failure streak stays relevant; a failure
	// landing outside the window starts a new streak.
	Window time.Duration
	// Cooldown is how long an open circuit rejects calls before permitting
	// a half-open probe.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the breaker settings used per registry
// endpoint unless overridden.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Threshold: 5,
		Window:    1 * time.Minute,
		Cooldown:  30 * time.Second,
	}
}

// BreakerSnapshot is an inspectable view of breaker state.
type BreakerSnapshot struct {
	State               BreakerState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	CooldownUntil       time.Time    `json:"cooldown_until,omitzero"`
}

// Breaker is a per-endpoint circuit breaker.
//
// closed -> open after Threshold consecutive failures within Window;
// open rejects every call until Cooldown elapses, then half-open permits
// exactly one probe: success closes the circuit, failure re-opens it and
// resets the cooldown.
type Breaker struct {
	mu     sync.Mutex
	config BreakerConfig
	clock  Clock

	state          BreakerState
	failures       int
	streakStart    time.Time
	cooldownUntil  time.Time
	probeInFlight  bool
}

// NewBreaker creates a closed breaker. A nil clock uses the system clock.
func NewBreaker(config BreakerConfig, clock Clock) *Breaker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Breaker{config: config, clock: clock, state: BreakerClosed}
}

// Allow reports whether a call may proceed. Open circuits reject with
// ErrCircuitOpen before any network attempt. A half-open breaker admits a
// single probe; concurrent calls during the probe are rejected.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()

	switch b.state {
	case BreakerClosed:
		return nil

	case BreakerOpen:
		if now.Before(b.cooldownUntil) {
			return fmt.Errorf("%w until %s", ErrCircuitOpen, b.cooldownUntil.Format(time.RFC3339))
		}
		b.state = BreakerHalfOpen
		b.probeInFlight = true
		return nil

	case BreakerHalfOpen:
		if b.probeInFlight {
			return fmt.Errorf("%w: probe in flight", ErrCircuitOpen)
		}
		b.probeInFlight = true
		return nil
	}

	return nil
}

// Cancel releases a call slot granted by Allow when the call aborts before
// any network attempt (cancelled context, bandwidth wait failure). An
// aborted half-open probe re-opens the circuit with a fresh cooldown so the
// probe slot is never left occupied; a closed breaker is unaffected.
func (b *Breaker) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.probeInFlight = false
		b.open(b.clock.Now())
	}
}

// RecordSuccess notes a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probeInFlight = false
	b.state = BreakerClosed
}

// RecordFailure notes a failed call, opening the circuit when the streak
// reaches the threshold or a half-open probe fails.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()

	if b.state == BreakerHalfOpen {
		b.probeInFlight = false
		b.open(now)
		return
	}

	if b.failures == 0 || now.Sub(b.streakStart) > b.config.Window {
		b.failures = 0
		b.streakStart = now
	}

	b.failures++
	if b.failures >= b.config.Threshold {
		b.open(now)
	}
}

func (b *Breaker) open(now time.Time) {
	b.state = BreakerOpen
	b.cooldownUntil = now.Add(b.config.Cooldown)
}

// Snapshot returns the current breaker state for inspection.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BreakerSnapshot{
		State:               b.state,
		ConsecutiveFailures: b.failures,
		CooldownUntil:       b.cooldownUntil,
	}
}
