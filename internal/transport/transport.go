// Package transport executes network operations under retry, circuit-breaker
// and bandwidth policy. All I/O flows through an injected Doer, keeping the
// layer deterministic under test.
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy tunes one logical operation. Timeout is per network attempt, never
// per multi-retry operation.
type Policy struct {
	RetryCount     int
	RetryBaseDelay time.Duration
	Timeout        time.Duration
}

// DefaultPolicy returns the policy applied when a registry does not override.
func DefaultPolicy() Policy {
	return Policy{
		RetryCount:     3,
		RetryBaseDelay: 500 * time.Millisecond,
		Timeout:        30 * time.Second,
	}
}

// Transport is the resilient execution layer. Each endpoint owns an
// independent circuit breaker keyed by its id, so one registry's failures
// never throttle another; bandwidth is shared.
type Transport struct {
	doer          Doer
	clock         Clock
	bandwidth     *BandwidthManager
	breakerConfig BreakerConfig

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// New creates a Transport. Nil bandwidth defaults to the unknown profile;
// nil clock uses the system clock.
func New(doer Doer, bandwidth *BandwidthManager, breakerConfig BreakerConfig, clock Clock) *Transport {
	if bandwidth == nil {
		bandwidth = NewBandwidthManager(ProfileUnknown)
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &Transport{
		doer:          doer,
		clock:         clock,
		bandwidth:     bandwidth,
		breakerConfig: breakerConfig,
		breakers:      make(map[string]*Breaker),
	}
}

// Breaker returns the circuit breaker for endpoint, creating it on first use.
func (t *Transport) Breaker(endpoint string) *Breaker {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.breakers[endpoint]
	if !ok {
		b = NewBreaker(t.breakerConfig, t.clock)
		t.breakers[endpoint] = b
	}
	return b
}

// Breakers returns a snapshot of every endpoint breaker.
func (t *Transport) Breakers() map[string]BreakerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]BreakerSnapshot, len(t.breakers))
	for endpoint, b := range t.breakers {
		out[endpoint] = b.Snapshot()
	}
	return out
}

// Bandwidth exposes the shared bandwidth manager.
func (t *Transport) Bandwidth() *BandwidthManager {
	return t.bandwidth
}

// Execute runs req against endpoint under the full resilience policy:
// an open circuit rejects immediately with ErrCircuitOpen; transient
// failures (timeout, 5xx, 429, reset) retry with exponential backoff and
// jitter bounded by RetryCount; every other failure surfaces at once.
func (t *Transport) Execute(ctx context.Context, endpoint string, req Request, policy Policy) (*Response, error) {
	breaker := t.Breaker(endpoint)

	if policy.Timeout > 0 {
		req.Timeout = policy.Timeout
	}

	attempt := func() (*Response, error) {
		if err := breaker.Allow(); err != nil {
			return nil, backoff.Permanent(err)
		}

		if err := t.bandwidth.Acquire(ctx, len(req.Body)); err != nil {
			// The call never reached the network; release the slot so a
			// half-open probe cannot stay in flight forever.
			breaker.Cancel()
			return nil, backoff.Permanent(err)
		}

		t.bandwidth.begin()

		resp, err := t.doer.Do(ctx, req)
		if err != nil {
			t.bandwidth.finish(0, false)
			breaker.RecordFailure()
			if !IsTransient(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		if resp.Status >= 400 {
			httpErr := &HTTPError{Status: resp.Status, Body: string(resp.Body)}
			t.bandwidth.finish(int64(len(resp.Body)), false)

			if IsTransient(httpErr) {
				breaker.RecordFailure()
				return nil, httpErr
			}

			// A 4xx is a healthy endpoint refusing the request; it
			// neither trips the breaker nor warrants a retry.
			breaker.RecordSuccess()
			return nil, backoff.Permanent(httpErr)
		}

		t.bandwidth.finish(int64(len(resp.Body)), true)
		breaker.RecordSuccess()
		return resp, nil
	}

	base := backoff.NewExponentialBackOff()
	if policy.RetryBaseDelay > 0 {
		base.InitialInterval = policy.RetryBaseDelay
	}

	retries := policy.RetryCount
	if retries < 0 {
		retries = 0
	}

	return backoff.RetryWithData(attempt,
		backoff.WithContext(backoff.WithMaxRetries(base, uint64(retries)), ctx))
}
