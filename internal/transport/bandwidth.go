package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// NetworkProfile selects a bandwidth budget for the current link type.
type NetworkProfile string

const (
	ProfileWifi     NetworkProfile = "wifi"
	ProfileMobile   NetworkProfile = "mobile"
	ProfileEthernet NetworkProfile = "ethernet"
	ProfileUnknown  NetworkProfile = "unknown"
)

// profileBudgets maps each network profile to its aggregate byte/s cap.
var profileBudgets = map[NetworkProfile]rate.Limit{
	ProfileEthernet: 10 * 1024 * 1024,
	ProfileWifi:     5 * 1024 * 1024,
	ProfileMobile:   512 * 1024,
	ProfileUnknown:  1024 * 1024,
}

// NetworkStats is a live view of bandwidth manager activity.
type NetworkStats struct {
	Profile        NetworkProfile `json:"profile"`
	BudgetBytesSec int64          `json:"budget_bytes_sec"`
	ThroughputBPS  float64        `json:"throughput_bps"`
	Active         int            `json:"active"`
	Queued         int            `json:"queued"`
	TotalBytes     int64          `json:"total_bytes"`
	TotalCalls     int64          `json:"total_calls"`
	SuccessRate    float64        `json:"success_rate"`
}

// BandwidthManager enforces a token-bucket cap on aggregate transfer volume.
// Calls exceeding the current budget block FIFO in Acquire until the bucket
// replenishes.
type BandwidthManager struct {
	mu      sync.Mutex
	profile NetworkProfile
	limiter *rate.Limiter

	active      int
	queued      int
	totalBytes  int64
	totalCalls  int64
	failedCalls int64
	windowStart time.Time
	windowBytes int64
	throughput  float64
}

// NewBandwidthManager creates a manager for the given network profile.
func NewBandwidthManager(profile NetworkProfile) *BandwidthManager {
	budget, ok := profileBudgets[profile]
	if !ok {
		profile = ProfileUnknown
		budget = profileBudgets[ProfileUnknown]
	}

	return &BandwidthManager{
		profile: profile,
		// Burst of one second's budget keeps single transfers from
		// starving the queue.
		limiter:     rate.NewLimiter(budget, int(budget)),
		windowStart: time.Now(),
	}
}

// SetProfile switches the active profile, rescaling the bucket.
func (m *BandwidthManager) SetProfile(profile NetworkProfile) error {
	budget, ok := profileBudgets[profile]
	if !ok {
		return fmt.Errorf("unknown network profile %q", profile)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = profile
	m.limiter.SetLimit(budget)
	m.limiter.SetBurst(int(budget))
	return nil
}

// Acquire blocks until the budget admits a transfer of the given size, or
// the context is cancelled. Oversized transfers drain the bucket in
// burst-sized chunks so they still respect the aggregate cap.
func (m *BandwidthManager) Acquire(ctx context.Context, bytes int) error {
	if bytes <= 0 {
		bytes = 1
	}

	m.mu.Lock()
	m.queued++
	burst := m.limiter.Burst()
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.queued--
		m.mu.Unlock()
	}()

	for bytes > 0 {
		chunk := bytes
		if chunk > burst {
			chunk = burst
		}
		if err := m.limiter.WaitN(ctx, chunk); err != nil {
			return fmt.Errorf("bandwidth wait aborted: %w", err)
		}
		bytes -= chunk
	}

	return nil
}

// begin marks a transfer as active.
func (m *BandwidthManager) begin() {
	m.mu.Lock()
	m.active++
	m.mu.Unlock()
}

// finish records a completed transfer and folds it into the stats. The
// response bytes are charged against the budget here: Acquire could only
// size the request side before the call, and downloads dominate.
func (m *BandwidthManager) finish(bytes int64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active--
	m.totalCalls++
	m.totalBytes += bytes
	if !ok {
		m.failedCalls++
	}

	if bytes > 0 {
		m.debit(bytes)
	}

	// Throughput over a sliding one-second-ish window.
	now := time.Now()
	m.windowBytes += bytes
	if elapsed := now.Sub(m.windowStart); elapsed >= time.Second {
		m.throughput = float64(m.windowBytes) / elapsed.Seconds()
		m.windowStart = now
		m.windowBytes = 0
	}
}

// debit drains bytes from the bucket after the fact, in burst-sized chunks.
// The bucket going negative delays subsequent Acquires, which is exactly
// the throttling a just-finished download should cause.
func (m *BandwidthManager) debit(bytes int64) {
	now := time.Now()
	for bytes > 0 {
		chunk := int(bytes)
		if burst := m.limiter.Burst(); chunk > burst {
			chunk = burst
		}
		m.limiter.ReserveN(now, chunk)
		bytes -= int64(chunk)
	}
}

// Stats returns a snapshot of current bandwidth activity.
func (m *BandwidthManager) Stats() NetworkStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	successRate := 1.0
	if m.totalCalls > 0 {
		successRate = float64(m.totalCalls-m.failedCalls) / float64(m.totalCalls)
	}

	return NetworkStats{
		Profile:        m.profile,
		BudgetBytesSec: int64(m.limiter.Limit()),
		ThroughputBPS:  m.throughput,
		Active:         m.active,
		Queued:         m.queued,
		TotalBytes:     m.totalBytes,
		TotalCalls:     m.totalCalls,
		SuccessRate:    successRate,
	}
}
