// Package budget enforces the shared daily cost ceiling for agent
// invocations. Every invocation reserves its estimated cost before the
// provider call and settles the actual cost afterwards, so the check and
// the spend record are atomic per caller and the tracked total never
// diverges from actual spend. The lock covers in-memory accounting only,
// never a network call.
package budget

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrExceeded marks reservations rejected by the ceiling. Callers match it
// with errors.Is; it is a terminal condition, never retried.
var ErrExceeded = errors.New("daily budget exceeded")

// Config bounds the tracker.
type Config struct {
	// DailyCeiling is the total spend allowed per day window.
	DailyCeiling float64
	// MaxCostPerInvocation rejects single calls estimated above it.
	// Zero disables the per-invocation bound.
	MaxCostPerInvocation float64
	// AlertThreshold fires the alert once per day window when utilization
	// crosses it, 0.0-1.0. Zero disables alerts.
	AlertThreshold float64
}

// DefaultConfig returns the reference limits.
func DefaultConfig() Config {
	return Config{
		DailyCeiling:         50.0,
		MaxCostPerInvocation: 5.0,
		AlertThreshold:       0.8,
	}
}

// Alert describes one threshold crossing.
type Alert struct {
	Message     string    `json:"message"`
	Threshold   float64   `json:"threshold"`
	Utilization float64   `json:"utilization"`
	Timestamp   time.Time `json:"timestamp"`
}

// AlertHandler receives budget alerts. Handlers run on their own goroutine.
type AlertHandler func(alert Alert)

// Status is a point-in-time snapshot of the day window.
type Status struct {
	Spent       float64   `json:"spent"`
	Reserved    float64   `json:"reserved"`
	Remaining   float64   `json:"remaining"`
	Utilization float64   `json:"utilization"`
	DayStart    time.Time `json:"day_start"`
}

// Tracker is the mutex-guarded daily budget accumulator.
type Tracker struct {
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
	handlers []AlertHandler

	mu       sync.Mutex
	dayStart time.Time
	spent    float64
	reserved float64
	alerted  bool
}

// NewTracker creates a tracker. A nil logger falls back to a no-op logger.
func NewTracker(cfg Config, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now
	return &Tracker{
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "budget_tracker")),
		now:      now,
		dayStart: now().Truncate(24 * time.Hour),
	}
}

// OnAlert registers an alert handler.
func (t *Tracker) OnAlert(handler AlertHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, handler)
}

// Reservation holds one invocation's claim on the budget until settled.
type Reservation struct {
	tracker   *Tracker
	estimated float64
	done      bool
}

// Reserve claims estimated cost against the remaining budget. Rejection
// wraps ErrExceeded. The reservation must be settled (or released) exactly
// once; double settlement is ignored.
func (t *Tracker) Reserve(estimated float64) (*Reservation, error) {
	if estimated < 0 {
		estimated = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()

	if t.cfg.MaxCostPerInvocation > 0 && estimated > t.cfg.MaxCostPerInvocation {
		return nil, fmt.Errorf("estimated cost %.4f exceeds per-invocation limit %.4f: %w",
			estimated, t.cfg.MaxCostPerInvocation, ErrExceeded)
	}
	if t.spent+t.reserved+estimated > t.cfg.DailyCeiling {
		return nil, fmt.Errorf("estimated cost %.4f would exceed daily ceiling %.4f (spent %.4f, reserved %.4f): %w",
			estimated, t.cfg.DailyCeiling, t.spent, t.reserved, ErrExceeded)
	}

	t.reserved += estimated
	return &Reservation{tracker: t, estimated: estimated}, nil
}

// Settle replaces the reservation's estimate with the actual cost. Actual
// may exceed the estimate; the tracked total always follows real spend.
func (r *Reservation) Settle(actual float64) {
	if r == nil {
		return
	}
	if actual < 0 {
		actual = 0
	}

	t := r.tracker
	t.mu.Lock()
	if r.done {
		t.mu.Unlock()
		return
	}
	r.done = true
	t.rolloverLocked()
	t.reserved -= r.estimated
	if t.reserved < 0 {
		t.reserved = 0
	}
	t.spent += actual
	alert, fire := t.alertLocked()
	t.mu.Unlock()

	if fire {
		t.fireAlert(alert)
	}
}

// Release drops the reservation without spending, for invocations that
// failed before incurring any cost.
func (r *Reservation) Release() {
	r.Settle(0)
}

// Spent returns the settled spend of the current day window.
func (t *Tracker) Spent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	return t.spent
}

// Remaining returns ceiling minus spent and reserved.
func (t *Tracker) Remaining() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	remaining := t.cfg.DailyCeiling - t.spent - t.reserved
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GetStatus returns a snapshot of the current day window.
func (t *Tracker) GetStatus() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()

	remaining := t.cfg.DailyCeiling - t.spent - t.reserved
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Spent:       t.spent,
		Reserved:    t.reserved,
		Remaining:   remaining,
		Utilization: t.spent / t.cfg.DailyCeiling,
		DayStart:    t.dayStart,
	}
}

// Reset clears all counters (for tests).
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spent = 0
	t.reserved = 0
	t.alerted = false
	t.dayStart = t.now().Truncate(24 * time.Hour)
}

func (t *Tracker) rolloverLocked() {
	dayStart := t.now().Truncate(24 * time.Hour)
	if dayStart.After(t.dayStart) {
		t.spent = 0
		t.reserved = 0
		t.alerted = false
		t.dayStart = dayStart
	}
}

func (t *Tracker) alertLocked() (Alert, bool) {
	if t.cfg.AlertThreshold <= 0 || t.alerted {
		return Alert{}, false
	}
	utilization := t.spent / t.cfg.DailyCeiling
	if utilization < t.cfg.AlertThreshold {
		return Alert{}, false
	}
	t.alerted = true
	return Alert{
		Message:     "daily budget utilization threshold crossed",
		Threshold:   t.cfg.AlertThreshold,
		Utilization: utilization,
		Timestamp:   t.now(),
	}, true
}

func (t *Tracker) fireAlert(alert Alert) {
	t.logger.Warn("budget alert",
		zap.Float64("threshold", alert.Threshold),
		zap.Float64("utilization", alert.Utilization))

	t.mu.Lock()
	handlers := make([]AlertHandler, len(t.handlers))
	copy(handlers, t.handlers)
	t.mu.Unlock()

	for _, handler := range handlers {
		go handler(alert)
	}
}
