// Package poller tracks the progress of an in-flight mobile-money payment.
//
// Confirmation happens on the payer's phone, so completion time is unknown.
// A session degrades through three tiers ("sending", "check your phone",
// "taking longer than expected") while it keeps checking, and gives up only
// at the hard stop.
package poller

import (
	"sync"
	"time"

	"github.com/berniyo/paypack-portal/internal/paypack"
)

// Status is the presentation state of a poll session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusTimeout   Status = "timeout"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether polling stops at this status. Timeout is not terminal.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// FromTransaction converts a mapped transaction status into a session status.
func FromTransaction(s paypack.Status) Status {
	switch s {
	case paypack.StatusCompleted:
		return StatusCompleted
	case paypack.StatusFailed, paypack.StatusInsufficientBalance:
		return StatusFailed
	case paypack.StatusCancelled:
		return StatusCancelled
	default:
		return StatusPending
	}
}

// Thresholds configures the session clock.
type Thresholds struct {
	Tick        time.Duration // elapsed counter resolution
	Interval    time.Duration // delay between status checks
	Sending     time.Duration // end of the "sending" tier
	SoftTimeout time.Duration // pending becomes timeout
	HardStop    time.Duration // polling halts and the session offers a retry
}

// DefaultThresholds returns the production timings.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Tick:        time.Second,
		Interval:    5 * time.Second,
		Sending:     30 * time.Second,
		SoftTimeout: 120 * time.Second,
		HardStop:    300 * time.Second,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.Tick <= 0 {
		t.Tick = d.Tick
	}
	if t.Interval <= 0 {
		t.Interval = d.Interval
	}
	if t.Sending <= 0 {
		t.Sending = d.Sending
	}
	if t.SoftTimeout <= 0 {
		t.SoftTimeout = d.SoftTimeout
	}
	if t.HardStop <= 0 {
		t.HardStop = d.HardStop
	}
	return t
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	Status   Status        `json:"status"`
	Elapsed  time.Duration `json:"-"`
	Seconds  int           `json:"elapsed_seconds"`
	Polling  bool          `json:"polling"`
	TryAgain bool          `json:"try_again"`
	Message  string        `json:"message"`
}

// Machine is the session state machine. Results of checks started before a
// Cancel are discarded.
type Machine struct {
	th Thresholds

	mu         sync.Mutex
	status     Status
	elapsed    time.Duration
	halted     bool
	generation uint64
}

// NewMachine starts a pending session at zero elapsed time.
func NewMachine(th Thresholds) *Machine {
	return &Machine{th: th.withDefaults(), status: StatusPending}
}

// Advance moves the session clock forward.
func (m *Machine) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.elapsed += d
	m.settle()
}

// ShouldPoll reports whether a status check may be issued now.
func (m *Machine) ShouldPoll() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polling()
}

// Begin returns the generation a status check must present to Apply.
func (m *Machine) Begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Apply adopts the result of a status check. It returns false when the result
// is stale or the session no longer polls.
func (m *Machine) Apply(gen uint64, s Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation || !m.polling() {
		return false
	}
	if s == StatusTimeout {
		s = StatusPending
	}
	m.status = s
	m.settle()
	return true
}

// Cancel stops the session and invalidates in-flight checks.
func (m *Machine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	m.halted = true
}

// Done reports whether the session will not poll again.
func (m *Machine) Done() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.polling()
}

// Snapshot returns the current session state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.th.snapshot(m.status, m.elapsed, m.polling())
}

func (m *Machine) polling() bool {
	return !m.halted && !m.status.Terminal()
}

// settle applies the time-driven transitions. Callers hold mu.
func (m *Machine) settle() {
	if m.status == StatusPending && m.elapsed >= m.th.SoftTimeout {
		m.status = StatusTimeout
	}
	if !m.status.Terminal() && m.elapsed >= m.th.HardStop {
		m.halted = true
	}
}

// Evaluate computes the session view for a status observed after elapsed,
// without a long-lived Machine.
func Evaluate(th Thresholds, elapsed time.Duration, observed Status) Snapshot {
	m := NewMachine(th)
	m.Advance(elapsed)
	m.Apply(m.Begin(), observed)
	return m.Snapshot()
}

func (t Thresholds) snapshot(s Status, elapsed time.Duration, polling bool) Snapshot {
	return Snapshot{
		Status:   s,
		Elapsed:  elapsed,
		Seconds:  int(elapsed / time.Second),
		Polling:  polling,
		TryAgain: (!s.Terminal() && elapsed >= t.HardStop) || s == StatusFailed || s == StatusCancelled,
		Message:  t.message(s, elapsed),
	}
}

func (t Thresholds) message(s Status, elapsed time.Duration) string {
	switch s {
	case StatusPending:
		switch {
		case elapsed < t.Sending:
			return "Sending payment request to your phone..."
		case elapsed < t.SoftTimeout:
			return "Please check your phone and complete the mobile money payment."
		default:
			return "Still waiting for payment confirmation. Please complete the payment on your phone."
		}
	case StatusTimeout:
		return "Payment is taking longer than expected. Please complete the payment on your phone or try again."
	case StatusCompleted:
		return "Payment completed successfully!"
	case StatusFailed:
		return "Payment failed. Please try again."
	case StatusCancelled:
		return "Payment was cancelled."
	default:
		return "Checking payment status..."
	}
}
