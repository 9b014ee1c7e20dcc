package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/berniyo/paypack-portal/internal/paypack"
)

// StatusFetcher asks the provider for the current status of ref.
type StatusFetcher func(ctx context.Context, ref string) (Status, error)

// TransactionLookup is the subset of the Paypack client the poller needs.
type TransactionLookup interface {
	PaymentStatus(ctx context.Context, ref string) (*paypack.TransactionView, error)
}

// FetchFromPaypack adapts a Paypack client to a StatusFetcher.
func FetchFromPaypack(client TransactionLookup) StatusFetcher {
	return func(ctx context.Context, ref string) (Status, error) {
		view, err := client.PaymentStatus(ctx, ref)
		if err != nil {
			return "", err
		}
		return FromTransaction(view.Status), nil
	}
}

// Poller drives a Machine from two timers: a tick that advances the session
// clock and an interval that issues status checks.
type Poller struct {
	fetch    StatusFetcher
	th       Thresholds
	logger   *slog.Logger
	observer func(Snapshot)
}

// Option customizes a Poller.
type Option func(*Poller)

// WithThresholds overrides the session timings.
func WithThresholds(th Thresholds) Option {
	return func(p *Poller) {
		p.th = th.withDefaults()
	}
}

// WithLogger sets the logger used for failed checks.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver registers a callback invoked on the run goroutine after every
// state change.
func WithObserver(fn func(Snapshot)) Option {
	return func(p *Poller) {
		p.observer = fn
	}
}

// New builds a Poller with production timings.
func New(fetch StatusFetcher, opts ...Option) *Poller {
	p := &Poller{
		fetch:  fetch,
		th:     DefaultThresholds(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Thresholds returns the timings in effect.
func (p *Poller) Thresholds() Thresholds { return p.th }

type checkResult struct {
	gen    uint64
	status Status
	err    error
}

// Run polls ref until a terminal status, the hard stop or ctx cancellation.
// The returned snapshot is the final session state.
func (p *Poller) Run(ctx context.Context, ref string) (Snapshot, error) {
	return p.run(ctx, ref, NewMachine(p.th))
}

func (p *Poller) run(ctx context.Context, ref string, m *Machine) (Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tick := time.NewTicker(p.th.Tick)
	defer tick.Stop()
	interval := time.NewTicker(p.th.Interval)
	defer interval.Stop()

	// At most one check is in flight, so the buffer never blocks a late sender.
	results := make(chan checkResult, 1)
	inFlight := false

	check := func() {
		if inFlight || !m.ShouldPoll() {
			return
		}
		inFlight = true
		gen := m.Begin()
		go func() {
			s, err := p.fetch(ctx, ref)
			results <- checkResult{gen: gen, status: s, err: err}
		}()
	}

	check()
	for {
		select {
		case <-ctx.Done():
			m.Cancel()
			return m.Snapshot(), ctx.Err()
		case <-tick.C:
			before := m.Snapshot().Status
			m.Advance(p.th.Tick)
			if snap := m.Snapshot(); snap.Status != before || !snap.Polling {
				p.notify(snap)
			}
		case <-interval.C:
			check()
		case r := <-results:
			inFlight = false
			if r.err != nil {
				p.logCheckError(ref, r.err)
				break
			}
			if m.Apply(r.gen, r.status) {
				p.notify(m.Snapshot())
			}
		}

		if m.Done() {
			return m.Snapshot(), nil
		}
	}
}

func (p *Poller) notify(s Snapshot) {
	if p.observer != nil {
		p.observer(s)
	}
}

func (p *Poller) logCheckError(ref string, err error) {
	if errors.Is(err, paypack.ErrTransactionNotFound) {
		p.logger.Debug("transaction not ready", "ref", ref)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	p.logger.Warn("payment status check failed", "ref", ref, "error", err)
}

// Session is a poll loop running in the background.
type Session struct {
	machine *Machine
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.Mutex
	result Snapshot
	err    error
}

// Start runs the poll loop for ref on its own goroutine.
func (p *Poller) Start(ctx context.Context, ref string) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		machine: NewMachine(p.th),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		snap, err := p.run(ctx, ref, s.machine)
		s.mu.Lock()
		s.result, s.err = snap, err
		s.mu.Unlock()
	}()

	return s
}

// Snapshot returns the live session state.
func (s *Session) Snapshot() Snapshot { return s.machine.Snapshot() }

// Done is closed once the loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stop tears the session down. Checks still in flight are discarded.
func (s *Session) Stop() {
	s.machine.Cancel()
	s.cancel()
	<-s.done
}

// Wait blocks until the loop exits and returns its final state.
func (s *Session) Wait() (Snapshot, error) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}
