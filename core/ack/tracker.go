// Package ack tracks outbound messages awaiting acknowledgement.
//
// A Tracker entry corresponds to one drone's outstanding POS_UPDATE: the
// drone registers the sequence number it sent and is notified once, via
// OnTimeout, if no POS_ACK arrives within the configured window. There are
// no retries here — the swarm's response to a timeout is to broadcast
// HELP_PROXY and await a relayed ack, not to resend the original message.
package ack

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skyflock/swarmcore/core/clock"
)

// DefaultTimeout is the default time to wait for an ACK before firing
// OnTimeout.
const DefaultTimeout = 5 * time.Second

// checkInterval is the resolution of the tracker's timeout check loop.
const checkInterval = 100 * time.Millisecond

// Pending represents an outbound message awaiting acknowledgement.
type Pending struct {
	// OnTimeout is called once if no Resolve arrives within the timeout
	// window. May be nil.
	OnTimeout func()

	sentAt float64
}

// TrackerConfig configures an ACK Tracker.
type TrackerConfig struct {
	// Timeout is the maximum time to wait for an ACK. Default: 5 seconds.
	Timeout time.Duration

	// Clock supplies the current time. Defaults to clock.NewSystem().
	Clock clock.Source

	// Logger for tracker events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Tracker tracks pending ACKs keyed by sequence number and fires a
// one-shot timeout callback when one goes unanswered.
type Tracker struct {
	cfg     TrackerConfig
	log     *slog.Logger
	clk     clock.Source
	mu      sync.Mutex
	pending map[uint16]*Pending
	cancel  context.CancelFunc
}

// NewTracker creates an ACK tracker with the given configuration.
func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		cfg:     cfg,
		log:     logger.WithGroup("ack"),
		clk:     cfg.Clock,
		pending: make(map[uint16]*Pending),
	}
}

// Track registers a pending ACK for seq. If an entry already exists for
// seq it is replaced; its callback is not called.
func (t *Tracker) Track(seq uint16, pending Pending) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending.sentAt = t.clk.Now()
	t.pending[seq] = &pending
}

// Resolve marks an ACK as received. Returns true if seq was pending.
func (t *Tracker) Resolve(seq uint16) bool {
	t.mu.Lock()
	_, ok := t.pending[seq]
	if ok {
		delete(t.pending, seq)
	}
	t.mu.Unlock()
	return ok
}

// Cancel removes a pending ACK without calling its callback.
func (t *Tracker) Cancel(seq uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, seq)
}

// PendingCount returns the number of pending ACKs.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Start begins the timeout check loop. Blocks until the context is cancelled.
func (t *Tracker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkTimeouts()
		}
	}
}

// Stop cancels the tracker's context, stopping the timeout check loop.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// CheckTimeouts is exported so callers driving simulated time can invoke
// it directly instead of running the Start loop against a wall clock.
func (t *Tracker) CheckTimeouts() {
	t.checkTimeouts()
}

func (t *Tracker) checkTimeouts() {
	t.mu.Lock()
	now := t.clk.Now()

	var timedOut []uint16
	for seq, p := range t.pending {
		if now-p.sentAt < t.cfg.Timeout.Seconds() {
			continue
		}
		timedOut = append(timedOut, seq)
	}

	entries := make(map[uint16]*Pending, len(timedOut))
	for _, seq := range timedOut {
		entries[seq] = t.pending[seq]
		delete(t.pending, seq)
	}
	t.mu.Unlock()

	for seq, p := range entries {
		t.log.Debug("ack timed out", "seq", seq)
		if p.OnTimeout != nil {
			p.OnTimeout()
		}
	}
}
