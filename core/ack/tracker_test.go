package ack

import (
	"testing"
	"time"

	"github.com/skyflock/swarmcore/core/clock"
)

func TestTrackerResolveBeforeTimeout(t *testing.T) {
	mc := clock.NewManual()
	tr := NewTracker(TrackerConfig{Timeout: time.Second, Clock: mc})

	fired := false
	tr.Track(1, Pending{OnTimeout: func() { fired = true }})

	if !tr.Resolve(1) {
		t.Fatal("Resolve() = false, want true for pending seq")
	}
	mc.Advance(2)
	tr.CheckTimeouts()

	if fired {
		t.Error("OnTimeout fired after Resolve")
	}
	if tr.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0", tr.PendingCount())
	}
}

func TestTrackerFiresTimeout(t *testing.T) {
	mc := clock.NewManual()
	tr := NewTracker(TrackerConfig{Timeout: time.Second, Clock: mc})

	fired := false
	tr.Track(1, Pending{OnTimeout: func() { fired = true }})

	mc.Advance(1.5)
	tr.CheckTimeouts()

	if !fired {
		t.Error("OnTimeout did not fire after timeout elapsed")
	}
	if tr.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0 after timeout", tr.PendingCount())
	}
}

func TestTrackerTimeoutFiresOnlyOnce(t *testing.T) {
	mc := clock.NewManual()
	tr := NewTracker(TrackerConfig{Timeout: time.Second, Clock: mc})

	count := 0
	tr.Track(1, Pending{OnTimeout: func() { count++ }})

	mc.Advance(2)
	tr.CheckTimeouts()
	tr.CheckTimeouts()

	if count != 1 {
		t.Errorf("OnTimeout fired %d times, want 1", count)
	}
}

func TestTrackerCancel(t *testing.T) {
	mc := clock.NewManual()
	tr := NewTracker(TrackerConfig{Timeout: time.Second, Clock: mc})

	fired := false
	tr.Track(1, Pending{OnTimeout: func() { fired = true }})
	tr.Cancel(1)

	mc.Advance(2)
	tr.CheckTimeouts()

	if fired {
		t.Error("OnTimeout fired after Cancel")
	}
}

func TestTrackerResolveUnknownSeq(t *testing.T) {
	tr := NewTracker(TrackerConfig{Clock: clock.NewManual()})
	if tr.Resolve(42) {
		t.Error("Resolve() = true for unknown seq, want false")
	}
}
