package neighbor

import (
	"testing"

	"github.com/skyflock/swarmcore/core"
	"github.com/skyflock/swarmcore/core/codec"
)

type fakeBroadcaster struct {
	category codec.Category
	payload  []byte
	calls    int
}

func (f *fakeBroadcaster) SendBroadcast(category codec.Category, payload []byte) {
	f.category = category
	f.payload = payload
	f.calls++
}

func TestOnPacketReceivedUpsertsEntry(t *testing.T) {
	m := NewManager(Config{Sender: &fakeBroadcaster{}})

	wire := codec.NeighborEntryWire{ID: 5, HopsToBase: 2, X: 1, Y: 2, Z: 3}
	m.OnPacketReceived(&codec.Packet{
		Src:      5,
		Dst:      core.BroadcastID,
		Category: codec.CategoryNeighbor,
		Payload:  wire.Encode(),
	})

	e, ok := m.Get(5)
	if !ok {
		t.Fatal("entry not recorded")
	}
	if e.HopsToBase != 2 || e.Position != (core.Vector3{X: 1, Y: 2, Z: 3}) {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestOnPacketReceivedRejectsMismatchedSrc(t *testing.T) {
	m := NewManager(Config{Sender: &fakeBroadcaster{}})

	wire := codec.NeighborEntryWire{ID: 5, HopsToBase: 2}
	m.OnPacketReceived(&codec.Packet{
		Src:      6, // mismatched
		Category: codec.CategoryNeighbor,
		Payload:  wire.Encode(),
	})

	if _, ok := m.Get(5); ok {
		t.Error("entry recorded despite src mismatch")
	}
}

func TestOnPacketReceivedIgnoresNonNeighborCategory(t *testing.T) {
	m := NewManager(Config{Sender: &fakeBroadcaster{}})
	wire := codec.NeighborEntryWire{ID: 5, HopsToBase: 2}
	m.OnPacketReceived(&codec.Packet{
		Src:      5,
		Category: codec.CategoryFlood,
		Payload:  wire.Encode(),
	})
	if _, ok := m.Get(5); ok {
		t.Error("entry recorded for non-NEIGHBOR category")
	}
}

func TestUpsertOverwritesOnRefresh(t *testing.T) {
	m := NewManager(Config{Sender: &fakeBroadcaster{}})
	m.Upsert(Entry{ID: 1, HopsToBase: 3, Position: core.Vector3{X: 1}})
	m.Upsert(Entry{ID: 1, HopsToBase: 1, Position: core.Vector3{X: 9}})

	e, _ := m.Get(1)
	if e.HopsToBase != 1 || e.Position.X != 9 {
		t.Errorf("entry not overwritten, got %+v", e)
	}
	if len(m.Neighbors()) != 1 {
		t.Errorf("Neighbors() len = %d, want 1 (overwrite, not append)", len(m.Neighbors()))
	}
}

func TestSendOwnEntryBroadcastsNeighborPayload(t *testing.T) {
	fb := &fakeBroadcaster{}
	m := NewManager(Config{Sender: fb})

	m.SendOwnEntry(4, core.Vector3{X: 1, Y: 2, Z: 3}, 2)

	if fb.calls != 1 {
		t.Fatalf("SendBroadcast called %d times, want 1", fb.calls)
	}
	if fb.category != codec.CategoryNeighbor {
		t.Errorf("category = %v, want CategoryNeighbor", fb.category)
	}
	wire, err := codec.DecodeNeighborEntry(fb.payload, 4)
	if err != nil {
		t.Fatalf("DecodeNeighborEntry() error = %v", err)
	}
	if wire.HopsToBase != 2 || wire.X != 1 || wire.Y != 2 || wire.Z != 3 {
		t.Errorf("unexpected wire payload %+v", wire)
	}
}

func TestNeighborsSnapshotIsIndependent(t *testing.T) {
	m := NewManager(Config{Sender: &fakeBroadcaster{}})
	m.Upsert(Entry{ID: 1})
	snap := m.Neighbors()
	m.Upsert(Entry{ID: 2})

	if len(snap) != 1 {
		t.Errorf("snapshot mutated by later Upsert, len = %d, want 1", len(snap))
	}
}
