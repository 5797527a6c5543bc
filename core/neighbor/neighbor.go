// Package neighbor maintains each node's per-peer table of last-known
// position and hop-to-base, fed by periodic NEIGHBOR broadcasts.
//
// Entries are never evicted within a mission; the core does not impose an
// eviction policy, leaving that to an external timeout if the deployment
// needs one.
package neighbor

import (
	"log/slog"
	"sync"

	"github.com/skyflock/swarmcore/core"
	"github.com/skyflock/swarmcore/core/codec"
)

// Entry is the last-known state of one peer.
type Entry struct {
	ID         core.NodeID
	HopsToBase uint8
	Position   core.Vector3
}

// Broadcaster is the subset of the communication manager the neighbor
// manager needs to emit its own entry.
type Broadcaster interface {
	SendBroadcast(category codec.Category, payload []byte)
}

// Config configures a Manager.
type Config struct {
	// Sender broadcasts this node's own NEIGHBOR entry. Required.
	Sender Broadcaster

	// Logger for neighbor events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Manager owns the neighbor table for one node.
type Manager struct {
	sender Broadcaster
	log    *slog.Logger

	mu        sync.RWMutex
	neighbors map[core.NodeID]Entry
}

// NewManager creates a Manager with the given configuration.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sender:    cfg.Sender,
		log:       logger.WithGroup("neighbor"),
		neighbors: make(map[core.NodeID]Entry),
	}
}

// OnPacketReceived upserts the sending peer's entry from a NEIGHBOR packet.
// Malformed payloads (short, or whose embedded id doesn't match the
// envelope source) are dropped silently.
func (m *Manager) OnPacketReceived(pkt *codec.Packet) {
	if pkt.Category != codec.CategoryNeighbor {
		return
	}
	wire, err := codec.DecodeNeighborEntry(pkt.Payload, uint8(pkt.Src))
	if err != nil {
		return
	}
	m.Upsert(Entry{
		ID:         core.NodeID(wire.ID),
		HopsToBase: wire.HopsToBase,
		Position:   core.Vector3{X: wire.X, Y: wire.Y, Z: wire.Z},
	})
}

// Upsert records or refreshes a peer's entry directly, bypassing wire
// decoding. Used by the drone agent to feed synthesized base entries
// derived from POS_ACK payloads.
func (m *Manager) Upsert(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.neighbors[e.ID] = e
}

// SendOwnEntry serializes and broadcasts this node's own NEIGHBOR entry.
func (m *Manager) SendOwnEntry(id core.NodeID, position core.Vector3, hopsToBase uint8) {
	wire := codec.NeighborEntryWire{
		ID:         uint8(id),
		HopsToBase: hopsToBase,
		X:          position.X,
		Y:          position.Y,
		Z:          position.Z,
	}
	m.sender.SendBroadcast(codec.CategoryNeighbor, wire.Encode())
}

// Neighbors returns a snapshot of the current entries. Order is unspecified.
func (m *Manager) Neighbors() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.neighbors))
	for _, e := range m.neighbors {
		out = append(out, e)
	}
	return out
}

// Get returns the entry for id, if any.
func (m *Manager) Get(id core.NodeID) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.neighbors[id]
	return e, ok
}
