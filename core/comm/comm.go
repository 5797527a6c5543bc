// Package comm is the thin framer/dispatcher between the structured
// Packet and the byte transport: on send it chooses unicast or broadcast
// based on destination; on receive it decodes the envelope and routes by
// category to the installed FLOOD, NEIGHBOR, or CORE handler.
//
// Hop-count forwarding and ack-relaying are each agent's own concern,
// not this package's. What this package owns is a dedup gate in front
// of dispatch, and category-routed handlers installed by the owning
// agent.
package comm

import (
	"log/slog"
	"sync"

	"github.com/skyflock/swarmcore/core"
	"github.com/skyflock/swarmcore/core/codec"
	"github.com/skyflock/swarmcore/core/dedupe"
	"github.com/skyflock/swarmcore/transport"
)

// Handler processes a decoded packet for one category.
type Handler func(pkt *codec.Packet)

// Config configures a Manager.
type Config struct {
	// SelfID is this node's identity, stamped as Src on every outbound
	// packet and checked against Dst on every inbound one.
	SelfID core.NodeID

	// Transport is the underlying byte channel. Required.
	Transport transport.Transport

	// Dedup gates duplicate packets before dispatch. Defaults to
	// dedupe.New() if nil.
	Dedup *dedupe.Deduplicator

	// Logger for communication events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Manager frames and dispatches packets for one node.
type Manager struct {
	selfID    core.NodeID
	transport transport.Transport
	dedup     *dedupe.Deduplicator
	log       *slog.Logger

	mu              sync.RWMutex
	floodHandler    Handler
	neighborHandler Handler
	coreHandler     Handler
}

// New creates a Manager with the given configuration and installs its
// receive callback on the transport.
func New(cfg Config) *Manager {
	if cfg.Dedup == nil {
		cfg.Dedup = dedupe.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		selfID:    cfg.SelfID,
		transport: cfg.Transport,
		dedup:     cfg.Dedup,
		log:       logger.WithGroup("comm"),
	}
	cfg.Transport.SetRxCallback(m.onReceive)
	return m
}

// SetFloodHandler installs the handler for CategoryFlood packets.
func (m *Manager) SetFloodHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.floodHandler = h
}

// SetNeighborHandler installs the handler for CategoryNeighbor packets.
func (m *Manager) SetNeighborHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.neighborHandler = h
}

// SetCoreHandler installs the fallback handler for CategoryCore packets.
func (m *Manager) SetCoreHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coreHandler = h
}

// RegisterPeer forwards an advisory address mapping to the transport.
func (m *Manager) RegisterPeer(id core.NodeID, address uint32) {
	m.transport.RegisterPeer(uint8(id), address)
}

// SendUnicast frames and unicasts a payload to dst.
func (m *Manager) SendUnicast(dst core.NodeID, category codec.Category, payload []byte) {
	pkt := &codec.Packet{Src: m.selfID, Dst: dst, Category: category, Payload: payload}
	m.transport.SendUnicast(uint8(dst), pkt.WriteTo())
}

// SendBroadcast frames and broadcasts a payload.
func (m *Manager) SendBroadcast(category codec.Category, payload []byte) {
	pkt := &codec.Packet{Src: m.selfID, Dst: core.BroadcastID, Category: category, Payload: payload}
	m.transport.SendBroadcast(pkt.WriteTo())
}

// onReceive decodes a raw datagram and dispatches it by category.
// Packets not addressed to self and not broadcast are dropped silently,
// per spec §4.2.
func (m *Manager) onReceive(raw []byte) {
	pkt := &codec.Packet{}
	if err := pkt.ReadFrom(raw); err != nil {
		m.log.Debug("dropping malformed packet", "error", err)
		return
	}
	if !pkt.AddressedTo(m.selfID) {
		return
	}
	if m.dedup.HasSeen(pkt) {
		return
	}
	m.dispatch(pkt)
}

func (m *Manager) dispatch(pkt *codec.Packet) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch pkt.Category {
	case codec.CategoryFlood:
		if m.floodHandler != nil {
			m.floodHandler(pkt)
		}
	case codec.CategoryNeighbor:
		if m.neighborHandler != nil {
			m.neighborHandler(pkt)
		}
	case codec.CategoryCore:
		if m.coreHandler != nil {
			m.coreHandler(pkt)
		}
	}
}
