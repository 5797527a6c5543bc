// Package flood implements the multi-hop minimum-hop-to-base computation.
//
// A flood is a base-initiated broadcast-propagation episode keyed by a
// flood_id. The base unicasts START to a chosen initiator; the initiator
// seeds a DISCOVERY broadcast; every node that hears a strictly-improving
// DISCOVERY rebroadcasts it and emits a REPORT, which propagates back
// toward the initiator with forward-once-per-improvement semantics.
package flood

import (
	"log/slog"
	"sync"

	"github.com/skyflock/swarmcore/core"
	"github.com/skyflock/swarmcore/core/codec"
)

// UnknownHops is returned by HopsFromBase when no usable flood data exists.
const UnknownHops = core.UnknownHops

// Broadcaster is the subset of the communication manager the flood manager
// needs: the ability to broadcast a FLOOD packet. START is unicast by the
// base agent directly and is not sent by this package.
type Broadcaster interface {
	SendBroadcast(category codec.Category, payload []byte)
}

// Config configures a Manager.
type Config struct {
	// SelfID is this node's identity.
	SelfID core.NodeID

	// IsBaseReachable reports whether the base is currently considered
	// directly reachable. Required.
	IsBaseReachable func() bool

	// Sender broadcasts outbound FLOOD packets. Required.
	Sender Broadcaster

	// Logger for flood events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Manager owns the hop-count protocol state for one node.
type Manager struct {
	selfID          core.NodeID
	isBaseReachable func() bool
	sender          Broadcaster
	log             *slog.Logger

	mu             sync.Mutex
	seenFloods     map[uint16]struct{}
	bestHopToBase  map[uint16]uint8
	bestReportSeen map[uint16]map[core.NodeID]uint8
}

// NewManager creates a Manager with the given configuration.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		selfID:          cfg.SelfID,
		isBaseReachable: cfg.IsBaseReachable,
		sender:          cfg.Sender,
		log:             logger.WithGroup("flood"),
		seenFloods:      make(map[uint16]struct{}),
		bestHopToBase:   make(map[uint16]uint8),
		bestReportSeen:  make(map[uint16]map[core.NodeID]uint8),
	}
}

// OnPacketReceived handles an inbound FLOOD-category packet.
func (m *Manager) OnPacketReceived(pkt *codec.Packet) {
	if len(pkt.Payload) == 0 {
		return
	}

	switch pkt.Payload[0] {
	case codec.FloodMsgStart:
		msg, err := codec.DecodeFloodStart(pkt.Payload)
		if err != nil {
			return
		}
		m.handleStart(msg)
	case codec.FloodMsgDiscovery:
		msg, err := codec.DecodeFloodDiscovery(pkt.Payload)
		if err != nil {
			return
		}
		m.handleDiscovery(msg)
	case codec.FloodMsgReport:
		msg, err := codec.DecodeFloodReport(pkt.Payload)
		if err != nil {
			return
		}
		m.handleReport(msg)
	}
}

// StartFlood seeds a new flood as its initiator.
func (m *Manager) StartFlood(floodID uint16) {
	m.mu.Lock()
	m.seenFloods[floodID] = struct{}{}
	m.bestHopToBase[floodID] = 1
	m.mu.Unlock()

	m.log.Debug("flood started", "flood_id", floodID)
	m.sender.SendBroadcast(codec.CategoryFlood, codec.FloodDiscovery{
		FloodID:     floodID,
		InitiatorID: uint8(m.selfID),
		HopToBase:   0,
	}.Encode())
}

func (m *Manager) handleStart(msg codec.FloodStart) {
	m.mu.Lock()
	_, seen := m.seenFloods[msg.FloodID]
	m.mu.Unlock()
	if seen {
		return
	}
	m.StartFlood(msg.FloodID)
}

func (m *Manager) handleDiscovery(msg codec.FloodDiscovery) {
	baseReachable := m.isBaseReachable != nil && m.isBaseReachable()
	var candidate uint8
	if baseReachable {
		candidate = 1
	} else {
		candidate = msg.HopToBase + 1
	}

	m.mu.Lock()
	existing, ok := m.bestHopToBase[msg.FloodID]
	improved := !ok || candidate < existing
	if improved {
		m.bestHopToBase[msg.FloodID] = candidate
		m.seenFloods[msg.FloodID] = struct{}{}
		if _, ok := m.bestReportSeen[msg.FloodID]; !ok {
			m.bestReportSeen[msg.FloodID] = make(map[core.NodeID]uint8)
		}
		m.bestReportSeen[msg.FloodID][m.selfID] = candidate
	}
	m.mu.Unlock()

	if !improved {
		return
	}

	m.log.Debug("discovery improved", "flood_id", msg.FloodID, "hop", candidate)

	m.sender.SendBroadcast(codec.CategoryFlood, codec.FloodReport{
		FloodID:     msg.FloodID,
		InitiatorID: msg.InitiatorID,
		ReporterID:  uint8(m.selfID),
		HopToBase:   candidate,
	}.Encode())

	m.sender.SendBroadcast(codec.CategoryFlood, codec.FloodDiscovery{
		FloodID:     msg.FloodID,
		InitiatorID: msg.InitiatorID,
		HopToBase:   candidate,
	}.Encode())
}

func (m *Manager) handleReport(msg codec.FloodReport) {
	m.mu.Lock()
	_, joined := m.seenFloods[msg.FloodID]
	if !joined {
		m.mu.Unlock()
		return
	}

	seen, ok := m.bestReportSeen[msg.FloodID]
	if !ok {
		seen = make(map[core.NodeID]uint8)
		m.bestReportSeen[msg.FloodID] = seen
	}
	reporter := core.NodeID(msg.ReporterID)
	prev, seenBefore := seen[reporter]
	improved := !seenBefore || msg.HopToBase < prev
	if improved {
		seen[reporter] = msg.HopToBase
	}
	m.mu.Unlock()

	if !improved {
		return
	}

	m.sender.SendBroadcast(codec.CategoryFlood, codec.FloodReport{
		FloodID:     msg.FloodID,
		InitiatorID: msg.InitiatorID,
		ReporterID:  msg.ReporterID,
		HopToBase:   msg.HopToBase,
	}.Encode())
}

// HopsFromBase returns the current best-known hop count to the base,
// applying the stale direct-hop inference rule: if the base is not
// currently reachable but the most recent flood's value was 1, the result
// is reported as UnknownHops rather than a stale direct connection.
func (m *Manager) HopsFromBase() uint8 {
	if m.isBaseReachable != nil && m.isBaseReachable() {
		return 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var latest uint16
	found := false
	for floodID := range m.bestHopToBase {
		if !found || floodID > latest {
			latest = floodID
			found = true
		}
	}
	if !found {
		return UnknownHops
	}

	hop := m.bestHopToBase[latest]
	if hop == 1 {
		return UnknownHops
	}
	return hop
}
