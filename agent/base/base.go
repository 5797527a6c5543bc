// Package base implements the base station agent: periodic flood
// seeding, and POS_UPDATE acknowledgement for the drones it can reach,
// directly or via a relay hop. Unlike a drone agent, the base station
// never broadcasts: every transmission is a direct unicast reply or a
// unicast flood seed to a specific initiator.
package base

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skyflock/swarmcore/core"
	"github.com/skyflock/swarmcore/core/clock"
	"github.com/skyflock/swarmcore/core/codec"
	"github.com/skyflock/swarmcore/core/comm"
)

// DefaultTickInterval is the interval between flood-seed ticks.
const DefaultTickInterval = 2 * time.Second

// PositionSource reports the base station's own position, embedded in
// every POS_ACK.
type PositionSource interface {
	Position() core.Vector3
}

// Comm is the subset of the communication manager the base agent needs.
type Comm interface {
	SendUnicast(dst core.NodeID, category codec.Category, payload []byte)
	SetFloodHandler(h comm.Handler)
	SetNeighborHandler(h comm.Handler)
	SetCoreHandler(h comm.Handler)
	RegisterPeer(id core.NodeID, address uint32)
}

// Config configures an Agent.
type Config struct {
	SelfID core.NodeID

	// TickInterval is the period between flood-seed ticks. Defaults to
	// DefaultTickInterval.
	TickInterval time.Duration

	// Clock is the simulated time source. Defaults to clock.NewSystem().
	Clock clock.Source

	Position PositionSource
	Comm     Comm

	Logger *slog.Logger
}

// Agent owns the base station's coordination state: registered drone
// membership, the last known position of each, and the flood sequence
// counter.
type Agent struct {
	selfID       core.NodeID
	tickInterval time.Duration
	clk          clock.Source
	position     PositionSource
	comm         Comm
	log          *slog.Logger

	mu           sync.Mutex
	registered   map[core.NodeID]struct{}
	lastPosition map[core.NodeID]codec.PosUpdate
	floodSeq     uint16

	cancel context.CancelFunc
}

// New creates an Agent and wires it to the given communication manager.
// The base station never broadcasts; it always knows exactly who it's
// talking to.
func New(cfg Config) *Agent {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.WithGroup("base")

	a := &Agent{
		selfID:       cfg.SelfID,
		tickInterval: cfg.TickInterval,
		clk:          cfg.Clock,
		position:     cfg.Position,
		comm:         cfg.Comm,
		log:          logger,
		registered:   make(map[core.NodeID]struct{}),
		lastPosition: make(map[core.NodeID]codec.PosUpdate),
	}

	cfg.Comm.SetCoreHandler(a.onCorePacket)
	// The base station never reacts to FLOOD or NEIGHBOR traffic; it only
	// seeds floods and answers POS_UPDATE.
	cfg.Comm.SetFloodHandler(func(*codec.Packet) {})
	cfg.Comm.SetNeighborHandler(func(*codec.Packet) {})

	return a
}

// RegisterDrone records a drone as swarm membership and forwards its
// address to the transport.
func (a *Agent) RegisterDrone(id core.NodeID, address uint32) {
	a.mu.Lock()
	a.registered[id] = struct{}{}
	a.mu.Unlock()
	a.comm.RegisterPeer(id, address)
}

// Start begins the periodic flood-seed loop until ctx is canceled or Stop
// is called.
func (a *Agent) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go func() {
		ticker := time.NewTicker(a.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.Tick()
			}
		}
	}()
}

// Stop cancels the flood-seed loop started by Start.
func (a *Agent) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}

// Tick seeds a new flood addressed to a stable initiator: the lowest
// currently registered drone id, recomputed every tick so that dropped
// members don't strand the flood protocol on a vanished initiator.
func (a *Agent) Tick() {
	initiator, ok := a.lowestRegisteredID()
	if !ok {
		return
	}

	a.mu.Lock()
	a.floodSeq++
	seq := a.floodSeq
	a.mu.Unlock()

	a.log.Debug("seeding flood", "flood_id", seq, "initiator", initiator)
	a.comm.SendUnicast(initiator, codec.CategoryFlood, codec.FloodStart{FloodID: seq}.Encode())
}

func (a *Agent) lowestRegisteredID() (core.NodeID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var lowest core.NodeID
	found := false
	for id := range a.registered {
		if !found || id < lowest {
			lowest = id
			found = true
		}
	}
	return lowest, found
}

// onCorePacket handles a CORE packet addressed to the base station. Only
// POS_UPDATE is meaningful here: the base never originates HELP_PROXY and
// never consumes a POS_ACK (it only ever sends them).
func (a *Agent) onCorePacket(pkt *codec.Packet) {
	if len(pkt.Payload) == 0 || pkt.Payload[0] != codec.CoreMsgPosUpdate {
		return
	}
	upd, err := codec.DecodePosUpdate(pkt.Payload)
	if err != nil {
		return
	}
	if core.NodeID(upd.BaseID) != a.selfID {
		return
	}

	a.mu.Lock()
	a.lastPosition[core.NodeID(upd.DroneID)] = upd
	a.mu.Unlock()

	pos := a.position.Position()
	ack := codec.PosAck{
		BaseID:   uint8(a.selfID),
		DroneID:  upd.DroneID,
		Seq:      upd.Seq,
		BaseHops: 0,
		X:        pos.X,
		Y:        pos.Y,
		Z:        pos.Z,
	}
	// Addressed to the immediate sender of this POS_UPDATE rather than the
	// original requester embedded in the payload: when upd reached us via
	// a relay hop, pkt.Src is that relay, not the (out-of-range) requester.
	// Addressing the ack to the relay lets it keep forwarding toward the
	// requester per the POS_ACK relay rule; when the update came directly,
	// pkt.Src already equals the requester and this is exactly a direct ack.
	a.comm.SendUnicast(core.NodeID(pkt.Src), codec.CategoryCore, ack.Encode())
}

// LastPosition returns the most recently recorded POS_UPDATE for a drone,
// if any.
func (a *Agent) LastPosition(id core.NodeID) (codec.PosUpdate, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.lastPosition[id]
	return p, ok
}

// RegisteredCount returns the number of currently registered drones.
func (a *Agent) RegisteredCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.registered)
}
