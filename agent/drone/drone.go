// Package drone implements the per-drone tick loop: ack-timeout detection
// and HELP_PROXY escalation, position reporting, neighbor broadcast, and
// the multi-hop relay of POS_UPDATE and POS_ACK traffic on behalf of
// peers the base cannot reach directly. Each node's tick is staggered by
// a phase offset derived from its ID so a swarm's nodes don't all fire
// on the same instant.
package drone

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skyflock/swarmcore/core"
	"github.com/skyflock/swarmcore/core/ack"
	"github.com/skyflock/swarmcore/core/clock"
	"github.com/skyflock/swarmcore/core/codec"
	"github.com/skyflock/swarmcore/core/comm"
	"github.com/skyflock/swarmcore/core/controller"
	"github.com/skyflock/swarmcore/core/flood"
	"github.com/skyflock/swarmcore/core/neighbor"
)

// DefaultTickInterval is the simulated interval between drone ticks.
const DefaultTickInterval = 50 * time.Millisecond

// DefaultAckTimeout is how long a drone waits for a POS_ACK before
// escalating to a HELP_PROXY broadcast.
const DefaultAckTimeout = 1500 * time.Millisecond

// TickPhase returns the staggered start offset for id, so that a swarm of
// drones doesn't tick in lockstep.
func TickPhase(id core.NodeID) time.Duration {
	return time.Duration(0.01 * float64(id) * float64(time.Second))
}

// PositionSource reports a drone's current position.
type PositionSource interface {
	Position() core.Vector3
}

// VelocityActuator applies a commanded acceleration, clamped to a max speed.
type VelocityActuator interface {
	ApplyVelocity(accel core.Vector3, maxVelocity float64)
}

// Comm is the subset of the communication manager the drone agent needs.
type Comm interface {
	SendUnicast(dst core.NodeID, category codec.Category, payload []byte)
	SendBroadcast(category codec.Category, payload []byte)
	SetFloodHandler(h comm.Handler)
	SetNeighborHandler(h comm.Handler)
	SetCoreHandler(h comm.Handler)
	RegisterPeer(id core.NodeID, address uint32)
}

// Config configures an Agent.
type Config struct {
	SelfID core.NodeID

	// TickInterval is the period between ticks. Defaults to
	// DefaultTickInterval.
	TickInterval time.Duration
	// TickPhase delays the first tick after Start. Defaults to
	// TickPhase(SelfID).
	TickPhase time.Duration
	// AckTimeout is how long to wait for a POS_ACK before broadcasting
	// HELP_PROXY. Defaults to DefaultAckTimeout.
	AckTimeout time.Duration

	// Clock is the simulated time source. Defaults to clock.NewSystem().
	Clock clock.Source

	Position PositionSource
	Actuator VelocityActuator
	Comm     Comm

	// Controller gains; non-positive values fall back to the controller
	// package's own defaults.
	KAtt, KRep, DSafe, VMax, MassKg float64

	Logger *slog.Logger
}

// Agent owns one drone's coordination state: position reporting,
// ack-timeout tracking, mission triggering, and traffic relay.
type Agent struct {
	selfID     core.NodeID
	tickDt     time.Duration
	tickPhase  time.Duration
	ackTimeout time.Duration
	clk        clock.Source
	position   PositionSource
	actuator   VelocityActuator
	comm       Comm
	log        *slog.Logger

	flood      *flood.Manager
	neighbor   *neighbor.Manager
	controller *controller.Controller
	ackTracker *ack.Tracker

	mu            sync.Mutex
	hasBase       bool
	baseID        core.NodeID
	helpProxySent bool
	posSeq        uint16
	lastAckedSeq  uint16
	lastAckTimeS  float64
	missionStartS float64

	cancel context.CancelFunc
}

// Status is a point-in-time snapshot of an Agent's state, exposed for
// monitoring and tests.
type Status struct {
	HasBase       bool
	BaseID        core.NodeID
	WaitingAck    bool
	HelpProxySent bool
	PosSeq        uint16
	LastAckedSeq  uint16
	MissionActive bool
	MissionStartS float64
	HopsFromBase  uint8
}

// New creates an Agent and wires it to the given communication manager.
func New(cfg Config) *Agent {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.TickPhase <= 0 {
		cfg.TickPhase = TickPhase(cfg.SelfID)
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.WithGroup("drone")

	a := &Agent{
		selfID:     cfg.SelfID,
		tickDt:     cfg.TickInterval,
		tickPhase:  cfg.TickPhase,
		ackTimeout: cfg.AckTimeout,
		clk:        cfg.Clock,
		position:   cfg.Position,
		actuator:   cfg.Actuator,
		comm:       cfg.Comm,
		log:        logger,
	}

	a.flood = flood.NewManager(flood.Config{
		SelfID:          cfg.SelfID,
		IsBaseReachable: a.IsBaseReachable,
		Sender:          cfg.Comm,
		Logger:          logger,
	})
	a.neighbor = neighbor.NewManager(neighbor.Config{
		Sender: cfg.Comm,
		Logger: logger,
	})
	a.controller = controller.New(controller.Config{
		SelfID: cfg.SelfID,
		KAtt:   cfg.KAtt,
		KRep:   cfg.KRep,
		DSafe:  cfg.DSafe,
		VMax:   cfg.VMax,
		MassKg: cfg.MassKg,
		Logger: logger,
	})
	a.ackTracker = ack.NewTracker(ack.TrackerConfig{
		Timeout: cfg.AckTimeout,
		Clock:   cfg.Clock,
		Logger:  logger,
	})

	cfg.Comm.SetFloodHandler(a.flood.OnPacketReceived)
	cfg.Comm.SetNeighborHandler(a.neighbor.OnPacketReceived)
	cfg.Comm.SetCoreHandler(a.onCorePacket)

	return a
}

// SetBaseStation records this drone's assigned base, enabling position
// reporting and ack tracking. A drone with no assigned base never sends
// POS_UPDATE and is never considered base-reachable.
func (a *Agent) SetBaseStation(baseID core.NodeID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.baseID = baseID
	a.hasBase = true
}

// Start begins the periodic tick loop: an initial delay of TickPhase,
// then one Tick every TickInterval, until ctx is canceled or Stop is
// called.
func (a *Agent) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go func() {
		timer := time.NewTimer(a.tickPhase)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		a.Tick()

		ticker := time.NewTicker(a.tickDt)
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

// Stop cancels the tick loop started by Start.
func (a *Agent) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}

// Tick runs one cycle of the per-drone coordination loop: escalate to
// HELP_PROXY on ack timeout, step the controller, send a position update,
// and broadcast this drone's own neighbor entry.
func (a *Agent) Tick() {
	a.ackTracker.CheckTimeouts()

	a.mu.Lock()
	hasBase := a.hasBase
	baseID := a.baseID
	broadcastUpdate := a.helpProxySent
	a.mu.Unlock()

	pos := a.position.Position()
	hops := a.flood.HopsFromBase()
	neighbors := a.neighbor.Neighbors()

	accel := a.controller.Step(neighbors, pos, hops)
	a.actuator.ApplyVelocity(accel, a.controller.VMax())

	if hasBase {
		a.mu.Lock()
		a.posSeq++
		seq := a.posSeq
		a.mu.Unlock()

		upd := codec.PosUpdate{
			DroneID: uint8(a.selfID),
			BaseID:  uint8(baseID),
			Seq:     seq,
			X:       float32(pos.X),
			Y:       float32(pos.Y),
			Z:       float32(pos.Z),
		}

		// Only the first unacknowledged send of a waiting period is
		// tracked: resending a new seq every tick while still waiting
		// must not keep pushing the timeout window forward.
		if a.ackTracker.PendingCount() == 0 {
			a.ackTracker.Track(seq, ack.Pending{OnTimeout: a.onAckTimeout})
		}

		if broadcastUpdate {
			a.comm.SendBroadcast(codec.CategoryCore, upd.Encode())
		} else {
			a.comm.SendUnicast(baseID, codec.CategoryCore, upd.Encode())
		}
	}

	a.neighbor.SendOwnEntry(a.selfID, pos, hops)
}

// onAckTimeout escalates to a HELP_PROXY broadcast once, the first time an
// outstanding POS_UPDATE goes unacknowledged past the ack timeout.
func (a *Agent) onAckTimeout() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.helpProxySent {
		return
	}
	a.sendHelpProxyLocked()
}

// sendHelpProxyLocked broadcasts a distress request after an ack timeout.
// Caller must hold a.mu.
func (a *Agent) sendHelpProxyLocked() {
	a.log.Debug("ack timeout, broadcasting help proxy", "base", a.baseID)
	a.comm.SendBroadcast(codec.CategoryCore, codec.HelpProxy{
		RequesterID: uint8(a.selfID),
		BaseID:      uint8(a.baseID),
	}.Encode())
	a.helpProxySent = true
}

// onCorePacket dispatches an inbound CORE packet by discriminant.
func (a *Agent) onCorePacket(pkt *codec.Packet) {
	if len(pkt.Payload) == 0 {
		return
	}

	switch pkt.Payload[0] {
	case codec.CoreMsgPosAck:
		ack, err := codec.DecodePosAck(pkt.Payload)
		if err != nil {
			return
		}
		a.handlePosAck(ack)
	case codec.CoreMsgPosUpdate:
		upd, err := codec.DecodePosUpdate(pkt.Payload)
		if err != nil {
			return
		}
		a.handlePosUpdate(pkt, upd)
	case codec.CoreMsgHelpProxy:
		help, err := codec.DecodeHelpProxy(pkt.Payload)
		if err != nil {
			return
		}
		a.handleHelpProxy(help)
	}
}

// handlePosAck processes a POS_ACK. An ack whose embedded drone_id is not
// this drone's own is not meant for us — we were only a relay hop — so it
// is rebroadcast unchanged rather than consumed. An ack addressed to us
// that arrives directly resolves our pending POS_UPDATE and advances
// last_ack_time; a relayed ack (one received after our own help_proxy
// escalation) does neither. Either way, the base's embedded coordinates
// are recorded as a NEIGHBOR entry.
func (a *Agent) handlePosAck(ack codec.PosAck) {
	if core.NodeID(ack.BaseID) != a.currentBaseID() {
		return
	}

	if core.NodeID(ack.DroneID) != a.selfID {
		a.comm.SendBroadcast(codec.CategoryCore, ack.Encode())
		return
	}

	a.mu.Lock()
	direct := !a.helpProxySent
	if direct {
		a.lastAckTimeS = a.clk.Now()
	}
	a.lastAckedSeq = ack.Seq
	a.mu.Unlock()

	if direct {
		a.ackTracker.Resolve(ack.Seq)
	}

	a.neighbor.Upsert(neighbor.Entry{
		ID:         core.NodeID(ack.BaseID),
		HopsToBase: ack.BaseHops,
		Position:   core.Vector3{X: ack.X, Y: ack.Y, Z: ack.Z},
	})
}

// handlePosUpdate relays a peer's broadcast POS_UPDATE toward the base.
// Unicast POS_UPDATEs are never forwarded — only this drone's own base
// agent acts on those directly.
func (a *Agent) handlePosUpdate(pkt *codec.Packet, upd codec.PosUpdate) {
	if core.NodeID(upd.BaseID) != a.currentBaseID() {
		return
	}
	if !pkt.IsBroadcast() {
		return
	}
	if core.NodeID(upd.DroneID) == a.selfID {
		return
	}
	a.comm.SendUnicast(a.currentBaseID(), codec.CategoryCore, upd.Encode())
}

// handleHelpProxy starts the mission on receipt of a peer's distress
// broadcast. A drone never reacts to its own HELP_PROXY.
func (a *Agent) handleHelpProxy(help codec.HelpProxy) {
	if core.NodeID(help.BaseID) != a.currentBaseID() {
		return
	}
	if core.NodeID(help.RequesterID) == a.selfID {
		return
	}

	a.mu.Lock()
	if !a.controller.IsMissionActive() {
		a.missionStartS = a.clk.Now()
	}
	a.mu.Unlock()

	a.controller.StartMission()
}

// IsBaseReachable reports whether this drone currently considers its base
// directly reachable: it has an assigned base and its last direct
// (non-relayed) ack is within the configured timeout. Until a first direct
// ack arrives, clock time 0 counts as the last ack time.
func (a *Agent) IsBaseReachable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasBase && a.clk.Now()-a.lastAckTimeS <= a.ackTimeout.Seconds()
}

func (a *Agent) currentBaseID() core.NodeID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.baseID
}

// HopsFromBase returns this drone's current best-known hop count to base.
func (a *Agent) HopsFromBase() uint8 {
	return a.flood.HopsFromBase()
}

// Neighbors returns a snapshot of this drone's neighbor table.
func (a *Agent) Neighbors() []neighbor.Entry {
	return a.neighbor.Neighbors()
}

// Status returns a snapshot of the agent's internal state.
func (a *Agent) Status() Status {
	waitingAck := a.ackTracker.PendingCount() > 0
	// Read before taking a.mu: HopsFromBase calls IsBaseReachable, which
	// takes a.mu itself.
	hops := a.flood.HopsFromBase()

	a.mu.Lock()
	defer a.mu.Unlock()
	return Status{
		HasBase:       a.hasBase,
		BaseID:        a.baseID,
		WaitingAck:    waitingAck,
		HelpProxySent: a.helpProxySent,
		PosSeq:        a.posSeq,
		LastAckedSeq:  a.lastAckedSeq,
		MissionActive: a.controller.IsMissionActive(),
		MissionStartS: a.missionStartS,
		HopsFromBase:  hops,
	}
}
