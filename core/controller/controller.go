// Package controller implements the distributed potential-field
// controller: attraction toward peers at a different hop count, repulsion
// from peers closer than the configured safety distance.
package controller

import (
	"log/slog"

	"github.com/skyflock/swarmcore/core"
	"github.com/skyflock/swarmcore/core/neighbor"
)

// Defaults applied when a configured gain or bound is non-positive.
const (
	DefaultKAtt   = 1.0
	DefaultKRep   = 1.0
	DefaultDSafe  = 1.0
	DefaultVMax   = 1.0
	DefaultMassKg = 2.5
)

// Config configures a Controller.
type Config struct {
	SelfID core.NodeID

	// KAtt is the attraction gain. Non-positive falls back to DefaultKAtt.
	KAtt float64
	// KRep is the repulsion gain. Non-positive falls back to DefaultKRep.
	KRep float64
	// DSafe is the collision radius. Non-positive falls back to DefaultDSafe.
	DSafe float64
	// VMax is the speed clamp passed through to the velocity actuator.
	// Non-positive falls back to DefaultVMax.
	VMax float64
	// MassKg is used to convert net force into acceleration (a = F/m).
	// Non-positive falls back to DefaultMassKg.
	MassKg float64

	// Logger for controller events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Controller owns the mission state machine and computes per-tick
// acceleration from the neighbor list.
type Controller struct {
	selfID core.NodeID
	kAtt   float64
	kRep   float64
	dSafe  float64
	vMax   float64
	massKg float64
	log    *slog.Logger

	missionActive bool
}

// New creates a Controller with the given configuration.
func New(cfg Config) *Controller {
	if cfg.KAtt <= 0 {
		cfg.KAtt = DefaultKAtt
	}
	if cfg.KRep <= 0 {
		cfg.KRep = DefaultKRep
	}
	if cfg.DSafe <= 0 {
		cfg.DSafe = DefaultDSafe
	}
	if cfg.VMax <= 0 {
		cfg.VMax = DefaultVMax
	}
	if cfg.MassKg <= 0 {
		cfg.MassKg = DefaultMassKg
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		selfID: cfg.SelfID,
		kAtt:   cfg.KAtt,
		kRep:   cfg.KRep,
		dSafe:  cfg.DSafe,
		vMax:   cfg.VMax,
		massKg: cfg.MassKg,
		log:    logger.WithGroup("controller"),
	}
}

// VMax returns the configured speed clamp, for callers that apply the
// returned acceleration to a velocity actuator.
func (c *Controller) VMax() float64 { return c.vMax }

// StartMission transitions IDLE -> MISSION. MISSION is terminal for the
// episode unless explicitly reset.
func (c *Controller) StartMission() {
	if !c.missionActive {
		c.log.Info("mission started")
	}
	c.missionActive = true
}

// ResetMission clears the mission flag. Not invoked by the core itself;
// provided for callers that manage episode boundaries.
func (c *Controller) ResetMission() {
	c.missionActive = false
}

// IsMissionActive reports the current mission state.
func (c *Controller) IsMissionActive() bool {
	return c.missionActive
}

// Step computes the net acceleration for this tick given the current
// neighbor list, own position, and own hop count. Returns the zero vector
// when the mission is not active.
func (c *Controller) Step(neighbors []neighbor.Entry, position core.Vector3, hopsFromBase uint8) core.Vector3 {
	if !c.missionActive {
		return core.Vector3{}
	}

	var force core.Vector3
	for _, n := range neighbors {
		diff := n.Position.Sub(position)

		if n.HopsToBase != hopsFromBase {
			force = force.Add(diff.Scale(c.kAtt))
		}

		mag := diff.Magnitude()
		if mag > 0 && mag < c.dSafe {
			repulsion := diff.Unit().Scale(-c.kRep / (mag * mag))
			force = force.Add(repulsion)
		}
	}

	return force.Scale(1 / c.massKg)
}
