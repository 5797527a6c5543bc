// Package mobility implements a bounded-velocity position integrator:
// retrieve the current position, apply a target acceleration clamped to
// a max speed.
//
// Unlike a continuously-simulated physics engine, this integrator only
// advances when asked — on ApplyVelocity or Position — by solving for the
// time at which the commanded acceleration would first bring speed to the
// clamp, then updating position piecewise (accelerated phase, then a
// constant-velocity coast phase) so that variable call intervals remain
// numerically consistent.
package mobility

import (
	"math"
	"sync"

	"github.com/skyflock/swarmcore/core"
	"github.com/skyflock/swarmcore/core/clock"
)

// Integrator owns one node's simulated position, velocity, and
// acceleration.
type Integrator struct {
	clk clock.Source

	mu                sync.Mutex
	position          core.Vector3
	velocity          core.Vector3
	acceleration      core.Vector3
	maxVelocity       float64
	previousTimeS     float64
	deltaTToMaxSpeedS float64
}

// NewIntegrator creates an Integrator starting at the given position.
func NewIntegrator(clk clock.Source, initial core.Vector3) *Integrator {
	return &Integrator{
		clk:           clk,
		position:      initial,
		previousTimeS: clk.Now(),
	}
}

// SetPosition overrides the current position directly, resetting the
// elapsed-time baseline.
func (in *Integrator) SetPosition(p core.Vector3) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.position = p
	in.previousTimeS = in.clk.Now()
}

// Position returns the current position, first advancing any pending
// motion accumulated since the last call.
func (in *Integrator) Position() core.Vector3 {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.update()
	return in.position
}

// ApplyVelocity commands a new target acceleration, clamped so
// instantaneous speed never exceeds maxVelocity. Any motion pending from
// the previous acceleration is applied first, using elapsed simulated
// time since the previous call.
func (in *Integrator) ApplyVelocity(accel core.Vector3, maxVelocity float64) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.update()

	in.acceleration = accel
	in.maxVelocity = maxVelocity
	in.deltaTToMaxSpeedS = 0

	if accel.Magnitude() == 0 || maxVelocity <= 0 {
		return
	}

	if in.velocity.Magnitude() >= maxVelocity {
		in.velocity = in.velocity.Unit().Scale(maxVelocity)
		return
	}

	// Solve |v0 + a*t|^2 = v_max^2 for t: A*t^2 + B*t + C = 0.
	a, v := accel, in.velocity
	A := a.X*a.X + a.Y*a.Y + a.Z*a.Z
	B := 2 * (v.X*a.X + v.Y*a.Y + v.Z*a.Z)
	C := v.X*v.X + v.Y*v.Y + v.Z*v.Z - maxVelocity*maxVelocity

	if A == 0 {
		in.deltaTToMaxSpeedS = math.Inf(1)
		return
	}

	discriminant := B*B - 4*A*C
	if discriminant < 0 {
		in.deltaTToMaxSpeedS = math.Inf(1)
		return
	}

	sqrtDisc := math.Sqrt(discriminant)
	t1 := (-B + sqrtDisc) / (2 * A)
	t2 := (-B - sqrtDisc) / (2 * A)

	switch {
	case t1 >= 0 && t2 >= 0:
		in.deltaTToMaxSpeedS = math.Min(t1, t2)
	case t1 >= 0:
		in.deltaTToMaxSpeedS = t1
	case t2 >= 0:
		in.deltaTToMaxSpeedS = t2
	default:
		in.deltaTToMaxSpeedS = math.Inf(1)
	}
}

// update advances position and velocity by the elapsed simulated time
// since the previous update, under the currently commanded acceleration.
// Caller must hold mu.
func (in *Integrator) update() {
	nowS := in.clk.Now()
	deltaT := nowS - in.previousTimeS
	if deltaT <= 0 {
		return
	}

	willReachMax := in.deltaTToMaxSpeedS > 0 &&
		!math.IsInf(in.deltaTToMaxSpeedS, 1) &&
		deltaT > in.deltaTToMaxSpeedS

	var newPos core.Vector3
	if !willReachMax {
		newVelocity := in.velocity.Add(in.acceleration.Scale(deltaT))
		if in.maxVelocity > 0 && newVelocity.Magnitude() > in.maxVelocity {
			newVelocity = newVelocity.Unit().Scale(in.maxVelocity)
		}
		avg := in.velocity.Add(newVelocity).Scale(0.5)
		newPos = in.position.Add(avg.Scale(deltaT))
		in.velocity = newVelocity
	} else {
		tAccel := in.deltaTToMaxSpeedS
		tCoast := deltaT - tAccel

		vAtMax := in.velocity.Add(in.acceleration.Scale(tAccel))
		if in.maxVelocity > 0 && vAtMax.Magnitude() > in.maxVelocity {
			vAtMax = vAtMax.Unit().Scale(in.maxVelocity)
		}

		avgAccel := in.velocity.Add(vAtMax).Scale(0.5)
		newPos = in.position.Add(avgAccel.Scale(tAccel)).Add(vAtMax.Scale(tCoast))
		in.velocity = vAtMax
	}

	in.previousTimeS = nowS
	in.position = newPos
}
