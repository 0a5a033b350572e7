// Package actuator enforces physical limits between the controller and
// the mechanism: torque saturation on the actuated joint plus an optional
// unknown disturbance on the passive joint.
package actuator

import (
	"math/rand"

	"github.com/san-kum/pendubot/internal/dynamo"
	"github.com/san-kum/pendubot/internal/mech"
	"github.com/san-kum/pendubot/internal/sandbox"
)

// Clamp saturates tau to [-tauMax, +tauMax].
func Clamp(tau, tauMax float64) float64 {
	if tau > tauMax {
		return tauMax
	}
	if tau < -tauMax {
		return -tauMax
	}
	return tau
}

// SampleDisturbance draws a torque with magnitude in [1, 2) and random
// sign, keeping the disturbance away from zero so an affected run is
// always distinguishable from a clean one.
func SampleDisturbance(rng *rand.Rand) float64 {
	mag := 1 + rng.Float64()
	if rng.Intn(2) == 0 {
		return -mag
	}
	return mag
}

// Safety converts validated actuator commands into the joint input
// vector. The disturbance is sampled once at setup, applied every step to
// the passive joint, and never exposed to the controller.
type Safety struct {
	tauMax      float64
	disturbance float64
}

func NewSafety(tauMax float64, disturb bool, rng *rand.Rand) *Safety {
	s := &Safety{tauMax: tauMax}
	if disturb {
		s.disturbance = SampleDisturbance(rng)
	}
	return s
}

func (s *Safety) TauMax() float64      { return s.tauMax }
func (s *Safety) Disturbance() float64 { return s.disturbance }

// Input clamps the commanded torque and assembles the full joint input
// vector through the mechanism's torque evaluator.
func (s *Safety) Input(cmd sandbox.Command, ev mech.Evaluators) dynamo.Control {
	tau := ev.Torque(Clamp(cmd.Tau1, s.tauMax), s.disturbance)
	return dynamo.Control{tau[0], tau[1]}
}
