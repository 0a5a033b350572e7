package mech

import (
	"errors"
	"math"

	"github.com/san-kum/pendubot/internal/dynamo"
)

// ErrSingularMass indicates the mass matrix could not be inverted at the
// current configuration. This is a modeling bug, not a runtime condition:
// it propagates and aborts the run.
var ErrSingularMass = errors.New("mech: singular mass matrix")

// Model implements dynamo.System for the two-link mechanism. State layout
// is [q1, q2, v1, v2]; the control vector is the assembled joint input
// [tau1, tau2] produced by the actuator safety layer.
type Model struct {
	params Params
	ev     Evaluators
}

func New(p Params) *Model {
	return &Model{params: p, ev: Derive(p)}
}

// NewFromEvaluators builds a model around an externally realized bundle
// (e.g. loaded through the parameter cache).
func NewFromEvaluators(p Params, ev Evaluators) *Model {
	return &Model{params: p, ev: ev}
}

func (m *Model) Params() Params         { return m.params }
func (m *Model) Evaluators() Evaluators { return m.ev }

func (m *Model) StateDim() int   { return 4 }
func (m *Model) ControlDim() int { return 2 }

func (m *Model) Derive(x dynamo.State, u dynamo.Control, t float64) (dynamo.State, error) {
	if len(x) != m.StateDim() {
		return nil, dynamo.ErrDimensionMismatch
	}
	q1, q2, v1, v2 := x[0], x[1], x[2], x[3]

	var tau [2]float64
	if len(u) >= 2 {
		tau[0], tau[1] = u[0], u[1]
	} else if len(u) == 1 {
		tau[0] = u[0]
	}

	mm := m.ev.Mass(q1, q2)
	cc := m.ev.Coriolis(q1, q2, v1, v2)
	nn := m.ev.Bias(q1, q2, v1, v2)

	rhs := [2]float64{
		tau[0] - cc[0][0]*v1 - cc[0][1]*v2 - nn[0],
		tau[1] - cc[1][0]*v1 - cc[1][1]*v2 - nn[1],
	}

	acc, err := solve2x2(mm, rhs)
	if err != nil {
		return nil, err
	}

	return dynamo.State{v1, v2, acc[0], acc[1]}, nil
}

// Energy returns total mechanical energy, with potential energy zero at
// the hanging rest configuration of each link's pivot height reference.
func (m *Model) Energy(x dynamo.State) float64 {
	q1, q2, v1, v2 := x[0], x[1], x[2], x[3]
	p := m.params

	mm := m.ev.Mass(q1, q2)
	ke := 0.5 * (mm[0][0]*v1*v1 + 2*mm[0][1]*v1*v2 + mm[1][1]*v2*v2)

	pe := -(p.M1*p.Lc1+p.M2*p.L1)*p.Gravity*math.Cos(q1) -
		p.M2*p.Lc2*p.Gravity*math.Cos(q1+q2)

	return ke + pe
}

// solve2x2 is a direct linear solve of A·x = b with explicit singularity
// detection, preferred over a generic inverse.
func solve2x2(a [2][2]float64, b [2]float64) ([2]float64, error) {
	det := a[0][0]*a[1][1] - a[0][1]*a[1][0]

	// Scale-aware tolerance so near-singular configurations are caught
	// regardless of the magnitude of the inertia terms.
	scale := math.Abs(a[0][0]) + math.Abs(a[0][1]) + math.Abs(a[1][0]) + math.Abs(a[1][1])
	if scale == 0 || math.Abs(det) < 1e-12*scale*scale {
		return [2]float64{}, ErrSingularMass
	}

	return [2]float64{
		(b[0]*a[1][1] - b[1]*a[0][1]) / det,
		(b[1]*a[0][0] - b[0]*a[1][0]) / det,
	}, nil
}
