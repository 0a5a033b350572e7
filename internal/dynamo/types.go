package dynamo

import "math"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

type Control []float64

func (c Control) Clone() Control {
	out := make(Control, len(c))
	copy(out, c)
	return out
}

// System is an ODE plant dX/dt = f(X, u, t). Derive returns an error when
// the equations of motion cannot be evaluated at x (e.g. a singular mass
// matrix); such errors are fatal to a run and must propagate.
type System interface {
	Derive(x State, u Control, t float64) (State, error)
	StateDim() int
	ControlDim() int
}

// Hamiltonian is implemented by plants that can report total mechanical
// energy, used for conservation diagnostics.
type Hamiltonian interface {
	Energy(x State) float64
}

type Integrator interface {
	Step(dyn System, x State, u Control, t, dt float64) (State, error)
}

type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(dyn System, x State, u Control, t, dt, tol float64) (State, float64, error)
}

// Advancer carries the state across one full control step with the input
// held constant (zero-order hold). The returned state is exactly at t+h.
type Advancer interface {
	Advance(dyn System, x State, u Control, t, h float64) (State, error)
}

// Observer consumes process state read-only, once per control step.
type Observer interface {
	OnStep(x State, u Control, t float64)
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}
