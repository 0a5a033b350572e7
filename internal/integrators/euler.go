package integrators

import "github.com/san-kum/pendubot/internal/dynamo"

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, dt float64) (dynamo.State, error) {
	dx, err := dyn.Derive(x, u, t)
	if err != nil {
		return nil, err
	}
	result := make(dynamo.State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result, nil
}

// Advance takes a single explicit step across the whole interval.
func (e *Euler) Advance(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, h float64) (dynamo.State, error) {
	return e.Step(dyn, x, u, t, h)
}
