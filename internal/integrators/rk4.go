package integrators

import "github.com/san-kum/pendubot/internal/dynamo"

// RK4 is the classical fixed-step fourth-order method, kept for the
// compare diagnostics command. The control loop proper uses RK45.
type RK4 struct {
	scratch dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.scratch) != n {
		r.scratch = make(dynamo.State, n)
	}
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) (dynamo.State, error) {
	n := len(x)
	r.ensureScratch(n)

	k1, err := dyn.Derive(x, u, t)
	if err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*k1[i]
	}
	k2, err := dyn.Derive(r.scratch, u, t+dt*0.5)
	if err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*k2[i]
	}
	k3, err := dyn.Derive(r.scratch, u, t+dt*0.5)
	if err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*k3[i]
	}
	k4, err := dyn.Derive(r.scratch, u, t+dt)
	if err != nil {
		return nil, err
	}

	result := make(dynamo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}

	return result, nil
}

// Advance takes a single fixed step spanning the full control interval.
func (r *RK4) Advance(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, h float64) (dynamo.State, error) {
	return r.Step(dyn, x, u, t, h)
}
