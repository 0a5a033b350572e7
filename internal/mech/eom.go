package mech

import "math"

// Evaluators is the numeric equation-of-motion bundle realized from link
// parameters: mass matrix M(q), Coriolis matrix C(q, q̇), bias vector
// N(q, q̇) covering gravity and friction, the torque assembly mapping the
// scalar actuator command (plus any disturbance on the passive joint) to
// the full input vector, and forward kinematics for rendering. The bundle
// is pure: no evaluator retains state between calls.
type Evaluators struct {
	Mass     func(q1, q2 float64) [2][2]float64
	Coriolis func(q1, q2, v1, v2 float64) [2][2]float64
	Bias     func(q1, q2, v1, v2 float64) [2]float64
	Torque   func(tau1, disturbance float64) [2]float64

	// LinkEnds returns the planar positions of both link endpoints.
	// Consumed only by renderers, never by the control core.
	LinkEnds func(q1, q2 float64) (x1, y1, x2, y2 float64)
}

// Derive builds the evaluator bundle for a two-link mechanism using the
// standard manipulator form M(q)·a + C(q,q̇)·q̇ + N(q,q̇) = τ.
func Derive(p Params) Evaluators {
	m1, m2 := p.M1, p.M2
	l1, l2 := p.L1, p.L2
	lc1, lc2 := p.Lc1, p.Lc2
	i1, i2 := p.I1, p.I2
	g := p.Gravity

	// Constant mass-matrix terms; only the cos(q2) coupling varies.
	d1 := i1 + i2 + m1*lc1*lc1 + m2*(l1*l1+lc2*lc2)
	d2 := i2 + m2*lc2*lc2
	d3 := m2 * l1 * lc2

	return Evaluators{
		Mass: func(q1, q2 float64) [2][2]float64 {
			c2 := math.Cos(q2)
			return [2][2]float64{
				{d1 + 2*d3*c2, d2 + d3*c2},
				{d2 + d3*c2, d2},
			}
		},
		Coriolis: func(q1, q2, v1, v2 float64) [2][2]float64 {
			h := -d3 * math.Sin(q2)
			return [2][2]float64{
				{h * v2, h*v2 + h*v1},
				{-h * v1, 0},
			}
		},
		Bias: func(q1, q2, v1, v2 float64) [2]float64 {
			g1 := (m1*lc1+m2*l1)*g*math.Sin(q1) + m2*lc2*g*math.Sin(q1+q2)
			g2 := m2 * lc2 * g * math.Sin(q1+q2)
			return [2]float64{g1 + p.B1*v1, g2 + p.B2*v2}
		},
		Torque: func(tau1, disturbance float64) [2]float64 {
			return [2]float64{tau1, disturbance}
		},
		LinkEnds: func(q1, q2 float64) (float64, float64, float64, float64) {
			x1 := l1 * math.Sin(q1)
			y1 := -l1 * math.Cos(q1)
			x2 := x1 + l2*math.Sin(q1+q2)
			y2 := y1 - l2*math.Cos(q1+q2)
			return x1, y1, x2, y2
		},
	}
}
