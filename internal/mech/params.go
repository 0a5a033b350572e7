package mech

const (
	DefaultMass    = 1.0
	DefaultLength  = 1.0
	DefaultGravity = 9.81
)

// Params are the physical constants of the two-link mechanism. The first
// link is actuated at its pivot; the second joint is passive. Angles are
// measured from the downward vertical, with q2 relative to link 1.
type Params struct {
	M1 float64 `yaml:"m1" json:"m1"`
	M2 float64 `yaml:"m2" json:"m2"`
	L1 float64 `yaml:"l1" json:"l1"`
	L2 float64 `yaml:"l2" json:"l2"`
	// Center-of-mass distances along each link.
	Lc1 float64 `yaml:"lc1" json:"lc1"`
	Lc2 float64 `yaml:"lc2" json:"lc2"`
	// Rotational inertia about each center of mass.
	I1 float64 `yaml:"i1" json:"i1"`
	I2 float64 `yaml:"i2" json:"i2"`
	// Viscous friction at each joint; zero gives a conservative system.
	B1 float64 `yaml:"b1" json:"b1"`
	B2 float64 `yaml:"b2" json:"b2"`

	Gravity float64 `yaml:"gravity" json:"gravity"`
}

func DefaultParams() Params {
	return Params{
		M1: DefaultMass, M2: DefaultMass,
		L1: DefaultLength, L2: DefaultLength,
		Lc1: DefaultLength / 2, Lc2: DefaultLength / 2,
		I1: DefaultMass * DefaultLength * DefaultLength / 12,
		I2: DefaultMass * DefaultLength * DefaultLength / 12,
		Gravity: DefaultGravity,
	}
}
