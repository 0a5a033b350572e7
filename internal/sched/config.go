package sched

import (
	"errors"
	"fmt"
)

// Config is the immutable configuration of one run.
type Config struct {
	// Team is a display-only label carried into run metadata.
	Team string

	TStep  float64
	TStop  float64
	TauMax float64

	// Delay is the default sensor delay in control steps; fractional
	// values are truncated. A controller advertising its own delay
	// overrides it.
	Delay float64

	// Disturb enables the once-per-run disturbance torque on the
	// passive joint, sampled from the seeded source.
	Disturb bool
	Seed    int64

	// Reference produces q2_desired as a function of time. A nil
	// function and a panicking function both yield the neutral 0,
	// the latter with a warning.
	Reference func(t float64) float64

	// Init is the initial state [q1, q2, v1, v2].
	Init [4]float64

	// FullSensors exposes q1, v1, v2 to the controller in addition to
	// the always-sensed t and q2.
	FullSensors bool

	// LogFields names controller-data fields to capture each step. A
	// field that cannot be captured stops the controller like a fault.
	LogFields []string

	// Display enables the live renderer and real-time pacing.
	Display bool

	// MoviePath and SnapshotPath enable frame capture; both require
	// Display and are rejected at setup otherwise.
	MoviePath    string
	SnapshotPath string

	// Diagnostics enables extra metric reporting. Cosmetic only.
	Diagnostics bool
}

func (c Config) Validate() error {
	if c.TStep <= 0 {
		return fmt.Errorf("sched: t_step must be positive, got %g", c.TStep)
	}
	if c.TStop <= 0 {
		return fmt.Errorf("sched: t_stop must be positive, got %g", c.TStop)
	}
	if c.TauMax <= 0 {
		return fmt.Errorf("sched: tau_max must be positive, got %g", c.TauMax)
	}
	if (c.MoviePath != "" || c.SnapshotPath != "") && !c.Display {
		return errors.New("sched: movie/snapshot capture requires display")
	}
	return nil
}
