// Package sandbox hosts untrusted, pluggable control code behind a fault
// boundary. A controller that panics, errors, or returns a malformed
// actuator command is shut down permanently; the mechanism simulation
// keeps running under a zero command.
package sandbox

import (
	"fmt"
	"time"

	"github.com/san-kum/pendubot/internal/mech"
	"github.com/san-kum/pendubot/internal/sensor"
)

// Params is the fixed read-only bundle every controller receives.
type Params struct {
	TStep    float64
	TauMax   float64
	Dynamics mech.Evaluators
}

// Data is the controller-owned persistent store. The sandbox passes it
// through between calls and never inspects or mutates it; the controller
// alone defines its shape.
type Data map[string]any

// Controller is the contract for pluggable control code. Run returns its
// actuator command as an untyped map so the sandbox can validate shape:
// the map must hold exactly one numeric scalar field "tau1".
type Controller interface {
	Name() string
	Init(p Params, data Data) (Data, error)
	Run(sensors sensor.Snapshot, refs map[string]float64, p Params, data Data) (map[string]any, Data, error)
}

// DelayAdvertiser is optionally implemented by controllers that request
// sensor delay, in control steps. Controllers that do not implement it
// get undelayed measurements.
type DelayAdvertiser interface {
	SensorDelay() int
}

// Command is a validated actuator command. A new value is produced every
// step and never mutated in place.
type Command struct {
	Tau1 float64
}

type Status int

const (
	Running Status = iota
	Stopped
)

func (s Status) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Runtime owns the lifecycle of one controller: a single Init call, one
// Run call per step, and the terminal shutdown on any fault. Stopped is
// absorbing; no call path resumes a stopped controller within a run.
type Runtime struct {
	ctrl   Controller
	status Status
	data   Data

	initDuration    time.Duration
	lastRunDuration time.Duration

	lastCommand Command
	lastSensors sensor.Snapshot
	lastRefs    map[string]float64

	warnings []string
	logf     func(format string, args ...any)
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogf routes warning output; by default warnings are only collected.
func WithLogf(f func(format string, args ...any)) Option {
	return func(r *Runtime) { r.logf = f }
}

func NewRuntime(ctrl Controller, opts ...Option) *Runtime {
	r := &Runtime{
		ctrl:   ctrl,
		status: Running,
		data:   Data{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runtime) Name() string                   { return r.ctrl.Name() }
func (r *Runtime) Status() Status                 { return r.status }
func (r *Runtime) Running() bool                  { return r.status == Running }
func (r *Runtime) InitDuration() time.Duration    { return r.initDuration }
func (r *Runtime) LastRunDuration() time.Duration { return r.lastRunDuration }
func (r *Runtime) LastCommand() Command           { return r.lastCommand }
func (r *Runtime) LastSensors() sensor.Snapshot   { return r.lastSensors }
func (r *Runtime) LastReferences() map[string]float64 {
	return r.lastRefs
}
func (r *Runtime) Warnings() []string { return r.warnings }

// SensorDelay returns the delay the controller advertises, or 0.
func (r *Runtime) SensorDelay() int {
	if adv, ok := r.ctrl.(DelayAdvertiser); ok {
		return adv.SensorDelay()
	}
	return 0
}

// Field looks up a numeric field in the controller's persistent data for
// logging. It reports false when the field is absent or non-numeric.
func (r *Runtime) Field(name string) (float64, bool) {
	v, ok := r.data[name]
	if !ok {
		return 0, false
	}
	return asScalar(v)
}

// Stop forces the terminal shutdown from outside the fault boundary,
// e.g. when a requested log field cannot be captured.
func (r *Runtime) Stop(reason string) {
	if r.status == Stopped {
		return
	}
	r.status = Stopped
	r.lastCommand = Command{}
	r.warnf("controller %q stopped: %s", r.ctrl.Name(), reason)
}

// Initialize invokes the controller's Init exactly once inside the fault
// boundary and records its wall-clock duration. Any failure is terminal.
func (r *Runtime) Initialize(p Params) {
	start := time.Now()
	data, err := r.guardInit(p)
	r.initDuration = time.Since(start)

	if err != nil {
		r.status = Stopped
		r.lastCommand = Command{}
		r.warnf("controller %q failed during init: %v", r.ctrl.Name(), err)
		return
	}
	if data != nil {
		r.data = data
	}
}

// Step invokes the controller's Run inside the fault boundary. When the
// controller is stopped it returns the zero command immediately, with
// zero elapsed time, without calling the controller.
func (r *Runtime) Step(sensors sensor.Snapshot, refs map[string]float64, p Params) Command {
	if r.status == Stopped {
		r.lastRunDuration = 0
		r.lastCommand = Command{}
		return Command{}
	}

	start := time.Now()
	out, data, err := r.guardRun(sensors, refs, p)
	r.lastRunDuration = time.Since(start)

	if err == nil {
		var cmd Command
		cmd, err = validate(out)
		if err == nil {
			if data != nil {
				r.data = data
			}
			r.lastCommand = cmd
			r.lastSensors = sensors.Clone()
			r.lastRefs = cloneRefs(refs)
			return cmd
		}
	}

	r.status = Stopped
	r.lastCommand = Command{}
	r.warnf("controller %q stopped: %v", r.ctrl.Name(), err)
	return Command{}
}

func (r *Runtime) guardInit(p Params) (data Data, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			data, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.ctrl.Init(p, r.data)
}

func (r *Runtime) guardRun(sensors sensor.Snapshot, refs map[string]float64, p Params) (out map[string]any, data Data, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, data, err = nil, nil, fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.ctrl.Run(sensors, refs, p, r.data)
}

// validate enforces the actuator contract: exactly one field named
// "tau1" holding a numeric scalar. Violations are handled like faults
// even though nothing panicked.
func validate(out map[string]any) (Command, error) {
	if out == nil {
		return Command{}, fmt.Errorf("actuator output missing")
	}
	if len(out) != 1 {
		return Command{}, fmt.Errorf("actuator output has %d fields, want exactly tau1", len(out))
	}
	v, ok := out["tau1"]
	if !ok {
		return Command{}, fmt.Errorf("actuator output missing field tau1")
	}
	tau, ok := asScalar(v)
	if !ok {
		return Command{}, fmt.Errorf("actuator field tau1 is %T, want numeric scalar", v)
	}
	return Command{Tau1: tau}, nil
}

func asScalar(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func cloneRefs(refs map[string]float64) map[string]float64 {
	c := make(map[string]float64, len(refs))
	for k, v := range refs {
		c[k] = v
	}
	return c
}

func (r *Runtime) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.warnings = append(r.warnings, msg)
	if r.logf != nil {
		r.logf("%s", msg)
	}
}
