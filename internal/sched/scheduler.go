// Package sched drives one closed-loop simulation run: it owns the live
// mechanism state, the sensor delay buffer, and the controller runtime,
// and orchestrates them once per control step. Execution is single
// threaded; renderers observe read-only snapshots and cancellation is
// polled once per iteration boundary, never mid-step.
package sched

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/san-kum/pendubot/internal/actuator"
	"github.com/san-kum/pendubot/internal/dynamo"
	"github.com/san-kum/pendubot/internal/mech"
	"github.com/san-kum/pendubot/internal/record"
	"github.com/san-kum/pendubot/internal/sandbox"
	"github.com/san-kum/pendubot/internal/sensor"
)

// Flusher is implemented by observers that buffer output.
type Flusher interface {
	Flush()
}

type Scheduler struct {
	cfg       Config
	model     *mech.Model
	integ     dynamo.Advancer
	rt        *sandbox.Runtime
	safety    *actuator.Safety
	observers []dynamo.Observer
	metrics   []dynamo.Metric

	// Live run state, owned exclusively by this scheduler.
	t      float64
	x      dynamo.State
	buf    *sensor.DelayBuffer
	sensed sensor.Snapshot
	ref    float64
	cmd    sandbox.Command
	params sandbox.Params
	step   int
	log    *record.Log

	started   bool
	wallStart time.Time
	warnings  []string
}

func New(model *mech.Model, integ dynamo.Advancer, rt *sandbox.Runtime, cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		cfg:   cfg,
		model: model,
		integ: integ,
		rt:    rt,
	}, nil
}

func (s *Scheduler) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }
func (s *Scheduler) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }

func (s *Scheduler) Config() Config       { return s.cfg }
func (s *Scheduler) Log() *record.Log     { return s.log }
func (s *Scheduler) Runtime() *sandbox.Runtime {
	return s.rt
}

// MetricValues reports final metric values after a run.
func (s *Scheduler) MetricValues() map[string]float64 {
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

// Warnings returns scheduler and controller warnings in the order they
// were raised.
func (s *Scheduler) Warnings() []string {
	out := append([]string(nil), s.rt.Warnings()...)
	return append(out, s.warnings...)
}

// Frame is a read-only view of the current step for renderers.
type Frame struct {
	T         float64
	State     dynamo.State
	Command   sandbox.Command
	Reference float64
	Running   bool
}

func (s *Scheduler) Frame() Frame {
	return Frame{
		T:         s.t,
		State:     s.x.Clone(),
		Command:   s.cmd,
		Reference: s.ref,
		Running:   s.rt.Running(),
	}
}

// Start performs setup: disturbance sampling, controller init, delay
// buffer fill, the first reference, and one controller step so the
// actuator command is defined for the very first emitted frame.
func (s *Scheduler) Start() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(s.cfg.Seed))
	s.safety = actuator.NewSafety(s.cfg.TauMax, s.cfg.Disturb, rng)

	s.t = 0
	s.x = dynamo.State{s.cfg.Init[0], s.cfg.Init[1], s.cfg.Init[2], s.cfg.Init[3]}
	s.step = 0

	s.params = sandbox.Params{
		TStep:    s.cfg.TStep,
		TauMax:   s.cfg.TauMax,
		Dynamics: s.model.Evaluators(),
	}

	s.rt.Initialize(s.params)

	delay := s.cfg.Delay
	if adv := s.rt.SensorDelay(); adv != 0 {
		delay = float64(adv)
	}

	first := sensor.NewSnapshot(s.t, s.x, s.cfg.FullSensors)
	s.buf = sensor.NewDelayBuffer(delay, first)

	s.ref = s.reference(s.t)
	s.sensed = s.buf.Peek()
	s.cmd = s.rt.Step(s.sensed, s.refs(), s.params)
	s.captureGuard()

	s.log = record.NewLog(s.cfg.LogFields, record.SensorColumns(first))
	s.log.InitDuration = s.rt.InitDuration().Seconds()

	for _, m := range s.metrics {
		m.Reset()
	}

	s.wallStart = time.Now()
	s.started = true
	return nil
}

// StepOnce emits the current frame, then either terminates (stop time
// reached or ctx canceled, checked before advancing so the final state
// is emitted exactly once) or advances the mechanism by one control
// step. It reports done=true after the final frame has been emitted.
func (s *Scheduler) StepOnce(ctx context.Context) (done bool, err error) {
	if !s.started {
		if err := s.Start(); err != nil {
			return true, err
		}
	}

	s.emit()

	eps := s.cfg.TStep * 1e-6
	if ctx.Err() != nil || s.t+eps >= s.cfg.TStop {
		s.flush()
		return true, nil
	}

	if err := s.advance(); err != nil {
		s.flush()
		return true, &dynamo.SimulationError{Step: s.step, Time: s.t, Wrapped: err}
	}

	return false, nil
}

// Run drives the loop to completion, pacing to wall-clock time when the
// display is enabled.
func (s *Scheduler) Run(ctx context.Context) (*record.Log, error) {
	if err := s.Start(); err != nil {
		return nil, err
	}

	for {
		done, err := s.StepOnce(ctx)
		if err != nil {
			return s.log, err
		}
		if done {
			return s.log, nil
		}
		if s.cfg.Display {
			s.pace()
		}
	}
}

func (s *Scheduler) emit() {
	u := s.safety.Input(s.cmd, s.model.Evaluators())

	for _, m := range s.metrics {
		m.Observe(s.x, u, s.t)
	}
	for _, obs := range s.observers {
		obs.OnStep(s.x, u, s.t)
	}

	s.log.Append(s.t, s.x, s.sensed, s.ref, s.cmd, s.rt.LastRunDuration(), s.captured())
}

func (s *Scheduler) advance() error {
	u := s.safety.Input(s.cmd, s.model.Evaluators())

	newX, err := s.integ.Advance(s.model, s.x, u, s.t, s.cfg.TStep)
	if err != nil {
		return err
	}
	if !newX.IsValid() {
		return dynamo.ErrInvalidState
	}

	s.x = newX
	s.t += s.cfg.TStep
	s.step++

	s.buf.Push(sensor.NewSnapshot(s.t, s.x, s.cfg.FullSensors))
	s.ref = s.reference(s.t)
	s.sensed = s.buf.Peek()
	s.cmd = s.rt.Step(s.sensed, s.refs(), s.params)
	s.captureGuard()

	return nil
}

// pace busy-waits until wall-clock time catches up with simulated time.
func (s *Scheduler) pace() {
	for time.Since(s.wallStart).Seconds() < s.t {
		time.Sleep(200 * time.Microsecond)
	}
}

func (s *Scheduler) flush() {
	for _, obs := range s.observers {
		if f, ok := obs.(Flusher); ok {
			f.Flush()
		}
	}
}

func (s *Scheduler) refs() map[string]float64 {
	return map[string]float64{"q2_desired": s.ref}
}

// reference evaluates the user-supplied reference function behind its own
// fault boundary: a panic yields the neutral 0 and a warning, never a
// halted run.
func (s *Scheduler) reference(t float64) (v float64) {
	if s.cfg.Reference == nil {
		return 0
	}
	defer func() {
		if rec := recover(); rec != nil {
			v = 0
			s.warnf("reference function failed at t=%.3f: %v", t, rec)
		}
	}()
	return s.cfg.Reference(t)
}

// captureGuard enforces the logging contract: a requested controller-data
// field that cannot be captured stops the controller like a fault.
func (s *Scheduler) captureGuard() {
	if !s.rt.Running() {
		return
	}
	for _, f := range s.cfg.LogFields {
		if _, ok := s.rt.Field(f); !ok {
			s.rt.Stop(fmt.Sprintf("log field %q could not be captured", f))
			s.cmd = sandbox.Command{}
			return
		}
	}
}

// captured reads the requested controller-data fields for the current
// step; a stopped controller logs zeros.
func (s *Scheduler) captured() map[string]float64 {
	if len(s.cfg.LogFields) == 0 {
		return nil
	}
	out := make(map[string]float64, len(s.cfg.LogFields))
	for _, f := range s.cfg.LogFields {
		v, _ := s.rt.Field(f)
		out[f] = v
	}
	return out
}

func (s *Scheduler) warnf(format string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}
