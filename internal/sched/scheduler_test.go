package sched

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/pendubot/internal/dynamo"
	"github.com/san-kum/pendubot/internal/integrators"
	"github.com/san-kum/pendubot/internal/mech"
	"github.com/san-kum/pendubot/internal/sandbox"
	"github.com/san-kum/pendubot/internal/sensor"
)

// constant commands a fixed torque every step.
type constant struct {
	tau   float64
	calls int
}

func (c *constant) Name() string { return "constant" }

func (c *constant) Init(p sandbox.Params, d sandbox.Data) (sandbox.Data, error) {
	return d, nil
}

func (c *constant) Run(s sensor.Snapshot, refs map[string]float64, p sandbox.Params, d sandbox.Data) (map[string]any, sandbox.Data, error) {
	c.calls++
	return map[string]any{"tau1": c.tau}, d, nil
}

// panicAt panics on its nth Run call.
type panicAt struct {
	constant
	n int
}

func (c *panicAt) Name() string { return "panic_at" }

func (c *panicAt) Run(s sensor.Snapshot, refs map[string]float64, p sandbox.Params, d sandbox.Data) (map[string]any, sandbox.Data, error) {
	c.calls++
	if c.calls == c.n {
		panic("controller exploded")
	}
	return map[string]any{"tau1": c.tau}, d, nil
}

// delayed advertises a sensor delay and records nothing.
type delayed struct {
	constant
	delay int
}

func (c *delayed) Name() string     { return "delayed" }
func (c *delayed) SensorDelay() int { return c.delay }

func baseConfig() Config {
	return Config{
		TStep:  0.02,
		TStop:  1.0,
		TauMax: 10,
		Init:   [4]float64{3.0, 0.2, 0, 0},
	}
}

func newScheduler(t *testing.T, ctrl sandbox.Controller, cfg Config) *Scheduler {
	t.Helper()
	model := mech.New(mech.DefaultParams())
	s, err := New(model, integrators.NewRK45(), sandbox.NewRuntime(ctrl), cfg)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRunStepCount(t *testing.T) {
	s := newScheduler(t, &constant{tau: 0}, baseConfig())

	log, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Frames at t = 0, 0.02, ..., 1.0 inclusive.
	if log.Steps() != 51 {
		t.Errorf("expected 51 steps, got %d", log.Steps())
	}
	if math.Abs(log.Time[log.Steps()-1]-1.0) > 1e-9 {
		t.Errorf("expected final time 1.0, got %f", log.Time[log.Steps()-1])
	}
}

func TestRunFinalStateEmittedOnce(t *testing.T) {
	s := newScheduler(t, &constant{tau: 0}, baseConfig())

	log, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i < log.Steps(); i++ {
		if log.Time[i] <= log.Time[i-1] {
			t.Fatalf("time not strictly increasing at step %d", i)
		}
	}
}

func TestSensorDelayLag(t *testing.T) {
	cfg := baseConfig()
	cfg.Delay = 3

	s := newScheduler(t, &constant{tau: 0}, cfg)
	log, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// With a three-step delay, the value sensed at step 10 is the true
	// passive joint angle from step 7.
	if got, want := log.Sensors["q2"][10], log.Q2[7]; got != want {
		t.Errorf("expected sensed q2 %f at step 10, got %f", want, got)
	}

	// Early steps sense the initial fill.
	for i := 0; i < 3; i++ {
		if log.Sensors["q2"][i] != log.Q2[0] {
			t.Errorf("step %d: expected initial fill %f, got %f", i, log.Q2[0], log.Sensors["q2"][i])
		}
	}
}

func TestAdvertisedDelayOverridesConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.Delay = 1

	ctrl := &delayed{delay: 3}
	s := newScheduler(t, ctrl, cfg)
	log, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if got, want := log.Sensors["q2"][10], log.Q2[7]; got != want {
		t.Errorf("expected advertised delay to win: sensed %f, want %f", got, want)
	}
}

func TestControllerFaultMidRun(t *testing.T) {
	cfg := baseConfig()
	ctrl := &panicAt{constant: constant{tau: 1.0}, n: 5}

	s := newScheduler(t, ctrl, cfg)
	log, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("controller fault must not abort the run: %v", err)
	}

	// The run completes its full horizon.
	if log.Steps() != 51 {
		t.Fatalf("expected 51 steps, got %d", log.Steps())
	}

	// Calls 1-4 commanded torque; the fifth panicked, so step 4 onward
	// logs zero.
	for i := 0; i < 4; i++ {
		if log.Tau1[i] != 1.0 {
			t.Errorf("step %d: expected tau 1.0, got %f", i, log.Tau1[i])
		}
	}
	for i := 4; i < log.Steps(); i++ {
		if log.Tau1[i] != 0 {
			t.Errorf("step %d: expected zero tau after fault, got %f", i, log.Tau1[i])
		}
	}

	// The mechanism keeps moving after the fault.
	if log.Q1[50] == log.Q1[4] {
		t.Error("expected free dynamics to continue after controller stop")
	}

	warns := s.Warnings()
	if len(warns) != 1 {
		t.Fatalf("expected exactly one warning, got %v", warns)
	}
	if !strings.Contains(warns[0], "panic") {
		t.Errorf("expected panic warning, got %q", warns[0])
	}

	// The stopped controller is never called again.
	if ctrl.calls != 5 {
		t.Errorf("expected 5 controller calls, got %d", ctrl.calls)
	}
}

func TestRunIdempotent(t *testing.T) {
	cfg := baseConfig()
	cfg.Disturb = true
	cfg.Seed = 42

	run := func() ([]float64, []float64) {
		s := newScheduler(t, &constant{tau: 0.5}, cfg)
		log, err := s.Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return log.Q1, log.Q2
	}

	q1a, q2a := run()
	q1b, q2b := run()

	for i := range q1a {
		if q1a[i] != q1b[i] || q2a[i] != q2b[i] {
			t.Fatalf("runs diverged at step %d: %v vs %v", i, q1a[i], q1b[i])
		}
	}
}

func TestDisturbanceChangesTrajectory(t *testing.T) {
	clean := baseConfig()
	disturbed := baseConfig()
	disturbed.Disturb = true
	disturbed.Seed = 42

	s1 := newScheduler(t, &constant{tau: 0}, clean)
	log1, err := s1.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	s2 := newScheduler(t, &constant{tau: 0}, disturbed)
	log2, err := s2.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if log1.Q2[50] == log2.Q2[50] {
		t.Error("expected the disturbance to alter the trajectory")
	}
}

func TestCancellation(t *testing.T) {
	cfg := baseConfig()
	cfg.TStop = 100

	s := newScheduler(t, &constant{tau: 0}, cfg)

	ctx, cancel := context.WithCancel(context.Background())

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		done, err := s.StepOnce(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if done {
			t.Fatal("unexpected early termination")
		}
	}

	cancel()

	// Cancellation is observed at the loop boundary: one more frame is
	// emitted, then the run reports done without error.
	done, err := s.StepOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Error("expected done after cancellation")
	}
	if s.Log().Steps() != 11 {
		t.Errorf("expected 11 emitted frames, got %d", s.Log().Steps())
	}
}

func TestDivergedStateAborts(t *testing.T) {
	p := mech.DefaultParams()
	ev := mech.Derive(p)
	ev.Bias = func(q1, q2, v1, v2 float64) [2]float64 {
		return [2]float64{math.NaN(), 0}
	}
	model := mech.NewFromEvaluators(p, ev)

	s, err := New(model, integrators.NewRK45(), sandbox.NewRuntime(&constant{}), baseConfig())
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Run(context.Background())
	if err == nil {
		t.Fatal("expected run to abort on diverged state")
	}

	var simErr *dynamo.SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected SimulationError, got %T", err)
	}
	if !errors.Is(err, dynamo.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestMisconfiguration(t *testing.T) {
	model := mech.New(mech.DefaultParams())
	rt := sandbox.NewRuntime(&constant{})

	bad := []Config{
		{TStep: 0, TStop: 1, TauMax: 10},
		{TStep: 0.02, TStop: 0, TauMax: 10},
		{TStep: 0.02, TStop: 1, TauMax: 0},
		{TStep: 0.02, TStop: 1, TauMax: 10, MoviePath: "m.txt"},
	}

	for i, cfg := range bad {
		if _, err := New(model, integrators.NewRK45(), rt, cfg); err == nil {
			t.Errorf("config %d: expected validation error", i)
		}
	}
}

func TestLogFieldCaptureGuard(t *testing.T) {
	cfg := baseConfig()
	cfg.LogFields = []string{"no_such_field"}

	s := newScheduler(t, &constant{tau: 1.0}, cfg)
	log, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Controller is stopped before the first frame, so every logged
	// command is zero and the data column holds zeros.
	for i := 0; i < log.Steps(); i++ {
		if log.Tau1[i] != 0 {
			t.Fatalf("step %d: expected zero tau, got %f", i, log.Tau1[i])
		}
		if log.Data["no_such_field"][i] != 0 {
			t.Fatalf("step %d: expected zero data, got %f", i, log.Data["no_such_field"][i])
		}
	}

	warns := s.Warnings()
	if len(warns) != 1 || !strings.Contains(warns[0], "no_such_field") {
		t.Errorf("expected capture warning, got %v", warns)
	}
}

func TestReferencePanicYieldsZero(t *testing.T) {
	cfg := baseConfig()
	cfg.Reference = func(t float64) float64 {
		if t > 0.5 {
			panic("reference blew up")
		}
		return 0.3
	}

	s := newScheduler(t, &constant{tau: 0}, cfg)
	log, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if log.Ref[0] != 0.3 {
		t.Errorf("expected reference 0.3 early, got %f", log.Ref[0])
	}
	if log.Ref[log.Steps()-1] != 0 {
		t.Errorf("expected neutral reference after panic, got %f", log.Ref[log.Steps()-1])
	}

	found := false
	for _, w := range s.Warnings() {
		if strings.Contains(w, "reference function failed") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected reference warning, got %v", s.Warnings())
	}
}

func TestFrame(t *testing.T) {
	s := newScheduler(t, &constant{tau: 0}, baseConfig())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	f := s.Frame()
	if f.T != 0 {
		t.Errorf("expected initial frame at t=0, got %f", f.T)
	}
	if f.State[0] != 3.0 || f.State[1] != 0.2 {
		t.Errorf("unexpected initial state: %v", f.State)
	}
	if !f.Running {
		t.Error("expected running controller in initial frame")
	}

	// The frame state is a copy, not a view.
	f.State[0] = 99
	if s.Frame().State[0] == 99 {
		t.Error("frame state aliases live state")
	}
}

func TestInitialFrameUsesControllerCommand(t *testing.T) {
	s := newScheduler(t, &constant{tau: 2.0}, baseConfig())
	log, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if log.Tau1[0] != 2.0 {
		t.Errorf("expected first frame to log the initial command, got %f", log.Tau1[0])
	}
}
