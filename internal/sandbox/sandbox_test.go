package sandbox

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/pendubot/internal/sensor"
)

// scripted returns canned outputs in order, cycling on the last one.
type scripted struct {
	name    string
	initErr error
	panicIn bool
	outputs []func() (map[string]any, error)
	calls   int
	delay   int
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) Init(p Params, data Data) (Data, error) {
	if s.panicIn {
		panic("init exploded")
	}
	if s.initErr != nil {
		return nil, s.initErr
	}
	data["calls"] = 0
	return data, nil
}

func (s *scripted) Run(sensors sensor.Snapshot, refs map[string]float64, p Params, data Data) (map[string]any, Data, error) {
	idx := s.calls
	if idx >= len(s.outputs) {
		idx = len(s.outputs) - 1
	}
	s.calls++
	data["calls"] = s.calls
	out, err := s.outputs[idx]()
	return out, data, err
}

func (s *scripted) SensorDelay() int { return s.delay }

func ok(tau float64) func() (map[string]any, error) {
	return func() (map[string]any, error) {
		return map[string]any{"tau1": tau}, nil
	}
}

func TestRuntimeHappyPath(t *testing.T) {
	ctrl := &scripted{name: "test", outputs: []func() (map[string]any, error){ok(1.5)}}
	rt := NewRuntime(ctrl)
	rt.Initialize(Params{TStep: 0.02, TauMax: 10})

	if !rt.Running() {
		t.Fatal("expected running after init")
	}

	cmd := rt.Step(sensor.Snapshot{"t": 0, "q2": 0}, nil, Params{})
	if cmd.Tau1 != 1.5 {
		t.Errorf("expected tau1 1.5, got %f", cmd.Tau1)
	}
	if rt.LastCommand() != cmd {
		t.Error("LastCommand does not match returned command")
	}
}

func TestRuntimePanicIsTerminal(t *testing.T) {
	// Healthy for four calls, panics on the fifth.
	boom := func() (map[string]any, error) { panic("controller exploded") }
	ctrl := &scripted{
		name:    "test",
		outputs: []func() (map[string]any, error){ok(1), ok(1), ok(1), ok(1), boom},
	}
	rt := NewRuntime(ctrl)
	rt.Initialize(Params{})

	snap := sensor.Snapshot{"t": 0, "q2": 0}
	for i := 0; i < 4; i++ {
		cmd := rt.Step(snap, nil, Params{})
		if cmd.Tau1 != 1 {
			t.Fatalf("call %d: expected tau1 1, got %f", i+1, cmd.Tau1)
		}
	}

	cmd := rt.Step(snap, nil, Params{})
	if cmd.Tau1 != 0 {
		t.Errorf("expected zero command after panic, got %f", cmd.Tau1)
	}
	if rt.Running() {
		t.Fatal("expected stopped after panic")
	}

	// Later steps never reinvoke the controller.
	callsBefore := ctrl.calls
	for i := 0; i < 3; i++ {
		cmd := rt.Step(snap, nil, Params{})
		if cmd.Tau1 != 0 {
			t.Errorf("expected zero command while stopped, got %f", cmd.Tau1)
		}
		if rt.LastRunDuration() != 0 {
			t.Error("expected zero run duration while stopped")
		}
	}
	if ctrl.calls != callsBefore {
		t.Errorf("stopped controller was reinvoked: %d calls", ctrl.calls-callsBefore)
	}

	warns := rt.Warnings()
	if len(warns) != 1 {
		t.Fatalf("expected exactly one warning, got %d: %v", len(warns), warns)
	}
	if !strings.Contains(warns[0], "panic") {
		t.Errorf("expected warning to mention panic, got %q", warns[0])
	}
}

func TestRuntimeErrorIsTerminal(t *testing.T) {
	fail := func() (map[string]any, error) { return nil, errors.New("sensor missing") }
	ctrl := &scripted{name: "test", outputs: []func() (map[string]any, error){fail}}
	rt := NewRuntime(ctrl)
	rt.Initialize(Params{})

	cmd := rt.Step(sensor.Snapshot{}, nil, Params{})
	if cmd.Tau1 != 0 || rt.Running() {
		t.Error("expected terminal stop on controller error")
	}
}

func TestRuntimeMalformedOutput(t *testing.T) {
	cases := []struct {
		name string
		out  map[string]any
	}{
		{"nil output", nil},
		{"empty output", map[string]any{}},
		{"wrong field", map[string]any{"torque": 1.0}},
		{"extra field", map[string]any{"tau1": 1.0, "tau2": 0.0}},
		{"non-numeric", map[string]any{"tau1": "strong"}},
		{"nil value", map[string]any{"tau1": nil}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := tc.out
			ctrl := &scripted{name: "test", outputs: []func() (map[string]any, error){
				func() (map[string]any, error) { return out, nil },
			}}
			rt := NewRuntime(ctrl)
			rt.Initialize(Params{})

			cmd := rt.Step(sensor.Snapshot{}, nil, Params{})
			if cmd.Tau1 != 0 {
				t.Errorf("expected zero command, got %f", cmd.Tau1)
			}
			if rt.Running() {
				t.Error("expected stopped on malformed output")
			}
			if len(rt.Warnings()) != 1 {
				t.Errorf("expected one warning, got %v", rt.Warnings())
			}
		})
	}
}

func TestRuntimeAcceptsNumericKinds(t *testing.T) {
	outputs := []map[string]any{
		{"tau1": 2.0},
		{"tau1": float32(2)},
		{"tau1": int(2)},
		{"tau1": int64(2)},
	}

	for _, out := range outputs {
		out := out
		ctrl := &scripted{name: "test", outputs: []func() (map[string]any, error){
			func() (map[string]any, error) { return out, nil },
		}}
		rt := NewRuntime(ctrl)
		rt.Initialize(Params{})

		cmd := rt.Step(sensor.Snapshot{}, nil, Params{})
		if cmd.Tau1 != 2.0 {
			t.Errorf("output %v: expected tau1 2.0, got %f", out, cmd.Tau1)
		}
		if !rt.Running() {
			t.Errorf("output %v: expected still running", out)
		}
	}
}

func TestRuntimeInitPanic(t *testing.T) {
	ctrl := &scripted{name: "test", panicIn: true}
	rt := NewRuntime(ctrl)
	rt.Initialize(Params{})

	if rt.Running() {
		t.Fatal("expected stopped after init panic")
	}

	cmd := rt.Step(sensor.Snapshot{}, nil, Params{})
	if cmd.Tau1 != 0 {
		t.Errorf("expected zero command after init failure, got %f", cmd.Tau1)
	}
	if ctrl.calls != 0 {
		t.Error("Run was invoked after init failure")
	}
}

func TestRuntimeInitError(t *testing.T) {
	ctrl := &scripted{name: "test", initErr: errors.New("bad gains")}
	rt := NewRuntime(ctrl)
	rt.Initialize(Params{})

	if rt.Running() {
		t.Fatal("expected stopped after init error")
	}
	if len(rt.Warnings()) != 1 {
		t.Errorf("expected one warning, got %v", rt.Warnings())
	}
}

func TestRuntimeDataPersists(t *testing.T) {
	ctrl := &scripted{name: "test", outputs: []func() (map[string]any, error){ok(0)}}
	rt := NewRuntime(ctrl)
	rt.Initialize(Params{})

	for i := 1; i <= 5; i++ {
		rt.Step(sensor.Snapshot{}, nil, Params{})
		got, found := rt.Field("calls")
		if !found {
			t.Fatal("expected calls field in controller data")
		}
		if got != float64(i) {
			t.Errorf("expected calls %d, got %f", i, got)
		}
	}
}

func TestRuntimeFieldNonNumeric(t *testing.T) {
	rt := NewRuntime(&scripted{name: "test"})
	rt.data["note"] = "hello"

	if _, found := rt.Field("note"); found {
		t.Error("expected non-numeric field to report not found")
	}
	if _, found := rt.Field("absent"); found {
		t.Error("expected absent field to report not found")
	}
}

func TestRuntimeStopIdempotent(t *testing.T) {
	rt := NewRuntime(&scripted{name: "test", outputs: []func() (map[string]any, error){ok(1)}})
	rt.Initialize(Params{})

	rt.Stop("log field missing")
	rt.Stop("log field missing")

	if len(rt.Warnings()) != 1 {
		t.Errorf("expected one warning from repeated Stop, got %v", rt.Warnings())
	}
	if rt.Running() {
		t.Error("expected stopped")
	}
}

func TestRuntimeTimings(t *testing.T) {
	slow := func() (map[string]any, error) {
		time.Sleep(2 * time.Millisecond)
		return map[string]any{"tau1": 0.0}, nil
	}
	ctrl := &scripted{name: "test", outputs: []func() (map[string]any, error){slow}}
	rt := NewRuntime(ctrl)
	rt.Initialize(Params{})

	rt.Step(sensor.Snapshot{}, nil, Params{})
	if rt.LastRunDuration() < 2*time.Millisecond {
		t.Errorf("expected run duration >= 2ms, got %v", rt.LastRunDuration())
	}
}

func TestRuntimeSensorDelayAdvertised(t *testing.T) {
	rt := NewRuntime(&scripted{name: "test", delay: 3})
	if rt.SensorDelay() != 3 {
		t.Errorf("expected advertised delay 3, got %d", rt.SensorDelay())
	}
}

type bare struct{}

func (bare) Name() string                 { return "bare" }
func (bare) Init(p Params, d Data) (Data, error) { return d, nil }
func (bare) Run(s sensor.Snapshot, r map[string]float64, p Params, d Data) (map[string]any, Data, error) {
	return map[string]any{"tau1": 0.0}, d, nil
}

func TestRuntimeSensorDelayDefault(t *testing.T) {
	rt := NewRuntime(bare{})
	if rt.SensorDelay() != 0 {
		t.Errorf("expected zero delay without advertiser, got %d", rt.SensorDelay())
	}
}

func TestValidateMessages(t *testing.T) {
	_, err := validate(map[string]any{"tau1": 1.0, "x": 2.0})
	if err == nil || !strings.Contains(err.Error(), "2 fields") {
		t.Errorf("unexpected error: %v", err)
	}

	_, err = validate(map[string]any{"tau1": []float64{1}})
	if err == nil || !strings.Contains(fmt.Sprint(err), "numeric scalar") {
		t.Errorf("unexpected error: %v", err)
	}
}
