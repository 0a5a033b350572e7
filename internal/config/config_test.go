package config

import (
	"math"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Controller != "none" {
		t.Errorf("expected controller none, got %s", cfg.Controller)
	}
	if cfg.TStep <= 0 {
		t.Error("t_step should be positive")
	}
	if cfg.TStop <= 0 {
		t.Error("t_stop should be positive")
	}
	if cfg.TauMax <= 0 {
		t.Error("tau_max should be positive")
	}
	if !cfg.FullSensors {
		t.Error("expected full sensing by default")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")

	cfg := DefaultConfig()
	cfg.Team = "lab-3"
	cfg.Controller = "pd"
	cfg.Delay = 3
	cfg.Disturb = true
	cfg.Seed = 42
	cfg.Init = InitConfig{Q1: 3.0, Q2: 0.2}
	cfg.LogFields = []string{"err"}

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if loaded.Team != "lab-3" || loaded.Controller != "pd" {
		t.Errorf("round trip lost fields: %+v", loaded)
	}
	if loaded.Delay != 3 || !loaded.Disturb || loaded.Seed != 42 {
		t.Errorf("round trip lost run settings: %+v", loaded)
	}
	if loaded.Init.Q1 != 3.0 {
		t.Errorf("round trip lost init state: %+v", loaded.Init)
	}
	if len(loaded.LogFields) != 1 || loaded.LogFields[0] != "err" {
		t.Errorf("round trip lost log fields: %v", loaded.LogFields)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReferenceFunc(t *testing.T) {
	cfg := DefaultConfig()

	cfg.Reference = ReferenceConfig{Type: "zero"}
	f, err := cfg.ReferenceFunc()
	if err != nil {
		t.Fatal(err)
	}
	if f(1.0) != 0 {
		t.Error("expected zero reference")
	}

	cfg.Reference = ReferenceConfig{Type: "constant", Value: 0.4}
	f, err = cfg.ReferenceFunc()
	if err != nil {
		t.Fatal(err)
	}
	if f(1.0) != 0.4 {
		t.Error("expected constant reference")
	}

	cfg.Reference = ReferenceConfig{Type: "step", Value: 0.3, At: 2.0}
	f, err = cfg.ReferenceFunc()
	if err != nil {
		t.Fatal(err)
	}
	if f(1.0) != 0 || f(2.5) != 0.3 {
		t.Error("unexpected step reference")
	}

	cfg.Reference = ReferenceConfig{Type: "sine", Amplitude: 0.5, Frequency: 0.25}
	f, err = cfg.ReferenceFunc()
	if err != nil {
		t.Fatal(err)
	}
	// Quarter period of a 0.25 Hz sine is 1 s.
	if math.Abs(f(1.0)-0.5) > 1e-12 {
		t.Errorf("expected sine peak 0.5 at t=1, got %f", f(1.0))
	}

	cfg.Reference = ReferenceConfig{Type: "sawtooth"}
	if _, err := cfg.ReferenceFunc(); err == nil {
		t.Error("expected error for unknown reference type")
	}
}

func TestSchedConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Team = "demo"
	cfg.Init = InitConfig{Q1: 1.0, V2: -0.5}

	scfg, err := cfg.SchedConfig()
	if err != nil {
		t.Fatal(err)
	}

	if scfg.Team != "demo" {
		t.Errorf("expected team carried over, got %q", scfg.Team)
	}
	if scfg.Init != [4]float64{1.0, 0, 0, -0.5} {
		t.Errorf("unexpected init state: %v", scfg.Init)
	}
	if scfg.Reference == nil {
		t.Fatal("expected reference function")
	}
	if err := scfg.Validate(); err != nil {
		t.Errorf("default sched config should validate: %v", err)
	}
}

func TestPresets(t *testing.T) {
	for _, name := range ListPresets() {
		p := GetPreset(name)
		if p == nil {
			t.Fatalf("listed preset %q not found", name)
		}
		scfg, err := p.SchedConfig()
		if err != nil {
			t.Fatalf("preset %q: %v", name, err)
		}
		if err := scfg.Validate(); err != nil {
			t.Errorf("preset %q does not validate: %v", name, err)
		}
	}

	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for unknown preset")
	}

	balance := GetPreset("balance")
	if balance.Controller != "lqr" {
		t.Errorf("expected lqr balance preset, got %s", balance.Controller)
	}
	if math.Abs(balance.Init.Q1-math.Pi*1.02) > 1e-12 {
		t.Errorf("unexpected balance init: %f", balance.Init.Q1)
	}
}
