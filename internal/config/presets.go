package config

import "math"

var Presets = map[string]*Config{
	"balance": {
		Controller: "lqr", TStep: 0.02, TStop: 20.0, TauMax: 15.0,
		FullSensors: true,
		Init:        InitConfig{Q1: math.Pi * 1.02},
		Reference:   ReferenceConfig{Type: "zero"},
	},
	"swingup": {
		Controller: "swingup", TStep: 0.01, TStop: 30.0, TauMax: 8.0,
		FullSensors: true,
		Gains:       map[string]float64{"gain": 2.5},
		Reference:   ReferenceConfig{Type: "zero"},
	},
	"chaos": {
		Controller: "none", TStep: 0.005, TStop: 60.0, TauMax: 10.0,
		Init:      InitConfig{Q1: 3.0, Q2: 0.2},
		Reference: ReferenceConfig{Type: "zero"},
	},
	"tracking": {
		Controller: "pd", TStep: 0.02, TStop: 20.0, TauMax: 10.0,
		Gains:     map[string]float64{"kp": 30.0, "kd": 5.0},
		Init:      InitConfig{Q1: 0.3},
		Reference: ReferenceConfig{Type: "sine", Amplitude: 0.4, Frequency: 0.25},
	},
}

// GetPreset returns a copy of the named preset, so callers can layer
// their own overrides without touching the shared table.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	if cfg.Gains != nil {
		c.Gains = make(map[string]float64, len(cfg.Gains))
		for k, v := range cfg.Gains {
			c.Gains[k] = v
		}
	}
	c.LogFields = append([]string(nil), cfg.LogFields...)
	if cfg.Plant != nil {
		p := *cfg.Plant
		c.Plant = &p
	}
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
