package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pendubot/internal/mech"
	"github.com/san-kum/pendubot/internal/sched"
)

const (
	DefaultTStep  = 0.02
	DefaultTStop  = 10.0
	DefaultTauMax = 10.0
	DefaultKp     = 25.0
	DefaultKd     = 4.0
)

type Config struct {
	Team        string             `yaml:"team"`
	Controller  string             `yaml:"controller"`
	Gains       map[string]float64 `yaml:"gains"`
	TStep       float64            `yaml:"t_step"`
	TStop       float64            `yaml:"t_stop"`
	TauMax      float64            `yaml:"tau_max"`
	Delay       float64            `yaml:"sensor_delay"`
	Disturb     bool               `yaml:"disturbance"`
	Seed        int64              `yaml:"seed"`
	FullSensors bool               `yaml:"full_sensors"`
	Reference   ReferenceConfig    `yaml:"reference"`
	Init        InitConfig         `yaml:"init_state"`
	LogFields   []string           `yaml:"log_fields"`
	Display     bool               `yaml:"display"`
	Diagnostics bool               `yaml:"diagnostics"`
	Plant       *mech.Params       `yaml:"plant"`
}

type InitConfig struct {
	Q1 float64 `yaml:"q1"`
	Q2 float64 `yaml:"q2"`
	V1 float64 `yaml:"v1"`
	V2 float64 `yaml:"v2"`
}

// ReferenceConfig names a reference-signal shape for q2_desired.
type ReferenceConfig struct {
	Type      string  `yaml:"type"` // zero | constant | step | sine
	Value     float64 `yaml:"value"`
	Amplitude float64 `yaml:"amplitude"`
	Frequency float64 `yaml:"frequency"`
	At        float64 `yaml:"at"`
}

func DefaultConfig() *Config {
	return &Config{
		Controller:  "none",
		TStep:       DefaultTStep,
		TStop:       DefaultTStop,
		TauMax:      DefaultTauMax,
		FullSensors: true,
		Gains:       map[string]float64{"kp": DefaultKp, "kd": DefaultKd},
		Reference:   ReferenceConfig{Type: "zero"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Params resolves the plant parameters, defaulting when none are given.
func (c *Config) Params() mech.Params {
	if c.Plant != nil {
		return *c.Plant
	}
	return mech.DefaultParams()
}

// ReferenceFunc builds the q2_desired function from the named shape.
func (c *Config) ReferenceFunc() (func(t float64) float64, error) {
	r := c.Reference
	switch r.Type {
	case "", "zero":
		return func(float64) float64 { return 0 }, nil
	case "constant":
		return func(float64) float64 { return r.Value }, nil
	case "step":
		return func(t float64) float64 {
			if t >= r.At {
				return r.Value
			}
			return 0
		}, nil
	case "sine":
		return func(t float64) float64 {
			return r.Amplitude * math.Sin(2*math.Pi*r.Frequency*t)
		}, nil
	default:
		return nil, fmt.Errorf("unknown reference type: %s", r.Type)
	}
}

// SchedConfig maps the file surface onto a scheduler configuration.
func (c *Config) SchedConfig() (sched.Config, error) {
	ref, err := c.ReferenceFunc()
	if err != nil {
		return sched.Config{}, err
	}
	return sched.Config{
		Team:        c.Team,
		TStep:       c.TStep,
		TStop:       c.TStop,
		TauMax:      c.TauMax,
		Delay:       c.Delay,
		Disturb:     c.Disturb,
		Seed:        c.Seed,
		Reference:   ref,
		Init:        [4]float64{c.Init.Q1, c.Init.Q2, c.Init.V1, c.Init.V2},
		FullSensors: c.FullSensors,
		LogFields:   append([]string(nil), c.LogFields...),
		Display:     c.Display,
		Diagnostics: c.Diagnostics,
	}, nil
}
