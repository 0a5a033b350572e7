package controllers

import (
	"math"

	"github.com/san-kum/pendubot/internal/sandbox"
	"github.com/san-kum/pendubot/internal/sensor"
)

// SwingUp pumps energy into link 1 by driving the actuated joint in
// phase with its velocity, the usual heuristic for getting a pendubot
// out of the hanging configuration. It is not meant to balance; pair it
// with a balance controller offline.
type SwingUp struct {
	Gain float64
}

func NewSwingUp(gain float64) *SwingUp {
	return &SwingUp{Gain: gain}
}

func (c *SwingUp) Name() string { return "swingup" }

func (c *SwingUp) Init(p sandbox.Params, data sandbox.Data) (sandbox.Data, error) {
	data["pump"] = 0.0
	return data, nil
}

func (c *SwingUp) Run(sensors sensor.Snapshot, refs map[string]float64, p sandbox.Params, data sandbox.Data) (map[string]any, sandbox.Data, error) {
	q1, okQ := sensors["q1"]
	v1, okV := sensors["v1"]
	if !okQ || !okV {
		// Degrade to a constant kick when only q2 is sensed; the
		// mechanism still leaves the rest configuration.
		tau := p.TauMax / 2
		data["pump"] = tau
		return map[string]any{"tau1": tau}, data, nil
	}

	// Push in the direction of motion while below the inverted
	// configuration; saturation is left to the safety layer.
	tau := c.Gain * v1 * (1 + math.Cos(q1))
	if v1 == 0 {
		tau = c.Gain * 0.1
	}

	data["pump"] = tau
	return map[string]any{"tau1": tau}, data, nil
}
