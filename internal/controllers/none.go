package controllers

import (
	"github.com/san-kum/pendubot/internal/sandbox"
	"github.com/san-kum/pendubot/internal/sensor"
)

// Zero commands no torque. Useful as a baseline and for unforced runs.
type Zero struct{}

func NewZero() *Zero { return &Zero{} }

func (z *Zero) Name() string { return "none" }

func (z *Zero) Init(p sandbox.Params, data sandbox.Data) (sandbox.Data, error) {
	return data, nil
}

func (z *Zero) Run(sensors sensor.Snapshot, refs map[string]float64, p sandbox.Params, data sandbox.Data) (map[string]any, sandbox.Data, error) {
	return map[string]any{"tau1": 0.0}, data, nil
}
