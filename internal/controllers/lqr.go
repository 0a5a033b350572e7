package controllers

import (
	"fmt"
	"math"

	"github.com/san-kum/pendubot/internal/sandbox"
	"github.com/san-kum/pendubot/internal/sensor"
)

// LQR is full-state feedback about the upright configuration
// [q1=π, q2=0, v1=0, v2=0]. The gain vector comes from an offline design
// script; only the resulting numbers live here. Requires full-state
// sensing: a missing coordinate is a contract fault and shuts the
// controller down.
type LQR struct {
	K [4]float64
}

func NewLQR(k [4]float64) *LQR {
	return &LQR{K: k}
}

// NewBalanceLQR returns gains for the default link parameters.
func NewBalanceLQR() *LQR {
	return &LQR{K: [4]float64{-263.4, -96.2, -110.4, -48.9}}
}

func (c *LQR) Name() string { return "lqr" }

func (c *LQR) Init(p sandbox.Params, data sandbox.Data) (sandbox.Data, error) {
	data["u_raw"] = 0.0
	return data, nil
}

func (c *LQR) Run(sensors sensor.Snapshot, refs map[string]float64, p sandbox.Params, data sandbox.Data) (map[string]any, sandbox.Data, error) {
	for _, k := range []string{"q1", "v1", "v2"} {
		if _, ok := sensors[k]; !ok {
			return nil, nil, fmt.Errorf("lqr requires full-state sensing, missing %q", k)
		}
	}

	e := [4]float64{
		wrapPi(sensors["q1"] - math.Pi),
		wrapPi(sensors["q2"] - refs["q2_desired"]),
		sensors["v1"],
		sensors["v2"],
	}

	u := 0.0
	for i := range e {
		u -= c.K[i] * e[i]
	}

	data["u_raw"] = u
	return map[string]any{"tau1": u}, data, nil
}

// wrapPi maps an angle error to (-π, π].
func wrapPi(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
