package controllers

import (
	"github.com/san-kum/pendubot/internal/sandbox"
	"github.com/san-kum/pendubot/internal/sensor"
)

// PD tracks q2_desired on the passive joint angle through the actuated
// joint. The rate term is finite-differenced from the previous sensed q2
// held in the controller's persistent data, so it works with the minimal
// sensor set.
type PD struct {
	Kp    float64
	Kd    float64
	delay int
}

func NewPD(kp, kd float64, delay int) *PD {
	return &PD{Kp: kp, Kd: kd, delay: delay}
}

func (c *PD) Name() string { return "pd" }

// SensorDelay advertises the sensor delay this controller was designed
// against.
func (c *PD) SensorDelay() int { return c.delay }

func (c *PD) Init(p sandbox.Params, data sandbox.Data) (sandbox.Data, error) {
	data["prev_q2"] = 0.0
	data["prev_t"] = 0.0
	data["err"] = 0.0
	return data, nil
}

func (c *PD) Run(sensors sensor.Snapshot, refs map[string]float64, p sandbox.Params, data sandbox.Data) (map[string]any, sandbox.Data, error) {
	t := sensors["t"]
	q2 := sensors["q2"]
	e := refs["q2_desired"] - q2

	rate := 0.0
	prevT := data["prev_t"].(float64)
	if dt := t - prevT; dt > 0 {
		rate = (q2 - data["prev_q2"].(float64)) / dt
	}

	tau := c.Kp*e - c.Kd*rate

	data["prev_q2"] = q2
	data["prev_t"] = t
	data["err"] = e

	return map[string]any{"tau1": tau}, data, nil
}
