// Package record accumulates per-step time series for a run and persists
// them: a process table (time, joint angles, joint rates) and a
// controller table (durations, sensed fields, references, actuator
// command, and any requested controller-data fields).
package record

import (
	"sort"
	"time"

	"github.com/san-kum/pendubot/internal/dynamo"
	"github.com/san-kum/pendubot/internal/sandbox"
	"github.com/san-kum/pendubot/internal/sensor"
)

type Log struct {
	// Requested controller-data field names, in log order.
	Fields []string
	// Sensor field names, in column order.
	SensorKeys []string

	// Process table.
	Time []float64
	Q1   []float64
	Q2   []float64
	V1   []float64
	V2   []float64

	// Controller table. InitDuration is a run-level scalar; the rest
	// gain one entry per step.
	InitDuration float64
	RunDuration  []float64
	Sensors      map[string][]float64
	Ref          []float64
	Tau1         []float64
	Data         map[string][]float64
}

func NewLog(fields []string, sensorKeys []string) *Log {
	l := &Log{
		Fields:     append([]string(nil), fields...),
		SensorKeys: append([]string(nil), sensorKeys...),
		Sensors:    make(map[string][]float64, len(sensorKeys)),
		Data:       make(map[string][]float64, len(fields)),
	}
	for _, k := range l.SensorKeys {
		l.Sensors[k] = nil
	}
	for _, f := range l.Fields {
		l.Data[f] = nil
	}
	return l
}

// SensorColumns returns the sensed field names of a snapshot in stable
// order, time first.
func SensorColumns(s sensor.Snapshot) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		if k != "t" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return append([]string{"t"}, keys...)
}

// Append records one simulation step across both tables.
func (l *Log) Append(t float64, x dynamo.State, sensors sensor.Snapshot, ref float64, cmd sandbox.Command, runDur time.Duration, data map[string]float64) {
	l.Time = append(l.Time, t)
	l.Q1 = append(l.Q1, x[0])
	l.Q2 = append(l.Q2, x[1])
	l.V1 = append(l.V1, x[2])
	l.V2 = append(l.V2, x[3])

	l.RunDuration = append(l.RunDuration, runDur.Seconds())
	for _, k := range l.SensorKeys {
		l.Sensors[k] = append(l.Sensors[k], sensors[k])
	}
	l.Ref = append(l.Ref, ref)
	l.Tau1 = append(l.Tau1, cmd.Tau1)
	for _, f := range l.Fields {
		l.Data[f] = append(l.Data[f], data[f])
	}
}

func (l *Log) Steps() int { return len(l.Time) }
