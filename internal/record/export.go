package record

import (
	"encoding/json"
	"io"
)

type exportData struct {
	Meta         RunMetadata          `json:"meta"`
	Steps        int                  `json:"steps"`
	Times        []float64            `json:"times"`
	Q1           []float64            `json:"q1"`
	Q2           []float64            `json:"q2"`
	V1           []float64            `json:"v1"`
	V2           []float64            `json:"v2"`
	Tau1         []float64            `json:"tau1"`
	Ref          []float64            `json:"q2_desired"`
	RunDuration  []float64            `json:"run_duration"`
	InitDuration float64              `json:"init_duration"`
	Sensors      map[string][]float64 `json:"sensors,omitempty"`
	Data         map[string][]float64 `json:"data,omitempty"`
}

// ExportJSON writes both log tables as one JSON document.
func ExportJSON(w io.Writer, meta RunMetadata, log *Log) error {
	data := exportData{
		Meta:         meta,
		Steps:        log.Steps(),
		Times:        log.Time,
		Q1:           log.Q1,
		Q2:           log.Q2,
		V1:           log.V1,
		V2:           log.V2,
		Tau1:         log.Tau1,
		Ref:          log.Ref,
		RunDuration:  log.RunDuration,
		InitDuration: log.InitDuration,
		Sensors:      log.Sensors,
		Data:         log.Data,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
