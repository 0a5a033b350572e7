package record

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Store persists runs as directories under a base path, each holding
// metadata.json plus the process and controller CSV tables.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID           string    `json:"id"`
	Team         string    `json:"team,omitempty"`
	Controller   string    `json:"controller"`
	Timestamp    time.Time `json:"timestamp"`
	TStep        float64   `json:"t_step"`
	TStop        float64   `json:"t_stop"`
	Seed         int64     `json:"seed"`
	Disturbed    bool      `json:"disturbed"`
	InitDuration float64   `json:"init_duration_sec"`
	Warnings     []string  `json:"warnings,omitempty"`
}

func (s *Store) Save(meta RunMetadata, log *Log) (string, error) {
	runID := fmt.Sprintf("%s_%d", meta.Controller, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.InitDuration = log.InitDuration

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if err := s.writeProcess(filepath.Join(runDir, "process.csv"), log); err != nil {
		return "", err
	}
	if err := s.writeController(filepath.Join(runDir, "controller.csv"), log); err != nil {
		return "", err
	}

	return runID, nil
}

func (s *Store) writeProcess(path string, log *Log) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"time", "q1", "q2", "v1", "v2"}); err != nil {
		return err
	}
	for i := range log.Time {
		row := []string{
			fmtF(log.Time[i]), fmtF(log.Q1[i]), fmtF(log.Q2[i]),
			fmtF(log.V1[i]), fmtF(log.V2[i]),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeController(path string, log *Log) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"run_duration"}
	for _, k := range log.SensorKeys {
		header = append(header, "sensor_"+k)
	}
	header = append(header, "q2_desired", "tau1")
	header = append(header, log.Fields...)
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range log.Time {
		row := []string{fmtF(log.RunDuration[i])}
		for _, k := range log.SensorKeys {
			row = append(row, fmtF(log.Sensors[k][i]))
		}
		row = append(row, fmtF(log.Ref[i]), fmtF(log.Tau1[i]))
		for _, fld := range log.Fields {
			row = append(row, fmtF(log.Data[fld][i]))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func fmtF(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadProcess reads back the process table of a stored run.
func (s *Store) LoadProcess(runID string) (states [][]float64, times []float64, err error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "process.csv"))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil
	}

	times = make([]float64, 0, len(records)-1)
	states = make([][]float64, 0, len(records)-1)

	for _, rec := range records[1:] {
		if len(rec) == 0 {
			continue
		}

		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			continue
		}
		times = append(times, t)

		row := make([]float64, 0, len(rec)-1)
		for _, field := range rec[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				continue
			}
			row = append(row, v)
		}
		states = append(states, row)
	}

	return states, times, nil
}
