// Package storage persists episode results as per-run directories of
// metadata and step series, and reads them back for plotting and
// analysis.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mvelasco/platoon/internal/config"
	"github.com/mvelasco/platoon/internal/episode"
)

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
	ID         string             `json:"id"`
	Controller string             `json:"controller"`
	EnvKind    string             `json:"env_kind"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Dt         float64            `json:"dt"`
	Horizon    int                `json:"horizon"`
	Steps      int                `json:"steps"`
	Crashed    bool               `json:"crashed"`
	Vehicles   int                `json:"vehicles"`
	RLVehicles int                `json:"rl_vehicles"`
	RingLength float64            `json:"ring_length"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Series holds the per-step columns of a stored run.
type Series struct {
	Times      []float64
	MeanSpeeds []float64
	Rewards    []float64
}

func (s *Store) Save(cfg config.Config, result *episode.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", cfg.Controller.Name, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Controller: cfg.Controller.Name,
		EnvKind:    cfg.EnvKind,
		Timestamp:  time.Now(),
		Seed:       cfg.Seed,
		Dt:         cfg.Dt,
		Horizon:    cfg.Horizon,
		Steps:      result.Steps,
		Crashed:    result.Crashed,
		Vehicles:   cfg.Scenario.NumVehicles,
		RLVehicles: cfg.Scenario.NumRL,
		RingLength: cfg.Scenario.Length,
		Metrics:    result.Metrics,
	}

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

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	if err := w.Write([]string{"step", "time", "mean_speed", "reward"}); err != nil {
		return "", err
	}
	for i := 0; i < result.Steps; i++ {
		row := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(float64(i+1)*cfg.Dt, 'f', 6, 64),
			strconv.FormatFloat(result.MeanSpeeds[i], 'f', 6, 64),
			strconv.FormatFloat(result.Rewards[i], 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
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

		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}

		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}

		runs = append(runs, meta)
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

func (s *Store) LoadSeries(runID string) (*Series, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	series := &Series{}
	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) < 4 {
			continue
		}
		t, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			continue
		}
		speed, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			continue
		}
		reward, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			continue
		}
		series.Times = append(series.Times, t)
		series.MeanSpeeds = append(series.MeanSpeeds, speed)
		series.Rewards = append(series.Rewards, reward)
	}

	return series, nil
}
