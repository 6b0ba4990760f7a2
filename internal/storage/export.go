package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/mvelasco/platoon/internal/config"
	"github.com/mvelasco/platoon/internal/episode"
)

type ExportData struct {
	Controller string             `json:"controller"`
	EnvKind    string             `json:"env_kind"`
	Dt         float64            `json:"dt"`
	Horizon    int                `json:"horizon"`
	Steps      int                `json:"steps"`
	Crashed    bool               `json:"crashed"`
	MeanSpeeds []float64          `json:"mean_speeds"`
	Rewards    []float64          `json:"rewards"`
	Metrics    map[string]float64 `json:"metrics"`
}

func exportData(cfg config.Config, result *episode.Result) ExportData {
	return ExportData{
		Controller: cfg.Controller.Name,
		EnvKind:    cfg.EnvKind,
		Dt:         cfg.Dt,
		Horizon:    cfg.Horizon,
		Steps:      result.Steps,
		Crashed:    result.Crashed,
		MeanSpeeds: result.MeanSpeeds,
		Rewards:    result.Rewards,
		Metrics:    result.Metrics,
	}
}

// ExportJSON writes a run as a single indented JSON document.
func ExportJSON(w io.Writer, cfg config.Config, result *episode.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(exportData(cfg, result))
}

// ExportJSONFile writes the same document to a file.
func ExportJSONFile(path string, cfg config.Config, result *episode.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return ExportJSON(file, cfg, result)
}
