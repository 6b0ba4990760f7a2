package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mvelasco/platoon/internal/marl"
)

// ScenarioConfig describes the ring road layout.
type ScenarioConfig struct {
	Length        float64 `yaml:"length"`
	NumVehicles   int     `yaml:"num_vehicles"`
	NumRL         int     `yaml:"num_rl"`
	VehLength     float64 `yaml:"veh_length"`
	MaxSpeed      float64 `yaml:"max_speed"`
	EntryInterval int     `yaml:"entry_interval"`
	PosJitter     float64 `yaml:"pos_jitter"`
}

// ControllerConfig names the car-following law for human vehicles and
// carries its gains. Fields for laws other than the named one are ignored.
type ControllerConfig struct {
	Name string `yaml:"name"`

	// bcm
	KD   float64 `yaml:"kd"`
	KV   float64 `yaml:"kv"`
	KC   float64 `yaml:"kc"`
	VDes float64 `yaml:"v_des"`

	// lacc
	K1  float64 `yaml:"k1"`
	K2  float64 `yaml:"k2"`
	H   float64 `yaml:"h"`
	Tau float64 `yaml:"tau"`

	// ovm / linear_ovm
	Alpha      float64 `yaml:"alpha"`
	Beta       float64 `yaml:"beta"`
	HSt        float64 `yaml:"h_st"`
	HGo        float64 `yaml:"h_go"`
	VMax       float64 `yaml:"v_max"`
	Adaptation float64 `yaml:"adaptation"`

	// idm
	V0    float64 `yaml:"v0"`
	T     float64 `yaml:"t"`
	A     float64 `yaml:"a"`
	B     float64 `yaml:"b"`
	Delta float64 `yaml:"delta"`
	S0    float64 `yaml:"s0"`

	Noise     float64 `yaml:"noise"`
	NoiseSeed int64   `yaml:"noise_seed"`
}

// Config is the complete run configuration.
type Config struct {
	Scenario   ScenarioConfig   `yaml:"scenario"`
	Controller ControllerConfig `yaml:"controller"`
	Env        marl.Config      `yaml:"env"`
	EnvKind    string           `yaml:"env_kind"`
	QMIX       marl.QMIXConfig  `yaml:"qmix"`

	Dt      float64 `yaml:"dt"`
	Horizon int     `yaml:"horizon"`
	Warmup  int     `yaml:"warmup"`
	Seed    int64   `yaml:"seed"`
	NumRuns int     `yaml:"num_runs"`
}

func DefaultConfig() Config {
	return Config{
		Scenario: ScenarioConfig{
			Length:      230,
			NumVehicles: 22,
			NumRL:       1,
			VehLength:   5,
			MaxSpeed:    30,
		},
		Controller: ControllerConfig{
			Name:  "idm",
			V0:    30,
			T:     1,
			A:     1,
			B:     1.5,
			Delta: 4,
			S0:    2,
		},
		Env:     marl.DefaultConfig(),
		EnvKind: "base",
		QMIX: marl.QMIXConfig{
			MaxAgents:  5,
			NumActions: 7,
		},
		Dt:      0.1,
		Horizon: 1000,
		Warmup:  0,
		Seed:    42,
		NumRuns: 1,
	}
}

// Params flattens the controller gains into the name/value form the
// experiment registry consumes.
func (c ControllerConfig) Params() map[string]float64 {
	return map[string]float64{
		"kd": c.KD, "kv": c.KV, "kc": c.KC, "v_des": c.VDes,
		"k1": c.K1, "k2": c.K2, "h": c.H, "tau": c.Tau,
		"alpha": c.Alpha, "beta": c.Beta, "h_st": c.HSt, "h_go": c.HGo,
		"v_max": c.VMax, "adaptation": c.Adaptation,
		"v0": c.V0, "t": c.T, "a": c.A, "b": c.B,
		"delta": c.Delta, "s0": c.S0,
	}
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func SaveConfig(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.Scenario.Length <= 0 {
		return fmt.Errorf("scenario length must be positive, got %v", c.Scenario.Length)
	}
	if c.Scenario.NumVehicles <= 0 {
		return fmt.Errorf("num_vehicles must be positive, got %d", c.Scenario.NumVehicles)
	}
	if c.Scenario.NumRL < 0 || c.Scenario.NumRL > c.Scenario.NumVehicles {
		return fmt.Errorf("num_rl must be within [0, num_vehicles], got %d", c.Scenario.NumRL)
	}
	if occupied := float64(c.Scenario.NumVehicles) * c.Scenario.VehLength; occupied >= c.Scenario.Length {
		return fmt.Errorf("vehicles occupy %.1f m of a %.1f m ring", occupied, c.Scenario.Length)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %v", c.Dt)
	}
	if c.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive, got %d", c.Horizon)
	}
	switch c.EnvKind {
	case "base", "qmix", "maddpg":
	default:
		return fmt.Errorf("unknown env kind %q", c.EnvKind)
	}
	return nil
}
