package config

// Presets maps a name to a ready-to-run configuration.
var Presets = map[string]func() Config{
	"stable":  StableRing,
	"wave":    WaveRing,
	"bcm":     BCMRing,
	"lacc":    LACCRing,
	"sparse":  SparseRing,
	"staged":  StagedEntry,
	"default": DefaultConfig,
}

// StableRing is a lightly loaded ring where IDM settles to uniform flow.
func StableRing() Config {
	cfg := DefaultConfig()
	cfg.Scenario.NumVehicles = 14
	cfg.Scenario.NumRL = 1
	return cfg
}

// WaveRing packs enough OVM vehicles onto the ring that stop-and-go
// waves develop from the initial jitter.
func WaveRing() Config {
	cfg := DefaultConfig()
	cfg.Scenario.NumVehicles = 22
	cfg.Scenario.PosJitter = 1.5
	cfg.Controller = ControllerConfig{
		Name:  "ovm",
		Alpha: 1, Beta: 1,
		HSt: 2, HGo: 15, VMax: 30,
	}
	cfg.Horizon = 3000
	return cfg
}

// BCMRing runs the bilateral law on every human vehicle.
func BCMRing() Config {
	cfg := DefaultConfig()
	cfg.Controller = ControllerConfig{
		Name: "bcm",
		KD:   1, KV: 1, KC: 1, VDes: 8,
	}
	return cfg
}

// LACCRing runs the lag-filtered linear law on every human vehicle.
func LACCRing() Config {
	cfg := DefaultConfig()
	cfg.Controller = ControllerConfig{
		Name: "lacc",
		K1:   0.3, K2: 0.4, H: 1, Tau: 0.1,
	}
	return cfg
}

// SparseRing spreads a handful of vehicles over a long loop.
func SparseRing() Config {
	cfg := DefaultConfig()
	cfg.Scenario.Length = 500
	cfg.Scenario.NumVehicles = 8
	cfg.Scenario.NumRL = 2
	return cfg
}

// StagedEntry admits vehicles one at a time, exercising the dynamic
// roster paths of the fixed-roster environments.
func StagedEntry() Config {
	cfg := DefaultConfig()
	cfg.Scenario.NumVehicles = 10
	cfg.Scenario.NumRL = 4
	cfg.Scenario.EntryInterval = 5
	cfg.EnvKind = "qmix"
	return cfg
}

// PresetNames returns the preset keys in no particular order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
