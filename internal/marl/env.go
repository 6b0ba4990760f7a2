// Package marl adapts the simulator bridge into multi-agent RL
// environments: per-tick observation building, action application, and
// reward computation for a fluctuating population of controlled vehicles.
package marl

import (
	"math"

	"github.com/samber/lo"

	"github.com/mvelasco/platoon/internal/metrics"
	"github.com/mvelasco/platoon/internal/traffic"
)

// MaxLanes is the widest edge the lane observation covers; narrower roads
// are padded.
const MaxLanes = 6

const (
	speedNorm   = 50.0
	headwayNorm = 1000.0
	laneGapNorm = 1000.0
	laneVelNorm = 100.0
	// lanePad disambiguates a missing lane from a zero reading
	lanePad = -1.0

	localRewardScale = 500.0
	minTimeHeadway   = 1.0
)

// Config carries the environment knobs shared by all adapter variants.
type Config struct {
	MaxAccel float64 `yaml:"max_accel"`
	MaxDecel float64 `yaml:"max_decel"`
	// LeadObs selects the compact 3-wide observation over the per-lane
	// one.
	LeadObs bool `yaml:"lead_obs"`
	// LocalReward selects the per-agent squared-speed reward over the
	// shared system-level one.
	LocalReward bool `yaml:"local_reward"`
	// Evaluate forces the reward to the raw vehicle speed.
	Evaluate bool    `yaml:"evaluate"`
	Horizon  int     `yaml:"horizon"`
	Eta1     float64 `yaml:"eta1"` // weight on the average-velocity term
	Eta2     float64 `yaml:"eta2"` // weight on the time-headway penalty
}

func DefaultConfig() Config {
	return Config{
		MaxAccel:    1,
		MaxDecel:    1,
		LeadObs:     true,
		LocalReward: true,
		Horizon:     1000,
		Eta1:        1.0,
		Eta2:        0.0,
	}
}

// Env is the base multi-agent adapter: one shared policy over a variable
// number of RL vehicles, keyed by vehicle id.
type Env struct {
	k   traffic.Kernel
	cfg Config
}

func New(k traffic.Kernel, cfg Config) *Env {
	return &Env{k: k, cfg: cfg}
}

// Kernel exposes the underlying simulator bridge.
func (e *Env) Kernel() traffic.Kernel { return e.k }

// Config returns the environment parameters.
func (e *Env) Config() Config { return e.cfg }

func (e *Env) ObservationSpace() Space {
	if e.cfg.LeadObs {
		// speed, headway, leader speed
		return Box{Low: math.Inf(-1), High: math.Inf(1), Shape: 3}
	}
	// per-lane gap/speed/is-rl for leaders and followers, plus self
	// speed and lane
	return Box{Low: math.Inf(-1), High: math.Inf(1), Shape: 6*MaxLanes + 2}
}

func (e *Env) ActionSpace() Space {
	return Box{Low: -e.cfg.MaxDecel, High: e.cfg.MaxAccel, Shape: 1}
}

// Reset restarts the simulation and returns the first observation set.
func (e *Env) Reset(seed int64) map[string][]float64 {
	e.k.Reset(seed)
	return e.State()
}

// ApplyActions forwards bounded accelerations to the named vehicles. A nil
// map (warmup tick) applies nothing.
func (e *Env) ApplyActions(actions map[string][]float64) {
	if actions == nil {
		return
	}
	ids := make([]string, 0, len(actions))
	accels := make([]float64, 0, len(actions))
	for _, id := range e.k.RLIDs() {
		act, ok := actions[id]
		if !ok || len(act) == 0 {
			continue
		}
		ids = append(ids, id)
		accels = append(accels, act[0])
	}
	e.k.ApplyAcceleration(ids, accels)
}

// State builds the per-agent observation dict for every RL vehicle.
func (e *Env) State() map[string][]float64 {
	out := make(map[string][]float64)
	for _, id := range e.k.RLIDs() {
		if e.cfg.LeadObs {
			out[id] = e.leadObs(id)
		} else {
			out[id] = append(e.laneObs(id), e.vehStats(id)...)
		}
	}
	return out
}

func (e *Env) leadObs(id string) []float64 {
	speed := e.k.Speed(id)
	headway := e.k.Headway(id)
	leadSpeed := e.k.Speed(e.k.Leader(id))
	if leadSpeed == traffic.MissingSpeed {
		leadSpeed = 0
	}
	return []float64{speed / speedNorm, headway / headwayNorm, leadSpeed / speedNorm}
}

// laneObs is the rich observation: per-lane headways, tailways, neighbor
// speeds, and flags marking which neighbors are themselves RL controlled,
// padded with the sentinel for lanes beyond the current edge.
func (e *Env) laneObs(id string) []float64 {
	rlIDs := e.k.RLIDs()
	leaders := e.k.LaneLeaders(id)
	followers := e.k.LaneFollowers(id)

	headways := lo.Map(e.k.LaneHeadways(id), func(h float64, _ int) float64 {
		return h / laneGapNorm
	})
	tailways := lo.Map(e.k.LaneTailways(id), func(h float64, _ int) float64 {
		return h / laneGapNorm
	})
	leadSpeeds := lo.Map(leaders, func(lid string, _ int) float64 {
		return e.neighborSpeed(lid) / laneVelNorm
	})
	followSpeeds := lo.Map(followers, func(fid string, _ int) float64 {
		return e.neighborSpeed(fid) / laneVelNorm
	})
	leaderRL := lo.Map(leaders, func(lid string, _ int) float64 {
		return boolToFlag(lo.Contains(rlIDs, lid))
	})
	followRL := lo.Map(followers, func(fid string, _ int) float64 {
		return boolToFlag(lo.Contains(rlIDs, fid))
	})

	obs := make([]float64, 0, 6*MaxLanes)
	for _, block := range [][]float64{headways, tailways, leadSpeeds, followSpeeds, leaderRL, followRL} {
		obs = append(obs, padLanes(block)...)
	}
	return obs
}

func (e *Env) vehStats(id string) []float64 {
	speed := e.k.Speed(id) / laneVelNorm
	lane := (float64(e.k.Lane(id)) + 1) / 10.0
	return []float64{speed, lane}
}

func (e *Env) neighborSpeed(id string) float64 {
	if id == "" {
		return 0
	}
	if s := e.k.Speed(id); s != traffic.MissingSpeed {
		return s
	}
	return 0
}

func boolToFlag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func padLanes(block []float64) []float64 {
	for len(block) < MaxLanes {
		block = append(block, lanePad)
	}
	return block[:MaxLanes]
}

// Reward computes the per-agent reward dict. A nil action map (warmup)
// yields an empty dict.
func (e *Env) Reward(actions map[string][]float64, fail bool) map[string]float64 {
	if actions == nil {
		return map[string]float64{}
	}

	rewards := make(map[string]float64)
	for _, id := range e.k.RLIDs() {
		if e.cfg.LocalReward {
			rewards[id] = e.localReward(id)
		} else {
			rewards[id] = e.globalReward(id, fail)
		}
	}
	return rewards
}

// localReward is the mean squared speed of the agent and its follower,
// rescaled so the value function can track it.
func (e *Env) localReward(id string) float64 {
	var speeds []float64
	if s := e.k.Speed(e.k.Follower(id)); s >= 0 {
		speeds = append(speeds, s)
	}
	if s := e.k.Speed(id); s >= 0 {
		speeds = append(speeds, s)
	}
	if len(speeds) == 0 {
		return 0
	}
	return lo.SumBy(speeds, func(s float64) float64 { return s * s }) /
		float64(len(speeds)) / localRewardScale
}

func (e *Env) globalReward(id string, fail bool) float64 {
	if e.cfg.Evaluate {
		return e.k.Speed(id)
	}
	if fail {
		return 0
	}

	cost1 := metrics.AverageVelocity(e.k, fail)

	// penalize time headways below the safety margin
	cost2 := 0.0
	if e.k.Leader(id) != "" && e.k.Speed(id) > 0 {
		tHeadway := math.Max(e.k.Headway(id)/e.k.Speed(id), 0)
		cost2 = math.Min((tHeadway-minTimeHeadway)/minTimeHeadway, 0)
	}

	return math.Max(e.cfg.Eta1*cost1+e.cfg.Eta2*cost2, 0)
}

// AdditionalCommand marks each agent's leader and follower as observed for
// the external renderer. No effect on dynamics.
func (e *Env) AdditionalCommand() {
	for _, id := range e.k.RLIDs() {
		if lead := e.k.Leader(id); lead != "" {
			e.k.SetObserved(lead)
		}
		if follow := e.k.Follower(id); follow != "" {
			e.k.SetObserved(follow)
		}
	}
}
