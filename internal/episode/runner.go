// Package episode drives the per-tick control loop: query the simulator,
// build observations, apply policy actions, advance physics, compute
// rewards.
package episode

import (
	"context"
	"fmt"

	"github.com/mvelasco/platoon/internal/marl"
	"github.com/mvelasco/platoon/internal/metrics"
	"github.com/mvelasco/platoon/internal/traffic"
)

// Config sets the episode length and timestep.
type Config struct {
	Dt      float64
	Horizon int
	// Warmup ticks run before any policy action is applied.
	Warmup int
	Seed   int64
}

// Observer is called after every tick with the fresh simulator state.
type Observer interface {
	OnStep(r traffic.Reader, step int)
}

// Result aggregates an episode's per-step series and final metrics.
type Result struct {
	Steps      int
	Crashed    bool
	MeanSpeeds []float64
	Rewards    []float64
	Metrics    map[string]float64
}

// Runner executes episodes of an environment under a policy. A nil policy
// leaves RL vehicles coasting, which reduces the loop to a pure
// car-following simulation.
type Runner struct {
	env       *marl.Env
	policy    Policy
	metrics   []metrics.Metric
	observers []Observer
}

func New(env *marl.Env, policy Policy) *Runner {
	return &Runner{env: env, policy: policy}
}

func (r *Runner) AddMetric(m metrics.Metric) { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o Observer) { r.observers = append(r.observers, o) }

// Run executes one episode. The episode ends at the horizon or on the
// first collision, whichever comes first.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	k := r.env.Kernel()
	obs := r.env.Reset(cfg.Seed)

	for _, m := range r.metrics {
		m.Reset()
	}

	result := &Result{
		MeanSpeeds: make([]float64, 0, cfg.Horizon),
		Rewards:    make([]float64, 0, cfg.Horizon),
		Metrics:    make(map[string]float64),
	}

	for step := 0; step < cfg.Horizon; step++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		var actions map[string][]float64
		if r.policy != nil && step >= cfg.Warmup {
			actions = r.policy.Act(obs)
		}

		r.env.ApplyActions(actions)
		k.Advance(cfg.Dt)
		obs = r.env.State()
		r.env.AdditionalCommand()

		fail := k.Crashed()
		rewards := r.env.Reward(actions, fail)

		t := float64(step+1) * cfg.Dt
		applied := flatten(actions)
		for _, m := range r.metrics {
			m.Observe(k, applied, t)
		}
		for _, o := range r.observers {
			o.OnStep(k, step)
		}

		result.MeanSpeeds = append(result.MeanSpeeds, metrics.AverageVelocity(k, false))
		result.Rewards = append(result.Rewards, meanReward(rewards))
		result.Steps++

		if fail {
			result.Crashed = true
			break
		}
	}

	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

func validate(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive, got %d", cfg.Horizon)
	}
	return nil
}

func flatten(actions map[string][]float64) map[string]float64 {
	out := make(map[string]float64, len(actions))
	for id, act := range actions {
		if len(act) > 0 {
			out[id] = act[0]
		}
	}
	return out
}

func meanReward(rewards map[string]float64) float64 {
	if len(rewards) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range rewards {
		sum += r
	}
	return sum / float64(len(rewards))
}
