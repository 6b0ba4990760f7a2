// Package experiment wires a configuration into a runnable episode:
// scenario kernel, environment adapter, policy and metrics.
package experiment

import (
	"context"
	"fmt"

	"github.com/mvelasco/platoon/internal/config"
	"github.com/mvelasco/platoon/internal/controllers"
	"github.com/mvelasco/platoon/internal/episode"
	"github.com/mvelasco/platoon/internal/marl"
	"github.com/mvelasco/platoon/internal/metrics"
	"github.com/mvelasco/platoon/internal/ring"
)

type Experiment struct {
	cfg    config.Config
	road   *ring.Ring
	env    *marl.Env
	runner *episode.Runner
}

func New(cfg config.Config) *Experiment {
	return &Experiment{cfg: cfg}
}

// Setup builds the ring, environment and runner. A nil policy leaves the
// RL vehicles coasting on the kernel's native model.
func (e *Experiment) Setup(reg *Registry, policy episode.Policy, mets []metrics.Metric) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	law, err := reg.GetLaw(e.cfg.Controller.Name, e.cfg.Controller.Params())
	if err != nil {
		return err
	}
	if e.cfg.Controller.Noise > 0 {
		law.SetNoise(e.cfg.Controller.Noise, e.cfg.Controller.NoiseSeed)
	}

	sc := e.cfg.Scenario
	e.road = ring.New(ring.Params{
		Length:        sc.Length,
		NumVehicles:   sc.NumVehicles,
		NumRL:         sc.NumRL,
		VehLength:     sc.VehLength,
		MaxSpeed:      sc.MaxSpeed,
		EntryInterval: sc.EntryInterval,
		PosJitter:     sc.PosJitter,
		// Each human vehicle gets its own copy so stateful laws do not
		// share their filter state.
		Law: func() *controllers.Law {
			l := *law
			return &l
		},
	}, e.cfg.Seed)

	// The env's reward horizon tracks the episode length.
	e.cfg.Env.Horizon = e.cfg.Horizon
	e.env = marl.New(e.road, e.cfg.Env)
	e.runner = episode.New(e.env, policy)
	for _, m := range mets {
		e.runner.AddMetric(m)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*episode.Result, error) {
	if e.runner == nil {
		return nil, fmt.Errorf("experiment not set up")
	}
	return e.runner.Run(ctx, episode.Config{
		Dt:      e.cfg.Dt,
		Horizon: e.cfg.Horizon,
		Warmup:  e.cfg.Warmup,
		Seed:    e.cfg.Seed,
	})
}

func (e *Experiment) Ring() *ring.Ring { return e.road }

func (e *Experiment) Env() *marl.Env { return e.env }

func (e *Experiment) Runner() *episode.Runner { return e.runner }
