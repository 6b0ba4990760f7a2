package optim

import (
	"context"
	"testing"

	"github.com/mvelasco/platoon/internal/config"
	"github.com/mvelasco/platoon/internal/episode"
	"github.com/mvelasco/platoon/internal/experiment"
)

func TestRange(t *testing.T) {
	vals := Range(0, 1, 5)
	if len(vals) != 5 {
		t.Fatalf("expected 5 values, got %d", len(vals))
	}
	if vals[0] != 0 || vals[4] != 1 {
		t.Errorf("expected endpoints 0 and 1, got %v and %v", vals[0], vals[4])
	}
	if vals[2] != 0.5 {
		t.Errorf("expected midpoint 0.5, got %v", vals[2])
	}
	if got := Range(3, 9, 1); len(got) != 1 || got[0] != 3 {
		t.Errorf("degenerate range should collapse to lo, got %v", got)
	}
}

func buildConstant(t *testing.T) func(map[string]float64) (*experiment.Experiment, error) {
	t.Helper()
	reg := experiment.NewRegistry()
	return func(params map[string]float64) (*experiment.Experiment, error) {
		cfg := config.DefaultConfig()
		cfg.Scenario.NumVehicles = 6
		cfg.Scenario.Length = 100
		cfg.Horizon = 30

		e := experiment.New(cfg)
		policy := episode.Constant(params["accel"])
		if err := e.Setup(reg, policy, reg.DefaultMetrics()); err != nil {
			return nil, err
		}
		return e, nil
	}
}

func TestSearchMinimizesControlEffort(t *testing.T) {
	gs := NewGridSearch([]string{"accel"}, [][]float64{{0.1, 0.9}})
	best, val, err := gs.Search(context.Background(), buildConstant(t), "control_effort")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if best["accel"] != 0.1 {
		t.Errorf("expected smallest accel to win, got %v", best["accel"])
	}
	if val <= 0 {
		t.Errorf("expected positive effort, got %v", val)
	}
}

func TestSearchMaximize(t *testing.T) {
	gs := NewGridSearch([]string{"accel"}, [][]float64{{0.1, 0.9}})
	gs.Maximize = true
	best, _, err := gs.Search(context.Background(), buildConstant(t), "control_effort")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if best["accel"] != 0.9 {
		t.Errorf("expected largest accel to win, got %v", best["accel"])
	}
}

func TestSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gs := NewGridSearch([]string{"accel"}, [][]float64{{0.1, 0.9}})
	if _, _, err := gs.Search(ctx, buildConstant(t), "control_effort"); err == nil {
		t.Error("expected context error")
	}
}
