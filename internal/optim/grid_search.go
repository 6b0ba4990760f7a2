// Package optim sweeps car-following gains over a grid of candidate
// values and ranks them by an episode metric.
package optim

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/mvelasco/platoon/internal/experiment"
)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	// Maximize flips the objective; the default picks the smallest
	// metric value.
	Maximize bool
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Range returns n evenly spaced candidate values across [lo, hi].
func Range(lo, hi float64, n int) []float64 {
	if n < 2 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// Search evaluates every combination of candidate values. The build
// callback constructs a ready-to-run experiment for one combination;
// combinations whose build or run fails are skipped.
func (g *GridSearch) Search(
	ctx context.Context,
	build func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (map[string]float64, float64, error) {

	best := math.Inf(1)
	if g.Maximize {
		best = math.Inf(-1)
	}
	var bestParams map[string]float64

	g.searchRecursive(ctx, 0, make(map[string]float64), build, metricName, &best, &bestParams)

	if err := ctx.Err(); err != nil {
		return bestParams, best, err
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	build func(map[string]float64) (*experiment.Experiment, error),
	metricName string,
	best *float64,
	bestParams *map[string]float64,
) {
	if ctx.Err() != nil {
		return
	}

	if depth == len(g.paramNames) {
		exp, err := build(current)
		if err != nil {
			return
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return
		}

		val, ok := result.Metrics[metricName]
		if !ok {
			return
		}
		better := val < *best
		if g.Maximize {
			better = val > *best
		}
		if better {
			*best = val
			*bestParams = make(map[string]float64)
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[paramName] = val

		g.searchRecursive(ctx, depth+1, next, build, metricName, best, bestParams)
	}
}
