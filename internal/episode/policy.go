package episode

import "math/rand"

// Policy maps observations to actions, keyed by vehicle id. Training lives
// in the external RL framework; these built-ins exist for rollouts and
// debugging.
type Policy interface {
	Act(obs map[string][]float64) map[string][]float64
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(obs map[string][]float64) map[string][]float64

func (f PolicyFunc) Act(obs map[string][]float64) map[string][]float64 {
	return f(obs)
}

// Constant commands the same acceleration for every agent every tick.
func Constant(accel float64) Policy {
	return PolicyFunc(func(obs map[string][]float64) map[string][]float64 {
		actions := make(map[string][]float64, len(obs))
		for id := range obs {
			actions[id] = []float64{accel}
		}
		return actions
	})
}

// Uniform samples accelerations uniformly from [low, high].
func Uniform(low, high float64, seed int64) Policy {
	rng := rand.New(rand.NewSource(seed))
	return PolicyFunc(func(obs map[string][]float64) map[string][]float64 {
		actions := make(map[string][]float64, len(obs))
		for id := range obs {
			actions[id] = []float64{low + rng.Float64()*(high-low)}
		}
		return actions
	})
}
