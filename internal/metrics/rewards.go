package metrics

import (
	"gonum.org/v1/gonum/stat"

	"github.com/mvelasco/platoon/internal/traffic"
)

// AverageVelocity is the fleet-wide mean speed, the base term of the
// global reward. Returns 0 after a collision or when the road is empty.
func AverageVelocity(r traffic.Reader, fail bool) float64 {
	ids := r.IDs()
	if fail || len(ids) == 0 {
		return 0
	}
	speeds := make([]float64, 0, len(ids))
	for _, id := range ids {
		if s := r.Speed(id); s >= 0 {
			speeds = append(speeds, s)
		}
	}
	if len(speeds) == 0 {
		return 0
	}
	return stat.Mean(speeds, nil)
}

// MeanRLSpeed is the mean speed over a set of vehicle ids, skipping
// sentinel speeds. Returns 0 for an empty set.
func MeanRLSpeed(r traffic.Reader, ids []string) float64 {
	speeds := make([]float64, 0, len(ids))
	for _, id := range ids {
		if s := r.Speed(id); s >= 0 {
			speeds = append(speeds, s)
		}
	}
	if len(speeds) == 0 {
		return 0
	}
	return stat.Mean(speeds, nil)
}
