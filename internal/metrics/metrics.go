package metrics

import (
	"math"

	"github.com/mvelasco/platoon/internal/traffic"
)

// Metric accumulates a scalar over an episode. Observe is called once per
// tick with the simulator state and the accelerations applied that tick.
type Metric interface {
	Name() string
	Observe(r traffic.Reader, accels map[string]float64, t float64)
	Value() float64
	Reset()
}

// MeanSpeed is the time average of the fleet's mean speed.
type MeanSpeed struct {
	sum     float64
	samples int
}

func NewMeanSpeed() *MeanSpeed { return &MeanSpeed{} }

func (m *MeanSpeed) Name() string { return "mean_speed" }

func (m *MeanSpeed) Observe(r traffic.Reader, accels map[string]float64, t float64) {
	ids := r.IDs()
	if len(ids) == 0 {
		return
	}
	total := 0.0
	for _, id := range ids {
		total += r.Speed(id)
	}
	m.sum += total / float64(len(ids))
	m.samples++
}

func (m *MeanSpeed) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *MeanSpeed) Reset() {
	m.sum = 0
	m.samples = 0
}

// ControlEffort is the time average of total commanded |accel| per tick.
type ControlEffort struct {
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort { return &ControlEffort{} }

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(r traffic.Reader, accels map[string]float64, t float64) {
	for _, a := range accels {
		c.sum += math.Abs(a)
	}
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// MinHeadway tracks the smallest gap seen over the episode.
type MinHeadway struct {
	min     float64
	samples int
}

func NewMinHeadway() *MinHeadway { return &MinHeadway{min: math.Inf(1)} }

func (m *MinHeadway) Name() string { return "min_headway" }

func (m *MinHeadway) Observe(r traffic.Reader, accels map[string]float64, t float64) {
	for _, id := range r.IDs() {
		if r.Leader(id) == "" {
			continue
		}
		if h := r.Headway(id); h < m.min {
			m.min = h
		}
	}
	m.samples++
}

func (m *MinHeadway) Value() float64 {
	if m.samples == 0 || math.IsInf(m.min, 1) {
		return 0
	}
	return m.min
}

func (m *MinHeadway) Reset() {
	m.min = math.Inf(1)
	m.samples = 0
}
