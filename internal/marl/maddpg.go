package marl

import (
	"github.com/mvelasco/platoon/internal/metrics"
	"github.com/mvelasco/platoon/internal/roster"
	"github.com/mvelasco/platoon/internal/traffic"
)

// MADDPGEnv presents a constant roster of agent slots with the continuous
// acceleration action space. Padding slots receive the zero observation
// and are never selected for action application; only real vehicle ids
// appear in the reverse map.
type MADDPGEnv struct {
	*Env
	maxAgents int
	slots     *roster.Table
}

func NewMADDPG(k traffic.Kernel, cfg Config, maxAgents int) *MADDPGEnv {
	return &MADDPGEnv{
		Env:       New(k, cfg),
		maxAgents: maxAgents,
		slots:     roster.New(maxAgents),
	}
}

// ApplyActions forwards slot-keyed accelerations to the vehicles holding
// those slots.
func (m *MADDPGEnv) ApplyActions(actions map[int][]float64) {
	if actions == nil {
		return
	}
	var ids []string
	var accels []float64
	for _, id := range m.k.RLIDs() {
		idx, ok := m.slots.Index(id)
		if !ok {
			continue
		}
		act, ok := actions[idx]
		if !ok || len(act) == 0 {
			continue
		}
		ids = append(ids, id)
		accels = append(accels, act[0])
	}
	m.k.ApplyAcceleration(ids, accels)
}

// State returns an observation for every slot, zero-padded where no
// vehicle holds the slot.
func (m *MADDPGEnv) State() map[int][]float64 {
	syncRoster(m.slots, m.k)

	obsSize := m.Env.ObservationSpace().Size()
	out := make(map[int][]float64, m.maxAgents)
	for idx := 0; idx < m.maxAgents; idx++ {
		out[idx] = make([]float64, obsSize)
	}
	for id, obs := range m.Env.State() {
		if idx, ok := m.slots.Index(id); ok {
			out[idx] = obs
		}
	}
	return out
}

// Reward broadcasts the normalized mean speed of the whole fleet to every
// slot.
func (m *MADDPGEnv) Reward(actions map[int][]float64, fail bool) map[int]float64 {
	reward := metrics.MeanRLSpeed(m.k, m.k.IDs()) / (20 * float64(m.cfg.Horizon))
	out := make(map[int]float64, m.maxAgents)
	for idx := 0; idx < m.maxAgents; idx++ {
		out[idx] = reward
	}
	return out
}

// Reset restarts the simulation and rebuilds the roster from the current
// departed list.
func (m *MADDPGEnv) Reset(seed int64) map[int][]float64 {
	m.k.Reset(seed)
	m.slots.Clear()
	return m.State()
}
