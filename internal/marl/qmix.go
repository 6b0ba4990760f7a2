package marl

import (
	"gonum.org/v1/gonum/floats"

	"github.com/mvelasco/platoon/internal/metrics"
	"github.com/mvelasco/platoon/internal/roster"
	"github.com/mvelasco/platoon/internal/traffic"
)

// MaskedObs is one roster slot's observation plus its action mask.
type MaskedObs struct {
	Obs  []float64
	Mask []float64
}

// QMIXConfig sizes the discrete fixed-roster adapter.
type QMIXConfig struct {
	MaxAgents  int `yaml:"max_agents"`
	NumActions int `yaml:"num_actions"`
}

func DefaultQMIXConfig() QMIXConfig {
	return QMIXConfig{MaxAgents: 10, NumActions: 5}
}

// QMIXEnv presents a constant roster of agent slots with a discrete action
// set. Action 0 is the no-op reserved for padding slots; actions 1..N map
// onto a linear acceleration grid.
type QMIXEnv struct {
	*Env
	qcfg  QMIXConfig
	grid  []float64
	slots *roster.Table
}

func NewQMIX(k traffic.Kernel, cfg Config, qcfg QMIXConfig) *QMIXEnv {
	grid := make([]float64, qcfg.NumActions)
	floats.Span(grid, -cfg.MaxDecel, cfg.MaxAccel)
	return &QMIXEnv{
		Env:   New(k, cfg),
		qcfg:  qcfg,
		grid:  grid,
		slots: roster.New(qcfg.MaxAgents),
	}
}

func (q *QMIXEnv) ActionSpace() Space {
	return Discrete{N: q.qcfg.NumActions + 1}
}

func (q *QMIXEnv) ObservationSpace() Space {
	return MaskedBox{
		Obs:  q.Env.ObservationSpace().(Box),
		Mask: Box{Low: 0, High: 1, Shape: q.qcfg.NumActions + 1},
	}
}

// ActionMask encodes which discrete actions a slot may take: an active
// agent may do anything but the no-op, a padding slot only the no-op.
func (q *QMIXEnv) ActionMask(valid bool) []float64 {
	mask := make([]float64, q.qcfg.NumActions+1)
	if valid {
		for i := 1; i < len(mask); i++ {
			mask[i] = 1
		}
	} else {
		mask[0] = 1
	}
	return mask
}

// ApplyActions converts slot-keyed discrete actions into accelerations for
// the vehicles holding those slots. Action 0 applies nothing.
func (q *QMIXEnv) ApplyActions(actions map[int]int) {
	if actions == nil {
		return
	}
	var ids []string
	var accels []float64
	for _, id := range q.k.RLIDs() {
		idx, ok := q.slots.Index(id)
		if !ok {
			continue
		}
		if action := actions[idx]; action > 0 && action <= len(q.grid) {
			ids = append(ids, id)
			accels = append(accels, q.grid[action-1])
		}
	}
	q.k.ApplyAcceleration(ids, accels)
}

// State returns an observation for every slot: real observations for
// active agents, the zero template plus an invalid mask for the rest.
func (q *QMIXEnv) State() map[int]MaskedObs {
	syncRoster(q.slots, q.k)

	obsSize := q.Env.ObservationSpace().Size()
	out := make(map[int]MaskedObs, q.qcfg.MaxAgents)
	for idx := 0; idx < q.qcfg.MaxAgents; idx++ {
		out[idx] = MaskedObs{
			Obs:  make([]float64, obsSize),
			Mask: q.ActionMask(false),
		}
	}
	for id, obs := range q.Env.State() {
		idx, ok := q.slots.Index(id)
		if !ok {
			continue
		}
		out[idx] = MaskedObs{Obs: obs, Mask: q.ActionMask(true)}
	}
	return out
}

// Reward broadcasts a single fleet-level scalar to every slot, as the
// shared-critic training algorithm requires.
func (q *QMIXEnv) Reward(actions map[int]int, fail bool) map[int]float64 {
	reward := metrics.MeanRLSpeed(q.k, q.k.RLIDs()) / (20 * float64(q.cfg.Horizon))
	out := make(map[int]float64, q.qcfg.MaxAgents)
	for idx := 0; idx < q.qcfg.MaxAgents; idx++ {
		out[idx] = reward
	}
	return out
}

// Reset restarts the simulation, clears the roster, and reassigns slots
// through the same allocation path the per-step sync uses.
func (q *QMIXEnv) Reset(seed int64) map[int]MaskedObs {
	q.k.Reset(seed)
	q.slots.Clear()
	return q.State()
}

// syncRoster allocates slots for newly departed RL vehicles and releases
// slots whose vehicles have left the simulation.
func syncRoster(slots *roster.Table, k traffic.Reader) {
	rl := make(map[string]struct{})
	for _, id := range k.RLIDs() {
		rl[id] = struct{}{}
	}

	for _, id := range k.DepartedIDs() {
		if _, ok := rl[id]; ok {
			slots.Acquire(id)
		}
	}

	present := make(map[string]struct{})
	for _, id := range k.IDs() {
		present[id] = struct{}{}
	}
	for idx := 0; idx < slots.Cap(); idx++ {
		id, ok := slots.ID(idx)
		if !ok {
			continue
		}
		if _, stillHere := present[id]; !stillHere {
			slots.Release(id)
		}
	}
}
