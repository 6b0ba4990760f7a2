package marl_test

import "github.com/mvelasco/platoon/internal/traffic"

// fakeKernel is a scriptable single-lane bridge for exact-value tests.
type fakeKernel struct {
	ids      []string
	rlIDs    []string
	departed []string
	speeds   map[string]float64
	headways map[string]float64
	leaders  map[string]string
	follows  map[string]string
	lengths  map[string]float64
	applied  map[string]float64
	observed map[string]bool
}

var _ traffic.Kernel = (*fakeKernel)(nil)

func newFakeKernel() *fakeKernel {
	return &fakeKernel{
		speeds:   make(map[string]float64),
		headways: make(map[string]float64),
		leaders:  make(map[string]string),
		follows:  make(map[string]string),
		lengths:  make(map[string]float64),
		applied:  make(map[string]float64),
		observed: make(map[string]bool),
	}
}

func (f *fakeKernel) IDs() []string         { return f.ids }
func (f *fakeKernel) RLIDs() []string       { return f.rlIDs }
func (f *fakeKernel) DepartedIDs() []string { return f.departed }

func (f *fakeKernel) Speed(id string) float64 {
	if s, ok := f.speeds[id]; ok {
		return s
	}
	return traffic.MissingSpeed
}

func (f *fakeKernel) Headway(id string) float64 {
	if h, ok := f.headways[id]; ok {
		return h
	}
	return traffic.MissingGap
}

func (f *fakeKernel) Leader(id string) string   { return f.leaders[id] }
func (f *fakeKernel) Follower(id string) string { return f.follows[id] }
func (f *fakeKernel) Length(id string) float64  { return f.lengths[id] }
func (f *fakeKernel) Lane(id string) int        { return 0 }
func (f *fakeKernel) NumLanes() int             { return 1 }

func (f *fakeKernel) LaneLeaders(id string) []string {
	return []string{f.leaders[id]}
}

func (f *fakeKernel) LaneFollowers(id string) []string {
	return []string{f.follows[id]}
}

func (f *fakeKernel) LaneHeadways(id string) []float64 {
	if f.leaders[id] == "" {
		return []float64{traffic.MissingGap}
	}
	return []float64{f.Headway(id)}
}

func (f *fakeKernel) LaneTailways(id string) []float64 {
	follow := f.follows[id]
	if follow == "" {
		return []float64{traffic.MissingGap}
	}
	return []float64{f.Headway(follow)}
}

func (f *fakeKernel) ApplyAcceleration(ids []string, accels []float64) {
	for i, id := range ids {
		f.applied[id] = accels[i]
	}
}

func (f *fakeKernel) SetObserved(id string) { f.observed[id] = true }
func (f *fakeKernel) Advance(dt float64)    {}
func (f *fakeKernel) Crashed() bool         { return false }
func (f *fakeKernel) Reset(seed int64)      { f.applied = make(map[string]float64) }

// addVehicle wires a vehicle into the fake with the given neighborhood.
func (f *fakeKernel) addVehicle(id string, rl bool, speed, headway float64, leader, follower string) {
	f.ids = append(f.ids, id)
	f.departed = append(f.departed, id)
	if rl {
		f.rlIDs = append(f.rlIDs, id)
	}
	f.speeds[id] = speed
	f.headways[id] = headway
	f.leaders[id] = leader
	f.follows[id] = follower
	f.lengths[id] = 5
}

// remove drops a vehicle from the simulation, as if it exited mid-episode.
func (f *fakeKernel) remove(id string) {
	f.ids = deleteID(f.ids, id)
	f.rlIDs = deleteID(f.rlIDs, id)
	delete(f.speeds, id)
	delete(f.headways, id)
}

func deleteID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
