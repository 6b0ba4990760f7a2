// Package ring provides a single-lane circular road implementing the
// traffic kernel interface, used by the CLI and the test suite in place of
// an external microscopic simulator.
package ring

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/mvelasco/platoon/internal/controllers"
	"github.com/mvelasco/platoon/internal/traffic"
)

// Params describes a ring scenario.
type Params struct {
	Length      float64 // circumference in meters
	NumVehicles int     // total vehicle count, RL vehicles included
	NumRL       int     // vehicles driven by external actions
	VehLength   float64
	MaxSpeed    float64
	// Law builds the controller for each human-driven vehicle. Vehicles
	// whose law declines to command (passthrough) fall back to the
	// ring's native model.
	Law func() *controllers.Law
	// EntryInterval staggers vehicle entry: vehicle i enters at step
	// i*EntryInterval. Zero places the whole fleet at reset.
	EntryInterval int
	// PosJitter perturbs the evenly spaced initial positions, in meters.
	PosJitter float64
}

// DefaultParams is a 230 m ring with 22 vehicles, one of them RL driven,
// the classic stop-and-go wave setting.
func DefaultParams() Params {
	return Params{
		Length:      230,
		NumVehicles: 22,
		NumRL:       1,
		VehLength:   5,
		MaxSpeed:    30,
		Law:         func() *controllers.Law { return controllers.NewIDM(controllers.DefaultIDMParams()) },
	}
}

type vehicle struct {
	id        string
	pos       float64
	speed     float64
	length    float64
	law       *controllers.Law
	rl        bool
	entered   bool
	entryStep int
}

// Ring is a synchronous, single-threaded kernel. All state is touched only
// within one tick's Advance and the query calls between ticks.
type Ring struct {
	p        Params
	vehicles []*vehicle // creation order
	ordered  []*vehicle // active vehicles by ascending position
	byID     map[string]*vehicle
	departed []string
	observed map[string]struct{}
	queued   map[string]float64
	native   *controllers.Law
	step     int
	crashed  bool
	rng      *rand.Rand
}

var _ traffic.Kernel = (*Ring)(nil)

// New builds a ring and resets it with the given seed.
func New(p Params, seed int64) *Ring {
	r := &Ring{p: p}
	r.Reset(seed)
	return r
}

// Reset rebuilds the initial fleet: evenly spaced, at rest, with RL
// vehicles interleaved at the end of the id range.
func (r *Ring) Reset(seed int64) {
	r.rng = rand.New(rand.NewSource(seed))
	r.vehicles = r.vehicles[:0]
	r.byID = make(map[string]*vehicle, r.p.NumVehicles)
	r.departed = r.departed[:0]
	r.observed = make(map[string]struct{})
	r.queued = make(map[string]float64)
	r.native = controllers.NewIDM(controllers.DefaultIDMParams())
	r.step = 0
	r.crashed = false

	spacing := r.p.Length / float64(r.p.NumVehicles)
	numHuman := r.p.NumVehicles - r.p.NumRL
	for i := 0; i < r.p.NumVehicles; i++ {
		v := &vehicle{
			pos:    r.wrap(float64(i)*spacing + r.rng.Float64()*r.p.PosJitter),
			length: r.p.VehLength,
		}
		if i < numHuman {
			v.id = fmt.Sprintf("human_%d", i)
			if r.p.Law != nil {
				v.law = r.p.Law()
			}
		} else {
			v.id = fmt.Sprintf("rl_%d", i-numHuman)
			v.rl = true
		}
		if r.p.EntryInterval > 0 {
			v.entryStep = i * r.p.EntryInterval
		}
		r.vehicles = append(r.vehicles, v)
		r.byID[v.id] = v
	}

	r.ordered = r.ordered[:0]
	r.admit()
}

// admit moves pending vehicles whose entry step has arrived onto the road.
// Vehicles placed at reset keep their assigned spacing; later entrants slot
// into the midpoint of the widest gap.
func (r *Ring) admit() {
	changed := false
	for _, v := range r.vehicles {
		if v.entered || v.entryStep > r.step {
			continue
		}
		if v.entryStep > 0 && len(r.ordered) > 0 {
			// largestGapMidpoint walks ordered as ascending.
			sort.Slice(r.ordered, func(i, j int) bool {
				return r.ordered[i].pos < r.ordered[j].pos
			})
			v.pos = r.largestGapMidpoint()
		}
		v.entered = true
		r.ordered = append(r.ordered, v)
		r.departed = append(r.departed, v.id)
		changed = true
	}
	if changed {
		sort.Slice(r.ordered, func(i, j int) bool {
			return r.ordered[i].pos < r.ordered[j].pos
		})
	}
}

func (r *Ring) largestGapMidpoint() float64 {
	best, bestAt := 0.0, 0.0
	for i, v := range r.ordered {
		next := r.ordered[(i+1)%len(r.ordered)]
		gap := r.wrap(next.pos - v.pos)
		if len(r.ordered) == 1 {
			gap = r.p.Length
		}
		if gap > best {
			best = gap
			bestAt = r.wrap(v.pos + gap/2)
		}
	}
	return bestAt
}

func (r *Ring) wrap(pos float64) float64 {
	pos = math.Mod(pos, r.p.Length)
	if pos < 0 {
		pos += r.p.Length
	}
	return pos
}

// Advance computes one tick: law accelerations for human vehicles, queued
// commands for RL vehicles, then a synchronous Euler update.
func (r *Ring) Advance(dt float64) {
	r.step++
	r.admit()

	accels := make(map[string]float64, len(r.ordered))
	for _, v := range r.ordered {
		if v.rl {
			accels[v.id] = r.queued[v.id]
			continue
		}
		st := traffic.Snap(r, v.id)
		if v.law != nil {
			if a, ok := v.law.GetAccel(st, dt); ok {
				accels[v.id] = a
				continue
			}
		}
		// native car-following model
		a, _ := r.native.GetAccel(st, dt)
		accels[v.id] = a
	}

	for _, v := range r.ordered {
		v.speed = math.Max(0, math.Min(r.p.MaxSpeed, v.speed+accels[v.id]*dt))
		v.pos = r.wrap(v.pos + v.speed*dt)
	}
	sort.Slice(r.ordered, func(i, j int) bool {
		return r.ordered[i].pos < r.ordered[j].pos
	})

	for _, v := range r.ordered {
		if lead := r.Leader(v.id); lead != "" && r.Headway(v.id) < 0 {
			r.crashed = true
		}
	}

	r.queued = make(map[string]float64)
	r.observed = make(map[string]struct{})
}

// Crashed reports whether any headway went negative on the last tick.
func (r *Ring) Crashed() bool { return r.crashed }

func (r *Ring) IDs() []string {
	ids := make([]string, len(r.ordered))
	for i, v := range r.ordered {
		ids[i] = v.id
	}
	return ids
}

func (r *Ring) RLIDs() []string {
	var ids []string
	for _, v := range r.ordered {
		if v.rl {
			ids = append(ids, v.id)
		}
	}
	return ids
}

func (r *Ring) DepartedIDs() []string {
	out := make([]string, len(r.departed))
	copy(out, r.departed)
	return out
}

func (r *Ring) Speed(id string) float64 {
	v, ok := r.byID[id]
	if !ok || !v.entered {
		return traffic.MissingSpeed
	}
	return v.speed
}

func (r *Ring) Length(id string) float64 {
	v, ok := r.byID[id]
	if !ok {
		return 0
	}
	return v.length
}

func (r *Ring) Lane(id string) int { return 0 }

func (r *Ring) NumLanes() int { return 1 }

func (r *Ring) position(id string) (int, *vehicle) {
	for i, v := range r.ordered {
		if v.id == id {
			return i, v
		}
	}
	return -1, nil
}

func (r *Ring) Leader(id string) string {
	i, v := r.position(id)
	if v == nil || len(r.ordered) < 2 {
		return ""
	}
	return r.ordered[(i+1)%len(r.ordered)].id
}

func (r *Ring) Follower(id string) string {
	i, v := r.position(id)
	if v == nil || len(r.ordered) < 2 {
		return ""
	}
	return r.ordered[(i-1+len(r.ordered))%len(r.ordered)].id
}

// Headway is the bumper-to-bumper gap to the leader.
func (r *Ring) Headway(id string) float64 {
	i, v := r.position(id)
	if v == nil {
		return traffic.MissingGap
	}
	lead := r.Leader(id)
	if lead == "" {
		return r.p.Length - v.length
	}
	lv := r.ordered[(i+1)%len(r.ordered)]
	gap := r.wrap(lv.pos - v.pos)
	if gap == 0 && lv != v {
		gap = r.p.Length
	}
	return gap - lv.length
}

func (r *Ring) LaneLeaders(id string) []string {
	return []string{r.Leader(id)}
}

func (r *Ring) LaneFollowers(id string) []string {
	return []string{r.Follower(id)}
}

func (r *Ring) LaneHeadways(id string) []float64 {
	if r.Leader(id) == "" {
		return []float64{traffic.MissingGap}
	}
	return []float64{r.Headway(id)}
}

func (r *Ring) LaneTailways(id string) []float64 {
	follow := r.Follower(id)
	if follow == "" {
		return []float64{traffic.MissingGap}
	}
	return []float64{r.Headway(follow)}
}

func (r *Ring) ApplyAcceleration(ids []string, accels []float64) {
	for i, id := range ids {
		if i >= len(accels) {
			break
		}
		if _, ok := r.byID[id]; ok {
			r.queued[id] = accels[i]
		}
	}
}

func (r *Ring) SetObserved(id string) {
	r.observed[id] = struct{}{}
}

// Observed reports whether id was marked this tick. Renderer hook only.
func (r *Ring) Observed(id string) bool {
	_, ok := r.observed[id]
	return ok
}

// Positions returns id/position pairs for rendering.
func (r *Ring) Positions() map[string]float64 {
	out := make(map[string]float64, len(r.ordered))
	for _, v := range r.ordered {
		out[v.id] = v.pos
	}
	return out
}

// RoadLength returns the ring circumference.
func (r *Ring) RoadLength() float64 { return r.p.Length }

// Step returns the current tick count since reset.
func (r *Ring) Step() int { return r.step }
