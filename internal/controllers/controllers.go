package controllers

import (
	"math"
	"math/rand"

	"github.com/mvelasco/platoon/internal/traffic"
)

// Kind enumerates the closed set of car-following laws.
type Kind int

const (
	Passthrough Kind = iota
	BCM
	LACC
	OVM
	LinearOVM
	IDM
)

func (k Kind) String() string {
	switch k {
	case Passthrough:
		return "passthrough"
	case BCM:
		return "bcm"
	case LACC:
		return "lacc"
	case OVM:
		return "ovm"
	case LinearOVM:
		return "linear_ovm"
	case IDM:
		return "idm"
	default:
		return "unknown"
	}
}

// Bounds limits the commanded acceleration. Both fields are magnitudes.
type Bounds struct {
	MaxAccel float64
	MaxDecel float64
}

// DefaultBounds mirrors the usual sumo car-following limits.
func DefaultBounds() Bounds {
	return Bounds{MaxAccel: 2.6, MaxDecel: 4.5}
}

// Law is a per-vehicle acceleration controller. One Law is constructed per
// vehicle at scenario setup and lives for the vehicle's lifetime; the only
// mutable state is the LACC lag filter and the noise source, both touched
// exclusively through GetAccel.
type Law struct {
	kind   Kind
	bcm    BCMParams
	lacc   LACCParams
	ovm    OVMParams
	linOVM LinearOVMParams
	idm    IDMParams

	// first-order lag filter state, LACC only
	lagAccel float64

	noise  float64
	rng    *rand.Rand
	bounds Bounds
}

// SetBounds replaces the acceleration limits.
func (l *Law) SetBounds(b Bounds) { l.bounds = b }

// SetNoise enables a gaussian perturbation with the given standard
// deviation on every returned acceleration.
func (l *Law) SetNoise(std float64, seed int64) {
	l.noise = std
	l.rng = rand.New(rand.NewSource(seed))
}

// Kind reports which law this is.
func (l *Law) Kind() Kind { return l.kind }

// GetAccel evaluates the law against a fresh state snapshot and returns the
// commanded acceleration. The second return is false for the passthrough
// law, which leaves the vehicle to the simulator's native model. dt is the
// simulation timestep; the LACC lag filter integrates over it, so GetAccel
// must be called exactly once per tick.
//
// Missing neighbors and degenerate headways never produce an error: each
// law substitutes a safe value so the tick loop stays exception-free.
func (l *Law) GetAccel(st traffic.Snapshot, dt float64) (float64, bool) {
	var accel float64

	switch l.kind {
	case Passthrough:
		return 0, false
	case BCM:
		accel = l.bcmAccel(st)
	case LACC:
		accel = l.laccAccel(st, dt)
	case OVM:
		accel = l.ovmAccel(st)
	case LinearOVM:
		accel = l.linearOVMAccel(st)
	case IDM:
		accel = l.idmAccel(st)
	}

	if l.noise > 0 && l.rng != nil {
		accel += l.rng.NormFloat64() * l.noise
	}
	return l.clamp(accel), true
}

func (l *Law) clamp(accel float64) float64 {
	return math.Max(-l.bounds.MaxDecel, math.Min(l.bounds.MaxAccel, accel))
}
