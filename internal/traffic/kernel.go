package traffic

// MissingSpeed is the sentinel the simulator bridge returns when asked for
// the speed of a vehicle that does not exist (e.g. the leader of the first
// vehicle on an open road).
const MissingSpeed = -1001.0

// MissingGap is the sentinel returned for headways and tailways when no
// neighbor exists in the queried lane.
const MissingGap = -1001.0

// Reader is the query half of the simulator bridge. All getters answer from
// the simulator's current tick; identifiers are simulator-assigned and
// transient. Missing neighbors are signaled with an empty identifier or the
// sentinel constants, never with an error.
type Reader interface {
	// IDs returns every vehicle currently in the simulation.
	IDs() []string
	// RLIDs returns the subset of vehicles under RL control.
	RLIDs() []string
	// DepartedIDs returns the vehicles that have entered the simulation
	// since the last reset, in entry order.
	DepartedIDs() []string

	Speed(id string) float64
	Headway(id string) float64
	Leader(id string) string
	Follower(id string) string
	Length(id string) float64
	Lane(id string) int
	NumLanes() int

	// Per-lane neighbor views, one entry per lane the simulator knows
	// about. Lanes without a neighbor carry the sentinel values.
	LaneLeaders(id string) []string
	LaneFollowers(id string) []string
	LaneHeadways(id string) []float64
	LaneTailways(id string) []float64
}

// Commander is the command half of the simulator bridge.
type Commander interface {
	// ApplyAcceleration commands accelerations for a batch of vehicles.
	// ids and accels must be matched pairwise.
	ApplyAcceleration(ids []string, accels []float64)
	// SetObserved marks a vehicle for the external renderer. No effect
	// on dynamics.
	SetObserved(id string)
}

// Kernel is the full bridge: queries, commands, and the tick clock.
type Kernel interface {
	Reader
	Commander

	// Advance moves the simulation forward one tick of dt seconds,
	// consuming any accelerations queued through ApplyAcceleration.
	Advance(dt float64)
	// Crashed reports whether a collision occurred on the last tick.
	Crashed() bool
	// Reset returns the simulation to its initial state.
	Reset(seed int64)
}
