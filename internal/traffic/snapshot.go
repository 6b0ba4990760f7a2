package traffic

// Neighbor is an adjacent vehicle that actually exists. Controllers receive
// neighbors as optional references so that "no car ahead" is a nil check
// rather than an empty-string comparison.
type Neighbor struct {
	ID    string
	Speed float64
	// Gap is the bumper-to-bumper distance between the neighbor and the
	// subject vehicle.
	Gap float64
}

// Snapshot is a read-only view of one vehicle's neighborhood, taken fresh
// from the simulator every tick. It is never retained across ticks.
type Snapshot struct {
	ID       string
	Speed    float64
	Length   float64
	Headway  float64
	Leader   *Neighbor
	Follower *Neighbor
}

// Snap builds a snapshot for id from the current simulator state.
func Snap(r Reader, id string) Snapshot {
	st := Snapshot{
		ID:      id,
		Speed:   r.Speed(id),
		Length:  r.Length(id),
		Headway: r.Headway(id),
	}

	if lead := r.Leader(id); lead != "" {
		st.Leader = &Neighbor{
			ID:    lead,
			Speed: r.Speed(lead),
			Gap:   st.Headway,
		}
	}
	if follow := r.Follower(id); follow != "" {
		st.Follower = &Neighbor{
			ID:    follow,
			Speed: r.Speed(follow),
			Gap:   r.Headway(follow),
		}
	}
	return st
}
