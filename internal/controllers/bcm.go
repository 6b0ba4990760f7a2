package controllers

import "github.com/mvelasco/platoon/internal/traffic"

// BCMParams tunes the bilateral car-following model, which weighs the gap
// and speed difference to the follower as much as to the leader.
type BCMParams struct {
	KD   float64 // gain on leader/follower gap difference
	KV   float64 // gain on velocity differences
	KC   float64 // gain on desired velocity error
	VDes float64 // desired velocity
}

func DefaultBCMParams() BCMParams {
	return BCMParams{KD: 1, KV: 1, KC: 1, VDes: 8}
}

// NewBCM builds a bilateral car-following controller.
func NewBCM(p BCMParams) *Law {
	return &Law{kind: BCM, bcm: p, bounds: DefaultBounds()}
}

func (l *Law) bcmAccel(st traffic.Snapshot) float64 {
	if st.Leader == nil {
		// open road ahead: no bilateral term to compute
		return l.bounds.MaxAccel
	}

	p := l.bcm

	// with no follower the rearward terms cancel out
	footway := st.Headway
	trailVel := st.Speed
	if st.Follower != nil {
		footway = st.Follower.Gap
		trailVel = st.Follower.Speed
	}

	return p.KD*(st.Headway-footway) +
		p.KV*((st.Leader.Speed-st.Speed)-(st.Speed-trailVel)) +
		p.KC*(p.VDes-st.Speed)
}
