package controllers

import "github.com/mvelasco/platoon/internal/traffic"

// LACCParams tunes the linear adaptive cruise controller. The commanded
// acceleration follows the linear control input through a first-order lag
// with time constant Tau.
type LACCParams struct {
	K1  float64 // gain on spacing error
	K2  float64 // gain on speed difference
	H   float64 // desired time gap
	Tau float64 // actuator lag time constant
}

func DefaultLACCParams() LACCParams {
	return LACCParams{K1: 0.7, K2: 0.8, H: 1, Tau: 0.1}
}

// NewLACC builds a linear adaptive cruise controller. The lag filter starts
// at zero acceleration.
func NewLACC(p LACCParams) *Law {
	return &Law{kind: LACC, lacc: p, bounds: DefaultBounds()}
}

func (l *Law) laccAccel(st traffic.Snapshot, dt float64) float64 {
	p := l.lacc

	leadVel := st.Speed
	if st.Leader != nil {
		leadVel = st.Leader.Speed
	}

	ex := st.Headway - st.Length - p.H*st.Speed
	ev := leadVel - st.Speed
	u := p.K1*ex + p.K2*ev

	aDot := (u - l.lagAccel) / p.Tau
	l.lagAccel += aDot * dt

	return l.lagAccel
}
