package controllers

import (
	"math"

	"github.com/mvelasco/platoon/internal/traffic"
)

// minHeadway floors numerically degenerate gaps so the (s*/h)^2 term never
// divides by zero.
const minHeadway = 1e-3

// IDMParams tunes the intelligent driver model of Treiber, Hennecke and
// Helbing (Phys. Rev. E 62, 1805).
type IDMParams struct {
	V0    float64 // desired velocity
	T     float64 // safe time headway
	A     float64 // maximum acceleration
	B     float64 // comfortable deceleration
	Delta float64 // acceleration exponent
	S0    float64 // linear jam distance
}

func DefaultIDMParams() IDMParams {
	return IDMParams{V0: 30, T: 1, A: 1, B: 1.5, Delta: 4, S0: 2}
}

// NewIDM builds an intelligent driver model controller.
func NewIDM(p IDMParams) *Law {
	return &Law{kind: IDM, idm: p, bounds: DefaultBounds()}
}

func (l *Law) idmAccel(st traffic.Snapshot) float64 {
	p := l.idm
	v := st.Speed

	h := st.Headway
	if math.Abs(h) < minHeadway {
		h = minHeadway
	}

	// desired minimum gap; zero on an open road
	sStar := 0.0
	if st.Leader != nil {
		sStar = p.S0 + math.Max(0, v*p.T+v*(v-st.Leader.Speed)/(2*math.Sqrt(p.A*p.B)))
	}

	return p.A * (1 - math.Pow(v/p.V0, p.Delta) - math.Pow(sStar/h, 2))
}
