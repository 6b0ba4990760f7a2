package controllers

import (
	"math"

	"github.com/mvelasco/platoon/internal/traffic"
)

// OVMParams tunes the optimal velocity model. The desired-speed function
// V(h) is zero up to HSt, ramps with a half-cosine between HSt and HGo, and
// saturates at VMax beyond HGo; it is continuous at both breakpoints.
type OVMParams struct {
	Alpha float64 // gain on desired speed error
	Beta  float64 // gain on speed difference to leader
	HSt   float64 // stopping headway
	HGo   float64 // full-speed headway
	VMax  float64 // maximum velocity
}

func DefaultOVMParams() OVMParams {
	return OVMParams{Alpha: 1, Beta: 1, HSt: 2, HGo: 15, VMax: 30}
}

// NewOVM builds an optimal velocity model controller.
func NewOVM(p OVMParams) *Law {
	return &Law{kind: OVM, ovm: p, bounds: DefaultBounds()}
}

func (l *Law) ovmAccel(st traffic.Snapshot) float64 {
	if st.Leader == nil {
		return l.bounds.MaxAccel
	}

	p := l.ovm
	h := st.Headway
	hDot := st.Leader.Speed - st.Speed

	var vH float64
	switch {
	case h <= p.HSt:
		vH = 0
	case h < p.HGo:
		vH = p.VMax / 2 * (1 - math.Cos(math.Pi*(h-p.HSt)/(p.HGo-p.HSt)))
	default:
		vH = p.VMax
	}

	return p.Alpha*(vH-st.Speed) + p.Beta*hDot
}

// LinearOVMParams tunes the piecewise-linear variant of the optimal
// velocity model.
type LinearOVMParams struct {
	VMax       float64 // maximum velocity
	Adaptation float64 // speed adaptation time constant
	HSt        float64 // stopping headway
}

func DefaultLinearOVMParams() LinearOVMParams {
	return LinearOVMParams{VMax: 30, Adaptation: 0.65, HSt: 5}
}

// NewLinearOVM builds a linear optimal velocity model controller.
func NewLinearOVM(p LinearOVMParams) *Law {
	return &Law{kind: LinearOVM, linOVM: p, bounds: DefaultBounds()}
}

// linearOVMSlope is the average ramp slope reported by Nakayama et al.
const linearOVMSlope = 1.689

func (l *Law) linearOVMAccel(st traffic.Snapshot) float64 {
	p := l.linOVM
	h := st.Headway

	var vH float64
	switch {
	case h < p.HSt:
		vH = 0
	case h <= p.HSt+p.VMax/linearOVMSlope:
		vH = linearOVMSlope * (h - p.HSt)
	default:
		vH = p.VMax
	}

	return (vH - st.Speed) / p.Adaptation
}
