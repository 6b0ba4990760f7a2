package marl

// Space describes the shape and bounds of an observation or action, in the
// style of gym space declarations.
type Space interface {
	Size() int
}

// Box is a bounded continuous vector space.
type Box struct {
	Low   float64
	High  float64
	Shape int
}

func (b Box) Size() int { return b.Shape }

// Discrete is the finite action set {0, ..., N-1}.
type Discrete struct {
	N int
}

func (d Discrete) Size() int { return d.N }

// MaskedBox pairs a continuous observation with a binary action mask, the
// dict space used by roster-based training algorithms.
type MaskedBox struct {
	Obs  Box
	Mask Box
}

func (m MaskedBox) Size() int { return m.Obs.Shape + m.Mask.Shape }
