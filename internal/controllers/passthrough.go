package controllers

// NewPassthrough builds a controller that issues no command, leaving the
// vehicle's acceleration to the simulator's native car-following model.
// Noise and bound clamping do not apply here; the simulator owns both.
func NewPassthrough() *Law {
	return &Law{kind: Passthrough, bounds: DefaultBounds()}
}
