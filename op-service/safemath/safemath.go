package safemath

import "golang.org/x/exp/constraints"

// SaturatingAdd returns a+b, capped at the max value of V.
// Timeouts and expiry windows come from configuration and may be set to the max value.
func SaturatingAdd[V constraints.Unsigned](a, b V) V {
	out := a + b
	if out < a {
		return ^V(0)
	}
	return out
}
