// Package scoring computes the normalized similarity and deal scores for a
// candidate relative to a target and its peer pool.
package scoring

// Neutral is the score contributed by a factor whose inputs are missing on
// either side. Absence of information neither rewards nor penalizes.
const Neutral = 0.5

// OrNeutral returns value when ok, Neutral otherwise.
func OrNeutral(value float64, ok bool) float64 {
	if !ok {
		return Neutral
	}
	return value
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// closeness maps a distance onto [0, 1] with span as the zero point.
func closeness(distance, span float64) float64 {
	if distance < 0 {
		distance = -distance
	}
	return 1 - min(1, distance/span)
}

// match scores a categorical pair: 1 equal, 0 different, neutral when either
// side is missing.
func match(target, candidate string) (float64, bool) {
	if target == "" || candidate == "" {
		return 0, false
	}
	if target == candidate {
		return 1, true
	}
	return 0, true
}
