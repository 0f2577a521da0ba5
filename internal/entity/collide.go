package entity

import "math"

// Distance returns the euclidean distance between two points.
func Distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

// CirclesOverlap reports whether two circles collide. Touching circles
// (distance exactly equal to the sum of radii) do not collide.
func CirclesOverlap(x1, y1, r1, x2, y2, r2 float64) bool {
	return Distance(x1, y1, x2, y2) < r1+r2
}

// wrapWithMargin wraps v toroidally over [0, size], letting an entity of the
// given radius leave the screen completely before it re-enters on the other side.
func wrapWithMargin(v, size, margin float64) float64 {
	if v > size+margin {
		return -margin
	}
	if v < -margin {
		return size + margin
	}
	return v
}
