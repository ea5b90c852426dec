// Package ear computes the Eye Aspect Ratio from six eye landmarks.
package ear

import "math"

// Point is a 2-D image coordinate in pixels.
type Point struct {
	X, Y float64
}

// EyePoints holds the six landmarks of one eye in anatomical order:
// outer corner, two upper-lid points, inner corner, two lower-lid points.
type EyePoints [6]Point

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Compute returns (|p2-p6| + |p3-p5|) / (2|p1-p4|).
// A zero horizontal span yields 0.
func Compute(p EyePoints) float64 {
	horizontal := distance(p[0], p[3])
	if horizontal == 0 {
		return 0
	}

	vertical := distance(p[1], p[5]) + distance(p[2], p[4])

	return vertical / (2 * horizontal)
}

// Mean averages the ratio of both eyes.
func Mean(left, right EyePoints) float64 {
	return (Compute(left) + Compute(right)) / 2
}
