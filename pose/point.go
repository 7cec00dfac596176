// Package pose holds the per-frame body landmark model and the joint-angle geometry
// used by the exercise analytics.
package pose

import "math"

// Point2D is a planar landmark position, either normalized to the image (0..1)
// or in pixels.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns the vector p - q.
func (p Point2D) Sub(q Point2D) Point2D {
	return Point2D{X: p.X - q.X, Y: p.Y - q.Y}
}

// Dot returns the dot product of p and q taken as vectors.
func (p Point2D) Dot(q Point2D) float64 {
	return p.X*q.X + p.Y*q.Y
}

// Len returns the euclidean length of p taken as a vector.
func (p Point2D) Len() float64 {
	return math.Hypot(p.X, p.Y)
}

// Scale maps a normalized point into pixel space for a w x h image.
func (p Point2D) Scale(w, h float64) Point2D {
	return Point2D{X: p.X * w, Y: p.Y * h}
}

// Distance returns the euclidean distance between p and q.
func Distance(p, q Point2D) float64 {
	return p.Sub(q).Len()
}
