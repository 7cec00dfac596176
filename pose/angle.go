package pose

import (
	"errors"
	"math"
)

// ErrDegenerateGeometry is returned when an angle has a zero-length ray.
var ErrDegenerateGeometry = errors.New("degenerate geometry")

// minRayLength is the shortest ray treated as non-degenerate.
const minRayLength = 1e-12

// AngleAt returns the interior angle in degrees at vertex b between rays b→a and b→c.
// The result is in [0, 180].
func AngleAt(a, b, c Point2D) (float64, error) {
	ba := a.Sub(b)
	bc := c.Sub(b)

	la, lc := ba.Len(), bc.Len()
	if !usableRay(la) || !usableRay(lc) {
		return 0, ErrDegenerateGeometry
	}

	// unit rays keep the dot product finite for any finite coordinates
	ua := Point2D{X: ba.X / la, Y: ba.Y / la}
	uc := Point2D{X: bc.X / lc, Y: bc.Y / lc}
	cos := ua.Dot(uc)
	if math.IsNaN(cos) {
		return 0, ErrDegenerateGeometry
	}
	// rounding can push |cos| slightly past 1
	cos = math.Max(-1, math.Min(1, cos))

	return normalizeReflex(math.Acos(cos) * 180 / math.Pi), nil
}

// AngleAtAtan2 computes the same angle as AngleAt from the difference of the two ray headings.
func AngleAtAtan2(a, b, c Point2D) (float64, error) {
	ba := a.Sub(b)
	bc := c.Sub(b)
	if !usableRay(ba.Len()) || !usableRay(bc.Len()) {
		return 0, ErrDegenerateGeometry
	}

	rad := math.Abs(math.Atan2(bc.Y, bc.X) - math.Atan2(ba.Y, ba.X))
	return normalizeReflex(rad * 180 / math.Pi), nil
}

// usableRay reports whether a ray of length l is long enough and finite.
func usableRay(l float64) bool {
	return l >= minRayLength && !math.IsInf(l, 0) && !math.IsNaN(l)
}

func normalizeReflex(deg float64) float64 {
	if deg > 180 {
		return 360 - deg
	}
	return deg
}
