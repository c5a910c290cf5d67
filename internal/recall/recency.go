package recall

import "time"

// RecencyMultiplier implements the §4.2.4 piecewise boost curve, applied
// multiplicatively to a raw lexical or fused score.
func RecencyMultiplier(updatedAt time.Time, now time.Time) float64 {
	h := now.Sub(updatedAt).Hours()
	switch {
	case h < 0:
		return 1.5
	case h < 1:
		return 1.5 - 0.2*h
	case h < 24:
		return 1.3 - 0.2*(h-1)/23
	case h < 168:
		return 1.1 - 0.1*(h-24)/144
	default:
		return 1.0
	}
}
