package analysis

import "math"

// Pearson returns the sample correlation coefficient for two equal
// length series. ok is false when either series has zero variance or
// there are no samples.
func Pearson(xs, ys []float64) (float64, bool) {
	n := len(xs)
	if n == 0 || n != len(ys) {
		return 0, false
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}

	r := cov / math.Sqrt(varX*varY)
	// Guard against float drift past the valid range.
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r, true
}

// fisherPValue is the two-sided p-value for observing correlation r in
// n samples under the null hypothesis of zero correlation, using the
// Fisher z transform. The normal approximation is adequate at the
// sample sizes the analyzer requires.
func fisherPValue(r float64, n int) float64 {
	if n <= 3 {
		return 1
	}
	if r >= 1 || r <= -1 {
		return 0
	}
	z := 0.5 * math.Log((1+r)/(1-r)) * math.Sqrt(float64(n-3))
	return math.Erfc(math.Abs(z) / math.Sqrt2)
}
