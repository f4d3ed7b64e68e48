package insight

import (
	"math"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

const (
	// MinCorrelationDays is the shortest aligned series worth correlating.
	MinCorrelationDays = 3
	// CorrelationThreshold is the |r| above which a correlation insight is emitted.
	CorrelationThreshold = 0.7
)

// Pearson returns the correlation coefficient of x and y. ok is false for
// mismatched lengths, too few points, or a series without variance.
func Pearson(x, y []float64) (float64, bool) {
	n := len(x)
	if n != len(y) || n < MinCorrelationDays {
		return 0, false
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var numerator, denomX, denomY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		numerator += dx * dy
		denomX += dx * dx
		denomY += dy * dy
	}
	if denomX == 0 || denomY == 0 {
		return 0, false
	}
	return numerator / math.Sqrt(denomX*denomY), true
}

// aligned returns the values of a and b when both series cover exactly the
// same days. Series of different lengths are never correlated.
func aligned(a, b []metric.Sample) ([]float64, []float64, bool) {
	if len(a) != len(b) {
		return nil, nil, false
	}
	x := make([]float64, len(a))
	y := make([]float64, len(b))
	for i := range a {
		if !metric.SameDay(a[i].Date, b[i].Date) {
			return nil, nil, false
		}
		x[i] = a[i].Value
		y[i] = b[i].Value
	}
	return x, y, true
}
