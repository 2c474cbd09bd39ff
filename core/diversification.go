package core

import "math"

// CalculateDiversificationScore is 1 minus the mean absolute correlation over
// each unordered pair. A matrix of one asset or none scores 0.
func CalculateDiversificationScore(cm CorrelationMatrix) float64 {
	n := cm.Len()
	if n <= 1 {
		return 0
	}

	var sum float64
	var count int
	for i := range n {
		for j := i + 1; j < n; j++ {
			sum += math.Abs(cm.At(i, j))
			count++
		}
	}

	return 1 - sum/float64(count)
}
