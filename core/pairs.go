package core

import (
	"cmp"
	"math"
	"slices"
)

type PairDirection string

const (
	PositivePairs PairDirection = "positive"
	NegativePairs PairDirection = "negative"
	BothPairs     PairDirection = "both"
)

// DefaultPairThreshold is the absolute correlation a pair needs to be reported.
const DefaultPairThreshold = 0.7

type CorrelatedPair struct {
	Asset1      string  `json:"asset1"`
	Asset2      string  `json:"asset2"`
	Correlation float64 `json:"correlation"`
}

// FindCorrelatedPairs lists the pairs passing the threshold in the given
// direction, strongest first. Equal strengths keep matrix order. An unknown
// direction matches nothing.
func FindCorrelatedPairs(cm CorrelationMatrix, threshold float64, direction PairDirection) []CorrelatedPair {
	res := make([]CorrelatedPair, 0)

	n := cm.Len()
	for i := range n {
		for j := i + 1; j < n; j++ {
			corr := cm.At(i, j)
			if !matchesDirection(corr, threshold, direction) {
				continue
			}

			res = append(res, CorrelatedPair{
				Asset1:      cm.Symbols[i],
				Asset2:      cm.Symbols[j],
				Correlation: corr,
			})
		}
	}

	slices.SortStableFunc(res, func(a, b CorrelatedPair) int {
		return cmp.Compare(math.Abs(b.Correlation), math.Abs(a.Correlation))
	})

	return res
}

func matchesDirection(corr, threshold float64, direction PairDirection) bool {
	switch direction {
	case PositivePairs:
		return corr >= threshold
	case NegativePairs:
		return corr <= -threshold
	case BothPairs:
		return math.Abs(corr) >= threshold
	default:
		return false
	}
}

// TopPairs truncates a pair list to at most n entries.
func TopPairs(pairs []CorrelatedPair, n int) []CorrelatedPair {
	if n < 0 || len(pairs) <= n {
		return pairs
	}
	return pairs[:n]
}
