package core

import (
	"testing"

	ex "corr.service/data/extensions"
)

// Ten days of a rising and a falling asset. Both move by a shrinking share of
// their price every day, so their log returns still trend the same way.
func TestPipelineMonotonicAssets(t *testing.T) {
	a := make([]float64, 10)
	b := make([]float64, 10)
	for i := range 10 {
		a[i] = 100 + float64(i)
		b[i] = 50 - float64(i)
	}
	prices := buildTable(t, []string{"A", "B"}, a, b)

	returns := CalculateReturns(prices, LogReturns)
	ex.AssertAreEqual(t, "returns rows", 9, returns.Returns.Len())

	stats := SummarizeStatistics(returns.Returns)
	ex.AssertAreEqual(t, "A positive days", 9, stats["A"].PositiveDays)
	ex.AssertAreEqual(t, "A negative days", 0, stats["A"].NegativeDays)
	ex.AssertAreEqual(t, "B positive days", 0, stats["B"].PositiveDays)
	ex.AssertAreEqual(t, "B negative days", 9, stats["B"].NegativeDays)

	cm := CalculateCorrelationMatrix(returns.Returns, Pearson).Matrix
	ab, _ := coefficient(cm, "A", "B")
	if ab < 0.99 {
		t.Fatalf("expected strongly positive correlation of log returns, got %.6f", ab)
	}

	ex.AssertAreEqual(t, "negative pairs", 0, len(FindCorrelatedPairs(cm, 0.7, NegativePairs)))
	ex.AssertAreEqual(t, "positive pairs", 1, len(FindCorrelatedPairs(cm, 0.7, PositivePairs)))
	ex.AssertInDelta(t, "diversification", 1-ab, CalculateDiversificationScore(cm), 1e-12)

	perf := ComparePerformance(prices)
	ex.AssertInDelta(t, "A performance", 9, perf["A"].TotalReturnPct, 1e-12)
	ex.AssertInDelta(t, "B performance", -18, perf["B"].TotalReturnPct, 1e-12)
}

// B's daily simple return is the exact opposite of A's.
func TestPipelineMirroredAssets(t *testing.T) {
	a := make([]float64, 10)
	b := make([]float64, 10)
	a[0], b[0] = 100, 50
	for i := 1; i < 10; i++ {
		a[i] = 100 + float64(i)
		r := (a[i] - a[i-1]) / a[i-1]
		b[i] = b[i-1] * (1 - r)
	}
	prices := buildTable(t, []string{"A", "B"}, a, b)

	returns := CalculateReturns(prices, SimpleReturns)
	cm := CalculateCorrelationMatrix(returns.Returns, Pearson).Matrix

	ab, _ := coefficient(cm, "A", "B")
	ex.AssertInDelta(t, "corr(A, B)", -1.0, ab, 1e-6)
	ex.AssertInDelta(t, "diversification", 0.0, CalculateDiversificationScore(cm), 1e-6)

	pairs := FindCorrelatedPairs(cm, 0.7, NegativePairs)
	ex.AssertAreEqual(t, "negative pairs", 1, len(pairs))
	ex.AssertAreEqual(t, "first asset", "A", pairs[0].Asset1)
	ex.AssertAreEqual(t, "second asset", "B", pairs[0].Asset2)
	ex.AssertInDelta(t, "pair correlation", -1.0, pairs[0].Correlation, 1e-6)

	withMarket := buildTable(t, []string{"A", "B", "SPY"}, a, b, a)
	betas := CalculateBetas(CalculateReturns(withMarket, SimpleReturns).Returns, "SPY")
	ex.AssertAreEqual(t, "SPY beta", 1.0, betas["SPY"])
	ex.AssertInDelta(t, "A beta", 1.0, betas["A"], 1e-9)
	ex.AssertInDelta(t, "B beta", -1.0, betas["B"], 1e-6)
}
