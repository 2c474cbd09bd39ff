package core

import (
	"math"
	"testing"

	ex "corr.service/data/extensions"
	dm "corr.service/data/models"
)

func TestLogReturns(t *testing.T) {
	prices := buildTable(t, []string{"A", "B"},
		[]float64{100, 110, 121},
		[]float64{50, 25, 50},
	)
	res := CalculateReturns(prices, LogReturns)

	ex.AssertAreEqual(t, "method", LogReturns, res.Method)
	ex.AssertAreEqual(t, "warnings", 0, len(res.Warnings))
	ex.AssertAreEqual(t, "rows", 2, res.Returns.Len())
	ex.AssertAreEqual(t, "first date", prices.Dates[1], res.Returns.Dates[0])

	a, _ := res.Returns.Column("A")
	b, _ := res.Returns.Column("B")
	ex.AssertInDelta(t, "A day 1", math.Log(1.1), a.Values[0].Float64, 1e-12)
	ex.AssertInDelta(t, "A day 2", math.Log(1.1), a.Values[1].Float64, 1e-12)
	ex.AssertInDelta(t, "B day 1", math.Log(0.5), b.Values[0].Float64, 1e-12)
	ex.AssertInDelta(t, "B day 2", math.Log(2), b.Values[1].Float64, 1e-12)
}

func TestSimpleReturns(t *testing.T) {
	prices := buildTable(t, []string{"A"}, []float64{100, 110, 99})
	res := CalculateReturns(prices, SimpleReturns)

	a, _ := res.Returns.Column("A")
	ex.AssertInDelta(t, "day 1", 0.1, a.Values[0].Float64, 1e-12)
	ex.AssertInDelta(t, "day 2", -0.1, a.Values[1].Float64, 1e-12)
}

func TestLogReturnsFallBackToSimpleOnNonPositivePrice(t *testing.T) {
	prices := buildTable(t, []string{"A", "B"},
		[]float64{100, 0, 50, 60},
		[]float64{10, 11, 12, 13},
	)

	fallback := CalculateReturns(prices, LogReturns)
	simple := CalculateReturns(prices, SimpleReturns)

	ex.AssertAreEqual(t, "method", SimpleReturns, fallback.Method)
	if len(fallback.Warnings) != 1 || fallback.Warnings[0].Code != WarnLogFallback {
		t.Fatalf("expected a single %s warning, got %+v", WarnLogFallback, fallback.Warnings)
	}

	assertTablesEqual(t, simple.Returns, fallback.Returns)

	// 0 -> 50 divides by zero, the infinite value is removed
	a, _ := fallback.Returns.Column("A")
	ex.AssertInDelta(t, "A day 1", -1, a.Values[0].Float64, 1e-12)
	ex.AssertAreEqual(t, "A day 2 valid", false, a.Values[1].Valid)
	ex.AssertInDelta(t, "A day 3", 0.2, a.Values[2].Float64, 1e-12)
}

func TestReturnsOnEmptyAndShortTables(t *testing.T) {
	empty := CalculateReturns(dm.Table{}, LogReturns)
	ex.AssertAreEqual(t, "empty is empty", true, empty.Returns.IsEmpty())
	ex.AssertAreEqual(t, "empty warnings", 0, len(empty.Warnings))

	single := CalculateReturns(buildTable(t, []string{"A"}, []float64{100}), LogReturns)
	ex.AssertAreEqual(t, "single row rows", 0, single.Returns.Len())
	ex.AssertAreEqual(t, "single row keeps symbols", 1, single.Returns.Width())
}

func TestReturnsUnknownMethod(t *testing.T) {
	prices := buildTable(t, []string{"A"}, []float64{100, 110})
	res := CalculateReturns(prices, ReturnsMethod("weird"))

	ex.AssertAreEqual(t, "method", SimpleReturns, res.Method)
	ex.AssertAreEqual(t, "warning code", WarnUnknownMethod, res.Warnings[0].Code)

	a, _ := res.Returns.Column("A")
	ex.AssertInDelta(t, "return", 0.1, a.Values[0].Float64, 1e-12)
}

func TestReturnsDropFullyEmptyRows(t *testing.T) {
	prices := buildTable(t, []string{"A", "B"},
		[]float64{1, 2, math.NaN(), 4, 5},
		[]float64{1, 2, math.NaN(), 4, 6},
	)
	res := CalculateReturns(prices, SimpleReturns)

	// rows 2 and 3 have no value in either column
	ex.AssertAreEqual(t, "rows", 2, res.Returns.Len())
	ex.AssertAreEqual(t, "first date", prices.Dates[1], res.Returns.Dates[0])
	ex.AssertAreEqual(t, "second date", prices.Dates[4], res.Returns.Dates[1])

	b, _ := res.Returns.Column("B")
	ex.AssertInDelta(t, "B last", 0.5, b.Values[1].Float64, 1e-12)
}

func TestReturnsKeepPartialRows(t *testing.T) {
	prices := buildTable(t, []string{"A", "B"},
		[]float64{1, 2, 3},
		[]float64{1, math.NaN(), 3},
	)
	res := CalculateReturns(prices, SimpleReturns)

	ex.AssertAreEqual(t, "rows", 2, res.Returns.Len())
	b, _ := res.Returns.Column("B")
	ex.AssertAreEqual(t, "B has no returns", 0, len(b.Valid()))
}

func TestParseReturnsMethod(t *testing.T) {
	for in, expected := range map[string]struct {
		method ReturnsMethod
		ok     bool
	}{
		"":       {LogReturns, true},
		"log":    {LogReturns, true},
		"simple": {SimpleReturns, true},
		"pct":    {SimpleReturns, false},
	} {
		m, ok := ParseReturnsMethod(in)
		ex.AssertAreEqual(t, "method for "+in, expected.method, m)
		ex.AssertAreEqual(t, "ok for "+in, expected.ok, ok)
	}
}

// Helper: compares two tables cell by cell
func assertTablesEqual(t *testing.T, expected, actual dm.Table) {
	t.Helper()
	ex.AssertAreEqual(t, "rows", expected.Len(), actual.Len())
	ex.AssertAreEqual(t, "columns", expected.Width(), actual.Width())

	for i := range expected.Dates {
		ex.AssertAreEqual(t, "date", expected.Dates[i], actual.Dates[i])
	}
	for c, s := range expected.Series {
		other := actual.Series[c]
		ex.AssertAreEqual(t, "symbol", s.Symbol, other.Symbol)
		for i, v := range s.Values {
			if v.Valid != other.Values[i].Valid || (v.Valid && v.Float64 != other.Values[i].Float64) {
				t.Fatalf("%s row %d: expected %v, got %v", s.Symbol, i, v, other.Values[i])
			}
		}
	}
}
