package core

import (
	"fmt"
	"math"
	"slices"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	ex "corr.service/data/extensions"
	dm "corr.service/data/models"
)

type CorrelationMethod string

const (
	Pearson  CorrelationMethod = "pearson"
	Spearman CorrelationMethod = "spearman"
	Kendall  CorrelationMethod = "kendall"
)

// MinReliableObservations is the row count under which a correlation matrix is
// still computed but flagged as unreliable.
const MinReliableObservations = 5

// ParseCorrelationMethod maps a request string to a method. Empty and unknown
// strings resolve to pearson, ok is false only for unknown strings.
func ParseCorrelationMethod(s string) (CorrelationMethod, bool) {
	switch CorrelationMethod(s) {
	case "", Pearson:
		return Pearson, true
	case Spearman:
		return Spearman, true
	case Kendall:
		return Kendall, true
	default:
		return Pearson, false
	}
}

// CorrelationMatrix is a symmetric, symbol indexed matrix of coefficients.
// The zero value is the empty matrix.
type CorrelationMatrix struct {
	Symbols []string
	values  *mat.SymDense
}

// NewCorrelationMatrix builds a matrix from row major data. Only the upper
// triangle of data is read.
func NewCorrelationMatrix(symbols []string, data []float64) (CorrelationMatrix, error) {
	n := len(symbols)
	if n == 0 {
		return CorrelationMatrix{}, nil
	}
	if len(data) != n*n {
		return CorrelationMatrix{}, fmt.Errorf("correlation matrix for %d symbols needs %d values, got %d", n, n*n, len(data))
	}

	return CorrelationMatrix{
		Symbols: slices.Clone(symbols),
		values:  mat.NewSymDense(n, slices.Clone(data)),
	}, nil
}

func (cm CorrelationMatrix) Len() int {
	return len(cm.Symbols)
}

func (cm CorrelationMatrix) At(i, j int) float64 {
	return cm.values.At(i, j)
}

// ToMap renders the matrix as symbol -> symbol -> coefficient.
func (cm CorrelationMatrix) ToMap() map[string]map[string]float64 {
	res := make(map[string]map[string]float64, cm.Len())
	for i, a := range cm.Symbols {
		row := make(map[string]float64, cm.Len())
		for j, b := range cm.Symbols {
			row[b] = cm.At(i, j)
		}
		res[a] = row
	}
	return res
}

type CorrelationResult struct {
	Matrix   CorrelationMatrix
	Method   CorrelationMethod
	Warnings []Warning
}

// CalculateCorrelationMatrix computes pairwise-complete correlations between
// every pair of columns. Undefined coefficients become 0 and the diagonal is 1.
// A failure while computing yields the empty matrix rather than an error.
func CalculateCorrelationMatrix(returns dm.Table, method CorrelationMethod) (res CorrelationResult) {
	res.Method = method
	if _, ok := ParseCorrelationMethod(string(method)); !ok || method == "" {
		if method != "" {
			res.Warnings = append(res.Warnings, Warning{
				Code:    WarnUnknownMethod,
				Message: fmt.Sprintf("unknown correlation method %q, using pearson", method),
			})
		}
		res.Method = Pearson
	}

	if returns.IsEmpty() {
		return res
	}

	if returns.Len() < MinReliableObservations {
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnUnreliable,
			Message: fmt.Sprintf("only %d observations, correlations are statistically unreliable", returns.Len()),
		})
	}

	defer func() {
		if r := recover(); r != nil {
			res.Matrix = CorrelationMatrix{}
			res.Warnings = append(res.Warnings, Warning{
				Code:    WarnCorrelationFailed,
				Message: fmt.Sprintf("correlation matrix could not be computed: %v", r),
			})
		}
	}()

	n := returns.Width()
	data := make([]float64, n*n)
	for i := range n {
		data[i*n+i] = 1
		for j := i + 1; j < n; j++ {
			x, y := pairwiseComplete(returns.Series[i].Values, returns.Series[j].Values)
			data[i*n+j] = sanitizeCoefficient(pairCorrelation(res.Method, x, y))
		}
	}

	cm, err := NewCorrelationMatrix(returns.Symbols(), data)
	if err != nil {
		panic(err)
	}
	res.Matrix = cm
	return res
}

// pairCorrelation is swapped in tests.
var pairCorrelation = correlate

func correlate(method CorrelationMethod, x, y []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}

	switch method {
	case Spearman:
		return stat.Correlation(rank(x), rank(y), nil)
	case Kendall:
		return kendallTauB(x, y)
	default:
		return stat.Correlation(x, y, nil)
	}
}

func sanitizeCoefficient(v float64) float64 {
	if !ex.IsFinite(v) {
		return 0
	}
	return ex.Clamp(v, -1, 1)
}

// pairwiseComplete keeps the rows where both series have a value.
func pairwiseComplete(a, b []null.Float) ([]float64, []float64) {
	x := make([]float64, 0, len(a))
	y := make([]float64, 0, len(a))
	for i := range min(len(a), len(b)) {
		if a[i].Valid && b[i].Valid {
			x = append(x, a[i].Float64)
			y = append(y, b[i].Float64)
		}
	}
	return x, y
}

// rank assigns 1 based ranks, ties share the average of their positions.
func rank(x []float64) []float64 {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case x[a] < x[b]:
			return -1
		case x[a] > x[b]:
			return 1
		default:
			return 0
		}
	})

	ranks := make([]float64, len(x))
	for start := 0; start < len(idx); {
		end := start + 1
		for end < len(idx) && x[idx[end]] == x[idx[start]] {
			end++
		}

		avg := float64(start+end+1) / 2 // mean of ranks start+1..end
		for k := start; k < end; k++ {
			ranks[idx[k]] = avg
		}
		start = end
	}

	return ranks
}

// kendallTauB is the ties adjusted Kendall rank correlation.
func kendallTauB(x, y []float64) float64 {
	var concordant, discordant, xTies, yTies float64
	for i := range x {
		for j := i + 1; j < len(x); j++ {
			dx := sign(x[j] - x[i])
			dy := sign(y[j] - y[i])
			switch {
			case dx == 0 && dy == 0:
			case dx == 0:
				xTies++
			case dy == 0:
				yTies++
			case dx == dy:
				concordant++
			default:
				discordant++
			}
		}
	}

	denom := math.Sqrt((concordant + discordant + xTies) * (concordant + discordant + yTies))
	if denom == 0 {
		return math.NaN()
	}
	return (concordant - discordant) / denom
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
