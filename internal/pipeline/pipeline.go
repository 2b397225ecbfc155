// Package pipeline reproduces the numeric prediction of a trained linear
// classifier from a validated bundle: one-hot vectorization in training-time
// feature order, affine rescaling, a linear score, and a numerically stable
// logistic probability with a threshold decision.
package pipeline

import (
	"math"

	"riskcast/internal/bundle"
)

// Decision is the categorical outcome of a prediction.
type Decision string

const (
	HighRisk  Decision = "HighRisk"
	LowerRisk Decision = "LowerRisk"
)

// Selection is one prediction's worth of user input: a chosen category per
// categorical column (empty string means unselected) and optional numeric
// values per numeric column.
type Selection struct {
	Categories map[string]string  `json:"categories"`
	Numerics   map[string]float64 `json:"numerics,omitempty"`
}

// Result is the output of one prediction cycle.
type Result struct {
	Probability    float64  `json:"probability"`
	Score          float64  `json:"score"`
	Decision       Decision `json:"decision"`
	ThresholdUsed  float64  `json:"thresholdUsed"`
	SkippedLookups int      `json:"skippedLookups"`
}

// Percent renders the probability as a human-facing percentage with one
// decimal place.
func (r Result) Percent() float64 {
	return math.Round(r.Probability*1000) / 10
}

// Vectorize builds the dense raw feature vector for a selection. The vector
// always has length b.N(). For each categorical column the composite key
// "<col>_<chosen>" is looked up in the index; a key with no match contributes
// nothing and is counted in skipped, never reported as an error. Unselected
// columns leave their one-hot block at zero. Numeric columns write their
// finite value at the column's slot, or zero otherwise.
func Vectorize(b *bundle.Bundle, idx bundle.FeatureIndex, sel Selection) (x []float64, skipped int) {
	x = make([]float64, b.N())

	for _, col := range b.CatCols {
		chosen := sel.Categories[col]
		if chosen == "" {
			continue
		}
		if i, ok := idx.Lookup(col + "_" + chosen); ok {
			x[i] = 1
		} else {
			skipped++
		}
	}

	for _, col := range b.NumCols {
		i, ok := idx.Lookup(col)
		if !ok {
			continue
		}
		v, present := sel.Numerics[col]
		if present && !math.IsNaN(v) && !math.IsInf(v, 0) {
			x[i] = v
		} else {
			x[i] = 0
		}
	}

	return x, skipped
}

// Scale applies the bundle's folded min-max transform per element:
// xs[i] = x[i]*scale[i] + min[i]. Values outside the training range are
// extrapolated, not clamped.
func Scale(b *bundle.Bundle, x []float64) []float64 {
	xs := make([]float64, len(x))
	for i, v := range x {
		xs[i] = v*b.ScalerScale[i] + b.ScalerMin[i]
	}
	return xs
}

// Score computes the linear decision score: intercept plus the dot product of
// the coefficients with the scaled vector, accumulated in index order.
func Score(b *bundle.Bundle, xs []float64) float64 {
	s := b.Intercept
	for i, v := range xs {
		s += b.Coef[i] * v
	}
	return s
}

// sigmoid maps a score to a probability without overflowing for large
// magnitudes: the exponentiated quantity is never positive.
func sigmoid(score float64) float64 {
	if score >= 0 {
		return 1 / (1 + math.Exp(-score))
	}
	e := math.Exp(score)
	return e / (1 + e)
}

// Decide converts a score into a probability and the threshold decision.
// The boundary is inclusive: probability == threshold classifies HighRisk.
func Decide(score, threshold float64) (float64, Decision) {
	p := sigmoid(score)
	if p >= threshold {
		return p, HighRisk
	}
	return p, LowerRisk
}
