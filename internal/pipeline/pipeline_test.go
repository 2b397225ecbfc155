package pipeline

import (
	"math"
	"testing"

	"riskcast/internal/bundle"
)

const tol = 1e-9

// deptBundle is a two-feature bundle small enough to verify by hand:
// score = -1 + 2*Dept_A + 0.5*Dept_B, threshold 0.5.
func deptBundle() *bundle.Bundle {
	return &bundle.Bundle{
		CatCols:       []string{"Dept"},
		NumCols:       []string{},
		OHECategories: map[string][]string{"Dept": {"A", "B"}},
		FeatureNames:  []string{"Dept_A", "Dept_B"},
		ScalerMin:     []float64{0, 0},
		ScalerScale:   []float64{1, 1},
		Intercept:     -1,
		Coef:          []float64{2, 0.5},
		Threshold:     0.5,
	}
}

func TestPredict_Scenarios(t *testing.T) {
	cases := []struct {
		name      string
		selection Selection
		rawVector []float64
		score     float64
		prob      float64
		percent   float64
		decision  Decision
	}{
		{
			name:      "dept A is high risk",
			selection: Selection{Categories: map[string]string{"Dept": "A"}},
			rawVector: []float64{1, 0},
			score:     1,
			prob:      0.7310585786300049,
			percent:   73.1,
			decision:  HighRisk,
		},
		{
			name:      "dept B is lower risk",
			selection: Selection{Categories: map[string]string{"Dept": "B"}},
			rawVector: []float64{0, 1},
			score:     -0.5,
			prob:      0.3775406687981454,
			percent:   37.8,
			decision:  LowerRisk,
		},
		{
			name:      "no selection scores the intercept",
			selection: Selection{Categories: map[string]string{}},
			rawVector: []float64{0, 0},
			score:     -1,
			prob:      0.2689414213699951,
			percent:   26.9,
			decision:  LowerRisk,
		},
	}

	b := deptBundle()
	idx := bundle.NewIndex(b)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x, skipped := Vectorize(b, idx, tc.selection)
			if skipped != 0 {
				t.Errorf("expected no skipped lookups, got %d", skipped)
			}
			if len(x) != len(tc.rawVector) {
				t.Fatalf("expected vector length %d, got %d", len(tc.rawVector), len(x))
			}
			for i := range x {
				if x[i] != tc.rawVector[i] {
					t.Errorf("raw[%d]: expected %v, got %v", i, tc.rawVector[i], x[i])
				}
			}

			score := Score(b, Scale(b, x))
			if math.Abs(score-tc.score) > tol {
				t.Errorf("expected score %v, got %v", tc.score, score)
			}

			p, decision := Decide(score, b.Threshold)
			if math.Abs(p-tc.prob) > tol {
				t.Errorf("expected probability %v, got %v", tc.prob, p)
			}
			if decision != tc.decision {
				t.Errorf("expected decision %s, got %s", tc.decision, decision)
			}

			res := Result{Probability: p}
			if res.Percent() != tc.percent {
				t.Errorf("expected %.1f%%, got %.1f%%", tc.percent, res.Percent())
			}
		})
	}
}

func TestVectorize_ShapeAlwaysN(t *testing.T) {
	b := deptBundle()
	idx := bundle.NewIndex(b)

	selections := []Selection{
		{},
		{Categories: map[string]string{"Dept": "A"}},
		{Categories: map[string]string{"Dept": "nope"}},
		{Categories: map[string]string{"Unknown": "A"}},
		{Numerics: map[string]float64{"Age": 40}},
	}

	for _, sel := range selections {
		x, _ := Vectorize(b, idx, sel)
		if len(x) != b.N() {
			t.Errorf("expected length %d for %+v, got %d", b.N(), sel, len(x))
		}
	}
}

func TestVectorize_OneHotExclusivity(t *testing.T) {
	b := &bundle.Bundle{
		CatCols:       []string{"Dept", "Level"},
		OHECategories: map[string][]string{"Dept": {"A", "B", "C"}, "Level": {"L1", "L2"}},
		FeatureNames:  []string{"Dept_A", "Dept_B", "Dept_C", "Level_L1", "Level_L2"},
	}
	idx := bundle.NewIndex(b)

	x, skipped := Vectorize(b, idx, Selection{Categories: map[string]string{"Dept": "B"}})
	if skipped != 0 {
		t.Fatalf("expected no skipped lookups, got %d", skipped)
	}

	for i, v := range x {
		want := 0.0
		if b.FeatureNames[i] == "Dept_B" {
			want = 1
		}
		if v != want {
			t.Errorf("slot %s: expected %v, got %v", b.FeatureNames[i], want, v)
		}
	}
}

// A selection whose composite key has no matching feature contributes
// nothing; the miss is counted, never raised.
func TestVectorize_UnmatchedKeySkippedSilently(t *testing.T) {
	b := deptBundle()
	idx := bundle.NewIndex(b)

	x, skipped := Vectorize(b, idx, Selection{Categories: map[string]string{"Dept": "Z"}})
	if skipped != 1 {
		t.Errorf("expected 1 skipped lookup, got %d", skipped)
	}
	for i, v := range x {
		if v != 0 {
			t.Errorf("expected zero vector, got %v at %d", v, i)
		}
	}
}

func TestVectorize_NumericPath(t *testing.T) {
	b := &bundle.Bundle{
		CatCols:      []string{},
		NumCols:      []string{"Age", "Tenure", "Ghost"},
		FeatureNames: []string{"Age", "Tenure"},
	}
	idx := bundle.NewIndex(b)

	cases := []struct {
		name string
		sel  Selection
		want []float64
	}{
		{"finite value written", Selection{Numerics: map[string]float64{"Age": 42}}, []float64{42, 0}},
		{"absent value stays zero", Selection{}, []float64{0, 0}},
		{"nan writes zero", Selection{Numerics: map[string]float64{"Age": math.NaN()}}, []float64{0, 0}},
		{"inf writes zero", Selection{Numerics: map[string]float64{"Tenure": math.Inf(1)}}, []float64{0, 0}},
		{"unknown column skipped", Selection{Numerics: map[string]float64{"Ghost": 7}}, []float64{0, 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x, skipped := Vectorize(b, idx, tc.sel)
			if skipped != 0 {
				t.Errorf("numeric path must not count skips, got %d", skipped)
			}
			for i := range tc.want {
				if x[i] != tc.want[i] {
					t.Errorf("x[%d]: expected %v, got %v", i, tc.want[i], x[i])
				}
			}
		})
	}
}

func TestScale_AffineFormula(t *testing.T) {
	b := &bundle.Bundle{
		FeatureNames: []string{"a", "b", "c"},
		ScalerScale:  []float64{2, 0.5, 1},
		ScalerMin:    []float64{-1, 3, 0},
	}

	xs := Scale(b, []float64{1, 4, -2})
	want := []float64{1*2 - 1, 4*0.5 + 3, -2*1 + 0}
	for i := range want {
		if xs[i] != want[i] {
			t.Errorf("xs[%d]: expected %v, got %v", i, want[i], xs[i])
		}
	}
}

// Out-of-range values are extrapolated, never clamped.
func TestScale_NoClamping(t *testing.T) {
	b := &bundle.Bundle{
		FeatureNames: []string{"a"},
		ScalerScale:  []float64{10},
		ScalerMin:    []float64{-5},
	}
	xs := Scale(b, []float64{100})
	if xs[0] != 995 {
		t.Errorf("expected extrapolated 995, got %v", xs[0])
	}
}

func TestDecide_ThresholdBoundaryInclusive(t *testing.T) {
	// sigmoid(0) is exactly 0.5; equality must classify high risk.
	p, decision := Decide(0, 0.5)
	if p != 0.5 {
		t.Fatalf("expected probability 0.5, got %v", p)
	}
	if decision != HighRisk {
		t.Errorf("probability == threshold must be HighRisk, got %s", decision)
	}
}

func TestDecide_StableForLargeScores(t *testing.T) {
	p, decision := Decide(50, 0.5)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		t.Fatalf("expected finite probability, got %v", p)
	}
	if math.Abs(p-1) > 1e-12 {
		t.Errorf("expected probability near 1, got %v", p)
	}
	if decision != HighRisk {
		t.Errorf("expected HighRisk, got %s", decision)
	}

	p, decision = Decide(-50, 0.5)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		t.Fatalf("expected finite probability, got %v", p)
	}
	if p > 1e-12 {
		t.Errorf("expected probability near 0, got %v", p)
	}
	if decision != LowerRisk {
		t.Errorf("expected LowerRisk, got %s", decision)
	}
}

func TestPredict_Deterministic(t *testing.T) {
	b := deptBundle()
	session := NewSession(b, nil)
	sel := Selection{Categories: map[string]string{"Dept": "A"}}

	first, err := session.Predict(sel)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}

	for i := 0; i < 100; i++ {
		res, err := session.Predict(sel)
		if err != nil {
			t.Fatalf("predict failed: %v", err)
		}
		if res.Probability != first.Probability || res.Score != first.Score || res.Decision != first.Decision {
			t.Fatalf("prediction drifted on run %d: %+v vs %+v", i, res, first)
		}
	}
}
