// Package bundle loads and validates the serialized model artifact that the
// prediction pipeline replays. A bundle carries everything a trained linear
// classifier needs at inference time: the categorical vocabulary, the
// canonical feature order, the folded min-max scaling parameters, and the
// fitted coefficients. Bundles are validated once at load and immutable
// afterwards.
package bundle

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// DefaultThreshold is the decision cutoff used when the bundle document does
// not carry a numeric threshold of its own.
const DefaultThreshold = 0.5

// Bundle is a validated, immutable model artifact.
type Bundle struct {
	CatCols       []string            `json:"cat_cols"`
	NumCols       []string            `json:"num_cols"`
	OHECategories map[string][]string `json:"ohe_categories"`
	FeatureNames  []string            `json:"feature_names"`
	ScalerMin     []float64           `json:"scaler_min"`
	ScalerScale   []float64           `json:"scaler_scale"`
	Intercept     float64             `json:"intercept"`
	Coef          []float64           `json:"coef"`
	Threshold     float64             `json:"threshold"`
}

// SchemaError reports a bundle document that fails required-key or
// length-consistency checks. It is fatal to initialization; a process that
// hits one cannot serve predictions until a corrected bundle is supplied.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("bundle schema: %s: %s", e.Field, e.Reason)
}

func missingKey(field string) *SchemaError {
	return &SchemaError{Field: field, Reason: "missing key"}
}

func lengthMismatch(field string, want, got int) *SchemaError {
	return &SchemaError{Field: field, Reason: fmt.Sprintf("length mismatch, expected %d got %d", want, got)}
}

// requiredKeys lists the mandatory bundle fields in the order they are
// checked, so a document missing several keys always reports the same one.
var requiredKeys = []string{
	"cat_cols",
	"num_cols",
	"ohe_categories",
	"feature_names",
	"scaler_min",
	"scaler_scale",
	"intercept",
	"coef",
}

// document mirrors the raw bundle schema. Threshold stays raw so a missing or
// non-numeric value can fall back to the default instead of failing the load.
type document struct {
	CatCols       []string            `json:"cat_cols"`
	NumCols       []string            `json:"num_cols"`
	OHECategories map[string][]string `json:"ohe_categories"`
	FeatureNames  []string            `json:"feature_names"`
	ScalerMin     []float64           `json:"scaler_min"`
	ScalerScale   []float64           `json:"scaler_scale"`
	Intercept     float64             `json:"intercept"`
	Coef          []float64           `json:"coef"`
	Threshold     json.RawMessage     `json:"threshold"`
}

// Parse validates a raw bundle document and returns the immutable Bundle.
//
// Checks run in a fixed order: required keys, non-empty feature_names, then
// per-field length consistency against len(feature_names). Nothing else is
// validated; in particular one-hot feature names are not cross-checked
// against ohe_categories. A mismatch there surfaces later as a silently-zero
// vector slot rather than a load error.
func Parse(data []byte) (*Bundle, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse bundle document: %w", err)
	}

	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			return nil, missingKey(key)
		}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode bundle document: %w", err)
	}

	n := len(doc.FeatureNames)
	if n == 0 {
		return nil, &SchemaError{Field: "feature_names", Reason: "empty feature set"}
	}

	if got := len(doc.Coef); got != n {
		return nil, lengthMismatch("coef", n, got)
	}
	if got := len(doc.ScalerMin); got != n {
		return nil, lengthMismatch("scaler_min", n, got)
	}
	if got := len(doc.ScalerScale); got != n {
		return nil, lengthMismatch("scaler_scale", n, got)
	}

	b := &Bundle{
		CatCols:       doc.CatCols,
		NumCols:       doc.NumCols,
		OHECategories: doc.OHECategories,
		FeatureNames:  doc.FeatureNames,
		ScalerMin:     doc.ScalerMin,
		ScalerScale:   doc.ScalerScale,
		Intercept:     doc.Intercept,
		Coef:          doc.Coef,
		Threshold:     parseThreshold(doc.Threshold),
	}

	log.Debug().
		Int("features", n).
		Int("cat_cols", len(b.CatCols)).
		Int("num_cols", len(b.NumCols)).
		Float64("threshold", b.Threshold).
		Msg("bundle validated")

	return b, nil
}

// parseThreshold returns the bundle threshold, falling back to the default
// when the field is absent or not a JSON number.
func parseThreshold(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return DefaultThreshold
	}
	var t *float64
	if err := json.Unmarshal(raw, &t); err != nil || t == nil {
		log.Warn().Str("threshold", string(raw)).Msg("non-numeric threshold in bundle, using default")
		return DefaultThreshold
	}
	return *t
}

// N returns the canonical feature vector length.
func (b *Bundle) N() int { return len(b.FeatureNames) }
