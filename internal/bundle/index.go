package bundle

// FeatureIndex maps a feature name to its position in the canonical feature
// vector. It is derived once from feature_names and cached alongside the
// bundle. If a name repeats, the last occurrence wins.
type FeatureIndex map[string]int

// NewIndex builds the index in a single pass over the bundle's feature names.
func NewIndex(b *Bundle) FeatureIndex {
	idx := make(FeatureIndex, len(b.FeatureNames))
	for i, name := range b.FeatureNames {
		idx[name] = i
	}
	return idx
}

// Lookup returns the vector position for a feature name.
func (idx FeatureIndex) Lookup(name string) (int, bool) {
	i, ok := idx[name]
	return i, ok
}
