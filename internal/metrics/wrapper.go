package metrics

// MetricsWrapper exposes the subset of metrics the prediction pipeline
// consumes, so the pipeline package depends on a small interface rather than
// on Prometheus types directly.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc() {
	w.m.PredictionsTotal.Inc()
}

func (w *MetricsWrapper) FailuresInc() {
	w.m.PredictionErrors.Inc()
	w.m.ErrorsTotal.Inc()
}

func (w *MetricsWrapper) LatencyObserve(v float64) {
	w.m.PredictionLatency.Observe(v)
}

func (w *MetricsWrapper) ProbabilityObserve(v float64) {
	w.m.ProbabilityScores.Observe(v)
}

func (w *MetricsWrapper) SkippedLookupsAdd(v float64) {
	w.m.SkippedLookups.Add(v)
}

// SchemaErrorInc records a rejected bundle document.
func (w *MetricsWrapper) SchemaErrorInc() {
	w.m.SchemaErrors.Inc()
	w.m.ErrorsTotal.Inc()
}

// BundleLoaded records a successful bundle load and its age.
func (w *MetricsWrapper) BundleLoaded(ageSeconds float64) {
	w.m.BundleReloads.Inc()
	w.m.BundleAge.Set(ageSeconds)
}

// HighRiskInc records a high-risk decision.
func (w *MetricsWrapper) HighRiskInc() {
	w.m.HighRiskDecisions.Inc()
}

// WSSessionInc records an opened WebSocket prediction session.
func (w *MetricsWrapper) WSSessionInc() {
	w.m.WSSessions.Inc()
}
