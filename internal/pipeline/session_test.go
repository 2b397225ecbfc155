package pipeline

import (
	"errors"
	"testing"

	"riskcast/internal/bundle"
)

const validDoc = `{
	"cat_cols": ["Dept"],
	"num_cols": [],
	"ohe_categories": {"Dept": ["A", "B"]},
	"feature_names": ["Dept_A", "Dept_B"],
	"scaler_min": [0, 0],
	"scaler_scale": [1, 1],
	"intercept": -1,
	"coef": [2, 0.5],
	"threshold": 0.5
}`

// Document missing coef entirely.
const brokenDoc = `{
	"cat_cols": ["Dept"],
	"num_cols": [],
	"ohe_categories": {"Dept": ["A", "B"]},
	"feature_names": ["Dept_A", "Dept_B"],
	"scaler_min": [0, 0],
	"scaler_scale": [1, 1],
	"intercept": -1
}`

func TestOpen_ValidDocument(t *testing.T) {
	session, err := Open([]byte(validDoc), nil)
	if err != nil {
		t.Fatalf("expected valid document, got: %v", err)
	}
	if session.State() != StateReady {
		t.Errorf("expected ready state, got %s", session.State())
	}
}

func TestOpen_SchemaErrorIsTerminal(t *testing.T) {
	session, err := Open([]byte(brokenDoc), &MockMetrics{})

	var se *bundle.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got: %v", err)
	}
	if se.Field != "coef" {
		t.Errorf("expected error naming coef, got %q", se.Field)
	}

	if session.State() != StateFailed {
		t.Errorf("expected failed state, got %s", session.State())
	}

	// Prediction attempts against a failed session are rejected as not loaded.
	_, err = session.Predict(Selection{Categories: map[string]string{"Dept": "A"}})
	if !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got: %v", err)
	}

	// And the session never recovers within the process.
	if session.State() != StateFailed {
		t.Errorf("failed state must be terminal, got %s", session.State())
	}
}

func TestSession_StateTransitions(t *testing.T) {
	session, err := Open([]byte(validDoc), nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if session.State() != StateReady {
		t.Fatalf("expected ready, got %s", session.State())
	}

	res, err := session.Predict(Selection{Categories: map[string]string{"Dept": "A"}})
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if session.State() != StateScored {
		t.Errorf("expected scored after predict, got %s", session.State())
	}
	if last := session.LastResult(); last == nil || last.Probability != res.Probability {
		t.Errorf("expected last result held, got %+v", last)
	}

	session.Reset()
	if session.State() != StateReady {
		t.Errorf("expected ready after reset, got %s", session.State())
	}
	if session.LastResult() != nil {
		t.Error("expected last result cleared after reset")
	}

	// Bundle survives the reset.
	if _, err := session.Predict(Selection{Categories: map[string]string{"Dept": "B"}}); err != nil {
		t.Errorf("predict after reset failed: %v", err)
	}
}

func TestSession_NilSafety(t *testing.T) {
	var session *Session

	if session.State() != StateUninitialized {
		t.Error("expected uninitialized state for nil session")
	}
	if _, err := session.Predict(Selection{}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded for nil session, got: %v", err)
	}
	session.Reset() // must not panic
}

func TestSession_MetricsTracking(t *testing.T) {
	m := &MockMetrics{}
	session, err := Open([]byte(validDoc), m)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := session.Predict(Selection{Categories: map[string]string{"Dept": "A"}}); err != nil {
			t.Fatalf("predict failed: %v", err)
		}
	}
	// One selection whose key misses the index.
	if _, err := session.Predict(Selection{Categories: map[string]string{"Dept": "Z"}}); err != nil {
		t.Fatalf("predict failed: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.predictions != 4 {
		t.Errorf("expected 4 predictions tracked, got %d", m.predictions)
	}
	if m.skippedLookups != 1 {
		t.Errorf("expected 1 skipped lookup tracked, got %v", m.skippedLookups)
	}
	if len(m.probabilities) != 4 {
		t.Errorf("expected 4 probabilities observed, got %d", len(m.probabilities))
	}
	if m.latencySum == 0 {
		t.Error("expected some latency to be tracked")
	}
}

func TestSession_Concurrency(t *testing.T) {
	m := &MockMetrics{}
	session, err := Open([]byte(validDoc), m)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	sel := Selection{Categories: map[string]string{"Dept": "A"}}
	numGoroutines := 10
	numCalls := 100

	done := make(chan bool, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			for j := 0; j < numCalls; j++ {
				session.Predict(sel)
			}
			done <- true
		}()
	}
	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.predictions != numGoroutines*numCalls {
		t.Errorf("expected %d predictions, got %d", numGoroutines*numCalls, m.predictions)
	}
}
