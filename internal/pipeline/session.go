package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"riskcast/internal/bundle"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines the metrics methods needed by the session.
type MetricsInterface interface {
	PredictionsInc()
	FailuresInc()
	LatencyObserve(float64)
	ProbabilityObserve(float64)
	SkippedLookupsAdd(float64)
}

// State tracks the session lifecycle. A session moves Uninitialized -> Loaded
// -> Ready on a successful bundle validation, alternates Ready <-> Scored as
// predictions complete and reset, and lands in Failed, terminally, when the
// bundle document is rejected at load.
type State int

const (
	StateUninitialized State = iota
	StateLoaded
	StateReady
	StateScored
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoaded:
		return "loaded"
	case StateReady:
		return "ready"
	case StateScored:
		return "scored"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrNotLoaded is returned for prediction attempts against a session that
// never reached Ready.
var ErrNotLoaded = errors.New("no bundle loaded")

// ComputeError wraps an unexpected failure inside one prediction cycle. It is
// non-fatal: the session keeps its bundle and last result, and the caller may
// retry with corrected input.
type ComputeError struct {
	Err error
}

func (e *ComputeError) Error() string { return fmt.Sprintf("prediction failed: %v", e.Err) }
func (e *ComputeError) Unwrap() error { return e.Err }

// Session owns one validated bundle and its derived feature index for the
// process lifetime. The bundle is read-only after load; each Predict call
// works on a fresh selection and result.
type Session struct {
	mu         sync.RWMutex
	bundle     *bundle.Bundle
	index      bundle.FeatureIndex
	state      State
	lastResult *Result
	metrics    MetricsInterface
}

// NewSession wraps an already-validated bundle in a Ready session.
func NewSession(b *bundle.Bundle, metrics MetricsInterface) *Session {
	s := &Session{bundle: b, state: StateLoaded, metrics: metrics}
	s.index = bundle.NewIndex(b)
	s.state = StateReady
	return s
}

// Open validates a raw bundle document and returns a Ready session. On a
// schema error the returned session is in Failed state and stays there; it
// rejects every prediction until the process is restarted with a corrected
// bundle.
func Open(data []byte, metrics MetricsInterface) (*Session, error) {
	b, err := bundle.Parse(data)
	if err != nil {
		log.Error().Err(err).Msg("bundle rejected")
		return &Session{state: StateFailed, metrics: metrics}, err
	}
	return NewSession(b, metrics), nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	if s == nil {
		return StateUninitialized
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Bundle returns the loaded bundle, or nil if the session never reached Ready.
func (s *Session) Bundle() *bundle.Bundle {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle
}

// Predict runs one full cycle: vectorize, scale, score, decide. The session
// moves to Scored and keeps the result until Reset. Failures leave the prior
// state and last result unchanged.
func (s *Session) Predict(sel Selection) (Result, error) {
	if s == nil {
		return Result{}, ErrNotLoaded
	}

	start := time.Now()
	s.mu.Lock()
	defer func() {
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.LatencyObserve(time.Since(start).Seconds())
		}
	}()

	if s.state != StateReady && s.state != StateScored {
		if s.metrics != nil {
			s.metrics.FailuresInc()
		}
		return Result{}, ErrNotLoaded
	}

	res, err := s.predict(sel)
	if err != nil {
		if s.metrics != nil {
			s.metrics.FailuresInc()
		}
		log.Warn().Err(err).Msg("prediction attempt failed")
		return Result{}, err
	}

	s.lastResult = &res
	s.state = StateScored

	if s.metrics != nil {
		s.metrics.PredictionsInc()
		s.metrics.ProbabilityObserve(res.Probability)
		if res.SkippedLookups > 0 {
			s.metrics.SkippedLookupsAdd(float64(res.SkippedLookups))
		}
	}

	log.Debug().
		Float64("probability", res.Probability).
		Float64("score", res.Score).
		Str("decision", string(res.Decision)).
		Int("skipped_lookups", res.SkippedLookups).
		Msg("prediction complete")

	return res, nil
}

// predict is the pure pipeline body. The recover fence converts any
// unexpected panic into a ComputeError so a bad prediction attempt never
// takes down the loaded bundle.
func (s *Session) predict(sel Selection) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ComputeError{Err: fmt.Errorf("%v", r)}
		}
	}()

	x, skipped := Vectorize(s.bundle, s.index, sel)
	xs := Scale(s.bundle, x)
	score := Score(s.bundle, xs)
	p, decision := Decide(score, s.bundle.Threshold)

	return Result{
		Probability:    p,
		Score:          score,
		Decision:       decision,
		ThresholdUsed:  s.bundle.Threshold,
		SkippedLookups: skipped,
	}, nil
}

// LastResult returns the most recent prediction, or nil if none is held.
func (s *Session) LastResult() *Result {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResult
}

// Reset clears the last result and returns the session to Ready. The bundle
// stays loaded.
func (s *Session) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateScored {
		s.lastResult = nil
		s.state = StateReady
	}
}
