// Package pipeline orchestrates the two ingestion flows: ontology directories
// into the property graph, and documents into the graph plus the vector
// index. Pipelines return structured results and never raise to the caller.
package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
)

// RunState is the lifecycle state of one pipeline run.
type RunState string

const (
	StatePending         RunState = "Pending"
	StateIngesting       RunState = "Ingesting"
	StateExtracting      RunState = "Extracting"
	StateValidating      RunState = "Validating"
	StateQualityChecking RunState = "QualityChecking"
	StateStoring         RunState = "Storing"
	StateDone            RunState = "Done"
	StateQualityFailed   RunState = "QualityFailed"
	StateCancelled       RunState = "Cancelled"
)

// FailedAt is the terminal state for a run that died in the given state.
func FailedAt(state RunState) RunState { return RunState("FailedAt" + string(state)) }

// transitions lists the admitted forward edges. Every non-terminal state may
// additionally move to its FailedAt terminal or to Cancelled.
var transitions = map[RunState][]RunState{
	StatePending:         {StateIngesting},
	StateIngesting:       {StateExtracting, StateValidating},
	StateExtracting:      {StateValidating},
	StateValidating:      {StateQualityChecking, StateStoring},
	StateQualityChecking: {StateStoring, StateQualityFailed},
	StateStoring:         {StateDone},
}

// Transition is one recorded state change.
type Transition struct {
	From RunState  `json:"from"`
	To   RunState  `json:"to"`
	At   time.Time `json:"at"`
}

// Run tracks the lifecycle of one pipeline execution.
type Run struct {
	ID string

	mu      sync.Mutex
	state   RunState
	history []Transition
}

// NewRun starts in Pending with a fresh id.
func NewRun() *Run {
	return &Run{ID: uuid.NewString(), state: StatePending}
}

// State returns the current state.
func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// History returns the recorded transitions in order.
func (r *Run) History() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transition, len(r.history))
	copy(out, r.history)
	return out
}

// Terminal reports whether no further transition is possible.
func (r *Run) Terminal() bool {
	switch state := r.State(); {
	case state == StateDone, state == StateQualityFailed, state == StateCancelled:
		return true
	default:
		return len(state) > len("FailedAt") && state[:len("FailedAt")] == "FailedAt"
	}
}

// To moves the run to the requested state. Any non-terminal state may fail or
// be cancelled; other moves must follow the stage order.
func (r *Run) To(to RunState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	from := r.state
	if !legalTransition(from, to) {
		return apperrors.Newf(apperrors.ErrCodeIllegalTransition,
			"pipeline run %s cannot move from %s to %s", r.ID, from, to)
	}
	r.state = to
	r.history = append(r.history, Transition{From: from, To: to, At: time.Now()})
	return nil
}

func legalTransition(from, to RunState) bool {
	if isTerminal(from) {
		return false
	}
	if to == StateCancelled || to == FailedAt(from) {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func isTerminal(state RunState) bool {
	if state == StateDone || state == StateQualityFailed || state == StateCancelled {
		return true
	}
	return len(state) > len("FailedAt") && state[:len("FailedAt")] == "FailedAt"
}
