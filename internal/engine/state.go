package engine

import "github.com/lbianche/minerva/internal/retrieval"

// State names the stages a question moves through. Transitions are
// routed by nextState so the flow is inspectable without running any
// collaborator.
type State string

const (
	StateIdle        State = "idle"
	StateRetrieving  State = "retrieving"
	StateClassifying State = "classifying"
	StateSearching   State = "searching"
	StateSkipped     State = "skipped"
	StateAssembling  State = "assembling"
	StateGenerating  State = "generating"
	StateStreaming   State = "streaming"
	StateCommitted   State = "committed"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateFailed
}

// record carries one question through the stages. It is owned by a
// single goroutine; nothing here needs locking.
type record struct {
	sessionID string
	turnID    string
	query     string

	passages   []retrieval.Passage
	needSearch bool
	search     SearchOutcome
	context    string
	answer     string
	deltaSeen  bool
}

// nextState routes the happy path. Failures jump straight to
// StateFailed through the engine, never through here.
func nextState(s State, r *record) State {
	switch s {
	case StateIdle:
		return StateRetrieving
	case StateRetrieving:
		return StateClassifying
	case StateClassifying:
		if r.needSearch {
			return StateSearching
		}
		return StateSkipped
	case StateSearching, StateSkipped:
		return StateAssembling
	case StateAssembling:
		return StateGenerating
	case StateGenerating:
		return StateStreaming
	case StateStreaming:
		return StateCommitted
	default:
		return s
	}
}
