package directory

import (
	"github.com/goccy/go-json"
)

// Phase is the lifecycle step of a mutation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// MutationState is idle, pending, succeeded or failed with a message. The
// zero value is idle.
type MutationState struct {
	phase   Phase
	message string
}

func Idle() MutationState      { return MutationState{} }
func Pending() MutationState   { return MutationState{phase: PhasePending} }
func Succeeded() MutationState { return MutationState{phase: PhaseSucceeded} }

func Failed(message string) MutationState {
	return MutationState{phase: PhaseFailed, message: message}
}

func (s MutationState) Phase() Phase { return s.phase }

// Message is the failure message; empty unless the phase is PhaseFailed.
func (s MutationState) Message() string { return s.message }

func (s MutationState) MarshalJSON() ([]byte, error) {
	out := struct {
		State   string `json:"state"`
		Message string `json:"message,omitempty"`
	}{State: s.phase.String(), Message: s.message}
	return json.Marshal(out)
}

// Target is an optional provider id.
type Target struct {
	id  string
	set bool
}

func NoTarget() Target { return Target{} }

func TargetOf(id string) Target { return Target{id: id, set: true} }

// Get returns the id and whether one is present.
func (t Target) Get() (string, bool) { return t.id, t.set }

func (t Target) MarshalJSON() ([]byte, error) {
	if !t.set {
		return []byte("null"), nil
	}
	return json.Marshal(t.id)
}

// OperationFailed reports a failed delete or refresh.
type OperationFailed struct {
	Op      string
	Message string
	Err     error
}

func (e *OperationFailed) Error() string {
	return e.Op + " failed: " + e.Message
}

func (e *OperationFailed) Unwrap() error { return e.Err }
