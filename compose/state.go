// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package compose

import "fmt"

// State is a stage of a single config generation.
type State int

const (
	Raw State = iota
	Validated
	Merged
	Filtered
	Overlaid
	Interpolated
	Final
	Failed
)

// String implements the [fmt.Stringer] interface.
func (s State) String() string {
	switch s {
	case Raw:
		return "raw"
	case Validated:
		return "validated"
	case Merged:
		return "merged"
	case Filtered:
		return "filtered"
	case Overlaid:
		return "overlaid"
	case Interpolated:
		return "interpolated"
	case Final:
		return "final"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateError occurs when a transition is requested from the wrong state.
type StateError struct {
	Current  State
	Expected State
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("config is %s but must be %s", e.Current, e.Expected)
}

// TransitionError wraps every error returned by an [Orchestrator] transition.
type TransitionError struct {
	From  State
	To    State
	Cause error
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("failed to transition config from %s to %s: %s", e.From, e.To, e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e *TransitionError) Unwrap() error {
	return e.Cause
}
