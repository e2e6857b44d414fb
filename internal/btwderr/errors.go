// Package btwderr defines the error kinds and recovery policy from the
// daemon's error handling design: which failures are fatal at startup and
// which degrade a running pipeline back to Idle.
package btwderr

import "fmt"

// Kind classifies an error by the recovery policy it carries.
type Kind int

const (
	// ConfigInvalid covers a missing file, a malformed entry, or an
	// unbound parameter slot in the allow-list. Fatal at startup.
	ConfigInvalid Kind = iota
	// AudioDeviceUnavailable means the capture device could not be opened
	// at the required parameters. Fatal at startup, no fallback.
	AudioDeviceUnavailable
	// WakeInitFailure means the keyword-spotter could not be initialised,
	// usually a missing model or keyword path. Fatal at startup.
	WakeInitFailure
	// AsrFailure is a recoverable cloud ASR error.
	AsrFailure
	// LlmFailure is a recoverable classifier/summarizer error.
	LlmFailure
	// SearchFailure is a recoverable search-provider error.
	SearchFailure
	// ValidationFailure means the classifier proposed an ill-typed or
	// out-of-range binding. Never reaches the executor.
	ValidationFailure
	// ConfirmationTimeout means a pending confirmation's deadline elapsed.
	ConfirmationTimeout
	// SpawnFailure means os/exec could not start the child process.
	SpawnFailure
)

func (k Kind) String() string {
	switch k {
	case ConfigInvalid:
		return "config_invalid"
	case AudioDeviceUnavailable:
		return "audio_device_unavailable"
	case WakeInitFailure:
		return "wake_init_failure"
	case AsrFailure:
		return "asr_failure"
	case LlmFailure:
		return "llm_failure"
	case SearchFailure:
		return "search_failure"
	case ValidationFailure:
		return "validation_failure"
	case ConfirmationTimeout:
		return "confirmation_timeout"
	case SpawnFailure:
		return "spawn_failure"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on
// recovery policy (fatal vs. degrade-to-Idle) without string matching.
type Error struct {
	Kind  Kind
	Field string // optional: the specific missing/invalid field, per WakeInitFailure's contract
	Err   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err under kind.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// NewField wraps err under kind, naming the specific offending field. Used
// by the wake detector so a missing init argument is never silent (see
// Design Notes: the native SDK corrupts its stack on missing arguments).
func NewField(kind Kind, field string, err error) *Error {
	return &Error{Kind: kind, Field: field, Err: err}
}

// Fatal reports whether kind is fatal at startup rather than recoverable
// at runtime.
func Fatal(kind Kind) bool {
	switch kind {
	case ConfigInvalid, AudioDeviceUnavailable, WakeInitFailure:
		return true
	default:
		return false
	}
}
