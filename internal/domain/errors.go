package domain

import (
	"errors"
	"fmt"
)

// EngineError is the unified error type for the engine.
// Each error has a numeric code and human-readable message.
type EngineError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// Is lets wrapped errors match their sentinel by code.
func (e *EngineError) Is(target error) bool {
	other, ok := target.(*EngineError)
	return ok && other.Code == e.Code
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// WrapEngineError creates an EngineError that includes a cause.
func WrapEngineError(code int, msg string, cause error) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- Agent subprocess errors (-32040 to -32069) ----

var (
	ErrAgentTimeout = &EngineError{Code: -32040, Message: "agent subprocess exceeded wall-clock timeout"}
	ErrAgentExec    = &EngineError{Code: -32041, Message: "agent subprocess failed to run"}
	ErrAgentEmpty   = &EngineError{Code: -32042, Message: "agent produced no extractable text"}
	ErrAgentParse   = &EngineError{Code: -32043, Message: "agent output did not match expected schema"}
)

// ---- Tracker errors (-32070 to -32099) ----

var (
	ErrTrackerTransient = &EngineError{Code: -32070, Message: "transient tracker error"}
	ErrTrackerFatal     = &EngineError{Code: -32071, Message: "tracker request failed"}
)

// ---- State machine / backlog errors (-32100 to -32129) ----

var (
	ErrStateConflict     = &EngineError{Code: -32100, Message: "issue state precondition not met"}
	ErrDuplicateDecision = &EngineError{Code: -32101, Message: "decision id already tracked"}
	ErrInvalidTransition = &EngineError{Code: -32102, Message: "invalid issue state transition"}
	ErrMaxRoundsExceeded = &EngineError{Code: -32103, Message: "maximum review rounds exceeded"}
	ErrAnalysisEmpty     = &EngineError{Code: -32104, Message: "no ministry produced an assessment"}
	ErrRateLimited       = &EngineError{Code: -32105, Message: "action is rate limited"}
)

// ---- Engine / config / plan errors (-32130 to -32159) ----

var (
	ErrConfigInvalid = &EngineError{Code: -32130, Message: "invalid configuration"}
	ErrPlanInvalid   = &EngineError{Code: -32131, Message: "conductor plan failed validation"}
	ErrEngineCrash   = &EngineError{Code: -32132, Message: "uncaught failure in main loop"}
	ErrRestartAbort  = &EngineError{Code: -32133, Message: "re-exec aborted"}
	ErrStoreInit     = &EngineError{Code: -32134, Message: "failed to initialize store"}
	ErrStoreQuery    = &EngineError{Code: -32135, Message: "store query failed"}
)

// ErrorKind names an error taxonomy kind for telemetry records.
type ErrorKind string

const (
	KindAgentTimeout      ErrorKind = "AgentTimeout"
	KindAgentExecError    ErrorKind = "AgentExecError"
	KindAgentEmpty        ErrorKind = "AgentEmpty"
	KindAgentParseError   ErrorKind = "AgentParseError"
	KindTrackerTransient  ErrorKind = "TrackerTransient"
	KindTrackerFatal      ErrorKind = "TrackerFatal"
	KindStateConflict     ErrorKind = "StateConflict"
	KindDuplicateDecision ErrorKind = "DuplicateDecision"
	KindRateLimited       ErrorKind = "RateLimited"
	KindEngineCrash       ErrorKind = "EngineCrash"
	KindUnknown           ErrorKind = "Unknown"
)

// classifications maps sentinels to taxonomy kinds for telemetry.
var classifications = []struct {
	sentinel *EngineError
	kind     ErrorKind
}{
	{ErrAgentTimeout, KindAgentTimeout},
	{ErrAgentExec, KindAgentExecError},
	{ErrAgentEmpty, KindAgentEmpty},
	{ErrAgentParse, KindAgentParseError},
	{ErrTrackerTransient, KindTrackerTransient},
	{ErrTrackerFatal, KindTrackerFatal},
	{ErrStateConflict, KindStateConflict},
	{ErrDuplicateDecision, KindDuplicateDecision},
	{ErrRateLimited, KindRateLimited},
	{ErrEngineCrash, KindEngineCrash},
}

// Classify maps any error to its taxonomy kind.
func Classify(err error) ErrorKind {
	for _, c := range classifications {
		if errors.Is(err, c.sentinel) {
			return c.kind
		}
	}
	return KindUnknown
}
