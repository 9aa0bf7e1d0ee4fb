package domain

import "time"

// YieldKind names the observable public output of a cycle.
type YieldKind string

const (
	YieldNone              YieldKind = "none"
	YieldPRMerged          YieldKind = "pr_merged"
	YieldAnalysisPublished YieldKind = "analysis_published"
)

// PhaseError is the structured error attached to a failed phase.
type PhaseError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Stack   string    `json:"stack,omitempty"`
}

// CyclePhaseResult records one executed action within a cycle.
type CyclePhaseResult struct {
	Action    string      `json:"action"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   time.Time   `json:"ended_at"`
	Success   bool        `json:"success"`
	Detail    string      `json:"detail,omitempty"`
	Error     *PhaseError `json:"error,omitempty"`
}

// CycleTelemetry is one cycle record, serialized as one JSON line.
type CycleTelemetry struct {
	CycleNumber        int                `json:"cycle_number"`
	StartedAt          time.Time          `json:"started_at"`
	EndedAt            time.Time          `json:"ended_at"`
	Productive         bool               `json:"productive"`
	Phases             []CyclePhaseResult `json:"phases"`
	ConductorReasoning string             `json:"conductor_reasoning,omitempty"`
	ConductorActions   []string           `json:"conductor_actions,omitempty"`
	ConductorFallback  bool               `json:"conductor_fallback"`
	YieldKind          YieldKind          `json:"yield_kind"`
	DryRun             bool               `json:"dry_run,omitempty"`
	Errors             []string           `json:"errors,omitempty"`
}

// StructuredError is one line of errors.jsonl.
type StructuredError struct {
	Timestamp   time.Time `json:"ts"`
	CycleNumber int       `json:"cycle_number"`
	Phase       string    `json:"phase"`
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	IssueNumber int       `json:"issue_number,omitempty"`
}

// JournalEntry is one line of the conductor journal. The last ten entries
// are fed back to the conductor as context on the next cycle.
type JournalEntry struct {
	CycleNumber int       `json:"cycle_number"`
	Timestamp   time.Time `json:"ts"`
	Reasoning   string    `json:"reasoning"`
	Actions     []string  `json:"actions"`
	Notes       string    `json:"notes,omitempty"`
	Fallback    bool      `json:"fallback,omitempty"`
}
