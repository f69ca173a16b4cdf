package investigation

import "math"

// Package investigation holds the event vocabulary and state record for a
// single fraud-investigation run, plus the pure reducer that folds inbound
// stream events into that record.
//
// Responsibilities:
//   - Define the typed vocabulary of inbound stream events
//   - Maintain the single InvestigationState record for the active run
//   - Fold events into state idempotently and monotonically (reducer.go)
//   - Derive step status and completion percentage from state
//
// The record is created fresh on Start or Reset, mutated only through
// Reduce, and discarded wholesale when a new run begins. Consumers read
// snapshots; they never write.

// Status tracks the run's position in the lifecycle state machine.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// WorkflowStep is one declared phase of the background investigation.
type WorkflowStep struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Phase       string `json:"phase"`
}

// ToolCall records a single tool invocation made by the investigating agent.
// Duplicates are preserved: each call is a distinct real invocation.
type ToolCall struct {
	Tool      string                 `json:"tool"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Iteration int                    `json:"iteration"`
}

// FinalAssessment is the agent's summary verdict for the run.
type FinalAssessment struct {
	Typology      string  `json:"typology"`
	RiskLevel     string  `json:"risk_level"`
	RiskScore     float64 `json:"risk_score"`
	Decision      string  `json:"decision"`
	Reasoning     string  `json:"reasoning"`
	Iteration     int     `json:"iteration"`
	ToolCallsMade int     `json:"tool_calls_made"`
}

// State is the reconciled view of one investigation run.
//
// CompletedSteps is an ordered set: insertion order is preserved for
// display, and no id ever appears twice or is removed. TraceEvents is an
// append-only audit log, never truncated or reordered. AgentIterations
// never decreases.
type State struct {
	InvestigationID string `json:"investigation_id"`
	UserID          string `json:"user_id"`
	Status          Status `json:"status"`

	CurrentNode  string `json:"current_node"`
	CurrentPhase string `json:"current_phase"`

	Steps          []WorkflowStep `json:"steps"`
	CompletedSteps []string       `json:"completed_steps"`
	TraceEvents    []TraceEvent   `json:"trace_events"`
	ToolCalls      []ToolCall     `json:"tool_calls"`

	AgentIterations int              `json:"agent_iterations"`
	FinalAssessment *FinalAssessment `json:"final_assessment,omitempty"`

	// Evidence collected during the run. Last write wins per field; the
	// upstream workflow may legitimately re-emit a corrected value.
	InitialEvidence  map[string]interface{} `json:"initial_evidence,omitempty"`
	AccountProfile   map[string]interface{} `json:"account_profile,omitempty"`
	NetworkEvidence  *NetworkEvidence       `json:"network_evidence,omitempty"`
	TimelineEvidence map[string]interface{} `json:"timeline_evidence,omitempty"`

	// Legacy result fields kept for older stream producers.
	Typology string                 `json:"typology,omitempty"`
	Risk     map[string]interface{} `json:"risk,omitempty"`
	Decision string                 `json:"decision,omitempty"`
	Report   string                 `json:"report,omitempty"`

	// Error is set only while Status == StatusError.
	Error string `json:"error,omitempty"`
}

// NewState returns the pristine default record.
func NewState() State {
	return State{Status: StatusIdle}
}

// StepState is the derived display status of a single workflow step.
type StepState string

const (
	StepPending   StepState = "pending"
	StepRunning   StepState = "running"
	StepCompleted StepState = "completed"
)

// StepStatus derives the status of one step. A step cannot be both
// completed and current: completion wins.
func (s State) StepStatus(stepID string) StepState {
	for _, id := range s.CompletedSteps {
		if id == stepID {
			return StepCompleted
		}
	}
	if s.CurrentNode == stepID {
		return StepRunning
	}
	return StepPending
}

// Progress returns the 0-100 completion percentage. It is always derived
// from step counts and never stored, so it cannot drift.
func (s State) Progress() int {
	if len(s.Steps) == 0 {
		return 0
	}
	return int(math.Round(100 * float64(len(s.CompletedSteps)) / float64(len(s.Steps))))
}

// Canonical workflow used when a snapshot omits the declared steps. The
// terminal node and phase match the last canonical step.
const (
	TerminalNode  = "report_generation"
	TerminalPhase = "reporting"
)

// CanonicalSteps returns the fixed four-step investigation workflow.
func CanonicalSteps() []WorkflowStep {
	return []WorkflowStep{
		{ID: "evidence_validation", Name: "Evidence Validation", Description: "Validate and triage the initial fraud signals", Phase: "validation"},
		{ID: "data_collection", Name: "Data Collection", Description: "Gather account, network and timeline evidence", Phase: "collection"},
		{ID: "fraud_analysis", Name: "Fraud Analysis", Description: "Agent-driven typology and risk analysis", Phase: "analysis"},
		{ID: TerminalNode, Name: "Report Generation", Description: "Produce the final investigation report", Phase: TerminalPhase},
	}
}

// CanonicalStepIDs returns the ids of CanonicalSteps in order.
func CanonicalStepIDs() []string {
	steps := CanonicalSteps()
	ids := make([]string, len(steps))
	for i, st := range steps {
		ids[i] = st.ID
	}
	return ids
}
