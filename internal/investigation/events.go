package investigation

import (
	"encoding/json"
	"fmt"
)

// Named event types multiplexed over the push channel. Anything else is
// dropped at the boundary.
const (
	EventNameStart    = "start"
	EventNameTrace    = "trace"
	EventNameProgress = "progress"
	EventNameComplete = "complete"
	EventNameError    = "error"
)

// Trace subtypes. A trace event always carries the generic node/timestamp
// effect; the subtype adds to it, it never replaces it.
const (
	TraceNodeComplete   = "node_complete"
	TraceToolCall       = "tool_call"
	TraceAgentIteration = "agent_iteration"
	TraceAssessment     = "assessment"
)

// Event is one decoded inbound message. Exactly one concrete type exists
// per named wire event, plus Disconnect for transport-level failures that
// carry no payload.
type Event interface {
	eventName() string
}

// StartEvent declares the run: identifiers plus the full step plan.
type StartEvent struct {
	InvestigationID string         `json:"investigation_id"`
	UserID          string         `json:"user_id"`
	Steps           []WorkflowStep `json:"steps"`
}

// TraceEvent is a fine-grained progress notification from the agent.
// Subtype-specific fields travel in Data.
type TraceEvent struct {
	Type      string                 `json:"type"`
	Node      string                 `json:"node"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// ProgressEvent carries any subset of evidence and result fields. A nil
// map or empty string means the field was absent; present fields overwrite
// state last-write-wins.
type ProgressEvent struct {
	Node  string `json:"node,omitempty"`
	Phase string `json:"phase,omitempty"`

	InitialEvidence  map[string]interface{} `json:"initial_evidence,omitempty"`
	AccountProfile   map[string]interface{} `json:"account_profile,omitempty"`
	NetworkEvidence  *NetworkEvidence       `json:"network_evidence,omitempty"`
	TimelineEvidence map[string]interface{} `json:"timeline_evidence,omitempty"`

	Typology string                 `json:"typology,omitempty"`
	Risk     map[string]interface{} `json:"risk,omitempty"`
	Decision string                 `json:"decision,omitempty"`
	Report   string                 `json:"report,omitempty"`
}

// CompleteEvent marks the run finished.
type CompleteEvent struct {
	InvestigationID string `json:"investigation_id"`
}

// ErrorEvent is an application-level failure reported by the server.
type ErrorEvent struct {
	Message string `json:"error"`
}

// DisconnectEvent is synthesized by the transport when the channel drops
// without a payload. It never arrives on the wire.
type DisconnectEvent struct{}

func (StartEvent) eventName() string      { return EventNameStart }
func (TraceEvent) eventName() string      { return EventNameTrace }
func (ProgressEvent) eventName() string   { return EventNameProgress }
func (CompleteEvent) eventName() string   { return EventNameComplete }
func (ErrorEvent) eventName() string      { return EventNameError }
func (DisconnectEvent) eventName() string { return "disconnect" }

// errorPayload tolerates both "error" and "message" keys from older
// backend versions.
type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DecodeEvent maps a named wire event and its JSON payload to a typed
// Event. Unrecognized names return (nil, nil): the caller drops them.
// Malformed payloads return an error; state stays untouched.
func DecodeEvent(name string, data []byte) (Event, error) {
	switch name {
	case EventNameStart:
		var ev StartEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode start event: %w", err)
		}
		return ev, nil
	case EventNameTrace:
		var ev TraceEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode trace event: %w", err)
		}
		return ev, nil
	case EventNameProgress:
		var ev ProgressEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode progress event: %w", err)
		}
		return ev, nil
	case EventNameComplete:
		var ev CompleteEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode complete event: %w", err)
		}
		return ev, nil
	case EventNameError:
		var p errorPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode error event: %w", err)
		}
		msg := p.Error
		if msg == "" {
			msg = p.Message
		}
		return ErrorEvent{Message: msg}, nil
	default:
		return nil, nil
	}
}

// NetworkEvidence summarizes the account's connection graph.
type NetworkEvidence struct {
	Connections []Connection           `json:"connections,omitempty"`
	Summary     map[string]interface{} `json:"summary,omitempty"`
}

// ConnectionKind tags which upstream shape a connection record arrived in.
type ConnectionKind string

const (
	ConnectionUser   ConnectionKind = "user"
	ConnectionDevice ConnectionKind = "device"
)

// Connection is the canonical form of one network-evidence link. Upstream
// emits two shapes: a flat user-with-risk-score record, and a shared
// device carrying a list of user ids. Both are resolved here, once, at the
// decode boundary; nothing downstream branches on the raw shape again.
type Connection struct {
	Kind      ConnectionKind `json:"kind"`
	ID        string         `json:"id"`
	RiskScore float64        `json:"risk_score,omitempty"`
	Users     []string       `json:"users,omitempty"`
}

// connectionWire is the union of both upstream shapes. The identifier key
// varies by source, so every known alias is declared.
type connectionWire struct {
	UserID    string   `json:"user_id"`
	ID        string   `json:"id"`
	AccountID string   `json:"account_id"`
	RiskScore float64  `json:"risk_score"`
	DeviceID  string   `json:"device_id"`
	Users     []string `json:"users"`
}

// UnmarshalJSON decodes either upstream shape into the canonical form. A
// record with a device id (or a users list) is a device; anything else is
// a user keyed by the first identifier present.
func (c *Connection) UnmarshalJSON(data []byte) error {
	var w connectionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	if w.DeviceID != "" || len(w.Users) > 0 {
		c.Kind = ConnectionDevice
		c.ID = w.DeviceID
		c.Users = w.Users
		return nil
	}

	c.Kind = ConnectionUser
	switch {
	case w.UserID != "":
		c.ID = w.UserID
	case w.AccountID != "":
		c.ID = w.AccountID
	default:
		c.ID = w.ID
	}
	c.RiskScore = w.RiskScore
	return nil
}
