package audit

import "time"

// EventType represents the type of audit event
type EventType string

const (
	// Investigation lifecycle events
	EventInvestigationStarted   EventType = "investigation.started"
	EventInvestigationCompleted EventType = "investigation.completed"
	EventInvestigationFailed    EventType = "investigation.failed"
	EventInvestigationReset     EventType = "investigation.reset"
	EventInvestigationResumed   EventType = "investigation.resumed"

	// Stream events
	EventStreamConnected    EventType = "stream.connected"
	EventStreamDisconnected EventType = "stream.disconnected"
	EventStreamEventDropped EventType = "stream.event_dropped"

	// Snapshot events
	EventSnapshotLoaded EventType = "snapshot.loaded"
	EventSnapshotMissed EventType = "snapshot.missed"

	// Configuration events
	EventConfigLoaded  EventType = "config.loaded"
	EventConfigChanged EventType = "config.changed"

	// System events
	EventClientStarted  EventType = "system.client_started"
	EventClientShutdown EventType = "system.client_shutdown"
)

// Result represents the outcome of an audited action
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultPending Result = "pending"
)

// Event represents a single audit event
type Event struct {
	// Core fields
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	EventType     EventType `json:"event_type"`
	Result        Result    `json:"result"`

	// Subject information
	UserID          string `json:"user_id,omitempty"`
	InvestigationID string `json:"investigation_id,omitempty"`

	// Details
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`

	// Error information
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`

	// Duration tracking
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// NewEvent creates a new audit event with default values
func NewEvent(eventType EventType) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Result:    ResultPending,
		Metadata:  make(map[string]interface{}),
	}
}

// WithCorrelationID sets the correlation ID for event tracking
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// WithUser sets the user the investigation belongs to
func (e *Event) WithUser(userID string) *Event {
	e.UserID = userID
	return e
}

// WithInvestigation sets the investigation being acted upon
func (e *Event) WithInvestigation(id string) *Event {
	e.InvestigationID = id
	return e
}

// WithDescription sets a human-readable description
func (e *Event) WithDescription(desc string) *Event {
	e.Description = desc
	return e
}

// WithResult sets the result of the event
func (e *Event) WithResult(result Result) *Event {
	e.Result = result
	return e
}

// WithError sets error information
func (e *Event) WithError(err error, code string) *Event {
	if err != nil {
		e.Error = err.Error()
		e.ErrorCode = code
		e.Result = ResultFailure
	}
	return e
}

// WithDuration sets the duration in milliseconds
func (e *Event) WithDuration(duration time.Duration) *Event {
	e.DurationMs = duration.Milliseconds()
	return e
}

// WithMetadata adds metadata to the event
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	e.Metadata[key] = value
	return e
}
