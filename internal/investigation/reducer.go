package investigation

// Reduce folds one inbound event into the state and returns the next
// state. It is pure: no I/O, no clock, no channel access. The transport
// owns delivery order; the reducer tolerates duplicate delivery of
// node_complete and never reorders by embedded timestamps.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case StartEvent:
		s.InvestigationID = e.InvestigationID
		s.UserID = e.UserID
		s.Steps = e.Steps
		s.Status = StatusRunning

	case TraceEvent:
		s = reduceTrace(s, e)

	case ProgressEvent:
		s = reduceProgress(s, e)

	case CompleteEvent:
		s.Status = StatusCompleted
		s.Error = ""

	case ErrorEvent:
		s.Status = StatusError
		s.Error = e.Message

	case DisconnectEvent:
		// A trailing disconnect after completion is expected, not a failure.
		if s.Status == StatusCompleted {
			s.Error = ""
		} else {
			s.Status = StatusError
			s.Error = "Connection lost"
		}
	}
	return s
}

// reduceTrace applies the generic trace effect (record position, append to
// the audit log) and then the subtype-specific effect. The two are never
// mutually exclusive.
func reduceTrace(s State, e TraceEvent) State {
	if e.Node != "" {
		s.CurrentNode = e.Node
	}
	s.TraceEvents = append(s.TraceEvents, e)

	switch e.Type {
	case TraceNodeComplete:
		s.CompletedSteps = appendStepOnce(s.CompletedSteps, e.Node)

	case TraceToolCall:
		s.ToolCalls = append(s.ToolCalls, ToolCall{
			Tool:      stringField(e.Data, "tool"),
			Params:    mapField(e.Data, "params"),
			Timestamp: e.Timestamp,
			Iteration: intField(e.Data, "iteration"),
		})

	case TraceAgentIteration:
		if n := intField(e.Data, "iteration"); n > s.AgentIterations {
			s.AgentIterations = n
		}

	case TraceAssessment:
		next := &FinalAssessment{
			Typology:      stringField(e.Data, "typology"),
			RiskLevel:     stringField(e.Data, "risk_level"),
			RiskScore:     floatField(e.Data, "risk_score"),
			Decision:      stringField(e.Data, "decision"),
			Reasoning:     stringField(e.Data, "reasoning"),
			Iteration:     intField(e.Data, "iteration"),
			ToolCallsMade: len(s.ToolCalls),
		}
		// A stale re-delivery must not roll the assessment back.
		if s.FinalAssessment == nil || next.Iteration >= s.FinalAssessment.Iteration {
			s.FinalAssessment = next
		}
	}
	return s
}

// reduceProgress overwrites each recognized field that is present.
func reduceProgress(s State, e ProgressEvent) State {
	if e.Node != "" {
		s.CurrentNode = e.Node
	}
	if e.Phase != "" {
		s.CurrentPhase = e.Phase
	}
	if e.InitialEvidence != nil {
		s.InitialEvidence = e.InitialEvidence
	}
	if e.AccountProfile != nil {
		s.AccountProfile = e.AccountProfile
	}
	if e.NetworkEvidence != nil {
		s.NetworkEvidence = e.NetworkEvidence
	}
	if e.TimelineEvidence != nil {
		s.TimelineEvidence = e.TimelineEvidence
	}
	if e.Typology != "" {
		s.Typology = e.Typology
	}
	if e.Risk != nil {
		s.Risk = e.Risk
	}
	if e.Decision != "" {
		s.Decision = e.Decision
	}
	if e.Report != "" {
		s.Report = e.Report
	}
	return s
}

// appendStepOnce appends id to the ordered set unless it is already
// present. Re-delivery of node_complete is a no-op.
func appendStepOnce(steps []string, id string) []string {
	if id == "" {
		return steps
	}
	for _, existing := range steps {
		if existing == id {
			return steps
		}
	}
	return append(steps, id)
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func mapField(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

// intField reads a numeric field. JSON numbers decode as float64; integer
// values from tests or re-encoded payloads are accepted too.
func intField(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func floatField(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
