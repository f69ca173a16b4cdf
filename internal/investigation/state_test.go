package investigation

import "testing"

func TestProgress(t *testing.T) {
	tests := []struct {
		name      string
		steps     int
		completed int
		want      int
	}{
		{name: "no steps declared", steps: 0, completed: 0, want: 0},
		{name: "nothing completed", steps: 4, completed: 0, want: 0},
		{name: "half done", steps: 4, completed: 2, want: 50},
		{name: "rounds to nearest", steps: 3, completed: 1, want: 33},
		{name: "rounds up", steps: 3, completed: 2, want: 67},
		{name: "all done", steps: 4, completed: 4, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewState()
			for i := 0; i < tt.steps; i++ {
				st.Steps = append(st.Steps, WorkflowStep{ID: string(rune('a' + i))})
			}
			for i := 0; i < tt.completed; i++ {
				st.CompletedSteps = append(st.CompletedSteps, string(rune('a'+i)))
			}
			if got := st.Progress(); got != tt.want {
				t.Errorf("Progress() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStepStatus(t *testing.T) {
	st := NewState()
	st.Steps = CanonicalSteps()
	st.CompletedSteps = []string{"evidence_validation"}
	st.CurrentNode = "data_collection"

	if got := st.StepStatus("evidence_validation"); got != StepCompleted {
		t.Errorf("completed step reported %v", got)
	}
	if got := st.StepStatus("data_collection"); got != StepRunning {
		t.Errorf("current step reported %v", got)
	}
	if got := st.StepStatus("fraud_analysis"); got != StepPending {
		t.Errorf("future step reported %v", got)
	}
}

func TestStepStatusCompletionWins(t *testing.T) {
	// A step can be both completed and current when the stream replays;
	// completion wins.
	st := NewState()
	st.CompletedSteps = []string{"data_collection"}
	st.CurrentNode = "data_collection"

	if got := st.StepStatus("data_collection"); got != StepCompleted {
		t.Errorf("StepStatus = %v, want completed", got)
	}
}

func TestCanonicalSteps(t *testing.T) {
	steps := CanonicalSteps()
	if len(steps) != 4 {
		t.Fatalf("got %d canonical steps, want 4", len(steps))
	}
	last := steps[len(steps)-1]
	if last.ID != TerminalNode {
		t.Errorf("last step id = %q, want %q", last.ID, TerminalNode)
	}
	if last.Phase != TerminalPhase {
		t.Errorf("last step phase = %q, want %q", last.Phase, TerminalPhase)
	}

	ids := CanonicalStepIDs()
	for i, st := range steps {
		if ids[i] != st.ID {
			t.Errorf("id %d = %q, want %q", i, ids[i], st.ID)
		}
	}
}

func TestNewState(t *testing.T) {
	st := NewState()
	if st.Status != StatusIdle {
		t.Errorf("status = %v, want idle", st.Status)
	}
	if st.Progress() != 0 {
		t.Errorf("pristine progress = %d, want 0", st.Progress())
	}
}
