package main

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// scriptedPlanner returns its turns in order and then keeps requesting actions
type scriptedPlanner struct {
	turns       []*PlannerTurn
	err         error
	calls       int
	transcripts [][]TranscriptEntry
}

func (p *scriptedPlanner) NextTurn(ctx context.Context, transcript []TranscriptEntry) (*PlannerTurn, error) {
	p.transcripts = append(p.transcripts, append([]TranscriptEntry(nil), transcript...))
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if p.calls <= len(p.turns) {
		return p.turns[p.calls-1], nil
	}
	return toolUse("fetch_recent_items"), nil
}

func toolUse(names ...string) *PlannerTurn {
	turn := &PlannerTurn{StopReason: StopToolUse}
	for i, name := range names {
		turn.Actions = append(turn.Actions, ActionRequest{ID: fmt.Sprintf("call-%d", i+1), Name: name, Input: json.RawMessage(`{}`)})
	}
	return turn
}

type recordingDispatcher struct {
	names []string
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, name string, input json.RawMessage) ToolResult {
	d.names = append(d.names, name)
	return ToolResult{Content: fmt.Sprintf(`{"action":%q}`, name)}
}

func TestAgentRunExhaustsBudget(t *testing.T) {
	planner := &scriptedPlanner{}
	for i := 0; i < 25; i++ {
		planner.turns = append(planner.turns, toolUse("fetch_recent_items"))
	}
	dispatcher := &recordingDispatcher{}
	metrics := NewPipelineMetrics()

	result := NewAgent(planner, dispatcher, 20, metrics).Run(context.Background(), "post something")

	if result != IterationBudgetExhausted {
		t.Errorf("Run() = %q, want %q", result, IterationBudgetExhausted)
	}
	if planner.calls != 20 {
		t.Errorf("planner called %d times, want 20", planner.calls)
	}
	if got := testutil.ToFloat64(metrics.plannerIterations); got != 20 {
		t.Errorf("planner iterations metric = %v, want 20", got)
	}
	if got := testutil.ToFloat64(metrics.runs.WithLabelValues("exhausted")); got != 1 {
		t.Errorf("exhausted runs metric = %v, want 1", got)
	}
}

func TestAgentRunCompletion(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "with text", text: "Published two posts.", want: "Published two posts."},
		{name: "without text", text: "  ", want: NoTextualResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planner := &scriptedPlanner{turns: []*PlannerTurn{
				toolUse("fetch_recent_items"),
				{StopReason: StopEndTurn, Text: tt.text},
			}}

			result := NewAgent(planner, &recordingDispatcher{}, 20, nil).Run(context.Background(), "post something")

			if result != tt.want {
				t.Errorf("Run() = %q, want %q", result, tt.want)
			}
			if planner.calls != 2 {
				t.Errorf("planner called %d times, want 2", planner.calls)
			}
		})
	}
}

func TestAgentRunStopsOnUnexpectedTurn(t *testing.T) {
	tests := []struct {
		name    string
		planner *scriptedPlanner
	}{
		{name: "tool_use without actions", planner: &scriptedPlanner{turns: []*PlannerTurn{{StopReason: StopToolUse}}}},
		{name: "unknown stop reason", planner: &scriptedPlanner{turns: []*PlannerTurn{{StopReason: "max_tokens", Text: "cut off"}}}},
		{name: "planner error", planner: &scriptedPlanner{err: &ProtocolViolationError{Oracle: "planner", Detail: "empty response"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := &recordingDispatcher{}

			result := NewAgent(tt.planner, dispatcher, 20, nil).Run(context.Background(), "post something")

			if result != IterationBudgetExhausted {
				t.Errorf("Run() = %q, want %q", result, IterationBudgetExhausted)
			}
			if tt.planner.calls != 1 {
				t.Errorf("planner called %d times, want 1 (not retried)", tt.planner.calls)
			}
			if len(dispatcher.names) != 0 {
				t.Errorf("dispatched %v, want nothing", dispatcher.names)
			}
		})
	}
}

func TestAgentRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	planner := &scriptedPlanner{}

	result := NewAgent(planner, &recordingDispatcher{}, 20, nil).Run(ctx, "post something")

	if result != IterationBudgetExhausted || planner.calls != 0 {
		t.Errorf("Run() = %q after %d planner calls, want budget message and no calls", result, planner.calls)
	}
}

func TestAgentRunPreservesActionOrder(t *testing.T) {
	planner := &scriptedPlanner{turns: []*PlannerTurn{
		toolUse("create_video_concept", "synthesize_video", "arbitrate_video_quality"),
		{StopReason: StopEndTurn, Text: "done"},
	}}
	dispatcher := &recordingDispatcher{}

	NewAgent(planner, dispatcher, 20, nil).Run(context.Background(), "post something")

	want := []string{"create_video_concept", "synthesize_video", "arbitrate_video_quality"}
	if fmt.Sprint(dispatcher.names) != fmt.Sprint(want) {
		t.Errorf("dispatch order = %v, want %v", dispatcher.names, want)
	}

	// second planner call sees: request, planner turn, tool results
	transcript := planner.transcripts[1]
	if len(transcript) != 3 {
		t.Fatalf("transcript has %d entries, want 3", len(transcript))
	}
	if transcript[0].Role != RoleUser || transcript[0].Text != "post something" {
		t.Errorf("transcript[0] = %+v, want the request", transcript[0])
	}
	results := transcript[2].Results
	if transcript[2].Role != RoleTool || len(results) != 3 {
		t.Fatalf("transcript[2] = %+v, want three tool results", transcript[2])
	}
	for i, res := range results {
		if res.Name != want[i] || res.ID != fmt.Sprintf("call-%d", i+1) {
			t.Errorf("result %d = %s/%s, want %s/call-%d", i, res.ID, res.Name, want[i], i+1)
		}
	}
}

func TestAgentRunWithDispatcherAndUnknownAction(t *testing.T) {
	planner := &scriptedPlanner{turns: []*PlannerTurn{
		toolUse("publish_instagram_post", "launch_rocket"),
		{StopReason: StopEndTurn, Text: "gave up"},
	}}
	f := newDispatcherFixture()

	result := NewAgent(planner, f.dispatcher, 20, f.metrics).Run(context.Background(), "post something")

	if result != "gave up" {
		t.Errorf("Run() = %q, want planner text", result)
	}
	results := planner.transcripts[1][2].Results
	if !results[0].IsError || !results[1].IsError {
		t.Errorf("results = %+v, want both folded back as errors", results)
	}
	if got := testutil.ToFloat64(f.metrics.dispatches.WithLabelValues("unknown", "true")); got != 1 {
		t.Errorf("unknown dispatch metric = %v, want 1", got)
	}
	if got := testutil.ToFloat64(f.metrics.runs.WithLabelValues("completed")); got != 1 {
		t.Errorf("completed runs metric = %v, want 1", got)
	}
}

func TestNewAgentDefaultCap(t *testing.T) {
	agent := NewAgent(&scriptedPlanner{}, &recordingDispatcher{}, 0, nil)
	if agent.maxIterations != defaultMaxIterations {
		t.Errorf("maxIterations = %d, want %d", agent.maxIterations, defaultMaxIterations)
	}
}
