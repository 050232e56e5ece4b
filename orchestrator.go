package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

const (
	// NoTextualResponse is returned when the planner completes without text
	NoTextualResponse = "(no textual response)"
	// IterationBudgetExhausted is returned whenever the run ends without a planner completion
	IterationBudgetExhausted = "Maximum number of iterations reached."
)

// Stop reasons the planner may report
const (
	StopEndTurn = "end_turn"
	StopToolUse = "tool_use"
)

// Role identifies the author of a transcript entry
type Role string

const (
	RoleUser    Role = "user"
	RolePlanner Role = "planner"
	RoleTool    Role = "tool"
)

// ActionRequest is one action the planner asked for
type ActionRequest struct {
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// PlannerTurn is the planner's structured answer for one iteration
type PlannerTurn struct {
	StopReason string          `json:"stop_reason"`
	Text       string          `json:"text,omitempty"`
	Actions    []ActionRequest `json:"actions,omitempty"`
}

// ActionResult is a dispatched action's outcome as shown to the planner
type ActionResult struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Content json.RawMessage `json:"content"`
	IsError bool            `json:"is_error"`
}

// TranscriptEntry is one append-only element of the run history
type TranscriptEntry struct {
	Role    Role            `json:"role"`
	Text    string          `json:"text,omitempty"`
	Actions []ActionRequest `json:"actions,omitempty"`
	Results []ActionResult  `json:"results,omitempty"`
}

// Planner proposes the next step from the transcript
type Planner interface {
	NextTurn(ctx context.Context, transcript []TranscriptEntry) (*PlannerTurn, error)
}

// ActionDispatcher executes one planner action
type ActionDispatcher interface {
	Dispatch(ctx context.Context, name string, input json.RawMessage) ToolResult
}

// Agent runs the planner loop
type Agent struct {
	planner       Planner
	dispatcher    ActionDispatcher
	maxIterations int
	metrics       *PipelineMetrics
}

// NewAgent creates an agent; a non-positive maxIterations selects the default cap
func NewAgent(planner Planner, dispatcher ActionDispatcher, maxIterations int, metrics *PipelineMetrics) *Agent {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	return &Agent{planner: planner, dispatcher: dispatcher, maxIterations: maxIterations, metrics: metrics}
}

// Run drives the planner until it completes or the iteration cap is hit.
// It always returns a message; planner failures end the run like an exhausted budget.
func (a *Agent) Run(ctx context.Context, request string) string {
	runID := uuid.NewString()
	log.Printf("→ Run %s started (max %d iterations)", runID, a.maxIterations)

	transcript := []TranscriptEntry{{Role: RoleUser, Text: request}}

	for i := 1; i <= a.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			log.Printf("✗ Run %s cancelled: %v", runID, err)
			break
		}

		a.metrics.PlannerIteration()
		log.Printf("→ Planner iteration %d/%d", i, a.maxIterations)
		turn, err := a.planner.NextTurn(ctx, transcript)
		if err != nil {
			log.Printf("✗ Planner failed: %v", err)
			break
		}
		if strings.TrimSpace(turn.Text) != "" {
			log.Printf("Planner: %s", turn.Text)
		}

		if turn.StopReason == StopEndTurn {
			log.Printf("✓ Run %s completed after %d iteration(s)", runID, i)
			a.metrics.RunFinished("completed")
			if strings.TrimSpace(turn.Text) == "" {
				return NoTextualResponse
			}
			return turn.Text
		}
		if turn.StopReason != StopToolUse || len(turn.Actions) == 0 {
			log.Printf("✗ Unexpected planner stop (reason %q, %d actions)", turn.StopReason, len(turn.Actions))
			break
		}

		transcript = append(transcript, TranscriptEntry{Role: RolePlanner, Text: turn.Text, Actions: turn.Actions})

		results := make([]ActionResult, 0, len(turn.Actions))
		for j, action := range turn.Actions {
			id := action.ID
			if id == "" {
				id = fmt.Sprintf("action-%d-%d", i, j+1)
			}
			res := a.dispatcher.Dispatch(ctx, action.Name, action.Input)
			content := json.RawMessage(res.Content)
			if !json.Valid(content) {
				content, _ = json.Marshal(res.Content)
			}
			results = append(results, ActionResult{
				ID:      id,
				Name:    action.Name,
				Content: content,
				IsError: res.IsError,
			})
		}
		transcript = append(transcript, TranscriptEntry{Role: RoleTool, Results: results})
	}

	log.Printf("✗ Run %s ended without completion", runID)
	a.metrics.RunFinished("exhausted")
	return IterationBudgetExhausted
}
