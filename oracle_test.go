package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aktagon/llmkit/anthropic/types"
)

// stubCompletion answers every call with text and records what it was sent
type stubCompletion struct {
	text     string
	err      error
	calls    int
	settings types.RequestSettings
	files    []types.File
	user     string
}

func (s *stubCompletion) complete(systemPrompt, userPrompt, schema string, settings types.RequestSettings, files []types.File) (string, error) {
	s.calls++
	s.settings = settings
	s.files = files
	s.user = userPrompt
	return s.text, s.err
}

const validQualityJSON = `{"approved":true,"realism_score":8,"adherence_score":7,"issues":[],"improved_prompt_notes":"","verdict":"Looks real"}`

func qualityRequest() OracleRequest {
	return OracleRequest{
		Name:       "quality_review",
		UserPrompt: "review",
		Schema:     qualityReviewSchema,
		Settings:   AgentSettings{Model: "test-model", MaxTokens: 100, Temperature: 0.2},
	}
}

func TestAnthropicOracleCall(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantViolation string
	}{
		{name: "valid JSON", text: validQualityJSON},
		{name: "code fenced JSON", text: "```json\n" + validQualityJSON + "\n```"},
		{name: "empty response", text: "  ", wantViolation: "empty response"},
		{name: "prose", text: "The video looks great!", wantViolation: "not JSON"},
		{name: "schema mismatch", text: `{"approved":"yes"}`, wantViolation: "does not match schema"},
		{name: "score out of range", text: strings.Replace(validQualityJSON, `"realism_score":8`, `"realism_score":11`, 1), wantViolation: "does not match schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubCompletion{text: tt.text}
			oracle := newAnthropicOracle(stub.complete)

			var review QualityReview
			err := oracle.Call(context.Background(), qualityRequest(), &review)

			if tt.wantViolation == "" {
				if err != nil {
					t.Fatalf("Call() error = %v", err)
				}
				if !review.Approved || review.RealismScore != 8 || review.Verdict != "Looks real" {
					t.Errorf("Call() decoded %+v", review)
				}
				return
			}

			var pve *ProtocolViolationError
			if !errors.As(err, &pve) {
				t.Fatalf("Call() error = %v, want ProtocolViolationError", err)
			}
			if pve.Oracle != "quality_review" || !strings.Contains(pve.Detail, tt.wantViolation) {
				t.Errorf("Call() violation = %+v, want detail containing %q", pve, tt.wantViolation)
			}
		})
	}
}

func TestAnthropicOracleTransportError(t *testing.T) {
	stub := &stubCompletion{err: errors.New("529 overloaded")}
	oracle := newAnthropicOracle(stub.complete)

	err := oracle.Call(context.Background(), qualityRequest(), &QualityReview{})

	var pve *ProtocolViolationError
	if err == nil || errors.As(err, &pve) {
		t.Fatalf("Call() error = %v, want a wrapped transport error", err)
	}
	if !strings.Contains(err.Error(), "529 overloaded") {
		t.Errorf("Call() error = %v, want cause preserved", err)
	}
}

func TestAnthropicOracleForwardsSettingsAndFiles(t *testing.T) {
	stub := &stubCompletion{text: validQualityJSON}
	oracle := newAnthropicOracle(stub.complete)

	req := qualityRequest()
	req.Files = []types.File{{ID: "file_1"}, {ID: "file_2"}}
	if err := oracle.Call(context.Background(), req, &QualityReview{}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	if stub.settings.Model != "test-model" || stub.settings.MaxTokens != 100 {
		t.Errorf("settings = %+v, want request settings", stub.settings)
	}
	if len(stub.files) != 2 || stub.files[1].ID != "file_2" {
		t.Errorf("files = %+v, want both frames", stub.files)
	}
}

func TestAnthropicOracleCachesSchemas(t *testing.T) {
	stub := &stubCompletion{text: validQualityJSON}
	oracle := newAnthropicOracle(stub.complete)

	for i := 0; i < 3; i++ {
		if err := oracle.Call(context.Background(), qualityRequest(), &QualityReview{}); err != nil {
			t.Fatalf("Call() error = %v", err)
		}
	}
	if len(oracle.schemas) != 1 {
		t.Errorf("compiled %d schemas, want 1", len(oracle.schemas))
	}
}

func TestAnthropicOracleCancelledContext(t *testing.T) {
	stub := &stubCompletion{text: validQualityJSON}
	oracle := newAnthropicOracle(stub.complete)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := oracle.Call(ctx, qualityRequest(), &QualityReview{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Call() error = %v, want context.Canceled", err)
	}
	if stub.calls != 0 {
		t.Error("cancelled call reached the model")
	}
}

func TestEmbeddedSchemasCompile(t *testing.T) {
	schemas := map[string]string{
		"planner":        plannerSchema,
		"concept":        conceptSchema,
		"content_review": contentReviewSchema,
		"quality_review": qualityReviewSchema,
	}
	for name, source := range schemas {
		if _, err := compileSchema(name, source); err != nil {
			t.Errorf("compileSchema(%s) error = %v", name, err)
		}
	}
}

func TestNewAnthropicOracleRequiresKey(t *testing.T) {
	if _, err := NewAnthropicOracle(""); err == nil {
		t.Error("NewAnthropicOracle() accepted an empty key")
	}
}
