package main

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// OracleRequest is a single structured-output call
type OracleRequest struct {
	Name         string // used in errors, logs and as the schema cache key
	SystemPrompt string
	UserPrompt   string
	Schema       string
	Settings     AgentSettings
	Files        []types.File
}

// StructuredOracle calls an external model that must answer with exactly one
// JSON document matching req.Schema, decoded into out.
type StructuredOracle interface {
	Call(ctx context.Context, req OracleRequest, out any) error
}

// ProtocolViolationError reports a response without schema-conforming structured output
type ProtocolViolationError struct {
	Oracle string
	Detail string
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("%s returned no valid structured output: %s", e.Oracle, e.Detail)
}

// completionFunc returns the text of the first content block of a response
type completionFunc func(systemPrompt, userPrompt, schema string, settings types.RequestSettings, files []types.File) (string, error)

// AnthropicOracle implements StructuredOracle on top of llmkit structured output
type AnthropicOracle struct {
	complete completionFunc

	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
}

// NewAnthropicOracle creates an oracle bound to apiKey
func NewAnthropicOracle(apiKey string) (*AnthropicOracle, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key required: use --api-key flag or ANTHROPIC_API_KEY environment variable")
	}
	return newAnthropicOracle(anthropicCompletion(apiKey)), nil
}

func newAnthropicOracle(complete completionFunc) *AnthropicOracle {
	return &AnthropicOracle{
		complete: complete,
		schemas:  make(map[string]*jsonschema.Schema),
	}
}

func anthropicCompletion(apiKey string) completionFunc {
	return func(systemPrompt, userPrompt, schema string, settings types.RequestSettings, files []types.File) (string, error) {
		response, err := anthropic.PromptWithSettings(systemPrompt, userPrompt, schema, apiKey, settings, files...)
		if err != nil {
			return "", err
		}
		if len(response.Content) == 0 {
			return "", nil
		}
		return response.Content[0].Text, nil
	}
}

// Call sends req and decodes the validated structured output into out.
// Violations are not retried; the caller decides how to surface them.
func (o *AnthropicOracle) Call(ctx context.Context, req OracleRequest, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	schema, err := o.compile(req.Name, req.Schema)
	if err != nil {
		return err
	}

	settings := types.RequestSettings{
		Model:       req.Settings.Model,
		MaxTokens:   req.Settings.MaxTokens,
		Temperature: req.Settings.Temperature,
	}
	debugLog("%s request: %d chars system, %d chars user, %d files", req.Name, len(req.SystemPrompt), len(req.UserPrompt), len(req.Files))

	text, err := o.complete(req.SystemPrompt, req.UserPrompt, req.Schema, settings, req.Files)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", req.Name, err)
	}
	debugLog("%s response: %s", req.Name, text)

	return decodeStructured(req.Name, schema, text, out)
}

func (o *AnthropicOracle) compile(name, source string) (*jsonschema.Schema, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if schema, ok := o.schemas[name]; ok {
		return schema, nil
	}
	schema, err := compileSchema(name, source)
	if err != nil {
		return nil, err
	}
	o.schemas[name] = schema
	return schema, nil
}

func compileSchema(name, source string) (*jsonschema.Schema, error) {
	resource := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resource, strings.NewReader(source)); err != nil {
		return nil, fmt.Errorf("add %s schema resource: %w", name, err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return schema, nil
}

func decodeStructured(name string, schema *jsonschema.Schema, text string, out any) error {
	text = stripCodeFence(text)
	if text == "" {
		return &ProtocolViolationError{Oracle: name, Detail: "empty response"}
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return &ProtocolViolationError{Oracle: name, Detail: fmt.Sprintf("response is not JSON: %v", err)}
	}
	if err := schema.Validate(doc); err != nil {
		return &ProtocolViolationError{Oracle: name, Detail: fmt.Sprintf("response does not match schema: %v", err)}
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return &ProtocolViolationError{Oracle: name, Detail: fmt.Sprintf("decoding response: %v", err)}
	}
	return nil
}

var codeFenceRegex = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// stripCodeFence removes a markdown code fence some models wrap around JSON
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if m := codeFenceRegex.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}
