package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	ratioPortrait  = "720:1280" // Instagram Reels
	ratioLandscape = "1280:720" // Facebook video
)

// ErrSynthesisTimeout is returned by the poll loop when the deadline passes
var ErrSynthesisTimeout = errors.New("video synthesis timed out")

// VideoSynthesizer generates a video from a concept. It never returns an error:
// failures are reported as a failed VideoGenerationResult.
type VideoSynthesizer interface {
	Generate(ctx context.Context, concept *VideoConcept, platform Platform, improvementNotes string) VideoGenerationResult
}

// RunwayClient talks to the Runway text-to-video API
type RunwayClient struct {
	baseURL        string
	apiSecret      string
	apiVersion     string
	model          string
	duration       int
	pollInterval   time.Duration
	timeout        time.Duration
	maxPromptChars int
	client         *http.Client
}

// NewRunwayClient creates a client from the video settings
func NewRunwayClient(apiSecret string, settings VideoSettings) *RunwayClient {
	if settings.PollIntervalSeconds <= 0 {
		settings.PollIntervalSeconds = 5
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = 420
	}
	return &RunwayClient{
		baseURL:        strings.TrimRight(settings.BaseURL, "/"),
		apiSecret:      apiSecret,
		apiVersion:     settings.APIVersion,
		model:          settings.Model,
		duration:       settings.DurationSeconds,
		pollInterval:   time.Duration(settings.PollIntervalSeconds) * time.Second,
		timeout:        time.Duration(settings.TimeoutSeconds) * time.Second,
		maxPromptChars: settings.MaxPromptChars,
		client:         &http.Client{Timeout: 30 * time.Second},
	}
}

type runwayTask struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Output  []string `json:"output"`
	Failure string   `json:"failure"`
}

// Generate implements VideoSynthesizer
func (c *RunwayClient) Generate(ctx context.Context, concept *VideoConcept, platform Platform, improvementNotes string) VideoGenerationResult {
	prompt := BuildVideoPrompt(concept, improvementNotes, c.maxPromptChars)
	ratio := ratioLandscape
	if platform == PlatformInstagram {
		ratio = ratioPortrait
	}

	log.Printf("→ Starting video synthesis (%s, %s)", c.model, ratio)
	taskID, err := c.createTask(ctx, prompt, ratio)
	if err != nil {
		log.Printf("✗ Video synthesis request failed: %v", err)
		return synthesisFailed(err)
	}

	videoURL, err := c.pollTask(ctx, taskID)
	if err != nil {
		log.Printf("✗ Video synthesis failed: %v", err)
		return synthesisFailed(err)
	}

	log.Printf("✓ Video ready: %s", videoURL)
	return synthesisSucceeded(taskID, videoURL, prompt, concept.PlatformFormat)
}

func (c *RunwayClient) createTask(ctx context.Context, prompt, ratio string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"promptText": prompt,
		"model":      c.model,
		"duration":   c.duration,
		"ratio":      ratio,
	})
	if err != nil {
		return "", err
	}

	var task runwayTask
	if err := c.do(ctx, http.MethodPost, "/text_to_video", bytes.NewReader(body), &task); err != nil {
		return "", err
	}
	if task.ID == "" {
		return "", fmt.Errorf("runway returned no task id")
	}
	return task.ID, nil
}

// pollTask waits for the task to finish, checking every poll interval until the deadline
func (c *RunwayClient) pollTask(ctx context.Context, taskID string) (string, error) {
	start := time.Now()
	pollCtx, cancel := context.WithDeadline(ctx, start.Add(c.timeout))
	defer cancel()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pollCtx.Done():
			return "", c.pollStopped(ctx, taskID)
		case <-ticker.C:
		}

		var task runwayTask
		if err := c.do(pollCtx, http.MethodGet, "/tasks/"+taskID, nil, &task); err != nil {
			if pollCtx.Err() != nil {
				return "", c.pollStopped(ctx, taskID)
			}
			return "", err
		}
		debugLog("runway task %s: %s (%s elapsed)", taskID, task.Status, time.Since(start).Round(time.Second))

		switch task.Status {
		case "SUCCEEDED":
			if len(task.Output) == 0 {
				return "", fmt.Errorf("task %s succeeded with empty output", taskID)
			}
			return task.Output[0], nil
		case "FAILED":
			reason := task.Failure
			if reason == "" {
				reason = "unknown reason"
			}
			return "", fmt.Errorf("task %s failed: %s", taskID, reason)
		}
		// PENDING, THROTTLED or RUNNING: keep polling
	}
}

// pollStopped reports why polling ended: the caller's cancellation, or the synthesis deadline
func (c *RunwayClient) pollStopped(ctx context.Context, taskID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("task %s not finished within %s: %w", taskID, c.timeout, ErrSynthesisTimeout)
}

func (c *RunwayClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiSecret)
	req.Header.Set("X-Runway-Version", c.apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding runway response: %w", err)
	}
	return nil
}

var cgiTerms = []string{"CGI", "cgi", "animation", "3D render", "particle simulation"}

// BuildVideoPrompt renders a photorealistic prompt from the concept.
// Improvement notes come first so the latest review weighs the most.
func BuildVideoPrompt(concept *VideoConcept, improvementNotes string, maxChars int) string {
	var parts []string

	if notes := strings.TrimSpace(improvementNotes); notes != "" {
		parts = append(parts, notes)
	}
	parts = append(parts, "cinematic food video, photorealistic, 4K, professional food photography")

	style := concept.VisualStyle
	for _, term := range cgiTerms {
		style = strings.ReplaceAll(style, term, "")
	}
	if style = strings.Trim(style, " ,|—-"); style != "" {
		parts = append(parts, style)
	}

	if concept.HookDescription != "" {
		parts = append(parts, concept.HookDescription)
	}

	for i, scene := range concept.Scenes {
		if i == 2 {
			break
		}
		desc := scene.Description
		if scene.VisualDetails != "" {
			desc += ", " + scene.VisualDetails
		}
		if scene.CameraMovement != "" {
			desc += ", " + scene.CameraMovement
		}
		parts = append(parts, desc)
	}

	if len(concept.ColorPalette) > 0 {
		parts = append(parts, "colors: "+strings.Join(concept.ColorPalette, ", "))
	}

	if concept.CinematographyNotes != "" {
		if first := strings.TrimSpace(strings.SplitN(concept.CinematographyNotes, ".", 2)[0]); first != "" {
			parts = append(parts, first)
		}
	}

	parts = append(parts, "appetizing, warm natural light, slow motion details, real hands cooking")

	prompt := strings.Join(parts, " | ")
	if maxChars > 0 && len(prompt) > maxChars {
		prompt = truncateRunes(prompt, maxChars)
	}
	return prompt
}

// truncateRunes cuts s to at most n bytes without splitting a UTF-8 sequence
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
