package main

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigDir        = ".social-agent"
	minReferenceMaxTokens   = 500
	defaultMaxIterations    = 20
	dryRunMaxIterations     = 40
	defaultRecentItemsLimit = 5
)

// ConfigOverrides allows overriding embedded defaults with file paths
type ConfigOverrides struct {
	SettingsPath            *string
	PlannerPromptPath       *string
	ConceptPromptPath       *string
	ContentReviewPromptPath *string
	QualityReviewPromptPath *string
}

// Embedded configuration files
//
//go:embed config/settings.yaml
var defaultSettings string

//go:embed config/planner-system-prompt.md
var defaultPlannerSystemPrompt string

//go:embed config/concept-system-prompt.md
var defaultConceptSystemPrompt string

//go:embed config/content-review-system-prompt.md
var defaultContentReviewSystemPrompt string

//go:embed config/quality-review-system-prompt.md
var defaultQualityReviewSystemPrompt string

//go:embed config/planner-output-schema.json
var plannerSchema string

//go:embed config/concept-schema.json
var conceptSchema string

//go:embed config/content-review-schema.json
var contentReviewSchema string

//go:embed config/quality-review-schema.json
var qualityReviewSchema string

// AgentSettings configures one oracle
type AgentSettings struct {
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// PlannerSettings adds the loop budget to the planner's oracle settings
type PlannerSettings struct {
	AgentSettings `yaml:",inline"`
	MaxIterations int `yaml:"max_iterations"`
}

// VideoSettings configures the synthesis service and frame sampling
type VideoSettings struct {
	BaseURL             string `yaml:"base_url"`
	APIVersion          string `yaml:"api_version"`
	Model               string `yaml:"model"`
	DurationSeconds     int    `yaml:"duration_seconds"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	MaxPromptChars      int    `yaml:"max_prompt_chars"`
	Frames              int    `yaml:"frames"`
}

// MetaSettings configures the publishing platform
type MetaSettings struct {
	GraphAPIBase string `yaml:"graph_api_base"`
	RecentLimit  int    `yaml:"recent_limit"`
}

// Settings represents the YAML configuration structure
type Settings struct {
	Agents struct {
		Planner       PlannerSettings `yaml:"planner"`
		Concept       AgentSettings   `yaml:"concept"`
		ContentReview AgentSettings   `yaml:"content_review"`
		QualityReview AgentSettings   `yaml:"quality_review"`
	} `yaml:"agents"`
	Video     VideoSettings `yaml:"video"`
	Meta      MetaSettings  `yaml:"meta"`
	Reference struct {
		ContentMaxTokens int `yaml:"content_max_tokens"`
	} `yaml:"reference"`
}

// Credentials holds secrets read from the environment
type Credentials struct {
	AnthropicAPIKey    string
	RunwayAPISecret    string
	InstagramToken     string
	InstagramAccountID string
	FacebookPageID     string
	FacebookPageToken  string
}

// Config holds settings, credentials and overrides
type Config struct {
	Settings    *Settings
	Credentials Credentials
	Overrides   *ConfigOverrides
}

// NewConfig loads settings (seeding the config directory on first run) and credentials
func NewConfig(overrides *ConfigOverrides) (*Config, error) {
	var settings *Settings
	var err error
	if overrides != nil && overrides.SettingsPath != nil {
		settings, err = loadSettings(*overrides.SettingsPath)
	} else {
		if err := ensureConfigExists(defaultConfigDir); err != nil {
			return nil, fmt.Errorf("ensuring config files exist: %w", err)
		}
		settings, err = loadSettings(filepath.Join(defaultConfigDir, "settings.yaml"))
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	return &Config{
		Settings:    settings,
		Credentials: loadCredentials(),
		Overrides:   overrides,
	}, nil
}

// loadEnvironment reads a .env file into the process environment if one exists
func loadEnvironment(paths ...string) {
	if err := godotenv.Load(paths...); err != nil {
		debugLog("no .env file loaded: %v", err)
	}
}

func loadCredentials() Credentials {
	return Credentials{
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		RunwayAPISecret:    os.Getenv("RUNWAYML_API_SECRET"),
		InstagramToken:     os.Getenv("INSTAGRAM_ACCESS_TOKEN"),
		InstagramAccountID: os.Getenv("INSTAGRAM_BUSINESS_ACCOUNT_ID"),
		FacebookPageID:     os.Getenv("FACEBOOK_PAGE_ID"),
		FacebookPageToken:  os.Getenv("FACEBOOK_PAGE_ACCESS_TOKEN"),
	}
}

// GetPlannerSystemPrompt returns the planner system prompt (from override file or embedded)
func (c *Config) GetPlannerSystemPrompt() string {
	return c.promptOrDefault(c.override(func(o *ConfigOverrides) *string { return o.PlannerPromptPath }), defaultPlannerSystemPrompt)
}

// GetConceptSystemPrompt returns the concept writer system prompt
func (c *Config) GetConceptSystemPrompt() string {
	return c.promptOrDefault(c.override(func(o *ConfigOverrides) *string { return o.ConceptPromptPath }), defaultConceptSystemPrompt)
}

// GetContentReviewSystemPrompt returns the content reviewer system prompt
func (c *Config) GetContentReviewSystemPrompt() string {
	return c.promptOrDefault(c.override(func(o *ConfigOverrides) *string { return o.ContentReviewPromptPath }), defaultContentReviewSystemPrompt)
}

// GetQualityReviewSystemPrompt returns the frame reviewer system prompt
func (c *Config) GetQualityReviewSystemPrompt() string {
	return c.promptOrDefault(c.override(func(o *ConfigOverrides) *string { return o.QualityReviewPromptPath }), defaultQualityReviewSystemPrompt)
}

func (c *Config) override(pick func(*ConfigOverrides) *string) *string {
	if c.Overrides == nil {
		return nil
	}
	return pick(c.Overrides)
}

func (c *Config) promptOrDefault(path *string, fallback string) string {
	if path != nil {
		if content, err := os.ReadFile(*path); err == nil {
			return string(content)
		}
		log.Printf("Warning: prompt override %s unreadable, using embedded default", *path)
	}
	return fallback
}

// loadSettings reads and normalizes a settings file
func loadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}
	return parseSettings(data)
}

func parseSettings(data []byte) (*Settings, error) {
	// Start from the embedded defaults so partial files keep sane values
	var settings Settings
	if err := yaml.Unmarshal([]byte(defaultSettings), &settings); err != nil {
		return nil, fmt.Errorf("failed to parse embedded settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
	}

	if settings.Agents.Planner.MaxIterations <= 0 {
		log.Printf("Warning: planner.max_iterations is %d, defaulting to %d", settings.Agents.Planner.MaxIterations, defaultMaxIterations)
		settings.Agents.Planner.MaxIterations = defaultMaxIterations
	}
	if settings.Reference.ContentMaxTokens < minReferenceMaxTokens {
		log.Printf("Warning: reference.content_max_tokens is %d, defaulting to %d (minimum)", settings.Reference.ContentMaxTokens, minReferenceMaxTokens)
		settings.Reference.ContentMaxTokens = minReferenceMaxTokens
	}
	if settings.Meta.RecentLimit <= 0 {
		settings.Meta.RecentLimit = defaultRecentItemsLimit
	}
	if settings.Video.Frames <= 0 {
		settings.Video.Frames = 6
	}

	return &settings, nil
}

// ensureConfigExists creates the config directory and writes settings.yaml if needed
func ensureConfigExists(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	settingsFile := filepath.Join(dir, "settings.yaml")
	if _, err := os.Stat(settingsFile); os.IsNotExist(err) {
		if err := os.WriteFile(settingsFile, []byte(defaultSettings), 0644); err != nil {
			return fmt.Errorf("writing settings.yaml: %w", err)
		}
	}

	return nil
}
