package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
)

const defaultRequest = "Create and publish one Instagram post and one Facebook post about a seasonal plant-based recipe."

var (
	apiKey            string
	settingsPath      string
	plannerPromptPath string
	conceptPromptPath string
	reviewPromptPath  string
	qualityPromptPath string
	maxIterations     int
	requestText       string
	metricsAddr       string
	dryRun            bool
	debugMode         bool
)

var rootCmd = &cobra.Command{
	Use:   "social-agent [request-file]",
	Short: "Planner-driven social media production for a plant-based brand",
	Long: `Plans, drafts, films, reviews and publishes Instagram and Facebook posts.
Every post is shown to a human for approval before it is published.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if debugMode {
			SetDebugMode(true)
		}
		loadEnvironment()

		request, err := resolveRequest(args)
		if err != nil {
			log.Fatalf("Failed to read request: %v", err)
		}

		config, err := NewConfig(buildOverrides())
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		if apiKey != "" {
			config.Credentials.AnthropicAPIKey = apiKey
		}
		if config.Credentials.AnthropicAPIKey == "" {
			log.Fatal("API key required: use --api-key flag or ANTHROPIC_API_KEY environment variable")
		}

		iterations := config.Settings.Agents.Planner.MaxIterations
		if dryRun {
			iterations = dryRunMaxIterations
		}
		if cmd.Flags().Changed("max-iterations") {
			iterations = maxIterations
		}

		var metrics *PipelineMetrics
		if metricsAddr != "" {
			metrics = NewPipelineMetrics()
			server := metrics.Serve(metricsAddr)
			defer server.Close()
		}

		agent, err := buildAgent(config, iterations, metrics)
		if err != nil {
			log.Fatalf("Failed to create agent: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		fmt.Println(agent.Run(ctx, request))
	},
}

func buildOverrides() *ConfigOverrides {
	overrides := &ConfigOverrides{}
	if settingsPath != "" {
		overrides.SettingsPath = &settingsPath
	}
	if plannerPromptPath != "" {
		overrides.PlannerPromptPath = &plannerPromptPath
	}
	if conceptPromptPath != "" {
		overrides.ConceptPromptPath = &conceptPromptPath
	}
	if reviewPromptPath != "" {
		overrides.ContentReviewPromptPath = &reviewPromptPath
	}
	if qualityPromptPath != "" {
		overrides.QualityReviewPromptPath = &qualityPromptPath
	}
	return overrides
}

func resolveRequest(args []string) (string, error) {
	if requestText != "" {
		return requestText, nil
	}
	if len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			return text, nil
		}
		return "", fmt.Errorf("request file %s is empty", args[0])
	}
	return defaultRequest, nil
}

// buildAgent wires the collaborators for a live or dry run
func buildAgent(config *Config, iterations int, metrics *PipelineMetrics) (*Agent, error) {
	creds := config.Credentials

	oracle, err := NewAnthropicOracle(creds.AnthropicAPIKey)
	if err != nil {
		return nil, err
	}
	sampler := NewFFmpegSampler(creds.AnthropicAPIKey, config.Settings.Video.Frames)
	agents := NewAgentManager(oracle, config, sampler)
	synth := NewRunwayClient(creds.RunwayAPISecret, config.Settings.Video)

	var publisher Publisher = NewMetaClient(config.Settings.Meta, creds)
	var approver Approver = NewApprovalGate(os.Stdin, os.Stdout)
	if dryRun {
		log.Printf("[DRY RUN] Approvals are automatic and nothing is published")
		publisher = &DryRunPublisher{Reader: publisher}
		approver = AutoApprover{}
	}

	dispatcher := NewDispatcher(NewSession(), Collaborators{
		Concepts:  agents,
		Reviewer:  agents,
		Synth:     synth,
		Arbiter:   NewArbiter(synth, agents, metrics),
		Approver:  approver,
		Publisher: publisher,
		Fetcher:   NewContentFetcher(config.Settings.Reference.ContentMaxTokens),
	}, config.Settings.Meta.RecentLimit, metrics)

	return NewAgent(agents, dispatcher, iterations, metrics), nil
}

func init() {
	rootCmd.Flags().StringVar(&apiKey, "api-key", "", "Anthropic API key")
	rootCmd.Flags().StringVar(&settingsPath, "settings", "", "Path to a settings.yaml file")
	rootCmd.Flags().StringVar(&plannerPromptPath, "planner-prompt", "", "Path to custom planner prompt file")
	rootCmd.Flags().StringVar(&conceptPromptPath, "concept-prompt", "", "Path to custom concept writer prompt file")
	rootCmd.Flags().StringVar(&reviewPromptPath, "review-prompt", "", "Path to custom content reviewer prompt file")
	rootCmd.Flags().StringVar(&qualityPromptPath, "quality-prompt", "", "Path to custom video quality reviewer prompt file")
	rootCmd.Flags().IntVar(&maxIterations, "max-iterations", defaultMaxIterations, "Maximum planner iterations")
	rootCmd.Flags().StringVar(&requestText, "request", "", "Request text (instead of a request file)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Auto-approve drafts and skip publishing")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
