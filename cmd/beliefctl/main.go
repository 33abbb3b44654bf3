package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/buildconfig"
	"github.com/Harshitk-cp/beliefgraph/internal/config"
	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/Harshitk-cp/beliefgraph/internal/llm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	provider string
	model    string
	baseURL  string
	apiKey   string
	mode     string
	verbose  bool
	timeout  time.Duration

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "beliefctl",
	Short: "Run belief-graph operations against a configured provider",
	Long: `beliefctl runs one belief-graph operation and prints the result as JSON.

Provider credentials are read from --api-key or the provider's environment
variable (GEMINI_API_KEY, OPENAI_API_KEY, ...). Progress is written to stderr.`,
	Version:      buildconfig.Version(),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "Provider id (default: LLM_PROVIDER or gemini)")
	rootCmd.PersistentFlags().StringVarP(&model, "model", "m", "", "Model override")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Endpoint override for chat-completion providers")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for the selected provider")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", string(domain.ModeImage), "Target mode: image, story or video")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(clarifyCmd)
	rootCmd.AddCommand(refineCmd)
	rootCmd.AddCommand(contentCmd)
	rootCmd.AddCommand(providersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newDispatcher builds a dispatcher from the environment and the catalog file.
func newDispatcher() (*llm.Dispatcher, error) {
	registry := llm.DefaultRegistry(llm.NewChatAdapter(nil), llm.NewNativeAdapter(), llm.NewMockAdapter())

	catalog, err := config.LoadCatalog(config.ProvidersFile())
	if err != nil {
		return nil, err
	}
	for id, entry := range catalog.Providers {
		if err := registry.Override(domain.ProviderID(id), entry.BaseURL, entry.DefaultModel); err != nil {
			return nil, fmt.Errorf("providers file: %w", err)
		}
	}

	return llm.NewDispatcher(registry, llm.DispatcherConfig{
		Retrier: llm.Retrier{
			MaxAttempts:  config.RetryMaxAttempts(),
			InitialDelay: config.RetryInitialDelay(),
		},
		ProviderRPS:   config.ProviderRPS(),
		ProviderBurst: 1,
	}, logger), nil
}

func providerConfig() domain.ProviderConfig {
	cfg := domain.ProviderConfig{
		Provider: domain.ProviderID(provider),
		Model:    model,
		BaseURL:  baseURL,
	}
	if cfg.Provider == "" {
		cfg.Provider = domain.ProviderID(config.LLMProvider())
		if cfg.Model == "" {
			cfg.Model = config.LLMModel()
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = config.LLMBaseURL()
		}
	}
	if apiKey != "" {
		cfg.APIKeys = map[domain.ProviderID]string{cfg.Provider: apiKey}
	}
	return cfg
}

func targetMode() (domain.Mode, error) {
	if !domain.ValidMode(mode) {
		return "", fmt.Errorf("invalid --mode %q: must be one of image, story, video", mode)
	}
	return domain.Mode(mode), nil
}

// commandContext returns a context bounded by --timeout and cancelled on SIGINT or SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	return ctx, func() {
		stop()
		cancel()
	}
}

func stderrProgress(cmd *cobra.Command) domain.Observer {
	return domain.ObserverFunc(func(msg string) {
		fmt.Fprintln(cmd.ErrOrStderr(), msg)
	})
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
