// Package cmd provides the CLI commands for biorag.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biorag/biorag/internal/config"
	"github.com/biorag/biorag/internal/errors"
	"github.com/biorag/biorag/internal/logging"
	"github.com/biorag/biorag/pkg/version"
)

var (
	cfgFile    string
	promptFile string
	logLevel   string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the biorag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "biorag",
		Short: "Retrieval-augmented biochemistry question answering",
		Long: `biorag answers natural-language biochemistry questions by retrieving
relevant passages from an indexed textbook chapter and feeding them to a
language model.

Index your markdown corpus once with 'biorag ingest', then ask questions
with 'biorag query'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("biorag version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config.yaml (defaults apply if absent)")
	cmd.PersistentFlags().StringVar(&promptFile, "prompt-config", "", "Path to prompt_config.yaml (embedded defaults if absent)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.biorag/logs/")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging configures the process logger before any command runs.
func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	if logLevel != "" {
		logCfg.Level = logLevel
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

// loadConfig loads configuration honoring the --config and --log-level
// flags.
func loadConfig() (*config.RAGConfig, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// Execute runs the root command, printing structured errors to stderr.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), errors.FormatForCLI(err))
		return err
	}
	return nil
}
