// Command flowforge is a thin CLI wrapping the workflow Driver: it parses
// workflow YAML files from a registry directory and drives one-off runs or
// a cron-scheduled release loop, without any of the core engine packages
// themselves depending on YAML or the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowforge/flowforge/pkg/config"
	"github.com/flowforge/flowforge/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeOf(err))
	}
}

// exitCodeOf maps an error returned from Execute onto a process exit code,
// honoring exitCodeError's status-specific code and defaulting to 1 for
// every other error (config, param, or unknown-workflow failures).
func exitCodeOf(err error) int {
	var ec exitCodeError
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return exitError
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "flowforge",
		Short:         "Run and schedule flowforge workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "flowforge.yaml", "path to the config file")
	root.PersistentFlags().StringSlice("registry", nil, "workflow registry directories (overrides config)")
	root.PersistentFlags().Bool("verbose", false, "enable debug logging")
	root.PersistentFlags().Bool("log-json", false, "emit structured JSON logs")

	root.AddCommand(newRunCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newValidateCmd())
	return root
}

// loadConfig composes the standard defaults -> file -> env -> flags stack,
// overlaying any CLI-provided overrides as the highest-precedence layer.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	registry, _ := cmd.Flags().GetStringSlice("registry")

	overrides := map[string]any{}
	if len(registry) > 0 {
		overrides["registry_paths"] = registry
	}

	mgr := config.NewManager(nil)
	cfg, err := mgr.Load(cmd.Context(),
		config.NewDefaultProvider(),
		config.NewYAMLProvider(path),
		config.NewEnvProvider(),
		config.NewCLIProvider(overrides),
	)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// contextWithLogger builds a request-scoped logger from the command's
// verbosity flags and threads it through ctx the way every engine package
// expects to find it.
func contextWithLogger(ctx context.Context, cmd *cobra.Command) context.Context {
	verbose, _ := cmd.Flags().GetBool("verbose")
	asJSON, _ := cmd.Flags().GetBool("log-json")
	level := logger.InfoLevel
	if verbose {
		level = logger.DebugLevel
	}
	log := logger.NewLogger(&logger.Config{
		Level:      level,
		Output:     os.Stderr,
		JSON:       asJSON,
		TimeFormat: "15:04:05",
	})
	return logger.ContextWithLogger(ctx, log)
}
