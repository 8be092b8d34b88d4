package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/caevv/litani/internal/logging"
)

var (
	// Version information (set via ldflags at build time)
	version   = "1.0.0"
	commit    = "unknown"
	buildTime = "unknown"

	// Global logger
	logger *slog.Logger
)

func main() {
	logger = logging.New("info")
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "litani",
	Short: "An incremental build orchestrator for heterogeneous CI pipelines",
	Long: `Litani runs shell commands as a dependency graph while a live report
materializes on disk.

Workflow:
  litani init      - create a run directory and seed the cache
  litani add-job   - declare one job (command, inputs, outputs, policy)
  litani run-build - execute the dependency graph

Jobs declare inputs and outputs; litani derives the dependency edges,
schedules ready jobs in parallel under global and per-pool limits, and
continuously writes a consolidated run.json snapshot while the build is
in flight.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format: json or text")
	rootCmd.PersistentFlags().String("log-file", "stderr", "Log destination: stderr, stdout, or a file path")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		format, _ := cmd.Flags().GetString("log-format")
		output, _ := cmd.Flags().GetString("log-file")

		level := "info"
		if debug {
			level = "debug"
		}
		configured, err := logging.NewFromConfig(format, level, output)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		logger = configured
		slog.SetDefault(logger)
		if debug {
			logger.Debug("debug logging enabled")
		}
		return nil
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addJobCmd)
	rootCmd.AddCommand(runBuildCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(printCapabilitiesCmd)
	rootCmd.AddCommand(historyCmd)
}

// setupSignalHandler creates a context that cancels on SIGINT or SIGTERM
func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()

		sig = <-sigChan
		logger.Warn("received second signal, forcing exit", "signal", sig.String())
		os.Exit(1)
	}()

	return ctx
}

// versionComponents splits the build-time version string into its
// major/minor/patch parts, defaulting to zero for non-release builds.
func versionComponents() (major, minor, patch int) {
	v := strings.TrimPrefix(version, "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	parts := strings.SplitN(v, ".", 3)
	nums := make([]int, 3)
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return 0, 0, 0
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2]
}
