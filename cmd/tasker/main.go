// Command tasker is a command-line front end for the task coordinator and
// the account coordinator.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudsbay/tasker/internal/config"
	"github.com/cloudsbay/tasker/internal/telemetry"
)

var (
	jsonOutput  bool
	verboseFlag bool // Enable verbose/debug output
	quietFlag   bool // Suppress non-essential output
	backendFlag string

	logger = slog.Default()
)

func init() {
	// Initialize viper configuration
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Storage backend: dolt, sqlite or memory (default: storage.backend)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	rootCmd.AddGroup(&cobra.Group{ID: "tasks", Title: "Working With Tasks:"})
	rootCmd.AddGroup(&cobra.Group{ID: "account", Title: "Account:"})
	rootCmd.AddGroup(&cobra.Group{ID: "setup", Title: "Setup & Configuration:"})
}

var rootCmd = &cobra.Command{
	Use:           "tasker",
	Short:         "tasker - tasks prioritized by a language model",
	Long:          `Keep a task list per account and let a language model pick what to do next.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Fprintln(cmd.OutOrStdout(), currentVersion())
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("json") {
			config.Set("json", jsonOutput)
		} else {
			jsonOutput = config.GetBool("json")
		}
		if backendFlag != "" {
			config.Set("storage.backend", backendFlag)
		}
		logger = newLogger(os.Stderr)
		slog.SetDefault(logger)
		return telemetry.Init(cmd.Context(), "tasker", Version)
	},
}

// newLogger builds the process logger from --verbose, --quiet and log.format.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verboseFlag:
		level = slog.LevelDebug
	case quietFlag:
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if config.GetString("log.format") == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if terr := telemetry.Shutdown(shutdownCtx); terr != nil {
		logger.Warn("telemetry shutdown", "err", terr)
	}
	cancel()

	if err != nil {
		if jsonOutput {
			outputJSONError(err, errorCode(err))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
