package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/idftools/eim/internal/buildinfo"
	"github.com/idftools/eim/internal/log"
)

var (
	verboseCount int
	logFilePath  string
	configPath   string
)

// globalCtx is the application-level context that is canceled on
// SIGINT/SIGTERM. Commands use it for cancellable operations.
var globalCtx context.Context
var globalCancel context.CancelFunc

var rootCmd = &cobra.Command{
	Use:   "eim",
	Short: "ESP-IDF installation manager",
	Long: `eim installs and manages versions of the ESP-IDF embedded development
framework: it fetches the source tree, materializes the matching
cross-compiler toolchains, provisions a dedicated Python environment,
and writes an activation script plus a machine-readable registry of
every installed version.`,
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verboseCount, "verbose", "v", "Increase verbosity (repeat for debug output)")
	rootCmd.PersistentFlags().StringVar(&logFilePath, "log-file", "", "Also write diagnostic logs to this file")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&installFlags.nonInteractive, "non-interactive", "n", false, "Never prompt")
	rootCmd.PersistentFlags().BoolVarP(&installFlags.installPrereqs, "install-all-prerequisites", "a", false, "Bootstrap missing prerequisites where supported")

	rootCmd.PersistentPreRun = initLogger
	rootCmd.Version = buildinfo.Version()

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(wizardCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(doctorCmd)
}

func main() {
	globalCtx, globalCancel = context.WithCancel(context.Background())
	defer globalCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nReceived %s, canceling operation...\n", sig)
		globalCancel()

		<-sigChan
		fmt.Fprintln(os.Stderr, "Forced exit")
		exitWithCode(ExitCancelled)
	}()

	if err := rootCmd.Execute(); err != nil {
		if globalCtx.Err() == context.Canceled {
			exitWithCode(ExitCancelled)
		}
		fmt.Fprintln(os.Stderr, err)
		exitWithCode(ExitGeneral)
	}
}

// initLogger configures the global logger from the repeatable -v flag:
// warnings by default, -v for operational context, -vv for debug.
func initLogger(cmd *cobra.Command, args []string) {
	level := slog.LevelWarn
	switch {
	case verboseCount >= 2:
		level = slog.LevelDebug
	case verboseCount == 1:
		level = slog.LevelInfo
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	}
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open log file %s: %v\n", logFilePath, err)
			exitWithCode(ExitUsage)
		}
		// The file sink always captures debug detail, whatever the
		// terminal verbosity.
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	log.SetDefault(log.New(fanout(handlers...)))
}
