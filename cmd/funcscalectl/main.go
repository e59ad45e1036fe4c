package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lewta/funcscale/internal/config"
	"github.com/lewta/funcscale/internal/controller"
	"github.com/lewta/funcscale/internal/obsmetrics"
)

// Set by goreleaser via -ldflags at build time; fallback to "dev" for local builds.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "funcscalectl",
	Short: "Sample host for the dynamic concurrency controller",
	Long: `funcscalectl runs a sample host process wired to the dynamic
concurrency controller: a process-wide health monitor, a thread-starvation
canary, and a per-function concurrency manager.

It exists to demonstrate the library's lifecycle (start, status, validate)
and is not itself a function runtime.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(versionCmd())
}

// --- version ---

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("funcscalectl %s (commit: %s, built: %s)\n", version, commit, buildDate)
		},
	}
}

// --- validate ---

func validateCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		Long: `Parse and validate a config file without starting the controller.

Exits 0 and prints "config valid" on success.
Exits non-zero and prints the validation error on failure.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			fmt.Println("config valid")
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "config/example.yaml", "Path to YAML config file")
	return cmd
}

// --- start ---

func startCmd() *cobra.Command {
	var (
		cfgPath     string
		logLevel    string
		metricsPort int
		metricsOn   bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the sample host with the concurrency controller running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			lvl := cfg.Daemon.LogLevel
			if logLevel != "" {
				lvl = logLevel
			}
			initLogger(lvl, cfg.Daemon.LogFormat)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var m *obsmetrics.Metrics
			if metricsOn {
				m = obsmetrics.New()
				go m.ServeHTTP(ctx, metricsPort)
			} else {
				m = obsmetrics.Noop()
			}

			ctl, err := controller.New(cfg, m)
			if err != nil {
				return fmt.Errorf("creating controller: %w", err)
			}

			ctl.Run(ctx)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "config/example.yaml", "Path to YAML config file")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override log level (debug|info|warn|error)")
	cmd.Flags().BoolVar(&metricsOn, "metrics", false, "Serve Prometheus metrics")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 9090, "Prometheus metrics port")

	return cmd
}

// --- status ---

func statusCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Run the controller briefly and print one status snapshot",
		Long: `Starts a controller, waits for it to take one sampling pass, and
prints the current per-function parallelism table and health verdict.

Useful for a quick sanity check of a config without leaving the process
running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			initLogger(cfg.Daemon.LogLevel, cfg.Daemon.LogFormat)

			ctl, err := controller.New(cfg, obsmetrics.Noop())
			if err != nil {
				return fmt.Errorf("creating controller: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
			defer cancel()

			ctl.Health.Start(ctx)
			ctl.Canary.Start(ctx)
			time.Sleep(2 * time.Second)

			verdict := ctl.Health.Status(nil)
			snap := ctl.Manager.Status()

			fmt.Printf("health verdict: %s\n", verdict)
			fmt.Printf("throttle enabled: %v\n", snap.ThrottleEnabled)
			fmt.Printf("functions (%d):\n", len(snap.Functions))
			for id, r := range snap.Functions {
				fmt.Printf("  %-20s parallelism=%-4d outstanding=%-4d fetch=%d\n", id, r.CurrentParallelism, r.OutstandingInvocations, r.FetchCount)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "config/example.yaml", "Path to YAML config file")
	return cmd
}

// --- helpers ---

func initLogger(level, format string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}
}
