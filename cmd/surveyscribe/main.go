// Command surveyscribe structures free-form survey dictation into the
// canonical sectioned notes. It runs as an HTTP service or as a one-shot CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/surveyscribe/internal/app"
	"github.com/MrWong99/surveyscribe/internal/config"
	"github.com/MrWong99/surveyscribe/internal/observe"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "surveyscribe",
		Short: "Structure survey dictation into sectioned notes",
		Long: `surveyscribe turns a heating engineer's free-form survey dictation into
structured notes with one entry per report section.

It fixes recurring dictation errors, routes each clause to its section,
removes near-duplicate lines and renders each section as bullets and prose.
Run "surveyscribe serve" for the HTTP API or "surveyscribe structure" to
process a single transcript.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the YAML configuration file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(structureCmd())
	rootCmd.AddCommand(schemaCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the file named by --config. Without the flag the
// built-in defaults are used.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return &config.Config{}, "", nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("config file %q not found (copy configs/example.yaml to get started)", path)
		}
		return nil, "", err
	}
	return cfg, path, nil
}

func newLogger(level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until interrupted.

The config file, when given, is watched and reloaded: log level changes
apply immediately, schema, engine and provider changes rebuild the
structurers, and everything else needs a restart.

Example:
  surveyscribe serve --config configs/example.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defaults := cfg.WithDefaults()

			level := new(slog.LevelVar)
			level.Set(defaults.Server.LogLevel.SlogLevel())
			slog.SetDefault(newLogger(level))

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
				ServiceName:    defaults.Telemetry.ServiceName,
				ServiceVersion: version,
				SampleRatio:    defaults.Telemetry.SampleRatio,
			})
			if err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(sctx); err != nil {
					slog.Warn("telemetry shutdown error", "err", err)
				}
			}()

			slog.Info("surveyscribe starting",
				"version", version,
				"config", path,
				"listen_addr", defaults.Server.ListenAddr,
				"mode", defaults.Engine.Mode,
			)

			opts := []app.Option{app.WithLevelVar(level)}
			if path != "" {
				opts = append(opts, app.WithConfigPath(path))
			}
			application, err := app.New(ctx, cfg, opts...)
			if err != nil {
				return fmt.Errorf("initialise application: %w", err)
			}

			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("run: %w", err)
			}
			slog.Info("surveyscribe stopped")
			return nil
		},
	}
}
