package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/surveyscribe/internal/app"
	"github.com/MrWong99/surveyscribe/internal/config"
	"github.com/MrWong99/surveyscribe/internal/engine"
	"github.com/MrWong99/surveyscribe/internal/routing"
	"github.com/MrWong99/surveyscribe/internal/schema"
	"github.com/MrWong99/surveyscribe/internal/server"
	"github.com/MrWong99/surveyscribe/pkg/notes"
)

func structureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "structure [transcript-file]",
		Short: "Structure one transcript and print the JSON result",
		Long: `Structure one transcript and print the result as JSON on stdout.

The transcript is read from the named file, or from stdin when no file is
given or the name is "-".

Example:
  surveyscribe structure visit.txt
  surveyscribe structure --schema sections.yaml --captured earlier.json visit.txt
  echo "flu out the back wall" | surveyscribe structure --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			level := new(slog.LevelVar)
			level.Set(slog.LevelWarn)
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				level.Set(slog.LevelDebug)
			}
			slog.SetDefault(newLogger(level))

			text, err := readTranscript(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			opts, err := structureOptions(cmd)
			if err != nil {
				return err
			}
			modeFlag, _ := cmd.Flags().GetString("mode")
			mode := config.Mode(modeFlag)
			if mode != "" && !mode.IsValid() {
				return fmt.Errorf("invalid --mode %q (want rules or llm)", modeFlag)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			application, err := app.New(ctx, cfg, app.WithLevelVar(level))
			if err != nil {
				return fmt.Errorf("initialise application: %w", err)
			}
			st, used, err := server.Select(application, mode)
			if err != nil {
				return err
			}
			res, err := st.Structure(ctx, text, opts)
			if err != nil {
				return fmt.Errorf("structure (%s): %w", used, err)
			}
			if c := application.Routing(); c != nil {
				c.Wait()
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().String("schema", "", "section definitions (JSON or YAML) overriding the configured schema")
	cmd.Flags().String("captured", "", "JSON file with notes already captured for this visit")
	cmd.Flags().String("routing", "", "routing config (JSON or YAML) used instead of the cached one")
	cmd.Flags().Bool("force", false, "emit every section even when nothing was routed to it")
	cmd.Flags().String("mode", "", "structuring mode: rules or llm (default from config)")
	cmd.Flags().BoolP("verbose", "v", false, "log debug output to stderr")
	return cmd
}

func readTranscript(stdin io.Reader, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(data), nil
}

// structureOptions builds per-call options from the structure flags.
func structureOptions(cmd *cobra.Command) (engine.Options, error) {
	var opts engine.Options
	opts.ForceStructured, _ = cmd.Flags().GetBool("force")

	if path, _ := cmd.Flags().GetString("schema"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, fmt.Errorf("read schema: %w", err)
		}
		entries, err := schema.ParseDefinitions(data)
		if err != nil {
			return opts, fmt.Errorf("parse schema %s: %w", path, err)
		}
		sections := schema.Resolve(entries).Sections()
		opts.SectionHints = make(map[string]string, len(sections))
		for _, s := range sections {
			opts.ExpectedSections = append(opts.ExpectedSections, s.Name)
			if s.Description != "" {
				opts.SectionHints[s.Name] = s.Description
			}
		}
	}

	if path, _ := cmd.Flags().GetString("captured"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, fmt.Errorf("read captured notes: %w", err)
		}
		var captured []notes.SectionNote
		if err := json.Unmarshal(data, &captured); err != nil {
			return opts, fmt.Errorf("parse captured notes %s: %w", path, err)
		}
		opts.AlreadyCaptured = captured
	}

	if path, _ := cmd.Flags().GetString("routing"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, fmt.Errorf("read routing config: %w", err)
		}
		rc, err := routing.ParseConfig(data)
		if err != nil {
			return opts, fmt.Errorf("parse routing config %s: %w", path, err)
		}
		opts.RoutingConfig = rc
	}
	return opts, nil
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the resolved section schema",
		Long: `Print the canonical section schema as JSON.

Without --file the schema configured under schema.file is resolved, or the
built-in default when none is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("file")
			if path == "" {
				path = cfg.Schema.File
			}
			return printJSON(cmd.OutOrStdout(), server.SchemaResponse{Sections: schema.LoadFile(path).Sections()})
		},
	}
	cmd.Flags().String("file", "", "section definitions (JSON or YAML) to resolve")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
