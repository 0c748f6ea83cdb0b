package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/legacyid/internal/config"
	"github.com/roach88/legacyid/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string // overrides store.dsn from the config file
	Driver     string // overrides store.driver from the config file
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the legacyid CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "legacyid",
		Short: "legacyid - block-allocated sequence generator",
		Long: `Hand out unique, increasing identifiers for legacy table inserts.

Identifiers are reserved from a shared counter table in blocks, so many
processes can allocate concurrently without overlapping ranges.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			setupLogging(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "counter store DSN (SQLite path or MySQL DSN)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "counter store driver (sqlite|mysql)")

	cmd.AddCommand(NewProvisionCommand(opts))
	cmd.AddCommand(NewNextCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
// Errors are reported on stderr, or on stdout as a JSON envelope when
// --format json is active.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	format, _ := cmd.PersistentFlags().GetString("format")
	if format == "json" {
		formatter := &OutputFormatter{Format: "json", Writer: stdout}
		_ = formatter.Error(errorCode(err), err.Error(), nil)
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return GetExitCode(err)
}

// setupLogging installs a text slog handler on w: Debug when verbose,
// Info otherwise.
func setupLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// loadConfig reads --config (or the defaults) and applies --db/--driver.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	if opts.Database != "" {
		cfg.Store.DSN = opts.Database
	}
	if opts.Driver != "" {
		cfg.Store.Driver = opts.Driver
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// openStore opens the counter store named by cfg.
func openStore(cfg *config.Config) (*store.Store, error) {
	slog.Debug("opening counter store", "driver", cfg.Store.Driver)
	st, err := store.OpenDriver(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open counter store", err)
	}
	return st, nil
}

// closeStore closes st, logging failures.
func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing counter store", "error", err)
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
