package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerql/internal/catalog"
	"github.com/roach88/ledgerql/internal/config"
	"github.com/roach88/ledgerql/internal/schema"
	"github.com/roach88/ledgerql/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	ConfigPath    string
	Store         string
	Catalog       string
	CacheSize     int
	DefaultLedger string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ledgerql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ledgerql",
		Short: "ledgerql - ledger formula to SQL compiler",
		Long: `Compile ledger report formulas into SQL against a catalog of table schemas.

Schema documents are read from a SQLite document store (--store) or straight
from a CUE catalog directory (--catalog). Settings are read from ledgerql.yaml
when present and overridden by flags.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultPath, "configuration file")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "SQLite document store (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Catalog, "catalog", "", "CUE catalog directory, read instead of the store")
	cmd.PersistentFlags().IntVar(&opts.CacheSize, "cache-size", 0, "schema registry table cache size (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.DefaultLedger, "ledger", "", "default ledger code (overrides config)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewFieldsCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
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

// loadConfig reads the configuration file and applies flag overrides. The
// default config file may be absent; an explicitly named one may not.
func (o *RootOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	var err error
	if cmd.Flags().Changed("config") {
		cfg, err = config.Load(o.ConfigPath)
	} else {
		cfg, err = config.LoadOptional(o.ConfigPath)
	}
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, ErrCodeConfig+": invalid configuration", err)
	}

	if o.Store != "" {
		cfg.Store = o.Store
	}
	if o.Catalog != "" {
		cfg.Catalog = o.Catalog
	}
	if cmd.Flags().Changed("cache-size") {
		cfg.CacheSize = o.CacheSize
	}
	if o.DefaultLedger != "" {
		cfg.DefaultLedger = o.DefaultLedger
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, ErrCodeConfig+": invalid configuration", err)
	}
	return cfg, nil
}

// logger returns the structured logger for a command: warnings only, or
// debug output on stderr with --verbose.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// openSupplier opens the schema source named by cfg: the CUE catalog when
// one is configured, otherwise the document store. The returned closer
// releases the store.
func openSupplier(cfg config.Config, logger *slog.Logger) (schema.Supplier, io.Closer, error) {
	if cfg.Catalog != "" {
		cat, err := catalog.Load(cfg.Catalog)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, ErrCodeCatalog+": loading catalog", err)
		}
		sup, err := cat.Supplier()
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, ErrCodeCatalog+": encoding catalog", err)
		}
		logger.Debug("schema source", "catalog", cfg.Catalog)
		return sup, io.NopCloser(nil), nil
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return st, st, nil
}

func openStore(cfg config.Config, logger *slog.Logger) (*store.Store, error) {
	st, err := store.OpenWithLogger(cfg.Store, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeStore+": opening store", err)
	}
	logger.Debug("schema source", "store", cfg.Store)
	return st, nil
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
