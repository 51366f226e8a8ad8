package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerql/internal/compiler"
	"github.com/roach88/ledgerql/internal/query"
	"github.com/roach88/ledgerql/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Params []string
	Mode   string
	Light  bool
	Record bool
}

// CompileResult is the JSON payload of a successful compile.
type CompileResult struct {
	RequestID     string `json:"request_id"`
	Database      string `json:"database"`
	Table         string `json:"table"`
	Connection    string `json:"connection,omitempty"`
	SQL           string `json:"sql"`
	CompilationID string `json:"compilation_id,omitempty"`
	Recorded      bool   `json:"recorded,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <formula>",
		Short: "Compile a formula to SQL",
		Long: `Compile a ledger formula to SQL.

Parameter values fill {P}n placeholders in order; repeat --param for each.
With --record the result is appended to the compilation log in the store.

Exit codes:
  0 - SQL printed
  1 - Formula rejected (syntax error, unknown field, schema error)
  2 - Command error (bad config, unreadable store or catalog)

Examples:
  ledgerql compile 'PK1,LA,O=/AMOUNT'
  ledgerql compile 'PK1,LA,F={P}0,T={P}1,K=TRANS_DATETIME,O=/AMOUNT' --param 20240101 --param C
  ledgerql compile 'PK1,LA' --mode details --catalog ./catalog`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "parameter value (repeatable)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "summary or details (overrides config)")
	cmd.Flags().BoolVar(&opts.Light, "light", false, "parse without parameter indirection")
	cmd.Flags().BoolVar(&opts.Record, "record", false, "append the compilation to the store's log")

	return cmd
}

func runCompile(opts *CompileOptions, formulaText string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := commandContext(cmd)
	logger := opts.logger(cmd)

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	if opts.Mode != "" {
		cfg.Mode = opts.Mode
	}
	mode, err := query.ParseMode(cfg.Mode)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeConfig+": invalid mode", err)
	}
	if opts.Light && len(opts.Params) > 0 {
		return NewExitError(ExitCommandError, ErrCodeConfig+": --light takes no --param values")
	}

	supplier, closer, err := openSupplier(cfg, logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	compOpts := compiler.Options{
		CacheSize:     cfg.CacheSize,
		DefaultLedger: cfg.DefaultLedger,
		Logger:        logger,
	}
	if opts.Record {
		st, ok := supplier.(*store.Store)
		if !ok {
			if st, err = openStore(cfg, logger); err != nil {
				return err
			}
			defer st.Close()
		}
		compOpts.Recorder = st
	}

	comp, err := compiler.New(supplier, compOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeGeneric+": creating compiler", err)
	}

	formatter.VerboseLog("Compiling %q with %d parameter(s)", formulaText, len(opts.Params))

	out, err := comp.Compile(ctx, compiler.Input{
		Formula: formulaText,
		Params:  opts.Params,
		Mode:    mode,
		Light:   opts.Light,
	})
	if err != nil {
		code := errorCode(err)
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, code+": compilation failed", err)
	}

	result := CompileResult{
		RequestID:     out.RequestID,
		Database:      out.Database,
		Table:         out.Table,
		Connection:    out.Connection,
		SQL:           out.SQL,
		CompilationID: out.CompilationID,
		Recorded:      out.Recorded,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, out.SQL)
	if out.CompilationID != "" {
		state := "recorded"
		if !out.Recorded {
			state = "already recorded"
		}
		formatter.VerboseLog("Compilation %s %s", out.CompilationID, state)
	}
	return nil
}
