package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerql/internal/store"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Limit   int
	Request string
}

// LogEntry is one compilation in the log listing.
type LogEntry struct {
	Seq       int64    `json:"seq"`
	ID        string   `json:"id"`
	RequestID string   `json:"request_id"`
	Formula   string   `json:"formula"`
	Params    []string `json:"params"`
	Database  string   `json:"database"`
	Table     string   `json:"table"`
	SQL       string   `json:"sql"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recorded compilations",
		Long: `List the compilation log kept by compile --record, oldest first.

Examples:
  ledgerql log --limit 10
  ledgerql log --request 0192f0c4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "most recent entries to show (0 for all)")
	cmd.Flags().StringVar(&opts.Request, "request", "", "only entries written by this request ID")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := commandContext(cmd)

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg, opts.logger(cmd))
	if err != nil {
		return err
	}
	defer st.Close()

	var comps []store.Compilation
	if opts.Request != "" {
		comps, err = st.CompilationsForRequest(ctx, opts.Request)
	} else {
		comps, err = st.Compilations(ctx, opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeStore+": reading log", err)
	}

	entries := make([]LogEntry, 0, len(comps))
	for _, c := range comps {
		entries = append(entries, LogEntry{
			Seq:       c.Seq,
			ID:        c.ID,
			RequestID: c.RequestID,
			Formula:   c.Formula,
			Params:    c.Params,
			Database:  c.Database,
			Table:     c.Table,
			SQL:       c.SQL,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "No compilations recorded.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(formatter.Writer, "#%d %s  %s\n", e.Seq, shortID(e.ID), e.Formula)
		if len(e.Params) > 0 {
			fmt.Fprintf(formatter.Writer, "  params: %q\n", e.Params)
		}
		if formatter.Verbose {
			fmt.Fprintf(formatter.Writer, "  request: %s\n", e.RequestID)
			fmt.Fprintf(formatter.Writer, "%s\n", e.SQL)
		}
	}
	return nil
}

// shortID abbreviates a content hash for display.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
