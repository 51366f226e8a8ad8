package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerql/internal/catalog"
	"github.com/roach88/ledgerql/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Prune bool
}

// ImportResult summarises an import.
type ImportResult struct {
	Documents int      `json:"documents"`
	Changed   []string `json:"changed"`
	Pruned    []string `json:"pruned,omitempty"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <catalog-dir>",
		Short: "Import a CUE catalog into the document store",
		Long: `Validate a CUE catalog and write its schema documents to the store.

Unchanged documents are left alone. With --prune, stored documents the
catalog no longer defines are deleted.

Examples:
  ledgerql import ./catalog --store ledgerql.db
  ledgerql import ./catalog --prune`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Prune, "prune", false, "delete stored documents missing from the catalog")

	return cmd
}

func runImport(opts *ImportOptions, dir string, cmd *cobra.Command) error {
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

	cat, err := catalog.Load(dir)
	if err != nil {
		code := ErrCodeCatalog
		if errors.Is(err, catalog.ErrNotFound) {
			code = ErrCodeNotFound
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, code+": loading catalog", err)
	}

	if verrs := catalog.Validate(cat); len(verrs) > 0 {
		return outputValidationErrors(formatter, verrs)
	}

	docs, err := cat.Documents()
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeCatalog+": encoding catalog", err)
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	result := ImportResult{Documents: len(docs), Changed: []string{}}
	keep := make(map[string]bool, len(docs))
	for _, d := range docs {
		ref := store.DocumentRef{Kind: d.Kind, Database: d.Database, Name: d.Name}
		keep[ref.String()] = true
		changed, err := st.PutDocument(ctx, ref, d.Body)
		if err != nil {
			return WrapExitError(ExitCommandError, ErrCodeStore+": writing document", err)
		}
		if changed {
			result.Changed = append(result.Changed, ref.String())
			formatter.VerboseLog("Stored %s", ref)
		}
	}

	if opts.Prune {
		stored, err := st.ListDocuments(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, ErrCodeStore+": listing documents", err)
		}
		for _, info := range stored {
			if keep[info.DocumentRef.String()] {
				continue
			}
			if err := st.DeleteDocument(ctx, info.DocumentRef); err != nil {
				return WrapExitError(ExitCommandError, ErrCodeStore+": pruning document", err)
			}
			result.Pruned = append(result.Pruned, info.DocumentRef.String())
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Imported %d document(s) into %s: %d changed", result.Documents, cfg.Store, len(result.Changed))
	if opts.Prune {
		fmt.Fprintf(formatter.Writer, ", %d pruned", len(result.Pruned))
	}
	fmt.Fprintln(formatter.Writer)
	for _, ref := range result.Changed {
		fmt.Fprintf(formatter.Writer, "  %s\n", ref)
	}
	return nil
}

// outputValidationErrors reports catalog validation errors. Validation
// errors are command-level errors (exit code 2).
func outputValidationErrors(formatter *OutputFormatter, verrs []catalog.ValidationError) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(verrs))
		for i, v := range verrs {
			cliErrors[i] = CLIError{Code: v.Code, Message: v.Message, Details: v.Field}
		}
		_ = formatter.Encode(CLIResponse{Status: "error", Error: &cliErrors[0], Data: cliErrors})
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Catalog validation failed")
		fmt.Fprintln(formatter.Writer)
		for _, v := range verrs {
			fmt.Fprintf(formatter.Writer, "  %s\n", v.Error())
		}
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("catalog validation failed with %d error(s)", len(verrs)))
}
