package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/grafana/regexp"
	"github.com/shellyln/go-sql-like-expr/likeexpr"
	"github.com/spf13/cobra"

	"github.com/roach88/ledgerql/internal/fieldpath"
	"github.com/roach88/ledgerql/internal/schema"
)

// FieldsOptions holds flags for the fields command.
type FieldsOptions struct {
	*RootOptions
	Like string
}

// FieldInfo is one row of the fields listing.
type FieldInfo struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Type        string `json:"type,omitempty"`
}

// NewFieldsCommand creates the fields command.
func NewFieldsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FieldsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fields <database> <table>",
		Short: "List the fields a formula can address",
		Long: `List the fields of a table with their analysis descriptions, including
the fields reached through NODE references.

--like filters codes and descriptions with a SQL LIKE pattern
(% matches any run, _ one character, case-insensitive).

Examples:
  ledgerql fields PK1 LA
  ledgerql fields PK1 LA --like '%DATE%'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Like, "like", "", "SQL LIKE pattern over code and description")

	return cmd
}

func runFields(opts *FieldsOptions, db, table string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := commandContext(cmd)
	logger := opts.logger(cmd)

	match, err := likeMatcher(opts.Like)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeGeneric+": invalid --like pattern", err)
	}

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	supplier, closer, err := openSupplier(cfg, logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	reg, err := schema.NewRegistry(supplier, schema.Options{CacheSize: cfg.CacheSize, Logger: logger})
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeGeneric+": creating registry", err)
	}

	fields, err := reg.DecorateFields(ctx, table, db)
	if err != nil {
		code := errorCode(err)
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, code+": listing fields", err)
	}

	infos := make([]FieldInfo, 0, len(fields))
	for _, f := range fields {
		if match != nil && !match(f) {
			continue
		}
		infos = append(infos, FieldInfo{Code: f.Code, Description: f.Description, Type: f.Type})
	}
	formatter.VerboseLog("%d of %d field(s) listed", len(infos), len(fields))

	if formatter.Format == "json" {
		return formatter.Success(infos)
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Code, info.Description, info.Type)
	}
	return tw.Flush()
}

// likeMatcher compiles a LIKE pattern into a field predicate. An empty
// pattern matches everything and yields nil.
func likeMatcher(pattern string) (func(fieldpath.FieldPath) bool, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile("(?is)" + likeexpr.ToRegexp(pattern, '\\', false))
	if err != nil {
		return nil, err
	}
	return func(f fieldpath.FieldPath) bool {
		return re.MatchString(f.Code) || re.MatchString(f.Description)
	}, nil
}
