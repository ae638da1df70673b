package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qchain/internal/ir"
	"github.com/roach88/qchain/internal/querysql"
)

// SQLOptions holds flags for the sql command.
type SQLOptions struct {
	*RootOptions
	Query string
}

// SQLResult is a query compiled to a SQLite statement.
type SQLResult struct {
	*compiledQuery
	SQL       string `json:"sql"`
	Params    []any  `json:"params"`
	Shape     string `json:"shape"`
	OrDefault bool   `json:"or_default,omitempty"`

	stmt *querysql.Statement
}

var shapeNames = map[querysql.Shape]string{
	querysql.ShapeSequence: "sequence",
	querysql.ShapeScalar:   "scalar",
	querysql.ShapeFirst:    "first",
	querysql.ShapeSingle:   "single",
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SQLOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sql <defs-dir> --query <name>",
		Short: "Translate a query to SQLite SQL",
		Long: `Compile a query to its query model and translate the model to a
parameterized SQLite statement. Models outside the portable fragment
fail with NOT_PORTABLE.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "query to translate (required)")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func runSQL(opts *SQLOptions, defsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	res, err := translateQuery(formatter, defsDir, opts.Query)
	if err != nil {
		return err
	}

	if formatter.Format == "json" {
		return formatter.Success(res)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s %s\n", okMark(), bold.Sprint(res.Name))
	fmt.Fprintf(w, "  model: %s\n", res.Model)
	fmt.Fprintf(w, "  shape: %s\n\n", res.Shape)
	fmt.Fprintln(w, res.SQL)
	if len(res.Params) > 0 {
		fmt.Fprintln(w)
		for i, p := range res.Params {
			fmt.Fprintf(w, "  ?%d = %s\n", i+1, formatParam(p))
		}
	}
	return nil
}

// translateQuery loads defsDir and takes the named query through the SQL
// backend. Failures are reported on f.
func translateQuery(f *OutputFormatter, defsDir, name string) (*SQLResult, error) {
	defs, err := loadDefinitions(f, defsDir)
	if err != nil {
		return nil, err
	}
	queries, err := selectQueries(defs, name)
	if err != nil {
		return nil, failDefinitions(f, err)
	}

	cq, err := compileQuery(newParser(f.Logger()), defs, queries[0])
	if err != nil {
		return nil, failQuery(f, name, err)
	}
	stmt, err := querysql.NewSQLCompiler().Compile(cq.qm)
	if err != nil {
		return nil, failQuery(f, name, err)
	}
	f.VerboseLog("Translated %s to %d parameter(s)", name, len(stmt.Params))

	params := stmt.Params
	if params == nil {
		params = []any{}
	}
	return &SQLResult{
		compiledQuery: cq,
		SQL:           stmt.SQL,
		Params:        params,
		Shape:         shapeNames[stmt.Shape],
		OrDefault:     stmt.OrDefault,
		stmt:          stmt,
	}, nil
}

// failQuery reports a query that did not compile or run.
func failQuery(f *OutputFormatter, name string, err error) error {
	code := errorCode(err)
	_ = f.Error(code, err.Error(), map[string]string{"query": name})
	return WrapExitError(ExitFailure, fmt.Sprintf("query %s", name), err)
}

func formatParam(p any) string {
	v, err := ir.FromGo(p)
	if err != nil {
		return fmt.Sprint(p)
	}
	return ir.Format(v)
}
