package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/qchain/internal/harness"
	"github.com/roach88/qchain/internal/ir"
	"github.com/roach88/qchain/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Query    string
	Fixtures string
	Database string

	// IDGenerator overrides the compilation log ID generator (for testing).
	// If nil, the store's UUIDv7 generator is used.
	IDGenerator store.IDGenerator
}

// RunResult is an executed query.
type RunResult struct {
	Query         string `json:"query"`
	Model         string `json:"model"`
	SQL           string `json:"sql"`
	Result        any    `json:"result"`
	CompilationID string `json:"compilation_id"`
	Seq           int64  `json:"seq"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <defs-dir> --query <name>",
		Short: "Run a query against fixture data",
		Long: `Compile a query to SQL and execute it against SQLite.

Fixture tables are loaded from a YAML file mapping table names to item
lists. The database defaults to an in-memory one; with --db the fixtures
and the compilation log persist in a file.

Example:
  qchain run ./defs --query adults --fixtures people.yaml
  qchain run ./defs --query adults --fixtures people.yaml --db ./qchain.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "query to run (required)")
	cmd.Flags().StringVar(&opts.Fixtures, "fixtures", "", "YAML fixture file")
	cmd.Flags().StringVar(&opts.Database, "db", ":memory:", "path to SQLite database")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func runQuery(opts *RunOptions, defsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := formatter.Logger()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := translateQuery(formatter, defsDir, opts.Query)
	if err != nil {
		return err
	}

	storeOpts := []store.Option{store.WithLogger(logger)}
	if opts.IDGenerator != nil {
		storeOpts = append(storeOpts, store.WithIDGenerator(opts.IDGenerator))
	}
	st, err := store.Open(opts.Database, storeOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	if opts.Fixtures != "" {
		tables, err := harness.ReadFixtures(opts.Fixtures)
		if err == nil {
			err = st.LoadFixtures(ctx, tables)
		}
		if err != nil {
			_ = formatter.Error(ErrCodeFixtures, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load fixtures", err)
		}
		formatter.VerboseLog("Loaded %d fixture table(s) from %s", len(tables), opts.Fixtures)
	}

	stmt := res.stmt
	comp, inserted, err := st.RecordCompilation(ctx, res.Name, res.Chain, res.Model, res.Fingerprint, stmt)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to record compilation", err)
	}
	logger.Debug("compilation recorded", "query", res.Name, "id", comp.ID, "seq", comp.Seq, "inserted", inserted)

	value, err := st.Execute(ctx, stmt)
	if err != nil {
		return failQuery(formatter, opts.Query, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(RunResult{
			Query:         res.Name,
			Model:         res.Model,
			SQL:           res.SQL,
			Result:        ir.ToGo(value),
			CompilationID: comp.ID,
			Seq:           comp.Seq,
		})
	}
	return writeValue(formatter.Writer, value)
}

// writeValue prints a result: sequences of objects as a table, other
// sequences one item per line, scalars on their own.
func writeValue(w io.Writer, v ir.Value) error {
	arr, ok := v.(ir.Array)
	if !ok {
		_, err := fmt.Fprintln(w, ir.Format(v))
		return err
	}

	rows := make([]ir.Object, 0, len(arr))
	for _, item := range arr {
		obj, ok := item.(ir.Object)
		if !ok {
			rows = nil
			break
		}
		rows = append(rows, obj)
	}
	if len(rows) == 0 {
		for _, item := range arr {
			fmt.Fprintln(w, ir.Format(item))
		}
		fmt.Fprintf(w, "(%d item(s))\n", len(arr))
		return nil
	}

	cols := ir.Columns(rows)
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, bold.Sprint(c))
	}
	fmt.Fprintln(tw)
	for _, row := range rows {
		for i, c := range cols {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			if cell, ok := row[c]; ok {
				fmt.Fprint(tw, cellText(cell))
			}
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "(%d item(s))\n", len(arr))
	return nil
}

// cellText prints strings bare inside tables.
func cellText(v ir.Value) string {
	if s, ok := v.(ir.String); ok {
		return string(s)
	}
	return ir.Format(v)
}
