package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Query  string // compile only this query
	Output string // output file path
}

// CompilationResult holds the compiled queries and the ones that failed.
type CompilationResult struct {
	Queries  []*compiledQuery `json:"queries"`
	Failures []queryFailure   `json:"failures,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <defs-dir>",
		Short: "Compile query chains to query models",
		Long: `Compile the queries of a CUE definitions directory to query models.

Each chain is parsed, recognized operator by operator and folded into a
query model. The model text and its fingerprint are printed; --output
writes the structural form of every model as JSON.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "compile only the named query")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, defsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := formatter.Logger()

	defs, err := loadDefinitions(formatter, defsDir)
	if err != nil {
		return err
	}
	queries, err := selectQueries(defs, opts.Query)
	if err != nil {
		return failDefinitions(formatter, err)
	}

	p := newParser(logger)
	result := &CompilationResult{Queries: []*compiledQuery{}}
	for _, q := range queries {
		formatter.VerboseLog("Compiling query: %s", q.Name)
		cq, err := compileQuery(p, defs, q)
		if err != nil {
			result.Failures = append(result.Failures, queryFailure{
				Name:    q.Name,
				Code:    errorCode(err),
				Message: err.Error(),
			})
			continue
		}
		result.Queries = append(result.Queries, cq)
	}

	if opts.Output != "" && len(result.Failures) == 0 {
		if err := writeModelsToFile(result.Queries, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	return outputCompileResult(formatter, result, opts.Output)
}

// outputCompileResult prints the compiled models and any failures.
func outputCompileResult(f *OutputFormatter, result *CompilationResult, outputFile string) error {
	var exit error
	if n := len(result.Failures); n > 0 {
		exit = NewExitError(ExitFailure, fmt.Sprintf("compilation failed for %d query(ies)", n))
	}

	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result, TraceID: f.TraceID}
		if exit != nil {
			first := result.Failures[0]
			resp.Status = "error"
			resp.Error = &CLIError{Code: first.Code, Message: first.Message}
		}
		if err := f.encode(resp); err != nil {
			return err
		}
		return exit
	}

	w := f.Writer
	if exit == nil {
		fmt.Fprintf(w, "%s Compiled %d query(ies)\n\n", okMark(), len(result.Queries))
	} else {
		fmt.Fprintf(w, "%s Compiled %d query(ies), %d failed\n\n", failMark(), len(result.Queries), len(result.Failures))
	}

	for _, q := range result.Queries {
		fmt.Fprintln(w, bold.Sprint(q.Name))
		fmt.Fprintf(w, "  %s\n", q.Model)
		fmt.Fprintf(w, "  fingerprint: %s\n", q.Fingerprint)
		for _, warning := range q.Warnings {
			fmt.Fprintf(w, "  %s %s\n", warnMark(), warning)
		}
		fmt.Fprintln(w)
	}
	for _, fail := range result.Failures {
		fmt.Fprintf(w, "%s %s\n", failMark(), bold.Sprint(fail.Name))
		fmt.Fprintf(w, "  %s: %s\n\n", fail.Code, fail.Message)
	}

	if outputFile != "" && exit == nil {
		fmt.Fprintf(w, "Wrote query models to %s\n", outputFile)
	}
	return exit
}

// writeModelsToFile writes the structural form of each model, keyed by
// query name.
func writeModelsToFile(queries []*compiledQuery, filename string) error {
	models := make(map[string]json.RawMessage, len(queries))
	for _, q := range queries {
		data, err := q.qm.MarshalJSON()
		if err != nil {
			return fmt.Errorf("marshaling model %s: %w", q.Name, err)
		}
		models[q.Name] = data
	}

	data, err := json.MarshalIndent(models, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling models: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
