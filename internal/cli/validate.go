package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qchain/internal/chainspec"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // portability warnings fail validation
}

// ValidationIssue is one problem found in a definitions directory.
type ValidationIssue struct {
	Query    string `json:"query,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Queries  int               `json:"queries"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// CodeNotPortableWarning marks portability warnings.
const CodeNotPortableWarning = "W_NOT_PORTABLE"

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <defs-dir>",
		Short: "Validate definitions and their query chains",
		Long: `Validate the source and query definitions of a CUE directory.

Every definition error is collected, every query chain is taken through
the front end, and models outside the portable fragment are reported as
warnings. With --strict, warnings fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat portability warnings as errors")

	return cmd
}

func runValidate(opts *ValidateOptions, defsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	defs, loadErrors := chainspec.Load(defsDir, chainspec.LoadModeCollectAll)
	if defs == nil {
		return failDefinitions(formatter, loadErrors[0])
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", defs.FileCount, defsDir)

	result := ValidationResult{Queries: len(defs.Queries)}
	for _, err := range loadErrors {
		result.Errors = append(result.Errors, ValidationIssue{
			Code:     errorCode(err),
			Message:  errorMessage(err),
			Location: errorLocation(err),
		})
	}

	p := newParser(formatter.Logger())
	for _, q := range defs.Queries {
		formatter.VerboseLog("Validating query: %s", q.Name)
		cq, err := compileQuery(p, defs, q)
		var syntax *chainspec.SyntaxError
		if errors.As(err, &syntax) {
			// reported by Load as E112
			continue
		}
		if err != nil {
			result.Errors = append(result.Errors, ValidationIssue{
				Query:   q.Name,
				Code:    errorCode(err),
				Message: err.Error(),
			})
			continue
		}
		for _, w := range cq.Warnings {
			result.Warnings = append(result.Warnings, ValidationIssue{
				Query:   q.Name,
				Code:    CodeNotPortableWarning,
				Message: w,
			})
		}
	}

	result.Valid = len(result.Errors) == 0 && (!opts.Strict || len(result.Warnings) == 0)
	return outputValidationResult(formatter, result)
}

// outputValidationResult prints the result; invalid results exit with
// ExitFailure.
func outputValidationResult(f *OutputFormatter, result ValidationResult) error {
	var exit error
	if !result.Valid {
		exit = NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s), %d warning(s)",
			len(result.Errors), len(result.Warnings)))
	}

	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result, TraceID: f.TraceID}
		if !result.Valid {
			resp.Status = "error"
			first := firstIssue(result)
			resp.Error = &CLIError{Code: first.Code, Message: first.Message}
		}
		if err := f.encode(resp); err != nil {
			return err
		}
		return exit
	}

	w := f.Writer
	if result.Valid {
		fmt.Fprintf(w, "%s All definitions valid (%d query(ies))\n", okMark(), result.Queries)
	} else {
		fmt.Fprintf(w, "%s Validation failed\n", failMark())
	}
	for _, issue := range result.Errors {
		fmt.Fprintln(w)
		if issue.Location != "" {
			fmt.Fprintln(w, issue.Location)
		}
		fmt.Fprintf(w, "  %s%s: %s\n", queryPrefix(issue.Query), issue.Code, issue.Message)
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(w)
	}
	for _, issue := range result.Warnings {
		fmt.Fprintf(w, "%s %s%s\n", warnMark(), queryPrefix(issue.Query), issue.Message)
	}
	return exit
}

func firstIssue(result ValidationResult) ValidationIssue {
	if len(result.Errors) > 0 {
		return result.Errors[0]
	}
	return result.Warnings[0]
}

func queryPrefix(name string) string {
	if name == "" {
		return ""
	}
	return name + ": "
}
