package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/qchain/internal/chainspec"
	"github.com/roach88/qchain/internal/harness"
	"github.com/roach88/qchain/internal/parser"
	"github.com/roach88/qchain/internal/querymodel"
)

// Error codes reported by the CLI itself. Definition errors use the
// chainspec codes (E001..E112); query errors use the compiler codes.
const (
	ErrCodeQueryNotFound = "E_QUERY_NOT_FOUND"
	ErrCodeQueryRequired = "E_QUERY_REQUIRED"
	ErrCodeWriteFailed   = "E_WRITE_FAILED"
	ErrCodeFixtures      = "E_FIXTURES"
	ErrCodeStore         = "E_STORE"
	ErrCodeTestFailed    = "E_TEST_FAILED"
)

// QueryNotFoundError is returned when --query names no defined query.
type QueryNotFoundError struct {
	Name string
}

func (e *QueryNotFoundError) Error() string {
	return fmt.Sprintf("query %q not defined", e.Name)
}

// compiledQuery is a definition query taken through the front end.
type compiledQuery struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Chain       string   `json:"chain"`
	Model       string   `json:"model"`
	Fingerprint string   `json:"fingerprint"`
	Warnings    []string `json:"warnings"`

	qm *querymodel.QueryModel
}

// queryFailure is a query that did not compile.
type queryFailure struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// loadDefinitions loads dir in fail-fast mode, reporting the first error
// as a command error.
func loadDefinitions(f *OutputFormatter, dir string) (*chainspec.Definitions, error) {
	defs, errs := chainspec.Load(dir, chainspec.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, failDefinitions(f, errs[0])
	}
	f.VerboseLog("Found %d CUE file(s) in %s", defs.FileCount, dir)
	return defs, nil
}

// selectQueries returns the named query, or every query when name is empty.
func selectQueries(defs *chainspec.Definitions, name string) ([]chainspec.Query, error) {
	if name == "" {
		return defs.Queries, nil
	}
	q, ok := defs.Query(name)
	if !ok {
		return nil, &QueryNotFoundError{Name: name}
	}
	return []chainspec.Query{q}, nil
}

// compileQuery parses q's chain text and builds its query model.
func compileQuery(p *parser.Parser, defs *chainspec.Definitions, q chainspec.Query) (*compiledQuery, error) {
	chain, err := chainspec.ParseChain(q.Chain, defs.Environment(q))
	if err != nil {
		return nil, err
	}
	qm, err := p.Parse(chain)
	if err != nil {
		return nil, err
	}
	fp, err := qm.Fingerprint()
	if err != nil {
		return nil, err
	}
	return &compiledQuery{
		Name:        q.Name,
		Description: q.Description,
		Chain:       q.Chain,
		Model:       qm.String(),
		Fingerprint: fp,
		Warnings:    querymodel.Validate(qm).Warnings,
		qm:          qm,
	}, nil
}

// newParser returns a parser logging through logger.
func newParser(logger *slog.Logger) *parser.Parser {
	return parser.New(parser.WithLogger(logger))
}

// errorCode maps an error to the code printed for it.
func errorCode(err error) string {
	var loadErr *chainspec.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	var notFound *QueryNotFoundError
	if errors.As(err, &notFound) {
		return ErrCodeQueryNotFound
	}
	return harness.Classify(err)
}

// errorMessage is err's message without the code prefix LoadError adds.
func errorMessage(err error) string {
	var loadErr *chainspec.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Message
	}
	return err.Error()
}

// errorLocation returns "file:line:col" for errors carrying a CUE position.
func errorLocation(err error) string {
	var loadErr *chainspec.LoadError
	if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
	}
	return ""
}

// failDefinitions reports a definitions error as a command error.
func failDefinitions(f *OutputFormatter, err error) error {
	code, msg := errorCode(err), errorMessage(err)
	_ = f.Error(code, msg, nil)
	return WrapExitError(ExitCommandError, code, err)
}
