package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/qchain/internal/chainspec"
	"github.com/roach88/qchain/internal/ir"
	"github.com/roach88/qchain/internal/parser"
	"github.com/roach88/qchain/internal/qerr"
	"github.com/roach88/qchain/internal/querymodel"
	"github.com/roach88/qchain/internal/querysql"
	"github.com/roach88/qchain/internal/store"
)

// Error codes for failures that are not compiler errors.
const (
	CodeSyntax      = "SYNTAX_ERROR"
	CodeNotPortable = "NOT_PORTABLE"
	CodeEmpty       = "EMPTY_SEQUENCE"
	CodeNotSingle   = "NOT_SINGLE"
	CodeDefinitions = "DEFINITIONS"
	CodeOther       = "ERROR"
)

// Classify returns the error code reported for err: a compiler error code
// or one of the Code* constants.
func Classify(err error) string {
	if code := qerr.CodeOf(err); code != "" {
		return string(code)
	}
	var syntax *chainspec.SyntaxError
	switch {
	case errors.As(err, &syntax):
		return CodeSyntax
	case errors.Is(err, querysql.ErrNotPortable):
		return CodeNotPortable
	case errors.Is(err, store.ErrEmptySequence):
		return CodeEmpty
	case errors.Is(err, store.ErrNotSingle):
		return CodeNotSingle
	}
	return CodeOther
}

// Harness runs scenario cases against one store.
type Harness struct {
	store  *store.Store
	parser *parser.Parser
	sql    *querysql.SQLCompiler
	defs   *chainspec.Definitions
	logger *slog.Logger
}

// Option configures Run.
type Option func(*config)

type config struct {
	logger *slog.Logger
	ids    store.IDGenerator
}

// WithLogger sets the logger. Scenario runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithIDGenerator sets the generator for compilation log IDs.
func WithIDGenerator(g store.IDGenerator) Option {
	return func(c *config) {
		c.ids = g
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Case failures (syntax,
// compiler, backend or execution errors) are recorded on the case and
// checked by its assertions; Run itself only fails when the scenario
// cannot be set up.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := &config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(cfg)
	}

	storeOpts := []store.Option{store.WithLogger(cfg.logger)}
	if cfg.ids != nil {
		storeOpts = append(storeOpts, store.WithIDGenerator(cfg.ids))
	}
	st, err := store.Open(":memory:", storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		parser: parser.New(parser.WithLogger(cfg.logger)),
		sql:    querysql.NewSQLCompiler(),
		logger: cfg.logger,
	}

	if scenario.Definitions != "" {
		defs, errs := chainspec.Load(scenario.Definitions, chainspec.LoadModeFailFast)
		if len(errs) > 0 {
			return nil, fmt.Errorf("failed to load definitions: %w", errs[0])
		}
		h.defs = defs
	}

	ctx := context.Background()
	if err := h.loadFixtures(ctx, scenario.Fixtures); err != nil {
		return nil, fmt.Errorf("failed to load fixtures: %w", err)
	}

	result := NewResult()
	for _, c := range scenario.Cases {
		cr := h.runCase(ctx, scenario, c)
		cr.Errors = EvaluateAssertions(cr, c.Assertions)
		result.AddCase(cr)

		h.logger.Info("case completed",
			"scenario", scenario.Name,
			"case", c.Name,
			"pass", cr.Pass(),
			"error_code", cr.ErrorCode,
		)
	}
	return result, nil
}

// loadFixtures converts YAML fixture rows to values and loads them.
func (h *Harness) loadFixtures(ctx context.Context, fixtures map[string][]any) error {
	tables, err := ConvertFixtures(fixtures)
	if err != nil {
		return err
	}
	return h.store.LoadFixtures(ctx, tables)
}

// environment builds the chain environment of a case.
func (h *Harness) environment(scenario *Scenario, c Case) (string, chainspec.Environment, error) {
	env := chainspec.Environment{Sources: map[string]string{}, Params: map[string]any{}}
	text := c.Chain

	for name := range scenario.Fixtures {
		env.Sources[name] = "item"
	}
	if h.defs != nil {
		for _, s := range h.defs.Sources {
			env.Sources[s.Name] = s.ItemType
		}
	}
	for name, typ := range scenario.Sources {
		env.Sources[name] = typ
	}

	if c.Query != "" {
		if h.defs == nil {
			return "", env, fmt.Errorf("query %q: no definitions loaded", c.Query)
		}
		q, ok := h.defs.Query(c.Query)
		if !ok {
			return "", env, fmt.Errorf("query %q not defined", c.Query)
		}
		text = q.Chain
		for k, v := range q.Params {
			env.Params[k] = v
		}
	}
	for k, v := range c.Params {
		env.Params[k] = v
	}
	return text, env, nil
}

// runCase takes one case through every stage, stopping at the first
// failure.
func (h *Harness) runCase(ctx context.Context, scenario *Scenario, c Case) *CaseResult {
	cr := &CaseResult{Name: c.Name, Query: c.Query, Chain: c.Chain}
	fail := func(err error) *CaseResult {
		cr.ErrorCode = Classify(err)
		cr.Error = err.Error()
		return cr
	}

	text, env, err := h.environment(scenario, c)
	if err != nil {
		cr.ErrorCode = CodeDefinitions
		cr.Error = err.Error()
		return cr
	}
	cr.Chain = text

	chain, err := chainspec.ParseChain(text, env)
	if err != nil {
		return fail(err)
	}

	qm, err := h.parser.Parse(chain)
	if err != nil {
		return fail(err)
	}
	cr.Model = qm.String()
	if cr.Fingerprint, err = qm.Fingerprint(); err != nil {
		return fail(err)
	}
	cr.Warnings = querymodel.Validate(qm).Warnings

	stmt, err := h.sql.Compile(qm)
	if err != nil {
		return fail(err)
	}
	cr.SQL = stmt.SQL
	cr.Params = stmt.Params

	name := c.Query
	if name == "" {
		name = scenario.Name + "/" + c.Name
	}
	if _, _, err := h.store.RecordCompilation(ctx, name, text, cr.Model, cr.Fingerprint, stmt); err != nil {
		return fail(err)
	}

	value, err := h.store.Execute(ctx, stmt)
	if err != nil {
		return fail(err)
	}
	cr.Value = value
	return cr
}

// convertToValue converts a YAML-parsed value to an ir.Value.
// YAML mappings with non-string keys are rejected.
func convertToValue(val any) (ir.Value, error) {
	switch v := val.(type) {
	case map[any]any:
		obj := make(ir.Object, len(v))
		keys := make([]string, 0, len(v))
		for k := range v {
			s, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", k)
			}
			keys = append(keys, s)
		}
		sort.Strings(keys)
		for _, k := range keys {
			conv, err := convertToValue(v[k])
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	case map[string]any:
		obj := make(ir.Object, len(v))
		for k, elem := range v {
			conv, err := convertToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	case []any:
		arr := make(ir.Array, len(v))
		for i, elem := range v {
			conv, err := convertToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	default:
		return ir.FromGo(val)
	}
}
