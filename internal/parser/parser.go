package parser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/nodes"
	"github.com/roach88/qchain/internal/pipeline"
	"github.com/roach88/qchain/internal/qerr"
	"github.com/roach88/qchain/internal/querymodel"
)

// Parser compiles call chains into query models.
type Parser struct {
	catalog  *nodes.Catalog
	pipeline pipeline.Processor
	logger   *slog.Logger
	known    []string

	pipelineSet bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithCatalog replaces the default node-kind catalog.
func WithCatalog(c *nodes.Catalog) Option {
	return func(p *Parser) {
		p.catalog = c
	}
}

// WithPipeline replaces the default preprocessing pipeline. A nil
// processor disables preprocessing.
func WithPipeline(proc pipeline.Processor) Option {
	return func(p *Parser) {
		p.pipeline = proc
		p.pipelineSet = true
	}
}

// WithLogger sets the logger for parse diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = l
	}
}

// WithKnownIdentifiers reserves names that generated item names must not
// collide with.
func WithKnownIdentifiers(names ...string) Option {
	return func(p *Parser) {
		p.known = append(p.known, names...)
	}
}

// New creates a parser. Without options it uses nodes.DefaultCatalog and
// pipeline.Default.
func New(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.catalog == nil {
		p.catalog = nodes.DefaultCatalog()
	}
	if !p.pipelineSet {
		p.pipeline = pipeline.Default(p.logger)
	}
	return p
}

// Catalog returns the node-kind catalog in use.
func (p *Parser) Catalog() *nodes.Catalog {
	return p.catalog
}

// Parse compiles chain into a query model.
//
// Errors are *qerr.Error values, except failures raised by host code while
// folding captured values, which are returned as the host raised them.
func (p *Parser) Parse(chain expr.Expr) (*querymodel.QueryModel, error) {
	if chain == nil {
		return nil, fmt.Errorf("parser: nil chain")
	}
	if p.pipeline != nil {
		out, err := p.pipeline.Process(chain)
		if err != nil {
			return nil, err
		}
		chain = out
	}

	c, ok := chain.(*expr.Chain)
	if !ok {
		return nil, qerr.NewUnsupportedOperation("", 0, expr.String(chain), "expression is not a query operator call")
	}

	st := &parseState{parser: p, names: NewUniqueIdentifierGenerator(p.known...)}
	for _, name := range paramNames(c) {
		st.names.AddKnownIdentifier(name)
	}

	qm, err := st.parseModel(c)
	if err != nil {
		return nil, err
	}
	if err := querymodel.CheckReferences(qm); err != nil {
		return nil, err
	}

	if p.logger.Enabled(context.Background(), slog.LevelDebug) {
		attrs := []any{"operations", len(expr.Calls(c)), "nodes", st.nodeCount}
		if fp, err := qm.Fingerprint(); err != nil {
			attrs = append(attrs, "fingerprint_error", err)
		} else {
			attrs = append(attrs, "fingerprint", fp)
		}
		p.logger.Debug("parsed query model", attrs...)
	}
	return qm, nil
}

// paramNames returns every lambda parameter name in e.
func paramNames(e expr.Expr) []string {
	var names []string
	expr.Inspect(e, func(n expr.Expr) bool {
		if lam, ok := n.(*expr.Lambda); ok {
			for _, prm := range lam.Params {
				names = append(names, prm.Name)
			}
		}
		return true
	})
	return names
}

// parseState is the per-parse state shared by the top-level chain and the
// chains nested in it.
type parseState struct {
	parser    *Parser
	names     *UniqueIdentifierGenerator
	nodeCount int
}

// parseModel parses c and assembles its model. Nested models keep
// placeholders of enclosing lambdas; the enclosing assembly binds them.
func (st *parseState) parseModel(c *expr.Chain) (*querymodel.QueryModel, error) {
	a, head, err := st.parseNodes(c)
	if err != nil {
		return nil, err
	}
	st.nodeCount += a.Len()
	return nodes.NewAssembler(a, st.names).Assemble(head)
}

// parseNodes turns every call of c into a node, innermost first, and
// returns the arena with the outermost node's ID.
func (st *parseState) parseNodes(c *expr.Chain) (*nodes.Arena, nodes.NodeID, error) {
	calls := expr.Calls(c)
	hint := func(i int) string {
		if i < len(calls) {
			if prm := nodes.ItemParam(calls[i]); prm != nil {
				return prm.Name
			}
		}
		return ""
	}

	a := nodes.NewArena()
	src := a.Add(&nodes.MainSourceNode{
		Info:     nodes.Info{Source: nodes.NoNode, ItemName: hint(0)},
		Sequence: expr.Terminal(c),
	})

	for i, call := range calls {
		sig := call.Signature()
		pos := i + 1
		kind, ok := st.parser.catalog.Lookup(sig)
		if !ok {
			return nil, nodes.NoNode, qerr.NewUnsupportedOperation(sig.String(), pos, expr.String(c),
				"no node kind is registered for this signature")
		}

		args := make([]expr.Expr, len(call.Args))
		for j, arg := range call.Args {
			out, err := st.findSubQueries(arg)
			if err != nil {
				return nil, nodes.NoNode, err
			}
			args[j] = out
		}

		n, err := kind.Factory(a, nodes.Info{Source: src, Call: call, Position: pos, ItemName: hint(pos)}, args)
		if err != nil {
			return nil, nodes.NoNode, qerr.NewUnsupportedOperation(sig.String(), pos, expr.String(c),
				fmt.Sprintf("%s does not accept this call: %v", kind.Name, err))
		}
		src = a.Add(n)
	}
	return a, src, nil
}

// findSubQueries replaces every nested chain in e with a subquery holding
// its parsed model. A nested chain is parsed whole; its own arguments are
// scanned by that parse.
func (st *parseState) findSubQueries(e expr.Expr) (expr.Expr, error) {
	if c, ok := e.(*expr.Chain); ok {
		qm, err := st.parseModel(c)
		if err != nil {
			return nil, err
		}
		return &expr.SubQuery{Model: qm}, nil
	}

	kids := expr.Children(e)
	if len(kids) == 0 {
		return e, nil
	}
	next := make([]expr.Expr, len(kids))
	for i, k := range kids {
		out, err := st.findSubQueries(k)
		if err != nil {
			return nil, err
		}
		next[i] = out
	}
	return expr.WithChildren(e, next), nil
}
