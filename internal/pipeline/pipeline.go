// Package pipeline composes tree-to-tree processors into the preprocessing
// pass that runs before chain parsing.
package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/roach88/qchain/internal/eval"
	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/rewrite"
)

// Processor transforms an expression tree. Implementations must not modify
// their input and should be idempotent on their own output.
type Processor interface {
	Name() string
	Process(e expr.Expr) (expr.Expr, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc struct {
	Label string
	Fn    func(expr.Expr) (expr.Expr, error)
}

func (p ProcessorFunc) Name() string                           { return p.Label }
func (p ProcessorFunc) Process(e expr.Expr) (expr.Expr, error) { return p.Fn(e) }

// Pipeline runs processors in order, feeding each the previous output.
type Pipeline struct {
	stages []Processor
	logger *slog.Logger
}

// New creates a pipeline over stages.
func New(logger *slog.Logger, stages ...Processor) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{stages: stages, logger: logger}
}

// Default returns the standard pipeline: partial evaluation with the default
// interpreter, then the default rewrite rules.
func Default(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return New(logger,
		eval.New(nil, eval.WithLogger(logger)),
		rewrite.NewEngine(rewrite.DefaultRegistry(), rewrite.WithLogger(logger)),
	)
}

// Stages returns the stage names in order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Name identifies the pipeline when nested inside another one.
func (p *Pipeline) Name() string { return "pipeline" }

// Process runs every stage. Errors from a stage are returned unwrapped so
// host evaluation failures reach the caller as the host raised them.
func (p *Pipeline) Process(e expr.Expr) (expr.Expr, error) {
	if e == nil {
		return nil, fmt.Errorf("pipeline: nil expression")
	}
	for _, stage := range p.stages {
		out, err := stage.Process(e)
		if err != nil {
			p.logger.Debug("preprocessing stage failed", "stage", stage.Name(), "error", err)
			return nil, err
		}
		if out != e {
			p.logger.Debug("preprocessing stage changed tree", "stage", stage.Name())
		}
		e = out
	}
	return e, nil
}
