package nodes

import (
	"github.com/roach88/qchain/internal/expr"
)

// ClauseGenerationContext maps each applied node to what later nodes
// resolve its item to: the clause it produced, if any, and its resolved
// output item. A node that only passes its source through shares the
// source's item.
type ClauseGenerationContext struct {
	sources map[NodeID]expr.QuerySource
	items   map[NodeID]expr.Expr
}

// NewClauseGenerationContext returns an empty context.
func NewClauseGenerationContext() *ClauseGenerationContext {
	return &ClauseGenerationContext{
		sources: make(map[NodeID]expr.QuerySource),
		items:   make(map[NodeID]expr.Expr),
	}
}

// Add registers the clause node id produced and makes a reference to it
// the node's item.
func (c *ClauseGenerationContext) Add(id NodeID, src expr.QuerySource) {
	c.sources[id] = src
	c.items[id] = expr.Ref(src)
}

// Get returns the clause node id produced.
func (c *ClauseGenerationContext) Get(id NodeID) (expr.QuerySource, bool) {
	src, ok := c.sources[id]
	return src, ok
}

// SetItem records the resolved output item of node id.
func (c *ClauseGenerationContext) SetItem(id NodeID, item expr.Expr) {
	c.items[id] = item
}

// Item returns the resolved output item of node id.
func (c *ClauseGenerationContext) Item(id NodeID) (expr.Expr, bool) {
	it, ok := c.items[id]
	return it, ok
}

// Len returns the number of registered clauses.
func (c *ClauseGenerationContext) Len() int {
	return len(c.sources)
}
