package nodes

import (
	"github.com/roach88/qchain/internal/expr"
)

// Factory builds the node for one call. info already carries the
// predecessor, the call and its position; args are the call's arguments
// after subquery detection. A factory may add synthesized predecessor
// nodes to the arena. Returning an error rejects the overload.
type Factory func(a *Arena, info Info, args []expr.Expr) (Node, error)

// Kind is a node kind: a name for diagnostics and the factory building it.
type Kind struct {
	Name    string
	Factory Factory
}

// CatalogBuilder collects signature registrations. Build freezes them.
type CatalogBuilder struct {
	exact  map[expr.Signature]Kind
	byName map[string]Kind
}

// NewCatalogBuilder returns an empty builder.
func NewCatalogBuilder() *CatalogBuilder {
	return &CatalogBuilder{
		exact:  make(map[expr.Signature]Kind),
		byName: make(map[string]Kind),
	}
}

// Register maps each exact open-generic signature to kind. A later
// registration of the same signature replaces the earlier one.
func (b *CatalogBuilder) Register(kind Kind, sigs ...expr.Signature) *CatalogBuilder {
	for _, sig := range sigs {
		b.exact[sig] = kind
	}
	return b
}

// RegisterName maps calls with any of the given method names to kind,
// whatever their owner, arity or type parameters. Exact registrations
// take precedence.
func (b *CatalogBuilder) RegisterName(kind Kind, names ...string) *CatalogBuilder {
	for _, name := range names {
		b.byName[name] = kind
	}
	return b
}

// Build returns the frozen catalog.
func (b *CatalogBuilder) Build() *Catalog {
	c := &Catalog{
		exact:  make(map[expr.Signature]Kind, len(b.exact)),
		byName: make(map[string]Kind, len(b.byName)),
	}
	for sig, k := range b.exact {
		c.exact[sig] = k
	}
	for name, k := range b.byName {
		c.byName[name] = k
	}
	return c
}

// Catalog maps call signatures to node kinds. It is read-only and safe for
// concurrent use.
type Catalog struct {
	exact  map[expr.Signature]Kind
	byName map[string]Kind
}

// Lookup returns the node kind for sig: an exact signature match if one is
// registered, else a name match.
func (c *Catalog) Lookup(sig expr.Signature) (Kind, bool) {
	if k, ok := c.exact[sig]; ok {
		return k, true
	}
	k, ok := c.byName[sig.Name]
	return k, ok
}

// Recognizes reports whether call has a node kind.
func (c *Catalog) Recognizes(call *expr.Chain) bool {
	_, ok := c.Lookup(call.Signature())
	return ok
}

// Len returns the number of exact and name registrations.
func (c *Catalog) Len() int {
	return len(c.exact) + len(c.byName)
}
