package expr

// SourceMapping maps query sources to replacement expressions. Cloning uses
// it to point references at cloned clauses; subquery flattening uses it to
// point references at inlined selectors.
type SourceMapping struct {
	entries map[QuerySource]Expr
}

// NewSourceMapping returns an empty mapping.
func NewSourceMapping() *SourceMapping {
	return &SourceMapping{entries: make(map[QuerySource]Expr)}
}

// Add maps src to repl, replacing any earlier entry.
func (m *SourceMapping) Add(src QuerySource, repl Expr) {
	m.entries[src] = repl
}

// Lookup returns the replacement registered for src.
func (m *SourceMapping) Lookup(src QuerySource) (Expr, bool) {
	repl, ok := m.entries[src]
	return repl, ok
}

// Len returns the number of entries.
func (m *SourceMapping) Len() int {
	return len(m.entries)
}

// Remap returns a copy of e whose source references follow m. Nested
// query models are cloned against the same mapping, so the result never
// shares a model with e. References to unmapped sources are kept, which
// is what cloning a subquery that points at its enclosing model needs.
func Remap(e Expr, m *SourceMapping) Expr {
	return Transform(e, func(n Expr) Expr {
		switch n := n.(type) {
		case *SourceRef:
			if repl, ok := m.Lookup(n.Source); ok {
				return repl
			}
		case *SubQuery:
			return &SubQuery{Model: n.Model.CloneModel(m)}
		}
		return n
	})
}

// ReplaceSource substitutes references to src with repl throughout e,
// including inside nested query models (in place).
func ReplaceSource(e Expr, src QuerySource, repl Expr) Expr {
	return TransformDeep(e, func(n Expr) Expr {
		if ref, ok := n.(*SourceRef); ok && ref.Source == src {
			return repl
		}
		return n
	})
}

// ReferencesSource reports whether e refers to src outside nested models.
func ReferencesSource(e Expr, src QuerySource) bool {
	found := false
	Inspect(e, func(n Expr) bool {
		if ref, ok := n.(*SourceRef); ok && ref.Source == src {
			found = true
		}
		return !found
	})
	return found
}
