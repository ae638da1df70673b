package expr

// RemoveTransparentIdentifiers collapses member access on an anonymous
// object construction: new {a = x, b = y}.a becomes x. Resolution produces
// these shapes when a result selector packs several items into one.
// Nested query models are rewritten in place.
func RemoveTransparentIdentifiers(e Expr) Expr {
	return TransformDeep(e, func(n Expr) Expr {
		m, ok := n.(*Member)
		if !ok {
			return n
		}
		obj, ok := m.Target.(*New)
		if !ok {
			return n
		}
		if v, ok := obj.Field(m.Name); ok {
			return v
		}
		return n
	})
}
