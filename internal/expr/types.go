package expr

import "strings"

// TypeAny is the type of expressions whose type cannot be inferred.
const TypeAny = "any"

// SeqType returns the sequence type with element type elem.
func SeqType(elem string) string {
	return "seq<" + elem + ">"
}

// ElementType returns the element type of a sequence type, or TypeAny.
func ElementType(t string) string {
	if strings.HasPrefix(t, "seq<") && strings.HasSuffix(t, ">") {
		return t[len("seq<") : len(t)-1]
	}
	return TypeAny
}

// TypeOf infers a best-effort static type for e. Types are informational:
// they name item types in printed models and output-shape descriptors.
func TypeOf(e Expr) string {
	switch n := e.(type) {
	case *Literal:
		if n.Value == nil {
			return "null"
		}
		return n.Value.TypeName()
	case *Param:
		if n.Type != "" {
			return n.Type
		}
	case *Lambda:
		return TypeOf(n.Body)
	case *Member:
		if n.Type != "" {
			return n.Type
		}
	case *Binary:
		switch {
		case n.Op.IsComparison(), n.Op.IsLogical():
			return "bool"
		case n.Op == OpCoalesce:
			return TypeOf(n.Right)
		}
		l, r := TypeOf(n.Left), TypeOf(n.Right)
		if l == "float" || r == "float" {
			return "float"
		}
		if l == r {
			return l
		}
	case *Unary:
		if n.Op == OpNot {
			return "bool"
		}
		return TypeOf(n.Operand)
	case *Conditional:
		return TypeOf(n.Then)
	case *New:
		names := make([]string, len(n.Fields))
		for i, f := range n.Fields {
			names[i] = f.Name
		}
		return "{" + strings.Join(names, ", ") + "}"
	case *Sequence:
		elem := n.ElemType
		if elem == "" {
			elem = TypeAny
		}
		return SeqType(elem)
	case *SourceRef:
		return n.Source.ItemType()
	case *SubQuery:
		return n.Model.OutputType()
	}
	return TypeAny
}
