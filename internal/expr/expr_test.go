package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name, typ string
}

func (s *fakeSource) ItemName() string { return s.name }
func (s *fakeSource) ItemType() string { return s.typ }

func TestKindStrings(t *testing.T) {
	assert.Len(t, Kinds(), int(numKinds))
	assert.Equal(t, "lambda", KindLambda.String())
	assert.Equal(t, "source-ref", KindSourceRef.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}

func TestSignatureString(t *testing.T) {
	c := Seq("people", "Person").Op("Where", Lam1("p", func(p *Param) Expr { return Bool(true) }))
	assert.Equal(t, "Queryable.Where/2", c.Signature().String())

	c.Method.TypeArgs = []string{"Person"}
	assert.Equal(t, "Queryable.Where`1/2", c.Signature().String())
}

func TestCallsAndTerminal(t *testing.T) {
	src := Seq("people", "Person")
	c := src.Op("Where", Lam1("p", func(p *Param) Expr { return Gt(M(p, "age"), Int(5)) })).
		Op("Select", Lam1("p", func(p *Param) Expr { return M(p, "name") })).
		Op("Distinct")

	calls := Calls(c)
	require.Len(t, calls, 3)
	assert.Equal(t, "Where", calls[0].Method.Name)
	assert.Equal(t, "Distinct", calls[2].Method.Name)
	assert.Same(t, src, Terminal(c))
}

func TestPrinter(t *testing.T) {
	c := Seq("people", "Person").
		Op("Where", Lam1("p", func(p *Param) Expr {
			return And(Gt(M(p, "age"), Capture("minAge", 18)), Not(M(p, "retired")))
		})).
		Op("Select", Lam1("p", func(p *Param) Expr {
			return NewOf(F("n", M(p, "name")), F("x", If(Bool(true), Str("a"), Null())))
		})).
		Op("Take", Int(3))

	assert.Equal(t,
		`people.Where(p => ((p.age > value(minAge)) && !p.retired)).Select(p => new {n = p.name, x = (true ? "a" : null)}).Take(3)`,
		String(c))

	src := &fakeSource{name: "p", typ: "Person"}
	assert.Equal(t, "[p].name", String(M(Ref(src), "name")))
	assert.Equal(t, "(a, b) => a", String(Lam2("a", "b", func(a, b *Param) Expr { return a })))
	assert.Equal(t, "x.s.Trim()", String(CallOf("Trim", M(P("x"), "s"))))
}

func TestTransformSharesUnchangedSubtrees(t *testing.T) {
	x := P("x")
	left := Gt(M(x, "age"), Int(5))
	right := Eq(M(x, "name"), Str("ann"))
	tree := And(left, right)

	same := Transform(tree, func(n Expr) Expr { return n })
	assert.Same(t, tree, same)

	out := Transform(tree, func(n Expr) Expr {
		if lit, ok := n.(*Literal); ok && String(lit) == "5" {
			return Int(6)
		}
		return n
	})
	b := out.(*Binary)
	assert.NotSame(t, tree, out)
	assert.Same(t, right, b.Right)
	assert.Equal(t, "((x.age > 6) && (x.name == \"ann\"))", String(out))
	assert.Equal(t, "((x.age > 5) && (x.name == \"ann\"))", String(tree))
}

func TestWithChildrenCallWithoutTarget(t *testing.T) {
	call := CallOf("max", nil, Int(1), Int(2))
	out := WithChildren(call, []Expr{Int(3), Int(4)})
	assert.Equal(t, "max(3, 4)", String(out))
	assert.Equal(t, "max(1, 2)", String(call))
}

func TestWithChildrenArityMismatchPanics(t *testing.T) {
	assert.Panics(t, func() { WithChildren(Not(Bool(true)), nil) })
}

func TestReplaceParams(t *testing.T) {
	lam := Lam1("x", func(x *Param) Expr { return Add(M(x, "a"), M(x, "b")) })
	src := &fakeSource{name: "x", typ: "Row"}

	body := ReplaceParams(lam.Body, map[*Param]Expr{lam.Params[0]: Ref(src)})
	assert.Equal(t, "([x].a + [x].b)", String(body))

	// Same-named but distinct parameter is untouched.
	other := P("x")
	assert.Equal(t, "x.a", String(ReplaceParams(M(other, "a"), map[*Param]Expr{lam.Params[0]: Ref(src)})))
}

func TestFreeParams(t *testing.T) {
	outer := P("o")
	inner := Lam1("i", func(i *Param) Expr { return Gt(M(i, "v"), M(outer, "v")) })
	assert.Equal(t, []*Param{outer}, FreeParams(inner))
	assert.Empty(t, FreeParams(Add(Int(2), Int(3))))

	tree := Lam([]*Param{outer}, Op(M(outer, "items"), "Any", inner))
	assert.Empty(t, FreeParams(tree))
	assert.True(t, References(tree, outer))
}

func TestRemoveTransparentIdentifiers(t *testing.T) {
	x := P("x")
	y := P("y")
	packed := NewOf(F("a", x), F("b", NewOf(F("c", y))))

	assert.Same(t, x, RemoveTransparentIdentifiers(M(packed, "a")))
	assert.Same(t, y, RemoveTransparentIdentifiers(M(M(packed, "b"), "c")))

	missing := M(packed, "z")
	assert.Same(t, missing, RemoveTransparentIdentifiers(missing))
}

func TestRemapAndReplaceSource(t *testing.T) {
	oldSrc := &fakeSource{name: "p", typ: "Person"}
	newSrc := &fakeSource{name: "p", typ: "Person"}
	other := &fakeSource{name: "o", typ: "Order"}
	e := Eq(M(Ref(oldSrc), "id"), M(Ref(other), "owner"))

	m := NewSourceMapping()
	m.Add(oldSrc, Ref(newSrc))
	assert.Equal(t, 1, m.Len())

	out := Remap(e, m)
	b := out.(*Binary)
	assert.Same(t, newSrc, b.Left.(*Member).Target.(*SourceRef).Source)
	assert.Same(t, other, b.Right.(*Member).Target.(*SourceRef).Source)
	assert.True(t, ReferencesSource(e, oldSrc))
	assert.False(t, ReferencesSource(out, oldSrc))

	replaced := ReplaceSource(e, other, Int(7))
	assert.Equal(t, "([p].id == 7.owner)", String(replaced))
}

func TestTypeOf(t *testing.T) {
	src := &fakeSource{name: "p", typ: "Person"}
	tests := []struct {
		name string
		e    Expr
		want string
	}{
		{"literal", Int(1), "int"},
		{"comparison", Gt(Int(1), Int(2)), "bool"},
		{"mixed arithmetic", Add(Int(1), Float(2)), "float"},
		{"sequence", Seq("people", "Person"), "seq<Person>"},
		{"source ref", Ref(src), "Person"},
		{"anonymous", NewOf(F("a", Int(1)), F("b", Int(2))), "{a, b}"},
		{"unknown member", M(Ref(src), "age"), TypeAny},
		{"typed member", &Member{Target: Ref(src), Name: "age", Type: "int"}, "int"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.e))
		})
	}

	assert.Equal(t, "Person", ElementType("seq<Person>"))
	assert.Equal(t, TypeAny, ElementType("int"))
}
