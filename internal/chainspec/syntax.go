package chainspec

import (
	"fmt"

	"github.com/roach88/qchain/internal/eval"
	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/ir"
	"github.com/roach88/qchain/internal/nodes"
)

// SyntaxError reports a malformed chain text.
type SyntaxError struct {
	Offset  int
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

func syntaxErr(src string, offset int, msg string) *SyntaxError {
	line, col := 1, 1
	for i, r := range src {
		if i >= offset {
			break
		}
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return &SyntaxError{Offset: offset, Line: line, Column: col, Message: msg}
}

// Environment resolves the free identifiers of a chain text.
type Environment struct {
	// Sources maps sequence names to their item types.
	Sources map[string]string

	// Params are host values captured by name.
	Params map[string]any

	// Operators are the method names parsed as query operator calls.
	// Nil means nodes.DefaultOperators().
	Operators []string

	// Functions are the method names parsed as host function calls.
	// Nil means eval.BuiltinNames().
	Functions []string
}

// ParseChain parses a chain text such as
//
//	people.Where(p => p.age >= minAge).OrderBy(p => p.name).Select(p => p.name)
//
// into an expression tree. Identifiers resolve, innermost first, to lambda
// parameters, then Sources, then Params.
//
// A method call on a sequence or on another operator call is a query
// operator call. A method call on anything else is a query operator call
// only when its name is an operator and not a host function, so
// name.Contains("a") calls the host function while p.pets.Where(...) starts
// a nested chain.
func ParseChain(src string, env Environment) (expr.Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &syntaxParser{
		src:       src,
		toks:      toks,
		env:       env,
		operators: toSet(env.Operators, nodes.DefaultOperators),
		functions: toSet(env.Functions, eval.BuiltinNames),
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tkEOF {
		return nil, p.errorf("unexpected %s after expression", p.peek().kind)
	}
	return e, nil
}

func toSet(names []string, def func() []string) map[string]bool {
	if names == nil {
		names = def()
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

type syntaxParser struct {
	src  string
	toks []token
	pos  int
	env  Environment

	operators map[string]bool
	functions map[string]bool

	// scopes holds the parameters of the enclosing lambdas, innermost last.
	scopes []map[string]*expr.Param
}

func (p *syntaxParser) peek() token { return p.toks[p.pos] }

func (p *syntaxParser) peekAt(n int) token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *syntaxParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tkEOF {
		p.pos++
	}
	return t
}

func (p *syntaxParser) errorf(format string, args ...any) error {
	return syntaxErr(p.src, p.peek().pos, fmt.Sprintf(format, args...))
}

func (p *syntaxParser) expect(k tokenKind) (token, error) {
	if p.peek().kind != k {
		return token{}, p.errorf("expected %s, found %s", k, p.peek().kind)
	}
	return p.next(), nil
}

func (p *syntaxParser) parseExpr() (expr.Expr, error) {
	if p.isLambdaStart() {
		return p.parseLambda()
	}
	return p.parseTernary()
}

// isLambdaStart looks ahead for "x =>" or "(x, y) =>".
func (p *syntaxParser) isLambdaStart() bool {
	if p.peek().kind == tkIdent && p.peekAt(1).kind == tkArrow {
		return true
	}
	if p.peek().kind != tkLParen {
		return false
	}
	i := 1
	if p.peekAt(i).kind == tkRParen {
		return p.peekAt(i+1).kind == tkArrow
	}
	for {
		if p.peekAt(i).kind != tkIdent {
			return false
		}
		i++
		switch p.peekAt(i).kind {
		case tkComma:
			i++
		case tkRParen:
			return p.peekAt(i+1).kind == tkArrow
		default:
			return false
		}
	}
}

func (p *syntaxParser) parseLambda() (expr.Expr, error) {
	var params []*expr.Param
	if p.peek().kind == tkIdent {
		params = append(params, expr.P(p.next().text))
	} else {
		p.next() // (
		for p.peek().kind != tkRParen {
			params = append(params, expr.P(p.next().text))
			if p.peek().kind == tkComma {
				p.next()
			}
		}
		p.next() // )
	}
	if _, err := p.expect(tkArrow); err != nil {
		return nil, err
	}

	scope := make(map[string]*expr.Param, len(params))
	for _, prm := range params {
		scope[prm.Name] = prm
	}
	p.scopes = append(p.scopes, scope)
	body, err := p.parseExpr()
	p.scopes = p.scopes[:len(p.scopes)-1]
	if err != nil {
		return nil, err
	}
	return expr.Lam(params, body), nil
}

func (p *syntaxParser) parseTernary() (expr.Expr, error) {
	test, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tkQuestion {
		return test, nil
	}
	p.next()
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tkColon); err != nil {
		return nil, err
	}
	els, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return expr.If(test, then, els), nil
}

var binaryOps = map[tokenKind]struct {
	op   expr.BinaryOp
	prec int
}{
	tkCoalesce: {expr.OpCoalesce, 0},
	tkOr:       {expr.OpOr, 1},
	tkAnd:      {expr.OpAnd, 2},
	tkEq:       {expr.OpEq, 3},
	tkNe:       {expr.OpNe, 3},
	tkLt:       {expr.OpLt, 4},
	tkLe:       {expr.OpLe, 4},
	tkGt:       {expr.OpGt, 4},
	tkGe:       {expr.OpGe, 4},
	tkAdd:      {expr.OpAdd, 5},
	tkSub:      {expr.OpSub, 5},
	tkMul:      {expr.OpMul, 6},
	tkDiv:      {expr.OpDiv, 6},
	tkMod:      {expr.OpMod, 6},
}

// parseBinary is precedence climbing; all operators are left associative.
func (p *syntaxParser) parseBinary(minPrec int) (expr.Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		info, ok := binaryOps[p.peek().kind]
		if !ok || info.prec < minPrec {
			return lhs, nil
		}
		p.next()
		rhs, err := p.parseBinary(info.prec + 1)
		if err != nil {
			return nil, err
		}
		lhs = expr.Bin(info.op, lhs, rhs)
	}
}

func (p *syntaxParser) parseUnary() (expr.Expr, error) {
	switch p.peek().kind {
	case tkNot:
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return expr.Not(operand), nil
	case tkSub:
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if lit, ok := operand.(*expr.Literal); ok {
			switch v := lit.Value.(type) {
			case ir.Int:
				return expr.Int(-int64(v)), nil
			case ir.Float:
				return expr.Float(-float64(v)), nil
			}
		}
		return expr.Neg(operand), nil
	}
	return p.parsePostfix()
}

func (p *syntaxParser) parsePostfix() (expr.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tkDot {
		p.next()
		name, err := p.expect(tkIdent)
		if err != nil {
			return nil, err
		}
		typeArgs := p.tryTypeArgs()
		if p.peek().kind != tkLParen {
			if typeArgs != nil {
				return nil, p.errorf("expected %s after type arguments", tkLParen)
			}
			e = expr.M(e, name.text)
			continue
		}
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if p.isOperatorCall(e, name.text) {
			e = &expr.Chain{
				Method: expr.Method{Owner: expr.OwnerQueryable, Name: name.text, TypeArgs: typeArgs},
				Source: e,
				Args:   args,
			}
		} else {
			e = expr.CallOf(name.text, e, args...)
		}
	}
	return e, nil
}

func (p *syntaxParser) isOperatorCall(target expr.Expr, name string) bool {
	if !p.operators[name] {
		return false
	}
	switch target.(type) {
	case *expr.Sequence, *expr.Chain:
		return true
	}
	return !p.functions[name]
}

// tryTypeArgs parses "<T, U>" when it is directly followed by "(".
// Otherwise it consumes nothing and returns nil.
func (p *syntaxParser) tryTypeArgs() []string {
	if p.peek().kind != tkLt {
		return nil
	}
	var args []string
	i := 1
	for {
		if p.peekAt(i).kind != tkIdent {
			return nil
		}
		args = append(args, p.peekAt(i).text)
		i++
		switch p.peekAt(i).kind {
		case tkComma:
			i++
		case tkGt:
			if p.peekAt(i+1).kind != tkLParen {
				return nil
			}
			p.pos += i + 1
			return args
		default:
			return nil
		}
	}
}

func (p *syntaxParser) parseArgs() ([]expr.Expr, error) {
	if _, err := p.expect(tkLParen); err != nil {
		return nil, err
	}
	var args []expr.Expr
	for p.peek().kind != tkRParen {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.peek().kind == tkComma {
			p.next()
		} else if p.peek().kind != tkRParen {
			return nil, p.errorf("expected ',' or ')' in argument list, found %s", p.peek().kind)
		}
	}
	p.next()
	return args, nil
}

func (p *syntaxParser) parsePrimary() (expr.Expr, error) {
	t := p.peek()
	switch t.kind {
	case tkInt:
		p.next()
		return expr.Int(t.i), nil
	case tkFloat:
		p.next()
		return expr.Float(t.f), nil
	case tkString:
		p.next()
		return expr.Str(t.text), nil
	case tkLParen:
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tkRParen); err != nil {
			return nil, err
		}
		return e, nil
	case tkIdent:
		return p.parseIdent()
	}
	return nil, p.errorf("unexpected %s", t.kind)
}

func (p *syntaxParser) parseIdent() (expr.Expr, error) {
	t := p.next()
	switch t.text {
	case "true":
		return expr.Bool(true), nil
	case "false":
		return expr.Bool(false), nil
	case "null":
		return expr.Null(), nil
	case "new":
		if p.peek().kind == tkLBrace {
			return p.parseNew()
		}
	}

	// Free function call: Abs(x).
	if p.peek().kind == tkLParen {
		if !p.functions[t.text] {
			return nil, syntaxErr(p.src, t.pos, fmt.Sprintf("unknown function %q", t.text))
		}
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return expr.CallOf(t.text, nil, args...), nil
	}

	for i := len(p.scopes) - 1; i >= 0; i-- {
		if prm, ok := p.scopes[i][t.text]; ok {
			return prm, nil
		}
	}
	if itemType, ok := p.env.Sources[t.text]; ok {
		return expr.Seq(t.text, itemType), nil
	}
	if v, ok := p.env.Params[t.text]; ok {
		return expr.Capture(t.text, v), nil
	}
	return nil, syntaxErr(p.src, t.pos, fmt.Sprintf("undefined identifier %q", t.text))
}

func (p *syntaxParser) parseNew() (expr.Expr, error) {
	p.next() // {
	var fields []expr.Field
	seen := make(map[string]bool)
	for p.peek().kind != tkRBrace {
		name, err := p.expect(tkIdent)
		if err != nil {
			return nil, err
		}
		if seen[name.text] {
			return nil, syntaxErr(p.src, name.pos, fmt.Sprintf("duplicate field %q", name.text))
		}
		seen[name.text] = true

		var value expr.Expr
		if p.peek().kind == tkAssign {
			p.next()
			if value, err = p.parseExpr(); err != nil {
				return nil, err
			}
		} else {
			// new {p} is new {p = p}
			p.pos--
			if value, err = p.parseIdent(); err != nil {
				return nil, err
			}
		}
		fields = append(fields, expr.F(name.text, value))

		if p.peek().kind == tkComma {
			p.next()
		} else if p.peek().kind != tkRBrace {
			return nil, p.errorf("expected ',' or '}' in object, found %s", p.peek().kind)
		}
	}
	p.next()
	return expr.NewOf(fields...), nil
}
