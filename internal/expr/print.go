package expr

import (
	"strings"

	"github.com/roach88/qchain/internal/ir"
)

// String renders e in a compact source-like notation, used for model
// printing and diagnostics. The output is deterministic.
func String(e Expr) string {
	var sb strings.Builder
	write(&sb, e)
	return sb.String()
}

func write(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *Literal:
		sb.WriteString(ir.Format(n.Value))
	case *Param:
		sb.WriteString(n.Name)
	case *Lambda:
		if len(n.Params) == 1 {
			sb.WriteString(n.Params[0].Name)
		} else {
			sb.WriteByte('(')
			for i, p := range n.Params {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(p.Name)
			}
			sb.WriteByte(')')
		}
		sb.WriteString(" => ")
		write(sb, n.Body)
	case *Member:
		write(sb, n.Target)
		sb.WriteByte('.')
		sb.WriteString(n.Name)
	case *Call:
		if n.Target != nil {
			write(sb, n.Target)
			sb.WriteByte('.')
		}
		sb.WriteString(n.Func)
		writeArgs(sb, n.Args)
	case *Binary:
		sb.WriteByte('(')
		write(sb, n.Left)
		sb.WriteByte(' ')
		sb.WriteString(n.Op.String())
		sb.WriteByte(' ')
		write(sb, n.Right)
		sb.WriteByte(')')
	case *Unary:
		sb.WriteString(n.Op.String())
		write(sb, n.Operand)
	case *Conditional:
		sb.WriteByte('(')
		write(sb, n.Test)
		sb.WriteString(" ? ")
		write(sb, n.Then)
		sb.WriteString(" : ")
		write(sb, n.Else)
		sb.WriteByte(')')
	case *New:
		sb.WriteString("new {")
		for i, f := range n.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name)
			sb.WriteString(" = ")
			write(sb, f.Value)
		}
		sb.WriteByte('}')
	case *Captured:
		sb.WriteString("value(")
		sb.WriteString(n.Name)
		sb.WriteByte(')')
	case *Sequence:
		sb.WriteString(n.Name)
	case *Chain:
		write(sb, n.Source)
		sb.WriteByte('.')
		sb.WriteString(n.Method.Name)
		writeArgs(sb, n.Args)
	case *SourceRef:
		sb.WriteByte('[')
		sb.WriteString(n.Source.ItemName())
		sb.WriteByte(']')
	case *SubQuery:
		sb.WriteByte('{')
		sb.WriteString(n.Model.String())
		sb.WriteByte('}')
	}
}

func writeArgs(sb *strings.Builder, args []Expr) {
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		write(sb, a)
	}
	sb.WriteByte(')')
}
