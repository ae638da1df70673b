package eval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/qchain/internal/ir"
)

// builtins are the host functions every Interpreter knows. Names follow the
// method names query authors write (s.ToUpper(), s.StartsWith("a")).
var builtins = map[string]Func{
	"ToUpper":    stringFunc1(strings.ToUpper),
	"ToLower":    stringFunc1(strings.ToLower),
	"Trim":       stringFunc1(strings.TrimSpace),
	"Contains":   stringPredicate(strings.Contains),
	"StartsWith": stringPredicate(strings.HasPrefix),
	"EndsWith":   stringPredicate(strings.HasSuffix),
	"Abs":        abs,
	"Concat":     concat,
}

// BuiltinNames returns the names of the builtin host functions, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func stringFunc1(fn func(string) string) Func {
	return func(args []ir.Value) (ir.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("want 1 argument, got %d", len(args))
		}
		s, ok := args[0].(ir.String)
		if !ok {
			return nil, fmt.Errorf("want string, got %s", args[0].TypeName())
		}
		return ir.String(fn(string(s))), nil
	}
}

func stringPredicate(fn func(string, string) bool) Func {
	return func(args []ir.Value) (ir.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("want 2 arguments, got %d", len(args))
		}
		s, ok1 := args[0].(ir.String)
		sub, ok2 := args[1].(ir.String)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("want string arguments, got %s and %s", args[0].TypeName(), args[1].TypeName())
		}
		return ir.Bool(fn(string(s), string(sub))), nil
	}
}

func abs(args []ir.Value) (ir.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("want 1 argument, got %d", len(args))
	}
	switch n := args[0].(type) {
	case ir.Int:
		if n < 0 {
			return -n, nil
		}
		return n, nil
	case ir.Float:
		if n < 0 {
			return -n, nil
		}
		return n, nil
	}
	return nil, fmt.Errorf("want number, got %s", args[0].TypeName())
}

func concat(args []ir.Value) (ir.Value, error) {
	var sb strings.Builder
	for _, a := range args {
		s, ok := a.(ir.String)
		if !ok {
			return nil, fmt.Errorf("want string, got %s", a.TypeName())
		}
		sb.WriteString(string(s))
	}
	return ir.String(sb.String()), nil
}
