package chainspec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	cuetoken "cuelang.org/go/cue/token"

	"github.com/roach88/qchain/internal/expr"
)

// LoadMode controls how errors are handled while loading definitions.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Error codes reported by Load.
const (
	ErrCodeGeneric     = "E001"
	ErrCodeScanError   = "E002"
	ErrCodeNoFiles     = "E003"
	ErrCodeLoadFailed  = "E004"
	ErrCodeNotFound    = "E005"
	ErrCodeBuildFailed = "E006"

	ErrCodeSourceType  = "E101" // source without an item type
	ErrCodeQueryChain  = "E110" // query without a chain
	ErrCodeQueryParams = "E111" // params that are not a struct of values
	ErrCodeQuerySyntax = "E112" // chain text that does not parse
)

// Source declares a named sequence and its item type.
//
//	source: people: item: "person"
type Source struct {
	Name     string
	ItemType string
	Pos      cuetoken.Pos
}

// Query is a named chain with the host values it captures.
//
//	query: adults: {
//		description: "people of age"
//		chain:       "people.Where(p => p.age >= minAge)"
//		params: minAge: 18
//	}
type Query struct {
	Name        string
	Description string
	Chain       string
	Params      map[string]any
	Pos         cuetoken.Pos
}

// Definitions are the sources and queries found in a directory.
type Definitions struct {
	Sources   []Source
	Queries   []Query
	CUEValue  cue.Value
	FileCount int
}

// Environment returns the environment q's chain text resolves against.
func (d *Definitions) Environment(q Query) Environment {
	env := Environment{
		Sources: make(map[string]string, len(d.Sources)),
		Params:  q.Params,
	}
	for _, s := range d.Sources {
		env.Sources[s.Name] = s.ItemType
	}
	return env
}

// Query returns the named query.
func (d *Definitions) Query(name string) (Query, bool) {
	for _, q := range d.Queries {
		if q.Name == name {
			return q, true
		}
	}
	return Query{}, false
}

// Chain parses the named query's chain text.
func (d *Definitions) Chain(name string) (expr.Expr, error) {
	q, ok := d.Query(name)
	if !ok {
		return nil, fmt.Errorf("query %q not defined", name)
	}
	e, err := ParseChain(q.Chain, d.Environment(q))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	return e, nil
}

// LoadError is a definition error with its CUE position, if known.
type LoadError struct {
	Code    string
	Message string
	Pos     cuetoken.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CompileError is an invalid field of a single definition.
type CompileError struct {
	Field   string
	Message string
	Pos     cuetoken.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads every .cue file of dir and compiles its source and query
// definitions. With LoadModeCollectAll every invalid definition is
// reported; the valid ones are still returned.
func Load(dir string, mode LoadMode) (*Definitions, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("definitions directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing definitions directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}
	return compileValue(value, len(files), mode)
}

// LoadString compiles definitions from a single CUE document.
func LoadString(src string, mode LoadMode) (*Definitions, []error) {
	value := cuecontext.New().CompileString(src, cue.Filename("definitions.cue"))
	if err := value.Err(); err != nil {
		return nil, []error{convertCompileError(formatCUEError(err), "definitions")}
	}
	return compileValue(value, 1, mode)
}

func compileValue(value cue.Value, files int, mode LoadMode) (*Definitions, []error) {
	defs := &Definitions{CUEValue: value, FileCount: files}
	var errs []error

	// fail records err and reports whether loading must stop.
	fail := func(err error) bool {
		errs = append(errs, err)
		return mode == LoadModeFailFast
	}

	if v := value.LookupPath(cue.ParsePath("source")); v.Exists() {
		iter, err := v.Fields()
		if err != nil {
			if fail(&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating sources: %v", err)}) {
				return defs, errs
			}
		} else {
			for iter.Next() {
				src, err := CompileSource(iter.Value())
				if err != nil {
					if fail(convertCompileError(err, "source."+iter.Label())) {
						return defs, errs
					}
					continue
				}
				defs.Sources = append(defs.Sources, *src)
			}
		}
	}

	if v := value.LookupPath(cue.ParsePath("query")); v.Exists() {
		iter, err := v.Fields()
		if err != nil {
			if fail(&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating queries: %v", err)}) {
				return defs, errs
			}
		} else {
			for iter.Next() {
				q, err := CompileQuery(iter.Value())
				if err != nil {
					if fail(convertCompileError(err, "query."+iter.Label())) {
						return defs, errs
					}
					continue
				}
				defs.Queries = append(defs.Queries, *q)
			}
		}
	}

	// Chain texts are checked once every source is known.
	for _, q := range defs.Queries {
		if _, err := ParseChain(q.Chain, defs.Environment(q)); err != nil {
			if fail(&LoadError{Code: ErrCodeQuerySyntax, Message: fmt.Sprintf("query %s: %v", q.Name, err), Pos: q.Pos}) {
				return defs, errs
			}
		}
	}

	if len(defs.Sources) == 0 && len(defs.Queries) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no sources or queries found in definitions"})
	}
	return defs, errs
}

// CompileSource compiles a source definition. The source name is the last
// label of v's path.
func CompileSource(v cue.Value) (*Source, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	src := &Source{Name: lastLabel(v), Pos: v.Pos()}

	item := v.LookupPath(cue.ParsePath("item"))
	if !item.Exists() {
		return nil, &CompileError{Field: "item", Message: "item type is required", Pos: v.Pos()}
	}
	s, err := item.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	if s == "" {
		return nil, &CompileError{Field: "item", Message: "item type must not be empty", Pos: item.Pos()}
	}
	src.ItemType = s
	return src, nil
}

// CompileQuery compiles a query definition. The chain text is not parsed
// here; Load parses it against the loaded sources.
func CompileQuery(v cue.Value) (*Query, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	q := &Query{Name: lastLabel(v), Pos: v.Pos()}

	chain := v.LookupPath(cue.ParsePath("chain"))
	if !chain.Exists() {
		return nil, &CompileError{Field: "chain", Message: "chain is required", Pos: v.Pos()}
	}
	s, err := chain.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	q.Chain = s

	if d := v.LookupPath(cue.ParsePath("description")); d.Exists() {
		if q.Description, err = d.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	if p := v.LookupPath(cue.ParsePath("params")); p.Exists() {
		if p.IncompleteKind() != cue.StructKind {
			return nil, &CompileError{Field: "params", Message: "params must be a struct", Pos: p.Pos()}
		}
		val, err := cueToGo(p)
		if err != nil {
			return nil, err
		}
		q.Params = val.(map[string]any)
	}
	return q, nil
}

// cueToGo converts a concrete CUE value into the Go values the evaluator
// folds: int64, float64, string, bool, nil, []any and map[string]any.
func cueToGo(v cue.Value) (any, error) {
	switch v.IncompleteKind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		b, err := v.Bool()
		return b, wrapValueErr(v, err)
	case cue.IntKind:
		n, err := v.Int64()
		return n, wrapValueErr(v, err)
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		return f, wrapValueErr(v, err)
	case cue.StringKind:
		s, err := v.String()
		return s, wrapValueErr(v, err)
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, wrapValueErr(v, err)
		}
		out := []any{}
		for iter.Next() {
			elem, err := cueToGo(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, wrapValueErr(v, err)
		}
		out := map[string]any{}
		for iter.Next() {
			field, err := cueToGo(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Label()] = field
		}
		return out, nil
	}
	return nil, &CompileError{
		Field:   "params",
		Message: fmt.Sprintf("unsupported value kind: %v", v.IncompleteKind()),
		Pos:     v.Pos(),
	}
}

func wrapValueErr(v cue.Value, err error) error {
	if err == nil {
		return nil
	}
	return &CompileError{Field: "params", Message: err.Error(), Pos: v.Pos()}
}

func lastLabel(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	return sels[len(sels)-1].String()
}

// FindCUEFiles walks dir and returns all .cue file paths, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    fieldErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("%s: %v", context, err)}
}

func fieldErrorCode(field string) string {
	switch field {
	case "item":
		return ErrCodeSourceType
	case "chain":
		return ErrCodeQueryChain
	case "params":
		return ErrCodeQueryParams
	default:
		return ErrCodeGeneric
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
