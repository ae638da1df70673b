package querymodel

import "github.com/roach88/qchain/internal/expr"

// OutputKind is the shape of a query result.
type OutputKind int

const (
	// OutputSequence is zero or more items.
	OutputSequence OutputKind = iota
	// OutputScalar is one computed value (count, sum, any).
	OutputScalar
	// OutputSingle is one item taken from the sequence.
	OutputSingle
)

func (k OutputKind) String() string {
	switch k {
	case OutputScalar:
		return "scalar"
	case OutputSingle:
		return "single"
	default:
		return "sequence"
	}
}

// OutputInfo describes what executing a model yields. Executors use it to
// choose how to run the model and how to box its result.
type OutputInfo struct {
	Kind     OutputKind
	ItemType string

	// DefaultWhenEmpty is set for single-item outputs that produce the
	// default value instead of failing on an empty input.
	DefaultWhenEmpty bool
}

// Type renders the output as a type name: seq<T> for sequences, T otherwise.
func (o OutputInfo) Type() string {
	if o.Kind == OutputSequence {
		return expr.SeqType(o.ItemType)
	}
	return o.ItemType
}
