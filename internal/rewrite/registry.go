package rewrite

import (
	"slices"

	"github.com/roach88/qchain/internal/expr"
)

// RegistryBuilder collects rules. Build freezes the collected rules into a
// Registry; later registrations do not affect registries already built.
type RegistryBuilder struct {
	specific map[expr.Kind][]Rule
	generic  []Rule
}

// NewRegistryBuilder returns an empty builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{specific: make(map[expr.Kind][]Rule)}
}

// Register adds rule for each of kinds, after the rules already registered
// for that kind.
func (b *RegistryBuilder) Register(rule Rule, kinds ...expr.Kind) *RegistryBuilder {
	for _, k := range kinds {
		b.specific[k] = append(b.specific[k], rule)
	}
	return b
}

// RegisterGeneric adds a rule tried on every node after its kind's own rules.
func (b *RegistryBuilder) RegisterGeneric(rule Rule) *RegistryBuilder {
	b.generic = append(b.generic, rule)
	return b
}

// Build returns the frozen registry.
func (b *RegistryBuilder) Build() *Registry {
	r := &Registry{
		specific: make(map[expr.Kind][]Rule, len(b.specific)),
		generic:  slices.Clone(b.generic),
	}
	for k, rules := range b.specific {
		r.specific[k] = slices.Clone(rules)
	}
	return r
}

// Registry is a read-only set of rewrite rules indexed by expression kind.
// It is safe for concurrent use.
type Registry struct {
	specific map[expr.Kind][]Rule
	generic  []Rule
}

// Rules returns the rules registered for k, in registration order.
// The returned slice must not be modified.
func (r *Registry) Rules(k expr.Kind) []Rule {
	return r.specific[k]
}

// Generic returns the generic rules in registration order.
func (r *Registry) Generic() []Rule {
	return r.generic
}

// Len returns the number of registrations, counting a rule once per kind.
func (r *Registry) Len() int {
	n := len(r.generic)
	for _, rules := range r.specific {
		n += len(rules)
	}
	return n
}
