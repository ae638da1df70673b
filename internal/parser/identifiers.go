package parser

import (
	"fmt"
)

// GeneratedPrefix starts every generated item name.
const GeneratedPrefix = "<generated>_"

// UniqueIdentifierGenerator hands out item names that collide neither with
// each other nor with known identifiers. One generator serves a whole
// parse, nested chains included.
type UniqueIdentifierGenerator struct {
	known map[string]bool
	next  int
}

// NewUniqueIdentifierGenerator returns a generator avoiding known.
func NewUniqueIdentifierGenerator(known ...string) *UniqueIdentifierGenerator {
	g := &UniqueIdentifierGenerator{known: make(map[string]bool, len(known))}
	for _, name := range known {
		g.AddKnownIdentifier(name)
	}
	return g
}

// AddKnownIdentifier reserves name.
func (g *UniqueIdentifierGenerator) AddKnownIdentifier(name string) {
	g.known[name] = true
}

// Generate returns a fresh name and reserves it.
func (g *UniqueIdentifierGenerator) Generate() string {
	for {
		name := fmt.Sprintf("%s%d", GeneratedPrefix, g.next)
		g.next++
		if !g.known[name] {
			g.known[name] = true
			return name
		}
	}
}
