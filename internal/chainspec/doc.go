// Package chainspec reads query definitions.
//
// A definitions directory holds CUE files declaring sources (named
// sequences with an item type) and queries (chain text plus the host values
// it captures):
//
//	package shop
//
//	source: people: item: "person"
//
//	query: adults: {
//		chain: "people.Where(p => p.age >= minAge).Select(p => p.name)"
//		params: minAge: 18
//	}
//
// ParseChain turns chain text into the call chain the parser consumes.
// Lambda bodies support member access, host function calls, arithmetic,
// comparison, logical and coalesce operators, the conditional operator and
// anonymous objects (new {name = p.name}).
package chainspec
