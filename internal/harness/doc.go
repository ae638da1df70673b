// Package harness runs query scenarios end to end: chain text is parsed,
// compiled to a query model, compiled to SQL and executed against fixture
// tables in an in-memory store.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: adults
//	description: "People above an age threshold"
//	definitions: defs          # optional CUE directory, relative to this file
//	sources:
//	  people: person
//	fixtures:
//	  people:
//	    - { id: 1, name: Ann, age: 30 }
//	    - { id: 2, name: Bob, age: 45 }
//	cases:
//	  - name: names
//	    chain: "people.Where(p => p.age > minAge).Select(p => p.name)"
//	    params: { minAge: 25 }
//	    assertions:
//	      - type: result_equals
//	        expect: [Ann, Bob]
//	  - name: from definitions
//	    query: adults
//	    assertions:
//	      - type: result_count
//	        count: 2
//
// # Assertion Types
//
//   - result_equals: the executed value equals expect
//   - result_count: the executed sequence has count items
//   - result_contains: some item matches expect (subset match on objects)
//   - model_equals: the rendered query model equals text
//   - sql_contains: the compiled SQL contains text
//   - portable: the model raised no portability warnings
//   - error: the case failed with code (and a message containing text)
//
// # Deterministic Testing
//
// Each scenario runs against a fresh in-memory SQLite database, fixture rows
// keep their YAML order, and every statement orders its rows explicitly, so
// snapshots are identical across runs.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/adults.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
