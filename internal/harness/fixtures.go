package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/qchain/internal/ir"
)

// ReadFixtures reads a YAML file mapping table names to item lists, the
// same shape as a scenario's fixtures section.
//
//	people:
//	  - { id: 1, name: Ann, age: 30 }
//	orders:
//	  - { personId: 1, total: 10 }
func ReadFixtures(path string) (map[string][]ir.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	var raw map[string][]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	return ConvertFixtures(raw)
}

// ConvertFixtures converts YAML-decoded fixture rows to values.
func ConvertFixtures(fixtures map[string][]any) (map[string][]ir.Value, error) {
	tables := make(map[string][]ir.Value, len(fixtures))
	for name, rows := range fixtures {
		items := make([]ir.Value, len(rows))
		for i, row := range rows {
			v, err := convertToValue(row)
			if err != nil {
				return nil, fmt.Errorf("fixture %s[%d]: %w", name, i, err)
			}
			items[i] = v
		}
		tables[name] = items
	}
	return tables, nil
}
