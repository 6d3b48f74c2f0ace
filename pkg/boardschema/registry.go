// pkg/boardschema/registry.go
package boardschema

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads a schema registry from disk and validates it.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks structural consistency: a join key mapped on both boards,
// no duplicate field names, and known field kinds.
func (r *Registry) Validate() error {
	if r.JoinKey == "" {
		return fmt.Errorf("registry: joinKey is required")
	}
	for _, b := range []struct {
		name   string
		schema *BoardSchema
	}{
		{"deals", &r.Deals},
		{"workOrders", &r.WorkOrders},
	} {
		if len(b.schema.Fields) == 0 {
			return fmt.Errorf("registry: board %s has no field rules", b.name)
		}
		seen := make(map[string]bool, len(b.schema.Fields))
		for _, f := range b.schema.Fields {
			if f.Field == "" || f.Column == "" {
				return fmt.Errorf("registry: board %s has a rule with an empty field or column", b.name)
			}
			if seen[f.Field] {
				return fmt.Errorf("registry: board %s maps field %q twice", b.name, f.Field)
			}
			seen[f.Field] = true
			switch f.Kind {
			case KindText, KindCategory, KindNumber, KindDate:
			default:
				return fmt.Errorf("registry: board %s field %q has unknown kind %q", b.name, f.Field, f.Kind)
			}
		}
		if b.schema.Rule(r.JoinKey) == nil {
			return fmt.Errorf("registry: board %s does not map join key %q", b.name, r.JoinKey)
		}
	}
	return nil
}

// Default returns the built-in registry matching the standard board layout.
// Deployments with custom boards override it with a JSON file.
func Default() *Registry {
	return &Registry{
		Version: "1.0.0",
		JoinKey: "deal_code",
		Deals: BoardSchema{
			Fields: []FieldRule{
				{Field: "deal_code", Column: "name", Kind: KindText, Required: true},
				{Field: "client_code", Column: "text", Kind: KindText},
				{Field: "owner_code", Column: "person", Kind: KindText},
				{Field: "sector", Column: "text8", Kind: KindCategory},
				{Field: "status", Column: "status", Kind: KindCategory},
				{Field: "stage", Column: "status5", Kind: KindCategory},
				{Field: "probability", Column: "dropdown", Kind: KindNumber},
				{Field: "deal_value", Column: "numbers", Kind: KindNumber},
				{Field: "close_date", Column: "date", Kind: KindDate},
				{Field: "created_date", Column: "date9", Kind: KindDate},
			},
		},
		WorkOrders: BoardSchema{
			Fields: []FieldRule{
				{Field: "serial_number", Column: "name", Kind: KindText},
				{Field: "deal_code", Column: "text", Kind: KindText, Required: true},
				{Field: "sector", Column: "text6", Kind: KindCategory},
				{Field: "status", Column: "status", Kind: KindCategory},
				{Field: "billed_value", Column: "numbers0", Kind: KindNumber},
				{Field: "collected_value", Column: "numbers4", Kind: KindNumber},
				{Field: "order_date", Column: "date4", Kind: KindDate},
			},
		},
	}
}
