// pkg/boardschema/schema.go
package boardschema

// FieldKind controls how the normalizer cleans a column's value.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindCategory FieldKind = "category"
	KindNumber   FieldKind = "number"
	KindDate     FieldKind = "date"
)

// FieldRule maps one canonical field name to a board column.
type FieldRule struct {
	Field    string    `json:"field"`
	Column   string    `json:"column"`
	Kind     FieldKind `json:"kind"`
	Required bool      `json:"required,omitempty"`
}

// BoardSchema describes the canonical fields of one board.
type BoardSchema struct {
	BoardID string      `json:"boardId,omitempty"`
	Fields  []FieldRule `json:"fields"`
}

// Registry maps both boards' columns onto the canonical record shapes. The
// join key names the canonical field both sides share.
type Registry struct {
	Version     string      `json:"version"`
	LastUpdated string      `json:"lastUpdated,omitempty"`
	JoinKey     string      `json:"joinKey"`
	Deals       BoardSchema `json:"deals"`
	WorkOrders  BoardSchema `json:"workOrders"`
}

// Rule returns the rule for a canonical field, or nil when unmapped.
func (s *BoardSchema) Rule(field string) *FieldRule {
	for i := range s.Fields {
		if s.Fields[i].Field == field {
			return &s.Fields[i]
		}
	}
	return nil
}
