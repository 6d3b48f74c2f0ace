// internal/models/aggregate.go
package models

// Aggregate is a sum/mean computed over the non-nil values of a field,
// together with how many records actually contributed. Callers present this
// as "based on N of M records". Value is nil when no record contributed.
type Aggregate struct {
	Value      *float64 `json:"value"`
	ValidCount int      `json:"valid_count"`
	TotalCount int      `json:"total_count"`
}

// Float returns the aggregate value, or 0 when nothing contributed.
func (a Aggregate) Float() float64 {
	if a.Value == nil {
		return 0
	}
	return *a.Value
}

// Ptr is shorthand for taking the address of a float literal.
func Ptr(v float64) *float64 { return &v }
