// internal/models/board.go
package models

// RawItem is one record as returned by the board service. Column values are
// kept verbatim; the normalizer is the only consumer.
type RawItem struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	ColumnValues []ColumnValue `json:"column_values"`
}

// ColumnValue is the nested column shape used by the board API. Value holds
// the raw JSON payload of the column (may be empty), Text the rendered text.
type ColumnValue struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

// Board identifies which of the two configured boards a record came from.
type Board string

const (
	BoardDeals      Board = "deals"
	BoardWorkOrders Board = "work_orders"
)
