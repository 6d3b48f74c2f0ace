// internal/models/rows.go
package models

import "time"

// Quality flags attached to individual rows during normalization.
const (
	FlagMissingValue = "missing_value"
	FlagMissingDate  = "missing_date"
	FlagMissingKey   = "missing_key"
)

// Deal is one normalized row of the deal funnel board. Numeric and date
// fields are pointers: nil means the source had no usable value, which must
// stay distinguishable from zero downstream. Rows are never dropped for
// missingness; the business key is retained even when everything else is nil.
type Deal struct {
	ItemID      string     `json:"item_id"`
	DealCode    string     `json:"deal_code"`
	ClientCode  string     `json:"client_code"`
	OwnerCode   string     `json:"owner_code"`
	Sector      string     `json:"sector"`
	Status      string     `json:"status"`
	Stage       string     `json:"stage"`
	Probability *float64   `json:"probability"` // 0-100
	DealValue   *float64   `json:"deal_value"`
	CloseDate   *time.Time `json:"close_date"`
	CreatedDate *time.Time `json:"created_date"`
	Flags       []string   `json:"flags,omitempty"`
}

// WorkOrder is one normalized row of the work order board. DealCode is a
// foreign key into the deals table but is not required to match.
type WorkOrder struct {
	ItemID         string     `json:"item_id"`
	DealCode       string     `json:"deal_code"`
	SerialNumber   string     `json:"serial_number"`
	Sector         string     `json:"sector"`
	Status         string     `json:"status"`
	OrderDate      *time.Time `json:"order_date"`
	BilledValue    *float64   `json:"billed_value"`
	CollectedValue *float64   `json:"collected_value"`
	Flags          []string   `json:"flags,omitempty"`
}

// JoinedDeal is one deal with its order-side aggregates. Orders are summed
// per deal before the join so a deal is always exactly one row here. Nil
// aggregates mean no order data joined; zero means orders billed nothing.
type JoinedDeal struct {
	Deal
	BilledValue    *float64 `json:"billed_value"`
	CollectedValue *float64 `json:"collected_value"`
	OrderCount     int      `json:"order_count"`
}

// JoinedTable is the result of the cross-board join. Orphans holds work
// orders whose deal code matched no deal; revenue analysis still includes
// them, so they are kept rather than discarded.
type JoinedTable struct {
	Rows    []JoinedDeal `json:"rows"`
	Orphans []WorkOrder  `json:"orphans"`
}

// HasFlag reports whether a row carries the given quality flag.
func HasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
