// internal/analytics/filters.go
package analytics

import (
	"strings"
	"time"

	"intelliquery/internal/models"
)

// Filter application is pure: inputs are never mutated, and matching is
// case-insensitive for categorical keys since the tables are normalized to
// lowercase. Range bounds are inclusive. A row missing a filtered field
// cannot match a range filter on it.

func matchCategory(value, filter string) bool {
	if filter == "" {
		return true
	}
	return value == strings.ToLower(strings.TrimSpace(filter))
}

func matchRange(v *float64, min, max *float64) bool {
	if min == nil && max == nil {
		return true
	}
	if v == nil {
		return false
	}
	if min != nil && *v < *min {
		return false
	}
	if max != nil && *v > *max {
		return false
	}
	return true
}

func matchDateRange(d *time.Time, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	if d == nil {
		return false
	}
	if from != nil && d.Before(*from) {
		return false
	}
	if to != nil && d.After(*to) {
		return false
	}
	return true
}

func matchDeal(d models.Deal, f models.Filters) bool {
	return matchCategory(d.Sector, f.Sector) &&
		matchCategory(d.Status, f.Status) &&
		matchCategory(strings.ToLower(d.OwnerCode), f.Owner) &&
		matchRange(d.Probability, f.ProbabilityMin, f.ProbabilityMax) &&
		matchDateRange(d.CloseDate, f.DateFrom, f.DateTo)
}

// FilterDeals returns the deals matching every set filter key.
func FilterDeals(deals []models.Deal, f models.Filters) []models.Deal {
	if f.IsZero() {
		return deals
	}
	out := make([]models.Deal, 0, len(deals))
	for _, d := range deals {
		if matchDeal(d, f) {
			out = append(out, d)
		}
	}
	return out
}

// FilterOrders returns the work orders matching every set filter key. The
// probability and owner keys are deal-side fields and do not constrain orders.
func FilterOrders(orders []models.WorkOrder, f models.Filters) []models.WorkOrder {
	if f.IsZero() {
		return orders
	}
	out := make([]models.WorkOrder, 0, len(orders))
	for _, o := range orders {
		if matchCategory(o.Sector, f.Sector) &&
			matchCategory(o.Status, f.Status) &&
			matchDateRange(o.OrderDate, f.DateFrom, f.DateTo) {
			out = append(out, o)
		}
	}
	return out
}

// FilterJoined returns the joined rows matching every set filter key,
// evaluated against the deal-side fields.
func FilterJoined(rows []models.JoinedDeal, f models.Filters) []models.JoinedDeal {
	if f.IsZero() {
		return rows
	}
	out := make([]models.JoinedDeal, 0, len(rows))
	for _, r := range rows {
		if matchDeal(r.Deal, f) {
			out = append(out, r)
		}
	}
	return out
}
