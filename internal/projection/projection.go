// Package projection implements the client-side read model over order
// details fetched from the backend: status-bucketed counts for dashboard
// tiles, a filtered and paginated view, and optimistic local patching
// reconciled against authoritative re-fetches.
package projection

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cbgift/api/internal/status"
)

// All is the sentinel filter value meaning "no filtering on this axis".
const All = "all"

// Detail is one product line of an order as projected for UI consumption.
// Link fields are owned by the upload subsystem and only referenced here.
type Detail struct {
	OrderDetailID    uuid.UUID   `json:"orderDetailId"`
	OrderID          uuid.UUID   `json:"orderId"`
	OrderCode        string      `json:"orderCode"`
	ProductName      string      `json:"productName"`
	Quantity         int32       `json:"quantity"`
	ProductionStatus status.Code `json:"productionStatus"`
	OrderStatus      status.Code `json:"orderStatus"`
	LinkFileDesign   *string     `json:"linkFileDesign"`
	LinkThankCard    *string     `json:"linkThankCard"`
	LinkImg          *string     `json:"linkImg"`
	Note             *string     `json:"note"`
	Reason           *string     `json:"reason"`
	AssignedAt       time.Time   `json:"assignedAt"`
}

// Filter holds the view's filter axes. Zero values and All both mean
// passthrough; Month and Year only apply when both are set to non-All
// values.
type Filter struct {
	Search string
	Status string // All or a decimal status code
	Month  string // All or "01".."12"
	Year   string // All or e.g. "2024"
}

// Apply returns the details matching f, in their original order. Malformed
// rows never cause a failure: missing order codes or product names match as
// empty strings.
func Apply(details []Detail, f Filter) []Detail {
	out := make([]Detail, 0, len(details))
	for _, d := range details {
		if !matchesDate(d, f.Month, f.Year) {
			continue
		}
		if !matchesStatus(d, f.Status) {
			continue
		}
		if !matchesSearch(d, f.Search) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// CountByStatus buckets details by production status after date filtering
// but before any status or search filtering. Tile counts therefore always
// reflect the date scope and never the search scope, so a user searching
// within one bucket still sees totals for every bucket. Unknown codes fall
// into the status.Unknown bucket; every detail lands in exactly one bucket.
func CountByStatus(details []Detail, month, year string) map[status.Code]int {
	counts := make(map[status.Code]int)
	for _, d := range details {
		if !matchesDate(d, month, year) {
			continue
		}
		counts[status.Normalize(d.ProductionStatus)]++
	}
	return counts
}

// Paginate returns the page-th slice (1-based) of items. It never returns
// more than pageSize items; concatenating all pages reconstructs items
// exactly once each.
func Paginate(items []Detail, page, pageSize int) []Detail {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		return nil
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func matchesSearch(d Detail, search string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	return strings.Contains(strings.ToLower(d.OrderCode), needle) ||
		strings.Contains(strings.ToLower(d.ProductName), needle)
}

func matchesStatus(d Detail, filter string) bool {
	if filter == "" || filter == All {
		return true
	}
	code, err := strconv.Atoi(filter)
	if err != nil {
		return false
	}
	return d.ProductionStatus == status.Code(code)
}

// matchesDate applies the month/year filter against AssignedAt. Both axes
// must be set to non-All values for the filter to take effect at all.
func matchesDate(d Detail, month, year string) bool {
	if month == "" || month == All || year == "" || year == All {
		return true
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return true
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return true
	}
	return int(d.AssignedAt.Month()) == m && d.AssignedAt.Year() == y
}
