package projection

import (
	"github.com/google/uuid"

	"github.com/cbgift/api/internal/status"
)

// View is the stateful projection a page binds to: the fetched details plus
// filter and pagination state. Changing any filter resets the page to 1.
// View is not safe for concurrent use; the UI scheduling model is a single
// logical thread servicing events.
type View struct {
	details  []Detail
	filter   Filter
	page     int
	pageSize int
}

// NewView creates a view over details with the given page size.
func NewView(details []Detail, pageSize int) *View {
	if pageSize < 1 {
		pageSize = 10
	}
	return &View{
		details:  details,
		filter:   Filter{Status: All, Month: All, Year: All},
		page:     1,
		pageSize: pageSize,
	}
}

// SetSearch updates the free-text filter and resets to page 1.
func (v *View) SetSearch(s string) {
	v.filter.Search = s
	v.page = 1
}

// SetStatus updates the status filter (All or a decimal code) and resets to
// page 1.
func (v *View) SetStatus(s string) {
	v.filter.Status = s
	v.page = 1
}

// SetMonthYear updates the date filter and resets to page 1.
func (v *View) SetMonthYear(month, year string) {
	v.filter.Month = month
	v.filter.Year = year
	v.page = 1
}

// SetPage moves to the given 1-based page.
func (v *View) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	v.page = page
}

// Page returns the current page of the filtered set.
func (v *View) Page() []Detail {
	return Paginate(Apply(v.details, v.filter), v.page, v.pageSize)
}

// PageNumber returns the current 1-based page number.
func (v *View) PageNumber() int {
	return v.page
}

// Total returns the size of the filtered set (for pagination controls).
func (v *View) Total() int {
	return len(Apply(v.details, v.filter))
}

// Counts returns the status-bucketed tile counts under the current date
// filter only.
func (v *View) Counts() map[status.Code]int {
	return CountByStatus(v.details, v.filter.Month, v.filter.Year)
}

// Get returns the detail with the given ID from the backing set.
func (v *View) Get(orderDetailID uuid.UUID) (Detail, bool) {
	for _, d := range v.details {
		if d.OrderDetailID == orderDetailID {
			return d, true
		}
	}
	return Detail{}, false
}

// Patch applies an optimistic local status update for one detail. Only that
// detail changes; the authoritative state arrives with the next Reconcile.
func (v *View) Patch(orderDetailID uuid.UUID, code status.Code) {
	for i := range v.details {
		if v.details[i].OrderDetailID == orderDetailID {
			v.details[i].ProductionStatus = code
			return
		}
	}
}

// Reconcile replaces the backing set with an authoritative fetch. Filter
// and page state are kept; server-computed fields (order-level status) win
// over any optimistic patch.
func (v *View) Reconcile(details []Detail) {
	v.details = details
}
