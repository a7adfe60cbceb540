package domain

import "math"

const (
	// DefaultPageLimit is the page size when the caller does not ask for one.
	DefaultPageLimit = 20

	// MaxPageLimit caps the page size of every listing.
	MaxPageLimit = 100
)

// PaginationParams selects one page of a listing. Page is 1-indexed.
type PaginationParams struct {
	Page  int
	Limit int
}

// NewPaginationParams builds PaginationParams from optional query values.
// Missing or non-positive values fall back to page 1 and DefaultPageLimit;
// the limit never exceeds MaxPageLimit.
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: DefaultPageLimit}
	if page != nil && *page > 0 {
		p.Page = *page
	}
	if limit != nil && *limit > 0 {
		p.Limit = min(*limit, MaxPageLimit)
	}
	return p
}

// Offset is the number of items before the page, for a SQL OFFSET clause.
// It saturates at math.MaxInt instead of overflowing for absurd page numbers.
func (p PaginationParams) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// Window returns the [start, end) indexes of the page within a listing of n
// items. Both are n when the page lies past the end.
func (p PaginationParams) Window(n int) (start, end int) {
	start = max(min(p.Offset(), n), 0)
	end = start + min(max(p.Limit, 0), n-start)
	return start, end
}
