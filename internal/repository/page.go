package repository

import "strconv"

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// Page is a 1-based page request.  Use NewPage so out-of-range input is
// clamped instead of rejected.
type Page struct {
	Page  int
	Limit int
}

// NewPage clamps page to >= 1 and limit to [1, MaxPageSize], using
// DefaultPageSize when limit is not positive.
func NewPage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return Page{Page: page, Limit: limit}
}

// ParsePage builds a Page from raw query values; unparsable input falls back
// to the defaults.
func ParsePage(page, limit string) Page {
	p, _ := strconv.Atoi(page)
	l, _ := strconv.Atoi(limit)
	return NewPage(p, l)
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// Pagination is the metadata returned next to a page of results.
type Pagination struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalPages  int   `json:"totalPages"`
	Total       int64 `json:"total"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// Describe computes the pagination metadata of p for total matching rows.
func (p Page) Describe(total int64) Pagination {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return Pagination{
		Page:        p.Page,
		Limit:       p.Limit,
		TotalPages:  pages,
		Total:       total,
		HasNextPage: p.Page < pages,
		HasPrevPage: p.Page > 1,
	}
}
