package common

import "net/http"

// Pagination is returned alongside paged list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination reads ?page= and ?limit=. A zero defaultPerPage means "everything".
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	q := r.URL.Query()
	page = AtoiDefault(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	perPage = AtoiDefault(q.Get("limit"), defaultPerPage)
	if perPage < 0 {
		perPage = defaultPerPage
	}
	return page, perPage
}

// PageBounds returns the [start, end) slice bounds of a page over total entries.
func PageBounds(page, perPage, total int) (start, end int) {
	if perPage <= 0 {
		return 0, total
	}
	start = (page - 1) * perPage
	if start > total {
		start = total
	}
	end = start + perPage
	if end > total {
		end = total
	}
	return start, end
}
