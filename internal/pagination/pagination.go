package pagination

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Meta is the pagination block attached to every list response.
type Meta struct {
	TotalPages      int  `json:"totalPages"`
	Pages           int  `json:"pages"`
	CurrentPage     int  `json:"currentPage"`
	FirstPage       int  `json:"firstPage"`
	LastPage        int  `json:"lastPage"`
	PreviousPage    int  `json:"previousPage"`
	NextPage        int  `json:"nextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
	HasNextPage     bool `json:"hasNextPage"`
	TotalResults    int  `json:"totalResults"`
	Results         int  `json:"results"`
	FirstResult     int  `json:"firstResult"`
	LastResult      int  `json:"lastResult"`
}

// Compute builds the pagination block for total items split into pages of
// limit items, positioned at page. A page past the end is reported as the
// last page. Boundary values of PreviousPage and NextPage are not clamped.
func Compute(total, page, limit int) Meta {
	if limit < 1 {
		limit = DefaultLimit
	}
	if page < 1 {
		page = DefaultPage
	}
	if total < 0 {
		total = 0
	}

	totalPages := (total + limit - 1) / limit

	current := min(page, totalPages)

	first := max(0, limit*(current-1))
	last := min(max(0, limit*current-1), max(total-1, 0))
	results := max(0, min(limit, total-first))

	return Meta{
		TotalPages:      totalPages,
		Pages:           totalPages,
		CurrentPage:     current,
		FirstPage:       1,
		LastPage:        totalPages,
		PreviousPage:    current - 1,
		NextPage:        current + 1,
		HasPreviousPage: current > 1,
		HasNextPage:     current < totalPages,
		TotalResults:    total,
		Results:         results,
		FirstResult:     first,
		LastResult:      last,
	}
}

// Skip returns the number of documents preceding page.
func Skip(page, limit int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * limit
}
