package pagination

import "fmt"

// Page sizes used by the list views.
const (
	AdminTableSize     = 15
	CardSize           = 8
	PatientHomeSize    = 5
	DoctorSearchSize   = 10
	DoctorPatientsSize = 6
)

// Params holds offset-based pagination parameters.
type Params struct {
	Limit  int
	Offset int
}

// ForPage converts a 1-based page number into Params.
func ForPage(page, size int) Params {
	if size <= 0 {
		size = CardSize
	}
	if page < 1 {
		page = 1
	}
	return Params{Limit: size, Offset: (page - 1) * size}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page.
// Returns 0 if the result would be negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

// PageCount is ceil(total/size); an empty collection has no pages.
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Page is one window over an in-memory collection.
type Page[T any] struct {
	Items    []T
	Page     int
	PageSize int
	Pages    int
	Total    int
}

func (p Page[T]) HasNext() bool { return p.Page < p.Pages }
func (p Page[T]) HasPrev() bool { return p.Page > 1 }
func (p Page[T]) Empty() bool   { return p.Total == 0 }

// Paginate returns the requested 1-based page of items. Out-of-range pages
// are clamped to the nearest valid page.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = CardSize
	}
	total := len(items)
	pages := PageCount(total, size)

	if page > pages {
		page = pages
	}
	if page < 1 {
		page = 1
	}

	params := ForPage(page, size)
	start := params.Offset
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	return Page[T]{
		Items:    items[start:end],
		Page:     page,
		PageSize: size,
		Pages:    pages,
		Total:    total,
	}
}

// Footer is the line printed under a paged listing.
func (p Page[T]) Footer() string {
	if p.Empty() {
		return "no records"
	}
	return fmt.Sprintf("page %d of %d", p.Page, p.Pages)
}
