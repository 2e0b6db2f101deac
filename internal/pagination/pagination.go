// Package pagination resolves page requests against a known collection size.
//
// Out-of-range requests never fail: a missing or non-numeric page is page 1,
// a page past the end is the last page, and a page below 1 is page 1.
package pagination

import (
	"strconv"
	"strings"
)

// DefaultSize is the number of items per feed page.
const DefaultSize = 10

// Window is the resolved slice of a collection for one page.
type Window struct {
	Number     int
	TotalPages int
	Offset     int
	Limit      int
}

func (w Window) HasNext() bool { return w.Number < w.TotalPages }
func (w Window) HasPrev() bool { return w.Number > 1 }

// Page is one page of an ordered collection.
type Page[T any] struct {
	Items      []T  `json:"items"`
	Number     int  `json:"number"`
	TotalPages int  `json:"total_pages"`
	TotalItems int  `json:"total_items"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_previous"`
}

// ParsePage turns a raw page parameter into a requested page number.
// Anything that is not an integer becomes 1.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 1
	}
	return n
}

// Resolve maps a requested page onto a collection of total items split into pages of size.
func Resolve(total, requested, size int) Window {
	if size < 1 {
		size = DefaultSize
	}
	if total < 0 {
		total = 0
	}

	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}

	number := requested
	if number < 1 {
		number = 1
	}
	if number > pages {
		number = pages
	}

	return Window{
		Number:     number,
		TotalPages: pages,
		Offset:     (number - 1) * size,
		Limit:      size,
	}
}

// NewPage assembles a Page from the items fetched for w.
func NewPage[T any](items []T, w Window, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Number:     w.Number,
		TotalPages: w.TotalPages,
		TotalItems: total,
		HasNext:    w.HasNext(),
		HasPrev:    w.HasPrev(),
	}
}
