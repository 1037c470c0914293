// Package table derives sorted, paginated views over small in-memory record
// sets for the admin tables and public listings.
package table

import (
	"html/template"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "asc" and "desc"; anything else is ascending.
func ParseDirection(raw string) Direction {
	if Direction(raw) == Desc {
		return Desc
	}
	return Asc
}

// DefaultPageSizes are offered when a view is built without explicit options.
var DefaultPageSizes = []int{10, 25, 50, 100}

// Column describes one table column. Value returns the sortable text and
// whether the field is present; absent values sort last.
type Column[T any] struct {
	Key      string
	Label    string
	Sortable bool
	Value    func(T) (string, bool)
	Render   func(T) template.HTML
	Class    string
}

// Cell renders the column for a record: the custom renderer when set,
// otherwise the escaped value or an em dash for absent values.
func (c Column[T]) Cell(rec T) template.HTML {
	if c.Render != nil {
		return c.Render(rec)
	}
	if c.Value != nil {
		if v, ok := c.Value(rec); ok && v != "" {
			return template.HTML(template.HTMLEscapeString(v))
		}
	}
	return "—"
}

// Sort is the single active sort key.
type Sort struct {
	Key       string
	Direction Direction
}

// View holds the caller-owned UI state of one table: sort, page and page size.
type View[T any] struct {
	Columns   []Column[T]
	PageSizes []int
	// Actions enables the edit and delete controls on each row.
	Actions bool

	sort     *Sort
	page     int
	pageSize int
}

// NewView builds a view on page 1 with the first page size option.
func NewView[T any](columns []Column[T], pageSizes ...int) *View[T] {
	if len(pageSizes) == 0 {
		pageSizes = DefaultPageSizes
	}
	return &View[T]{
		Columns:   columns,
		PageSizes: append([]int(nil), pageSizes...),
		page:      1,
		pageSize:  pageSizes[0],
	}
}

// Sort returns the active sort, or nil when records keep their input order.
func (v *View[T]) Sort() *Sort {
	if v.sort == nil {
		return nil
	}
	s := *v.sort
	return &s
}

// Page returns the requested page (1-based).
func (v *View[T]) Page() int { return v.page }

// PageSize returns the active page size.
func (v *View[T]) PageSize() int { return v.pageSize }

func (v *View[T]) column(key string) (Column[T], bool) {
	for _, c := range v.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column[T]{}, false
}

// ToggleSort applies a header click: an ascending column flips to descending,
// any other state sorts ascending by key. The page resets to 1.
func (v *View[T]) ToggleSort(key string) {
	col, ok := v.column(key)
	if !ok || !col.Sortable {
		return
	}
	dir := Asc
	if v.sort != nil && v.sort.Key == key && v.sort.Direction == Asc {
		dir = Desc
	}
	v.sort = &Sort{Key: key, Direction: dir}
	v.page = 1
}

// SetSort sets the sort directly (used when restoring state from a URL).
// Unknown or non-sortable keys clear the sort. The page resets to 1.
func (v *View[T]) SetSort(key string, dir Direction) {
	col, ok := v.column(key)
	if !ok || !col.Sortable {
		v.sort = nil
	} else {
		v.sort = &Sort{Key: key, Direction: dir}
	}
	v.page = 1
}

// NextSort reports the sort a click on key would produce, for building links.
func (v *View[T]) NextSort(key string) Sort {
	if v.sort != nil && v.sort.Key == key && v.sort.Direction == Asc {
		return Sort{Key: key, Direction: Desc}
	}
	return Sort{Key: key, Direction: Asc}
}

// SetPageSize switches to one of the offered page sizes and resets to page 1.
// Sizes that are not offered are ignored.
func (v *View[T]) SetPageSize(n int) bool {
	if !slices.Contains(v.PageSizes, n) {
		return false
	}
	v.pageSize = n
	v.page = 1
	return true
}

// SetPage moves to page p. Values below 1 become 1; the upper bound is
// applied at render time, when the record count is known.
func (v *View[T]) SetPage(p int) {
	if p < 1 {
		p = 1
	}
	v.page = p
}

// ResetPage returns to page 1. Callers invoke it when their filters change.
func (v *View[T]) ResetPage() { v.page = 1 }

// Sorted returns a sorted copy of records under the active sort.
func (v *View[T]) Sorted(records []T) []T {
	out := slices.Clone(records)
	if v.sort == nil {
		return out
	}
	col, ok := v.column(v.sort.Key)
	if !ok || col.Value == nil {
		return out
	}
	SortBy(out, col.Value, v.sort.Direction)
	return out
}

// SortBy stably sorts records in place by value. Comparison is
// locale-aware, numeric-aware and case-insensitive; absent values are
// placed last in either direction.
func SortBy[T any](records []T, value func(T) (string, bool), dir Direction) {
	col := collate.New(language.Und, collate.Numeric, collate.IgnoreCase, collate.IgnoreDiacritics, collate.IgnoreWidth)
	slices.SortStableFunc(records, func(a, b T) int {
		av, aok := value(a)
		bv, bok := value(b)
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		cmp := col.CompareString(av, bv)
		if dir == Desc {
			return -cmp
		}
		return cmp
	})
}

// PageItem is one entry of the page-number strip.
type PageItem struct {
	Number   int
	Current  bool
	Ellipsis bool
}

// Result is the derived view handed to templates.
type Result[T any] struct {
	Rows           []T
	Page           int
	PageSize       int
	TotalPages     int
	Total          int
	StartItem      int
	EndItem        int
	Pages          []PageItem
	Empty          bool
	ShowPagination bool
	HasPrev        bool
	HasNext        bool
	Sort           *Sort
	Actions        bool
}

// Render sorts and slices records. A page beyond the last one is clamped to
// the last page so a shrunken record set never shows an empty page.
func (v *View[T]) Render(records []T) Result[T] {
	res := Result[T]{
		Total:    len(records),
		PageSize: v.pageSize,
		Sort:     v.Sort(),
		Actions:  v.Actions,
	}
	if len(records) == 0 {
		res.Empty = true
		res.Page = 1
		return res
	}

	res.TotalPages = (len(records) + v.pageSize - 1) / v.pageSize
	page := v.page
	if page > res.TotalPages {
		page = res.TotalPages
	}
	res.Page = page

	sorted := v.Sorted(records)
	start := (page - 1) * v.pageSize
	end := min(start+v.pageSize, len(sorted))
	res.Rows = sorted[start:end]
	res.StartItem = start + 1
	res.EndItem = end
	res.ShowPagination = res.TotalPages > 1
	res.HasPrev = page > 1
	res.HasNext = page < res.TotalPages
	res.Pages = PageNumbers(page, res.TotalPages)
	return res
}

// Paginate slices an already ordered record set without sorting, for
// listings that keep store order. A page size below 1 is treated as 1.
func Paginate[T any](records []T, page, pageSize int) Result[T] {
	if pageSize < 1 {
		pageSize = 1
	}
	v := &View[T]{PageSizes: []int{pageSize}, page: 1, pageSize: pageSize}
	v.SetPage(page)
	return v.Render(records)
}

// PageNumbers lists the first and last page, the current page and its
// immediate neighbours, with an ellipsis marker wherever pages are skipped.
func PageNumbers(current, total int) []PageItem {
	if total <= 0 {
		return nil
	}
	var items []PageItem
	prev := 0
	for p := 1; p <= total; p++ {
		if p != 1 && p != total && (p < current-1 || p > current+1) {
			continue
		}
		if prev != 0 && p != prev+1 {
			items = append(items, PageItem{Ellipsis: true})
		}
		items = append(items, PageItem{Number: p, Current: p == current})
		prev = p
	}
	return items
}
