package dummydb

import (
	"strings"

	"github.com/trezcool/ihub/core"
)

// less applies ordering in sequence, the way a multi-column ORDER BY does.
// cmp compares the two rows on one column.
func less(ordering []core.DBOrdering, cmp func(field string) int) bool {
	for _, ord := range ordering {
		c := cmp(ord.Field)
		if c == 0 {
			continue
		}
		if ord.Ascending {
			return c < 0
		}
		return c > 0
	}
	return false
}

func compareStrings(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// paginate slices rows to page. A zero page returns every row.
func paginate[T any](rows []T, page core.Page) []T {
	if page.Size <= 0 {
		return rows
	}
	start := page.Offset()
	if start >= len(rows) {
		return []T{}
	}
	end := start + page.Limit()
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
