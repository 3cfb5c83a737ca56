package sink

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/notable-obs-filter/internal/dataset"
)

// SortRows stable-sorts rows by keys. Rows without the keyed column sort as
// if the value were empty. With no keys the input order is kept.
func SortRows(rows [][]string, keys []dataset.SortKey) {
	if len(keys) == 0 {
		return
	}
	slices.SortStableFunc(rows, func(a, b []string) int {
		return compareRows(a, b, keys)
	})
}

func compareRows(a, b []string, keys []dataset.SortKey) int {
	for _, k := range keys {
		av, bv := field(a, k.Index), field(b, k.Index)
		var c int
		if k.Numeric {
			c = compareNumeric(av, bv)
		} else {
			c = strings.Compare(av, bv)
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// compareNumeric orders parsable numbers first, by value; the rest follow
// in lexical order.
func compareNumeric(a, b string) int {
	an, aerr := strconv.ParseFloat(strings.TrimSpace(a), 64)
	bn, berr := strconv.ParseFloat(strings.TrimSpace(b), 64)
	switch {
	case aerr == nil && berr == nil:
		return cmp.Compare(an, bn)
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
