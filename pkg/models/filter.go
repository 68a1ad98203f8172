package models

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// NumericRange is an inclusive numeric interval; nil bounds are open.
type NumericRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// FilterSpec is a declarative subset request over a dataset. It never
// mutates the dataset it is applied to; application produces a new view.
// All bounds are inclusive. Rows with a missing value in an actively
// filtered column are excluded.
type FilterSpec struct {
	// DateColumn names the date column the Start/End bounds apply to.
	DateColumn string     `json:"date_column,omitempty"`
	Start      *time.Time `json:"start,omitempty"`
	End        *time.Time `json:"end,omitempty"`

	// Categories maps categorical column names to allowed values.
	Categories map[string][]string `json:"categories,omitempty"`

	// Ranges maps numeric column names to inclusive intervals.
	Ranges map[string]NumericRange `json:"ranges,omitempty"`
}

// IsZero reports whether the spec selects everything.
func (f FilterSpec) IsZero() bool {
	return f.DateColumn == "" && f.Start == nil && f.End == nil &&
		len(f.Categories) == 0 && len(f.Ranges) == 0
}

// Fingerprint returns a canonical string form of the spec, stable across
// map iteration order and value ordering. Used as a cache key component.
func (f FilterSpec) Fingerprint() string {
	var b strings.Builder

	b.WriteString("date=")
	b.WriteString(f.DateColumn)
	b.WriteByte(':')
	if f.Start != nil {
		b.WriteString(strconv.FormatInt(f.Start.UnixNano(), 10))
	}
	b.WriteByte(':')
	if f.End != nil {
		b.WriteString(strconv.FormatInt(f.End.UnixNano(), 10))
	}

	catCols := make([]string, 0, len(f.Categories))
	for col := range f.Categories {
		catCols = append(catCols, col)
	}
	sort.Strings(catCols)
	for _, col := range catCols {
		values := append([]string(nil), f.Categories[col]...)
		sort.Strings(values)
		b.WriteString("|cat:")
		b.WriteString(col)
		b.WriteByte('=')
		b.WriteString(strings.Join(values, ","))
	}

	rngCols := make([]string, 0, len(f.Ranges))
	for col := range f.Ranges {
		rngCols = append(rngCols, col)
	}
	sort.Strings(rngCols)
	for _, col := range rngCols {
		r := f.Ranges[col]
		b.WriteString("|rng:")
		b.WriteString(col)
		b.WriteByte('=')
		if r.Min != nil {
			b.WriteString(strconv.FormatFloat(*r.Min, 'g', -1, 64))
		}
		b.WriteByte(',')
		if r.Max != nil {
			b.WriteString(strconv.FormatFloat(*r.Max, 'g', -1, 64))
		}
	}

	return b.String()
}
