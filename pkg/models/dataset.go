// Package models provides data structures used throughout the dataset service.
package models

import (
	"fmt"
	"time"

	"github.com/cohortlab/cohort/pkg/errors"
)

// ColumnType identifies the declared type of a dataset column.
type ColumnType string

const (
	// TypeNumeric holds float64 values.
	TypeNumeric ColumnType = "numeric"
	// TypeCategorical holds a bounded set of string labels.
	TypeCategorical ColumnType = "categorical"
	// TypeDate holds timestamps.
	TypeDate ColumnType = "date"
	// TypeText holds free-form strings.
	TypeText ColumnType = "text"
)

// Known reports whether t is one of the declared column types.
func (t ColumnType) Known() bool {
	switch t {
	case TypeNumeric, TypeCategorical, TypeDate, TypeText:
		return true
	}
	return false
}

// Column is a single named, typed column. Exactly one backing slice is
// populated depending on Type; Valid marks non-missing cells. All backing
// slices are kept the same length as Valid.
type Column struct {
	Name    string       `json:"name"`
	Type    ColumnType   `json:"type"`
	Numbers []float64    `json:"numbers,omitempty"`
	Times   []time.Time  `json:"times,omitempty"`
	Strings []string     `json:"strings,omitempty"`
	Valid   []bool       `json:"valid"`
	Coerced int          `json:"coerced"`
}

// NewColumn creates an empty column of the given type.
func NewColumn(name string, typ ColumnType) *Column {
	return &Column{Name: name, Type: typ}
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	return len(c.Valid)
}

// IsMissing reports whether the value at row i is missing.
func (c *Column) IsMissing(i int) bool {
	return !c.Valid[i]
}

// AppendNumber appends a numeric value.
func (c *Column) AppendNumber(v float64) {
	c.Numbers = append(c.Numbers, v)
	c.Valid = append(c.Valid, true)
}

// AppendTime appends a date value.
func (c *Column) AppendTime(v time.Time) {
	c.Times = append(c.Times, v)
	c.Valid = append(c.Valid, true)
}

// AppendString appends a categorical or text value.
func (c *Column) AppendString(v string) {
	c.Strings = append(c.Strings, v)
	c.Valid = append(c.Valid, true)
}

// AppendMissing appends a missing marker, keeping the backing slice aligned.
func (c *Column) AppendMissing() {
	switch c.Type {
	case TypeNumeric:
		c.Numbers = append(c.Numbers, 0)
	case TypeDate:
		c.Times = append(c.Times, time.Time{})
	default:
		c.Strings = append(c.Strings, "")
	}
	c.Valid = append(c.Valid, false)
}

// NumberAt returns the numeric value at row i and whether it is present.
func (c *Column) NumberAt(i int) (float64, bool) {
	if c.Type != TypeNumeric || !c.Valid[i] {
		return 0, false
	}
	return c.Numbers[i], true
}

// TimeAt returns the date value at row i and whether it is present.
func (c *Column) TimeAt(i int) (time.Time, bool) {
	if c.Type != TypeDate || !c.Valid[i] {
		return time.Time{}, false
	}
	return c.Times[i], true
}

// StringAt returns the string value at row i and whether it is present.
func (c *Column) StringAt(i int) (string, bool) {
	if (c.Type != TypeCategorical && c.Type != TypeText) || !c.Valid[i] {
		return "", false
	}
	return c.Strings[i], true
}

// Missing returns the number of missing cells.
func (c *Column) Missing() int {
	n := 0
	for _, v := range c.Valid {
		if !v {
			n++
		}
	}
	return n
}

// Select returns a new column containing the given rows, in order.
func (c *Column) Select(rows []int) *Column {
	out := &Column{Name: c.Name, Type: c.Type, Coerced: c.Coerced}
	out.Valid = make([]bool, 0, len(rows))
	switch c.Type {
	case TypeNumeric:
		out.Numbers = make([]float64, 0, len(rows))
		for _, i := range rows {
			out.Numbers = append(out.Numbers, c.Numbers[i])
			out.Valid = append(out.Valid, c.Valid[i])
		}
	case TypeDate:
		out.Times = make([]time.Time, 0, len(rows))
		for _, i := range rows {
			out.Times = append(out.Times, c.Times[i])
			out.Valid = append(out.Valid, c.Valid[i])
		}
	default:
		out.Strings = make([]string, 0, len(rows))
		for _, i := range rows {
			out.Strings = append(out.Strings, c.Strings[i])
			out.Valid = append(out.Valid, c.Valid[i])
		}
	}
	return out
}

// Dataset is the canonical in-memory tabular structure. Columns are ordered,
// uniquely named and equal length. A Dataset is never mutated after it is
// built; filters produce new Datasets.
type Dataset struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Source   string      `json:"source"`
	Columns  []*Column   `json:"columns"`
	LoadedAt time.Time   `json:"loaded_at"`
	Report   *LoadReport `json:"report,omitempty"`
}

// LoadReport describes what happened during a load.
type LoadReport struct {
	Rows     int            `json:"rows"`
	Missing  map[string]int `json:"missing"`
	Coerced  map[string]int `json:"coerced"`
	Duration time.Duration  `json:"duration"`
}

// NewDataset builds a dataset and checks its invariants.
func NewDataset(name, source string, columns []*Column) (*Dataset, error) {
	ds := &Dataset{
		Name:     name,
		Source:   source,
		Columns:  columns,
		LoadedAt: time.Now().UTC(),
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// Validate checks the equal-length and unique-name invariants.
func (d *Dataset) Validate() error {
	seen := make(map[string]struct{}, len(d.Columns))
	for _, col := range d.Columns {
		if col.Name == "" {
			return errors.New(errors.CodeSchemaError, "column with empty name")
		}
		if _, dup := seen[col.Name]; dup {
			return errors.ErrDuplicateColumn.WithDetail("column", col.Name)
		}
		seen[col.Name] = struct{}{}
	}
	if len(d.Columns) == 0 {
		return nil
	}
	rows := d.Columns[0].Len()
	for _, col := range d.Columns[1:] {
		if col.Len() != rows {
			return errors.New(errors.CodeSchemaError,
				fmt.Sprintf("column %q has %d rows, expected %d", col.Name, col.Len(), rows))
		}
	}
	return nil
}

// NumRows returns the number of rows.
func (d *Dataset) NumRows() int {
	if len(d.Columns) == 0 {
		return 0
	}
	return d.Columns[0].Len()
}

// NumCols returns the number of columns.
func (d *Dataset) NumCols() int {
	return len(d.Columns)
}

// Column returns the named column, if present.
func (d *Dataset) Column(name string) (*Column, bool) {
	for _, col := range d.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return nil, false
}

// ColumnNames returns column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		names[i] = col.Name
	}
	return names
}

// Select returns a new dataset containing the given rows, in order.
// The source dataset is left untouched.
func (d *Dataset) Select(rows []int) *Dataset {
	cols := make([]*Column, len(d.Columns))
	for i, col := range d.Columns {
		cols[i] = col.Select(rows)
	}
	missing := make(map[string]int, len(cols))
	coerced := make(map[string]int, len(cols))
	for _, col := range cols {
		missing[col.Name] = col.Missing()
		coerced[col.Name] = col.Coerced
	}
	return &Dataset{
		Name:     d.Name,
		Source:   d.Source,
		Columns:  cols,
		LoadedAt: time.Now().UTC(),
		Report: &LoadReport{
			Rows:    len(rows),
			Missing: missing,
			Coerced: coerced,
		},
	}
}

// Records renders up to limit rows as JSON-friendly maps; missing cells
// become nil and dates are formatted as RFC 3339. limit <= 0 means all rows.
func (d *Dataset) Records(limit int) []map[string]interface{} {
	rows := d.NumRows()
	if limit > 0 && limit < rows {
		rows = limit
	}
	out := make([]map[string]interface{}, rows)
	for i := 0; i < rows; i++ {
		rec := make(map[string]interface{}, len(d.Columns))
		for _, col := range d.Columns {
			if col.IsMissing(i) {
				rec[col.Name] = nil
				continue
			}
			switch col.Type {
			case TypeNumeric:
				rec[col.Name] = col.Numbers[i]
			case TypeDate:
				rec[col.Name] = col.Times[i].Format(time.RFC3339)
			default:
				rec[col.Name] = col.Strings[i]
			}
		}
		out[i] = rec
	}
	return out
}
