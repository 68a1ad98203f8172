// Package dataset implements operations over canonical datasets: filtered
// views, descriptive summaries and quality checks. All operations are pure;
// inputs are never mutated.
package dataset

import (
	"fmt"

	"github.com/cohortlab/cohort/pkg/errors"
	"github.com/cohortlab/cohort/pkg/models"
)

// Apply produces a filtered view of the dataset. The source is not mutated;
// an empty result is a valid zero-row dataset. Applying the same spec to its
// own output returns an identical view.
func Apply(ds *models.Dataset, spec models.FilterSpec) (*models.Dataset, error) {
	if err := validateSpec(ds, spec); err != nil {
		return nil, err
	}

	if spec.IsZero() {
		rows := make([]int, ds.NumRows())
		for i := range rows {
			rows[i] = i
		}
		return ds.Select(rows), nil
	}

	rows := make([]int, 0, ds.NumRows())
	for i := 0; i < ds.NumRows(); i++ {
		if matches(ds, spec, i) {
			rows = append(rows, i)
		}
	}
	return ds.Select(rows), nil
}

// validateSpec checks that every column the spec references exists and has a
// compatible type.
func validateSpec(ds *models.Dataset, spec models.FilterSpec) error {
	if (spec.Start != nil || spec.End != nil) && spec.DateColumn == "" {
		return errors.ErrInvalidFilter.WithDetail("reason", "date bounds require a date_column")
	}
	if spec.DateColumn != "" {
		col, ok := ds.Column(spec.DateColumn)
		if !ok {
			return errors.ErrColumnNotFound.WithDetail("column", spec.DateColumn)
		}
		if col.Type != models.TypeDate {
			return errors.ErrInvalidFilter.WithDetail("reason",
				fmt.Sprintf("column %q is %s, not date", spec.DateColumn, col.Type))
		}
	}
	for name := range spec.Categories {
		col, ok := ds.Column(name)
		if !ok {
			return errors.ErrColumnNotFound.WithDetail("column", name)
		}
		if col.Type != models.TypeCategorical && col.Type != models.TypeText {
			return errors.ErrInvalidFilter.WithDetail("reason",
				fmt.Sprintf("column %q is %s, not categorical", name, col.Type))
		}
	}
	for name := range spec.Ranges {
		col, ok := ds.Column(name)
		if !ok {
			return errors.ErrColumnNotFound.WithDetail("column", name)
		}
		if col.Type != models.TypeNumeric {
			return errors.ErrInvalidFilter.WithDetail("reason",
				fmt.Sprintf("column %q is %s, not numeric", name, col.Type))
		}
	}
	return nil
}

// matches reports whether row i passes every predicate in the spec. A row
// with a missing value in an actively filtered column never matches.
func matches(ds *models.Dataset, spec models.FilterSpec, i int) bool {
	if spec.DateColumn != "" {
		col, _ := ds.Column(spec.DateColumn)
		t, ok := col.TimeAt(i)
		if !ok {
			return false
		}
		if spec.Start != nil && t.Before(*spec.Start) {
			return false
		}
		if spec.End != nil && t.After(*spec.End) {
			return false
		}
	}

	for name, allowed := range spec.Categories {
		if len(allowed) == 0 {
			continue
		}
		col, _ := ds.Column(name)
		v, ok := col.StringAt(i)
		if !ok {
			return false
		}
		found := false
		for _, a := range allowed {
			if v == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for name, r := range spec.Ranges {
		col, _ := ds.Column(name)
		v, ok := col.NumberAt(i)
		if !ok {
			return false
		}
		if r.Min != nil && v < *r.Min {
			return false
		}
		if r.Max != nil && v > *r.Max {
			return false
		}
	}

	return true
}
