package dataset

import (
	"fmt"
	"strconv"

	"github.com/cohortlab/cohort/pkg/errors"
	"github.com/cohortlab/cohort/pkg/models"
)

// Check runs dataset-level quality checks. Findings never abort anything:
// issues mark the dataset invalid, warnings do not.
func Check(ds *models.Dataset, rules models.ValidationRules) (*models.ValidationReport, error) {
	report := &models.ValidationReport{Valid: true}
	rows := ds.NumRows()

	// Missing values anywhere are worth a warning, not an issue.
	for _, col := range ds.Columns {
		missing := col.Missing()
		if missing == 0 || rows == 0 {
			continue
		}
		report.Warnings = append(report.Warnings, models.ValidationIssue{
			Type:        "missing_values",
			Severity:    "low",
			Column:      col.Name,
			Count:       missing,
			Percentage:  100 * float64(missing) / float64(rows),
			Description: fmt.Sprintf("%d missing values in column %q", missing, col.Name),
		})
	}

	if rules.KeyColumn != "" {
		col, ok := ds.Column(rules.KeyColumn)
		if !ok {
			return nil, errors.ErrColumnNotFound.WithDetail("column", rules.KeyColumn)
		}
		if dups := duplicateKeys(col); dups > 0 {
			report.Valid = false
			report.Issues = append(report.Issues, models.ValidationIssue{
				Type:        "duplicate_keys",
				Severity:    "high",
				Column:      col.Name,
				Count:       dups,
				Percentage:  100 * float64(dups) / float64(rows),
				Description: fmt.Sprintf("%d duplicate values in key column %q", dups, col.Name),
			})
		}
	}

	for name, r := range rules.Ranges {
		col, ok := ds.Column(name)
		if !ok {
			return nil, errors.ErrColumnNotFound.WithDetail("column", name)
		}
		if col.Type != models.TypeNumeric {
			return nil, errors.New(errors.CodeInvalidRequest,
				fmt.Sprintf("range rule on non-numeric column %q", name))
		}
		out := 0
		for i := 0; i < col.Len(); i++ {
			v, present := col.NumberAt(i)
			if !present {
				continue
			}
			if (r.Min != nil && v < *r.Min) || (r.Max != nil && v > *r.Max) {
				out++
			}
		}
		if out > 0 {
			report.Valid = false
			report.Issues = append(report.Issues, models.ValidationIssue{
				Type:        "out_of_range",
				Severity:    "high",
				Column:      name,
				Count:       out,
				Percentage:  100 * float64(out) / float64(rows),
				Description: fmt.Sprintf("%d values outside the accepted range in column %q", out, name),
			})
		}
	}

	return report, nil
}

// duplicateKeys counts non-missing values that occur more than once.
func duplicateKeys(col *models.Column) int {
	seen := make(map[string]int, col.Len())
	for i := 0; i < col.Len(); i++ {
		if col.IsMissing(i) {
			continue
		}
		seen[keyValue(col, i)]++
	}
	dups := 0
	for _, n := range seen {
		if n > 1 {
			dups += n
		}
	}
	return dups
}

func keyValue(col *models.Column, i int) string {
	switch col.Type {
	case models.TypeNumeric:
		return strconv.FormatFloat(col.Numbers[i], 'g', -1, 64)
	case models.TypeDate:
		return strconv.FormatInt(col.Times[i].UnixNano(), 10)
	default:
		return col.Strings[i]
	}
}
