package models

import "time"

// ColumnSummary holds derived descriptive statistics for one column.
// Summaries are recomputed whenever a dataset is loaded or filtered and
// are never mutated in place.
type ColumnSummary struct {
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	Rows       int        `json:"rows"`
	NonMissing int        `json:"non_missing"`
	Missing    int        `json:"missing"`
	Coerced    int        `json:"coerced"`

	// Numeric columns only.
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Mean   *float64 `json:"mean,omitempty"`
	StdDev *float64 `json:"std_dev,omitempty"`

	// Date columns only.
	MinTime *time.Time `json:"min_time,omitempty"`
	MaxTime *time.Time `json:"max_time,omitempty"`

	// Categorical columns only.
	Distinct map[string]int `json:"distinct,omitempty"`

	// Categorical and text columns.
	DistinctCount int `json:"distinct_count,omitempty"`
}

// DatasetMetrics are dataset-level key metrics consumed by dashboards.
type DatasetMetrics struct {
	TotalRows     int                           `json:"total_rows"`
	NumericMeans  map[string]float64            `json:"numeric_means,omitempty"`
	NumericTotals map[string]float64            `json:"numeric_totals,omitempty"`
	Distributions map[string]map[string]float64 `json:"distributions,omitempty"`
}

// DatasetSummary bundles per-column summaries with dataset-level metrics.
type DatasetSummary struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Rows    int             `json:"rows"`
	Columns []ColumnSummary `json:"columns"`
	Metrics DatasetMetrics  `json:"metrics"`
}

// ValidationIssue describes one data quality finding.
type ValidationIssue struct {
	Type        string  `json:"type"`
	Severity    string  `json:"severity"` // high, medium, low
	Column      string  `json:"column,omitempty"`
	Count       int     `json:"count"`
	Percentage  float64 `json:"percentage"`
	Description string  `json:"description"`
}

// ValidationRules configures dataset-level quality checks.
type ValidationRules struct {
	// KeyColumn, when set, must contain unique non-missing values.
	KeyColumn string `json:"key_column,omitempty"`

	// Ranges are acceptable intervals for numeric columns; values outside
	// them are flagged, not dropped.
	Ranges map[string]NumericRange `json:"ranges,omitempty"`
}

// ValidationReport is the result of running quality checks over a dataset.
type ValidationReport struct {
	Valid    bool              `json:"valid"`
	Issues   []ValidationIssue `json:"issues"`
	Warnings []ValidationIssue `json:"warnings"`
}
