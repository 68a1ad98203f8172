package dataset

import (
	"math"

	"github.com/cohortlab/cohort/pkg/models"
)

// Summarize computes per-column descriptive statistics for every column.
func Summarize(ds *models.Dataset) []models.ColumnSummary {
	out := make([]models.ColumnSummary, len(ds.Columns))
	for i, col := range ds.Columns {
		out[i] = SummarizeColumn(col)
	}
	return out
}

// SummarizeColumn computes descriptive statistics for a single column.
func SummarizeColumn(col *models.Column) models.ColumnSummary {
	s := models.ColumnSummary{
		Name:    col.Name,
		Type:    col.Type,
		Rows:    col.Len(),
		Coerced: col.Coerced,
	}

	switch col.Type {
	case models.TypeNumeric:
		var sum, sumSq float64
		for i := 0; i < col.Len(); i++ {
			v, ok := col.NumberAt(i)
			if !ok {
				continue
			}
			if s.NonMissing == 0 {
				min, max := v, v
				s.Min, s.Max = &min, &max
			} else {
				if v < *s.Min {
					*s.Min = v
				}
				if v > *s.Max {
					*s.Max = v
				}
			}
			sum += v
			sumSq += v * v
			s.NonMissing++
		}
		if s.NonMissing > 0 {
			mean := sum / float64(s.NonMissing)
			s.Mean = &mean
			if s.NonMissing > 1 {
				n := float64(s.NonMissing)
				variance := (sumSq - n*mean*mean) / (n - 1)
				if variance < 0 {
					variance = 0
				}
				sd := math.Sqrt(variance)
				s.StdDev = &sd
			}
		}

	case models.TypeDate:
		for i := 0; i < col.Len(); i++ {
			t, ok := col.TimeAt(i)
			if !ok {
				continue
			}
			if s.NonMissing == 0 {
				min, max := t, t
				s.MinTime, s.MaxTime = &min, &max
			} else {
				if t.Before(*s.MinTime) {
					*s.MinTime = t
				}
				if t.After(*s.MaxTime) {
					*s.MaxTime = t
				}
			}
			s.NonMissing++
		}

	case models.TypeCategorical:
		counts := make(map[string]int)
		for i := 0; i < col.Len(); i++ {
			v, ok := col.StringAt(i)
			if !ok {
				continue
			}
			counts[v]++
			s.NonMissing++
		}
		s.Distinct = counts
		s.DistinctCount = len(counts)

	default: // text
		seen := make(map[string]struct{})
		for i := 0; i < col.Len(); i++ {
			v, ok := col.StringAt(i)
			if !ok {
				continue
			}
			seen[v] = struct{}{}
			s.NonMissing++
		}
		s.DistinctCount = len(seen)
	}

	s.Missing = s.Rows - s.NonMissing
	return s
}

// Metrics computes dataset-level key metrics: numeric means and totals plus
// normalized categorical distributions.
func Metrics(ds *models.Dataset) models.DatasetMetrics {
	m := models.DatasetMetrics{
		TotalRows:     ds.NumRows(),
		NumericMeans:  make(map[string]float64),
		NumericTotals: make(map[string]float64),
		Distributions: make(map[string]map[string]float64),
	}

	for _, col := range ds.Columns {
		switch col.Type {
		case models.TypeNumeric:
			sum, n := 0.0, 0
			for i := 0; i < col.Len(); i++ {
				if v, ok := col.NumberAt(i); ok {
					sum += v
					n++
				}
			}
			if n > 0 {
				m.NumericTotals[col.Name] = sum
				m.NumericMeans[col.Name] = sum / float64(n)
			}
		case models.TypeCategorical:
			counts := make(map[string]float64)
			total := 0
			for i := 0; i < col.Len(); i++ {
				if v, ok := col.StringAt(i); ok {
					counts[v]++
					total++
				}
			}
			if total > 0 {
				for k := range counts {
					counts[k] /= float64(total)
				}
				m.Distributions[col.Name] = counts
			}
		}
	}
	return m
}

// Summary bundles per-column summaries with dataset-level metrics.
func Summary(ds *models.Dataset) *models.DatasetSummary {
	return &models.DatasetSummary{
		ID:      ds.ID,
		Name:    ds.Name,
		Rows:    ds.NumRows(),
		Columns: Summarize(ds),
		Metrics: Metrics(ds),
	}
}
