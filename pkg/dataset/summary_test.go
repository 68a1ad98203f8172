package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortlab/cohort/pkg/models"
)

func TestSummarizeColumn_Numeric(t *testing.T) {
	col := models.NewColumn("cost", models.TypeNumeric)
	for _, v := range []float64{100, 200, 300} {
		col.AppendNumber(v)
	}
	col.AppendMissing()
	col.Coerced = 1

	s := SummarizeColumn(col)

	assert.Equal(t, 4, s.Rows)
	assert.Equal(t, 3, s.NonMissing)
	assert.Equal(t, 1, s.Missing)
	assert.Equal(t, 1, s.Coerced)
	require.NotNil(t, s.Min)
	require.NotNil(t, s.Max)
	require.NotNil(t, s.Mean)
	require.NotNil(t, s.StdDev)
	assert.Equal(t, 100.0, *s.Min)
	assert.Equal(t, 300.0, *s.Max)
	assert.Equal(t, 200.0, *s.Mean)
	assert.InDelta(t, 100.0, *s.StdDev, 1e-9)
}

func TestSummarizeColumn_AllMissingNumeric(t *testing.T) {
	col := models.NewColumn("cost", models.TypeNumeric)
	col.AppendMissing()
	col.AppendMissing()

	s := SummarizeColumn(col)
	assert.Equal(t, 0, s.NonMissing)
	assert.Nil(t, s.Min)
	assert.Nil(t, s.Max)
	assert.Nil(t, s.Mean)
	assert.Nil(t, s.StdDev)
}

func TestSummarizeColumn_Categorical(t *testing.T) {
	col := models.NewColumn("severity", models.TypeCategorical)
	for _, v := range []string{"Low", "High", "Low", "Low"} {
		col.AppendString(v)
	}
	col.AppendMissing()

	s := SummarizeColumn(col)
	assert.Equal(t, 4, s.NonMissing)
	assert.Equal(t, map[string]int{"Low": 3, "High": 1}, s.Distinct)
	assert.Equal(t, 2, s.DistinctCount)
}

func TestSummarizeColumn_Date(t *testing.T) {
	col := models.NewColumn("admitted", models.TypeDate)
	col.AppendTime(day(10))
	col.AppendTime(day(2))
	col.AppendTime(day(25))

	s := SummarizeColumn(col)
	require.NotNil(t, s.MinTime)
	require.NotNil(t, s.MaxTime)
	assert.Equal(t, day(2), *s.MinTime)
	assert.Equal(t, day(25), *s.MaxTime)
}

func TestSummarize_RecomputedPerView(t *testing.T) {
	ds := testDataset(t)

	full := Summarize(ds)
	view, err := Apply(ds, models.FilterSpec{Categories: map[string][]string{"severity": {"High"}}})
	require.NoError(t, err)
	filtered := Summarize(view)

	var fullAge, viewAge models.ColumnSummary
	for _, s := range full {
		if s.Name == "age" {
			fullAge = s
		}
	}
	for _, s := range filtered {
		if s.Name == "age" {
			viewAge = s
		}
	}

	assert.Equal(t, 3, fullAge.NonMissing)
	assert.Equal(t, 1, viewAge.NonMissing, "summary reflects the view, not the source")
	assert.Equal(t, 58.0, *viewAge.Mean)
}

func TestMetrics(t *testing.T) {
	ds := testDataset(t)
	m := Metrics(ds)

	assert.Equal(t, 4, m.TotalRows)
	assert.InDelta(t, (34.0+58+71)/3, m.NumericMeans["age"], 1e-9)
	assert.InDelta(t, 163.0, m.NumericTotals["age"], 1e-9)

	dist := m.Distributions["severity"]
	require.NotNil(t, dist)
	assert.InDelta(t, 0.5, dist["High"], 1e-9)
	sum := 0.0
	for _, p := range dist {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9, "distribution is normalized")
}

func TestSummary_ZeroRowDataset(t *testing.T) {
	ds := testDataset(t)
	start, end := day(25), day(28)
	view, err := Apply(ds, models.FilterSpec{DateColumn: "admitted", Start: &start, End: &end})
	require.NoError(t, err)

	summary := Summary(view)
	assert.Equal(t, 0, summary.Rows)
	for _, s := range summary.Columns {
		assert.Equal(t, 0, s.NonMissing)
		assert.False(t, s.Mean != nil && !math.IsNaN(*s.Mean) && s.NonMissing == 0, "no stats fabricated for empty columns")
	}
}
