package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortlab/cohort/pkg/errors"
)

func numericColumn(name string, values ...float64) *Column {
	col := NewColumn(name, TypeNumeric)
	for _, v := range values {
		col.AppendNumber(v)
	}
	return col
}

func categoricalColumn(name string, values ...string) *Column {
	col := NewColumn(name, TypeCategorical)
	for _, v := range values {
		col.AppendString(v)
	}
	return col
}

func TestDataset_Invariants(t *testing.T) {
	t.Run("columns must have equal length", func(t *testing.T) {
		_, err := NewDataset("d", "test", []*Column{
			numericColumn("a", 1, 2, 3),
			numericColumn("b", 1, 2),
		})
		require.Error(t, err)
		assert.True(t, errors.IsSchemaError(err))
	})

	t.Run("column names must be unique", func(t *testing.T) {
		_, err := NewDataset("d", "test", []*Column{
			numericColumn("a", 1),
			categoricalColumn("a", "x"),
		})
		require.Error(t, err)
		assert.True(t, errors.IsSchemaError(err))
	})

	t.Run("empty dataset is valid", func(t *testing.T) {
		ds, err := NewDataset("d", "test", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, ds.NumRows())
		assert.Equal(t, 0, ds.NumCols())
	})
}

func TestColumn_MissingAlignment(t *testing.T) {
	col := NewColumn("age", TypeNumeric)
	col.AppendNumber(42)
	col.AppendMissing()
	col.AppendNumber(7)

	require.Equal(t, 3, col.Len())
	assert.Equal(t, 3, len(col.Numbers), "backing slice stays aligned with validity mask")
	assert.Equal(t, 1, col.Missing())

	v, ok := col.NumberAt(0)
	assert.True(t, ok)
	assert.Equal(t, 42.0, v)

	_, ok = col.NumberAt(1)
	assert.False(t, ok)
}

func TestDataset_Select(t *testing.T) {
	ds, err := NewDataset("d", "test", []*Column{
		numericColumn("score", 10, 20, 30, 40),
		categoricalColumn("state", "CA", "TX", "CA", "NY"),
	})
	require.NoError(t, err)

	view := ds.Select([]int{1, 3})
	require.NoError(t, view.Validate())
	assert.Equal(t, 2, view.NumRows())
	assert.Equal(t, 4, ds.NumRows(), "source dataset is untouched")

	state, ok := view.Column("state")
	require.True(t, ok)
	s0, _ := state.StringAt(0)
	s1, _ := state.StringAt(1)
	assert.Equal(t, "TX", s0)
	assert.Equal(t, "NY", s1)

	t.Run("empty selection yields zero-row dataset", func(t *testing.T) {
		empty := ds.Select(nil)
		require.NoError(t, empty.Validate())
		assert.Equal(t, 0, empty.NumRows())
		assert.Equal(t, 2, empty.NumCols())
	})
}

func TestFilterSpec_Fingerprint(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	min := 18.0

	a := FilterSpec{
		DateColumn: "admission_date",
		Start:      &start,
		End:        &end,
		Categories: map[string][]string{"severity": {"High", "Low"}, "state": {"CA"}},
		Ranges:     map[string]NumericRange{"age": {Min: &min}},
	}
	b := FilterSpec{
		DateColumn: "admission_date",
		Start:      &start,
		End:        &end,
		Categories: map[string][]string{"state": {"CA"}, "severity": {"Low", "High"}},
		Ranges:     map[string]NumericRange{"age": {Min: &min}},
	}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint(),
		"fingerprint must be stable across map and value ordering")
	assert.NotEqual(t, a.Fingerprint(), FilterSpec{}.Fingerprint())
	assert.True(t, FilterSpec{}.IsZero())
	assert.False(t, a.IsZero())
}

func TestDataset_Records(t *testing.T) {
	date := NewColumn("admitted", TypeDate)
	date.AppendTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	date.AppendMissing()

	ds, err := NewDataset("d", "test", []*Column{
		numericColumn("cost", 120, 300),
		date,
	})
	require.NoError(t, err)

	recs := ds.Records(0)
	require.Len(t, recs, 2)
	assert.Equal(t, 120.0, recs[0]["cost"])
	assert.Equal(t, "2024-03-01T00:00:00Z", recs[0]["admitted"])
	assert.Nil(t, recs[1]["admitted"])

	assert.Len(t, ds.Records(1), 1)
}
