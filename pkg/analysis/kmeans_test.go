package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortlab/cohort/pkg/errors"
	"github.com/cohortlab/cohort/pkg/models"
)

// twoBlobs builds two well-separated groups in (age, cost) space.
func twoBlobs(t *testing.T) *models.Dataset {
	t.Helper()

	age := models.NewColumn("age", models.TypeNumeric)
	cost := models.NewColumn("cost", models.TypeNumeric)
	for _, v := range []float64{20, 21, 22, 23, 24} {
		age.AppendNumber(v)
		cost.AppendNumber(v * 10)
	}
	for _, v := range []float64{70, 71, 72, 73, 74} {
		age.AppendNumber(v)
		cost.AppendNumber(v * 100)
	}

	ds, err := models.NewDataset("blobs", "test", []*models.Column{age, cost})
	require.NoError(t, err)
	return ds
}

func TestCluster_SeparatesObviousGroups(t *testing.T) {
	ds := twoBlobs(t)

	res, err := Cluster(ds, KMeansRequest{Columns: []string{"age", "cost"}, K: 2, Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, 10, res.Rows)
	assert.Len(t, res.Assignments, 10)
	assert.Len(t, res.Centroids, 2)
	assert.ElementsMatch(t, []int{5, 5}, res.Sizes)

	first := res.Assignments[0]
	for i := 1; i < 5; i++ {
		assert.Equal(t, first, res.Assignments[i], "young group stays together")
	}
	for i := 5; i < 10; i++ {
		assert.NotEqual(t, first, res.Assignments[i], "old group lands in the other cluster")
	}
}

func TestCluster_Deterministic(t *testing.T) {
	ds := twoBlobs(t)
	req := KMeansRequest{Columns: []string{"age", "cost"}, K: 2, Seed: 7}

	a, err := Cluster(ds, req)
	require.NoError(t, err)
	b, err := Cluster(ds, req)
	require.NoError(t, err)

	assert.Equal(t, a.Assignments, b.Assignments)
	assert.Equal(t, a.Centroids, b.Centroids)
}

func TestCluster_ImputesMissingValues(t *testing.T) {
	age := models.NewColumn("age", models.TypeNumeric)
	age.AppendNumber(20)
	age.AppendMissing()
	age.AppendNumber(70)
	age.AppendNumber(72)
	ds, err := models.NewDataset("d", "test", []*models.Column{age})
	require.NoError(t, err)

	res, err := Cluster(ds, KMeansRequest{Columns: []string{"age"}, K: 2, Seed: 1})
	require.NoError(t, err)
	assert.Len(t, res.Assignments, 4, "rows with missing values still get assigned")
}

func TestCluster_InvalidRequests(t *testing.T) {
	ds := twoBlobs(t)

	tests := []struct {
		name string
		req  KMeansRequest
	}{
		{"k below one", KMeansRequest{Columns: []string{"age"}, K: 0}},
		{"no columns", KMeansRequest{K: 2}},
		{"k larger than rows", KMeansRequest{Columns: []string{"age"}, K: 50}},
		{"unknown column", KMeansRequest{Columns: []string{"height"}, K: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Cluster(ds, tt.req)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidRequest(err) || errors.IsNotFound(err))
		})
	}
}

func TestCluster_NonNumericColumnRejected(t *testing.T) {
	sev := models.NewColumn("severity", models.TypeCategorical)
	sev.AppendString("Low")
	ds, err := models.NewDataset("d", "test", []*models.Column{sev})
	require.NoError(t, err)

	_, err = Cluster(ds, KMeansRequest{Columns: []string{"severity"}, K: 1})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err))
}
