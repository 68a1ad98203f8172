// Package analysis provides statistical analysis over datasets.
package analysis

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cohortlab/cohort/pkg/errors"
	"github.com/cohortlab/cohort/pkg/models"
)

// KMeansRequest configures a clustering run over numeric columns.
type KMeansRequest struct {
	// Columns are the numeric columns used as features.
	Columns []string `json:"columns"`
	K       int      `json:"k"`
	MaxIter int      `json:"max_iter,omitempty"`
	Seed    int64    `json:"seed,omitempty"`
}

// KMeansResult holds cluster assignments and fit diagnostics. Centroids are
// reported in the original (unscaled) feature space.
type KMeansResult struct {
	Columns     []string    `json:"columns"`
	K           int         `json:"k"`
	Rows        int         `json:"rows"`
	Assignments []int       `json:"assignments"`
	Centroids   [][]float64 `json:"centroids"`
	Sizes       []int       `json:"sizes"`
	Inertia     float64     `json:"inertia"`
	Iterations  int         `json:"iterations"`
}

// Cluster runs k-means with k-means++ seeding over the selected numeric
// columns. Missing values are imputed with the column mean and features are
// min-max scaled before clustering, so columns on different scales carry
// equal weight.
func Cluster(ds *models.Dataset, req KMeansRequest) (*KMeansResult, error) {
	if req.K < 1 {
		return nil, errors.New(errors.CodeInvalidRequest, "k must be at least 1")
	}
	if len(req.Columns) == 0 {
		return nil, errors.New(errors.CodeInvalidRequest, "at least one feature column is required")
	}
	if req.MaxIter <= 0 {
		req.MaxIter = 100
	}

	X, mins, maxs, err := featureMatrix(ds, req.Columns)
	if err != nil {
		return nil, err
	}
	n := len(X)
	if n < req.K {
		return nil, errors.New(errors.CodeInvalidRequest,
			fmt.Sprintf("dataset has %d rows, fewer than k=%d", n, req.K))
	}

	rng := rand.New(rand.NewSource(req.Seed))
	centroids := seedCentroids(X, req.K, rng)

	p := len(req.Columns)
	assign := make([]int, n)
	iterations := 0
	inertia := 0.0

	for it := 0; it < req.MaxIter; it++ {
		iterations = it + 1
		changed := false
		inertia = 0.0

		for i, x := range X {
			best, bestD := 0, math.MaxFloat64
			for k, c := range centroids {
				if d := euclidSquared(x, c); d < bestD {
					best, bestD = k, d
				}
			}
			if assign[i] != best {
				changed = true
			}
			assign[i] = best
			inertia += bestD
		}

		sums := make([][]float64, req.K)
		counts := make([]int, req.K)
		for k := range sums {
			sums[k] = make([]float64, p)
		}
		for i, x := range X {
			k := assign[i]
			counts[k]++
			for j, v := range x {
				sums[k][j] += v
			}
		}
		for k := range centroids {
			if counts[k] == 0 {
				continue
			}
			for j := range centroids[k] {
				centroids[k][j] = sums[k][j] / float64(counts[k])
			}
		}

		if !changed {
			break
		}
	}

	sizes := make([]int, req.K)
	for _, k := range assign {
		sizes[k]++
	}

	return &KMeansResult{
		Columns:     req.Columns,
		K:           req.K,
		Rows:        n,
		Assignments: assign,
		Centroids:   unscale(centroids, mins, maxs),
		Sizes:       sizes,
		Inertia:     inertia,
		Iterations:  iterations,
	}, nil
}

// featureMatrix builds the scaled feature matrix plus the per-column min and
// max used for scaling.
func featureMatrix(ds *models.Dataset, names []string) ([][]float64, []float64, []float64, error) {
	p := len(names)
	cols := make([]*models.Column, p)
	for j, name := range names {
		col, ok := ds.Column(name)
		if !ok {
			return nil, nil, nil, errors.ErrColumnNotFound.WithDetail("column", name)
		}
		if col.Type != models.TypeNumeric {
			return nil, nil, nil, errors.New(errors.CodeInvalidRequest,
				fmt.Sprintf("column %q is %s, not numeric", name, col.Type))
		}
		cols[j] = col
	}

	n := ds.NumRows()
	if n == 0 {
		return nil, nil, nil, errors.New(errors.CodeInvalidRequest, "dataset has no rows")
	}

	means := make([]float64, p)
	for j, col := range cols {
		sum, cnt := 0.0, 0
		for i := 0; i < n; i++ {
			if v, ok := col.NumberAt(i); ok {
				sum += v
				cnt++
			}
		}
		if cnt == 0 {
			return nil, nil, nil, errors.New(errors.CodeInvalidRequest,
				fmt.Sprintf("column %q has no values to cluster", col.Name))
		}
		means[j] = sum / float64(cnt)
	}

	X := make([][]float64, n)
	mins := make([]float64, p)
	maxs := make([]float64, p)
	for j := range mins {
		mins[j] = math.MaxFloat64
		maxs[j] = -math.MaxFloat64
	}
	for i := 0; i < n; i++ {
		row := make([]float64, p)
		for j, col := range cols {
			v, ok := col.NumberAt(i)
			if !ok {
				v = means[j]
			}
			row[j] = v
			if v < mins[j] {
				mins[j] = v
			}
			if v > maxs[j] {
				maxs[j] = v
			}
		}
		X[i] = row
	}

	for i := range X {
		for j := range X[i] {
			if maxs[j] > mins[j] {
				X[i][j] = (X[i][j] - mins[j]) / (maxs[j] - mins[j])
			} else {
				X[i][j] = 0
			}
		}
	}
	return X, mins, maxs, nil
}

// seedCentroids picks k initial centroids with k-means++ weighting.
func seedCentroids(X [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(X)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), X[rng.Intn(n)]...))

	for len(centroids) < k {
		distSq := make([]float64, n)
		total := 0.0
		for i, x := range X {
			minD := math.MaxFloat64
			for _, c := range centroids {
				if d := euclidSquared(x, c); d < minD {
					minD = d
				}
			}
			distSq[i] = minD
			total += minD
		}

		if total == 0 {
			centroids = append(centroids, append([]float64(nil), X[rng.Intn(n)]...))
			continue
		}

		r := rng.Float64() * total
		acc := 0.0
		for i, d := range distSq {
			acc += d
			if acc >= r {
				centroids = append(centroids, append([]float64(nil), X[i]...))
				break
			}
		}
	}
	return centroids
}

// unscale maps centroids from scaled space back to original units.
func unscale(centroids [][]float64, mins, maxs []float64) [][]float64 {
	out := make([][]float64, len(centroids))
	for k, c := range centroids {
		row := make([]float64, len(c))
		for j, v := range c {
			if maxs[j] > mins[j] {
				row[j] = mins[j] + v*(maxs[j]-mins[j])
			} else {
				row[j] = mins[j]
			}
		}
		out[k] = row
	}
	return out
}

func euclidSquared(a, b []float64) float64 {
	d := 0.0
	for i := range a {
		dx := a[i] - b[i]
		d += dx * dx
	}
	return d
}
