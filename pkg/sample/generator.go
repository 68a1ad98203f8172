// Package sample generates synthetic healthcare admissions data for
// demonstrations and tests.
package sample

import (
	"math/rand"
	"time"

	"github.com/cohortlab/cohort/pkg/models"
)

var (
	conditions = []string{
		"Respiratory", "Cardiovascular", "Diabetes", "Mental Health",
		"Infectious Disease", "Cancer", "Neurological", "Others",
	}
	states = []string{"CA", "TX", "FL", "NY", "PA", "IL", "OH", "GA", "NC", "MI"}
)

// Generate builds a deterministic synthetic dataset of n admissions. The
// same seed always yields the same data. Ages, scores, treatment days and
// costs carry the correlations a real admissions table would show: older
// patients score lower, severe cases cost more, cardiovascular cases stay
// longer.
func Generate(n int, seed int64) *models.Dataset {
	rng := rand.New(rand.NewSource(seed))
	now := time.Now().UTC().Truncate(24 * time.Hour)

	patientID := models.NewColumn("patient_id", models.TypeNumeric)
	age := models.NewColumn("age", models.TypeNumeric)
	gender := models.NewColumn("gender", models.TypeCategorical)
	condition := models.NewColumn("condition", models.TypeCategorical)
	healthScore := models.NewColumn("health_score", models.TypeNumeric)
	treatmentDays := models.NewColumn("treatment_days", models.TypeNumeric)
	cost := models.NewColumn("cost", models.TypeNumeric)
	admissionDate := models.NewColumn("admission_date", models.TypeDate)
	state := models.NewColumn("state", models.TypeCategorical)
	severity := models.NewColumn("severity", models.TypeCategorical)

	for i := 0; i < n; i++ {
		patientID.AppendNumber(float64(i + 1))

		a := float64(18 + rng.Intn(67))
		age.AppendNumber(a)

		gender.AppendString(weighted(rng, []string{"Male", "Female", "Other"}, []float64{0.48, 0.48, 0.04}))

		cond := conditions[rng.Intn(len(conditions))]
		condition.AppendString(cond)

		score := float64(1 + rng.Intn(99))
		if a > 65 {
			score *= 0.8
		}
		healthScore.AppendNumber(score)

		days := float64(1 + rng.Intn(29))
		if cond == "Cardiovascular" {
			days *= 1.2
		}
		treatmentDays.AppendNumber(days)

		sev := weighted(rng, []string{"Low", "Medium", "High"}, []float64{0.5, 0.3, 0.2})
		severity.AppendString(sev)

		c := float64(100 + rng.Intn(4900))
		if sev == "High" {
			c *= 1.5
		}
		cost.AppendNumber(c)

		admissionDate.AppendTime(now.AddDate(0, 0, -rng.Intn(365)))

		state.AppendString(states[rng.Intn(len(states))])
	}

	columns := []*models.Column{
		patientID, age, gender, condition, healthScore,
		treatmentDays, cost, admissionDate, state, severity,
	}

	missing := make(map[string]int, len(columns))
	coerced := make(map[string]int, len(columns))
	for _, col := range columns {
		missing[col.Name] = 0
		coerced[col.Name] = 0
	}

	return &models.Dataset{
		Name:     "sample",
		Source:   "sample",
		Columns:  columns,
		LoadedAt: time.Now().UTC(),
		Report:   &models.LoadReport{Rows: n, Missing: missing, Coerced: coerced},
	}
}

// weighted draws one value according to the given probabilities.
func weighted(rng *rand.Rand, values []string, probs []float64) string {
	r := rng.Float64()
	acc := 0.0
	for i, p := range probs {
		acc += p
		if r < acc {
			return values[i]
		}
	}
	return values[len(values)-1]
}
