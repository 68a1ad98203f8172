// Package repositories defines interfaces for dataset persistence.
package repositories

import (
	"context"

	"github.com/cohortlab/cohort/pkg/models"
)

// DatasetRepository persists datasets to durable storage. Implementations
// must tolerate datasets with missing cells; a missing cell round-trips as
// SQL NULL.
type DatasetRepository interface {
	// Save writes a dataset, replacing any previous copy with the same ID.
	Save(ctx context.Context, ds *models.Dataset) error
	// Load reads a dataset back by ID.
	Load(ctx context.Context, id string) (*models.Dataset, error)
	// List returns the IDs of all persisted datasets.
	List(ctx context.Context) ([]string, error)
	// Delete removes a persisted dataset. Deleting an absent ID is not an
	// error.
	Delete(ctx context.Context, id string) error
	// Close releases the underlying storage handle.
	Close() error
}
