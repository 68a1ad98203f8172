// Package registry tracks loaded datasets and their filtered views.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cohortlab/cohort/pkg/errors"
	"github.com/cohortlab/cohort/pkg/models"
)

// Info is a lightweight registry listing entry.
type Info struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Source   string    `json:"source"`
	ParentID string    `json:"parent_id,omitempty"`
	Rows     int       `json:"rows"`
	Columns  int       `json:"columns"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Registry is a thread-safe in-memory store of datasets keyed by ID.
// Datasets themselves are immutable; the registry is the only mutable
// structure and is mutex-guarded.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*models.Dataset
	parents map[string]string // view ID -> source dataset ID
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*models.Dataset),
		parents: make(map[string]string),
	}
}

// Put registers a dataset, assigning an ID if it has none, and returns the ID.
func (r *Registry) Put(ds *models.Dataset) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ds.ID == "" {
		ds.ID = uuid.NewString()
	}
	r.entries[ds.ID] = ds
	return ds.ID
}

// PutView registers a filtered view, recording its source dataset.
func (r *Registry) PutView(view *models.Dataset, parentID string) string {
	id := r.Put(view)
	r.mu.Lock()
	r.parents[id] = parentID
	r.mu.Unlock()
	return id
}

// Get returns the dataset with the given ID.
func (r *Registry) Get(id string) (*models.Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ds, ok := r.entries[id]
	if !ok {
		return nil, errors.ErrDatasetNotFound.WithDetail("id", id)
	}
	return ds, nil
}

// Delete removes a dataset and any views derived from it.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return errors.ErrDatasetNotFound.WithDetail("id", id)
	}
	delete(r.entries, id)
	delete(r.parents, id)

	for viewID, parentID := range r.parents {
		if parentID == id {
			delete(r.entries, viewID)
			delete(r.parents, viewID)
		}
	}
	return nil
}

// List returns registry entries sorted by load time, newest first.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.entries))
	for id, ds := range r.entries {
		out = append(out, Info{
			ID:       id,
			Name:     ds.Name,
			Source:   ds.Source,
			ParentID: r.parents[id],
			Rows:     ds.NumRows(),
			Columns:  ds.NumCols(),
			LoadedAt: ds.LoadedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LoadedAt.Equal(out[j].LoadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].LoadedAt.After(out[j].LoadedAt)
	})
	return out
}

// Len returns the number of registered datasets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
