package services

import (
	"context"
	"time"

	"github.com/cohortlab/cohort/pkg/analysis"
	"github.com/cohortlab/cohort/pkg/cache"
	"github.com/cohortlab/cohort/pkg/dataset"
	"github.com/cohortlab/cohort/pkg/errors"
	"github.com/cohortlab/cohort/pkg/export"
	"github.com/cohortlab/cohort/pkg/loader"
	"github.com/cohortlab/cohort/pkg/models"
	"github.com/cohortlab/cohort/pkg/registry"
	"github.com/cohortlab/cohort/pkg/repositories"
	"github.com/cohortlab/cohort/pkg/sample"
)

// datasetService implements DatasetService.
type datasetService struct {
	loader   *loader.Loader
	registry *registry.Registry
	views    cache.Cache
	store    repositories.DatasetRepository // nil when persistence is disabled
	logger   Logger
	metrics  MetricsCollector
}

// NewDatasetService creates a new dataset service. store may be nil to run
// without persistence.
func NewDatasetService(
	ldr *loader.Loader,
	reg *registry.Registry,
	views cache.Cache,
	store repositories.DatasetRepository,
	logger Logger,
	metrics MetricsCollector,
) DatasetService {
	return &datasetService{
		loader:   ldr,
		registry: reg,
		views:    views,
		store:    store,
		logger:   logger,
		metrics:  metrics,
	}
}

// Load reads or generates a dataset and registers it.
func (s *datasetService) Load(ctx context.Context, req *LoadRequest) (*models.Dataset, error) {
	timer := s.metrics.StartTimer("dataset_load_duration_seconds")
	defer timer.Stop()

	if err := s.validateLoadRequest(req); err != nil {
		s.metrics.IncrementCounter("dataset_load_errors_total", "reason", "validation")
		return nil, err
	}

	kind := req.Kind
	if kind == "" {
		kind = SourceFile
	}

	var (
		ds  *models.Dataset
		err error
	)
	switch kind {
	case SourceSample:
		seed := req.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		ds = sample.Generate(req.SampleSize, seed)
	default:
		ds, err = s.loader.Load(ctx, req.Source, req.Schema)
		if err != nil {
			s.metrics.IncrementCounter("dataset_load_errors_total", "reason", errors.GetCode(err))
			s.logger.Error("Dataset load failed", "source", req.Source, "error", err)
			return nil, err
		}
	}

	if req.Name != "" {
		ds.Name = req.Name
	}

	id := s.registry.Put(ds)

	if s.store != nil {
		if err := s.store.Save(ctx, ds); err != nil {
			// Persistence is best effort; the in-memory copy stays usable.
			s.metrics.IncrementCounter("dataset_persist_errors_total")
			s.logger.Warn("Failed to persist dataset", "id", id, "error", err)
		}
	}

	s.metrics.IncrementCounter("datasets_loaded_total", "kind", kind)
	s.metrics.RecordGauge("datasets_registered", float64(s.registry.Len()))
	s.logger.Info("Dataset registered",
		"id", id,
		"name", ds.Name,
		"rows", ds.NumRows(),
		"columns", ds.NumCols(),
		"missing_cells", sumCounts(ds.Report.Missing),
		"coerced_cells", sumCounts(ds.Report.Coerced))

	return ds, nil
}

// Get returns a registered dataset by ID.
func (s *datasetService) Get(ctx context.Context, id string) (*models.Dataset, error) {
	return s.registry.Get(id)
}

// List returns all registered datasets, newest first.
func (s *datasetService) List(ctx context.Context) []registry.Info {
	return s.registry.List()
}

// Summary computes per-column summaries and dataset-level metrics. Summaries
// are derived from current dataset contents on every call.
func (s *datasetService) Summary(ctx context.Context, id string) (*models.DatasetSummary, error) {
	timer := s.metrics.StartTimer("dataset_summary_duration_seconds")
	defer timer.Stop()

	ds, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return dataset.Summary(ds), nil
}

// CreateView applies a filter to a dataset and registers the result as a new
// dataset. Identical filters served from cache return the same view.
func (s *datasetService) CreateView(ctx context.Context, id string, spec models.FilterSpec) (*models.Dataset, error) {
	timer := s.metrics.StartTimer("dataset_filter_duration_seconds")
	defer timer.Stop()

	ds, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	key := cache.ViewKey(id, spec)
	if s.views != nil {
		if cached, err := s.views.Get(ctx, key); err == nil && cached != nil {
			s.metrics.IncrementCounter("view_cache_hits_total")
			return cached, nil
		}
		s.metrics.IncrementCounter("view_cache_misses_total")
	}

	view, err := dataset.Apply(ds, spec)
	if err != nil {
		s.metrics.IncrementCounter("dataset_filter_errors_total")
		s.logger.Error("Filter failed", "id", id, "error", err)
		return nil, err
	}

	viewID := s.registry.PutView(view, id)
	if s.views != nil {
		if err := s.views.Put(ctx, key, view); err != nil {
			s.logger.Warn("Failed to cache view", "key", key, "error", err)
		}
	}

	s.logger.Info("View created",
		"id", viewID,
		"source_id", id,
		"rows", view.NumRows(),
		"source_rows", ds.NumRows())
	return view, nil
}

// Validate runs data quality checks against a dataset.
func (s *datasetService) Validate(ctx context.Context, id string, rules models.ValidationRules) (*models.ValidationReport, error) {
	ds, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	report, err := dataset.Check(ds, rules)
	if err != nil {
		return nil, err
	}
	if !report.Valid {
		s.metrics.IncrementCounter("dataset_validation_failures_total")
		s.logger.Warn("Dataset failed validation", "id", id, "issues", len(report.Issues))
	}
	return report, nil
}

// Cluster runs k-means over numeric columns of a dataset.
func (s *datasetService) Cluster(ctx context.Context, id string, req analysis.KMeansRequest) (*analysis.KMeansResult, error) {
	timer := s.metrics.StartTimer("dataset_cluster_duration_seconds")
	defer timer.Stop()

	ds, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	result, err := analysis.Cluster(ds, req)
	if err != nil {
		s.metrics.IncrementCounter("dataset_cluster_errors_total")
		return nil, err
	}

	s.logger.Info("Clustering complete",
		"id", id,
		"k", result.K,
		"iterations", result.Iterations,
		"inertia", result.Inertia)
	return result, nil
}

// Export encodes a dataset in the requested format and returns the bytes and
// content type.
func (s *datasetService) Export(ctx context.Context, id, format string) ([]byte, string, error) {
	timer := s.metrics.StartTimer("dataset_export_duration_seconds")
	defer timer.Stop()

	ds, err := s.registry.Get(id)
	if err != nil {
		return nil, "", err
	}

	data, err := export.Encode(ds, format)
	if err != nil {
		s.metrics.IncrementCounter("dataset_export_errors_total", "format", format)
		return nil, "", err
	}

	s.metrics.IncrementCounter("datasets_exported_total", "format", format)
	return data, export.ContentType(format), nil
}

// Delete removes a dataset, its derived views, its cached views, and its
// persisted copy.
func (s *datasetService) Delete(ctx context.Context, id string) error {
	if err := s.registry.Delete(id); err != nil {
		return err
	}

	if s.views != nil {
		if err := s.views.InvalidatePrefix(ctx, id+"|"); err != nil {
			s.logger.Warn("Failed to invalidate cached views", "id", id, "error", err)
		}
	}
	if s.store != nil {
		if err := s.store.Delete(ctx, id); err != nil {
			s.metrics.IncrementCounter("dataset_persist_errors_total")
			s.logger.Warn("Failed to delete persisted dataset", "id", id, "error", err)
		}
	}

	s.metrics.RecordGauge("datasets_registered", float64(s.registry.Len()))
	s.logger.Info("Dataset deleted", "id", id)
	return nil
}

// CacheStats returns view cache counters.
func (s *datasetService) CacheStats() cache.Stats {
	if s.views == nil {
		return cache.Stats{}
	}
	return s.views.Stats()
}

// sumCounts totals a per-column count map.
func sumCounts(counts map[string]int) int {
	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}

// validateLoadRequest validates a load request.
func (s *datasetService) validateLoadRequest(req *LoadRequest) error {
	if req == nil {
		return errors.New(errors.CodeInvalidRequest, "load request cannot be nil")
	}

	switch req.Kind {
	case SourceSample:
		if req.SampleSize <= 0 {
			return errors.New(errors.CodeInvalidRequest, "sample_size must be positive")
		}
	case SourceFile, SourceURL, "":
		if req.Source == "" {
			return errors.New(errors.CodeInvalidRequest, "source cannot be empty")
		}
	default:
		return errors.New(errors.CodeInvalidRequest, "unknown source kind").
			WithDetail("kind", req.Kind)
	}
	return nil
}
