// Package services contains business logic implementations.
package services

import (
	"context"
	"time"

	"github.com/cohortlab/cohort/pkg/analysis"
	"github.com/cohortlab/cohort/pkg/cache"
	"github.com/cohortlab/cohort/pkg/loader"
	"github.com/cohortlab/cohort/pkg/models"
	"github.com/cohortlab/cohort/pkg/registry"
)

// Source kinds accepted by LoadRequest.
const (
	SourceFile   = "file"
	SourceURL    = "url"
	SourceSample = "sample"
)

// LoadRequest describes a dataset to load.
type LoadRequest struct {
	// Name overrides the name derived from the source. Optional.
	Name string `json:"name,omitempty"`
	// Kind is one of file, url, or sample. Empty defaults to file.
	Kind string `json:"kind,omitempty"`
	// Source is the file path or URL. Ignored for sample datasets.
	Source string `json:"source,omitempty"`
	// SampleSize is the number of rows to generate for sample datasets.
	SampleSize int `json:"sample_size,omitempty"`
	// Seed makes sample generation reproducible. Zero picks a time seed.
	Seed int64 `json:"seed,omitempty"`
	// Schema declares column types and required columns for file and URL
	// sources.
	Schema loader.Schema `json:"schema,omitempty"`
}

// DatasetService defines dataset lifecycle operations.
type DatasetService interface {
	Load(ctx context.Context, req *LoadRequest) (*models.Dataset, error)
	Get(ctx context.Context, id string) (*models.Dataset, error)
	List(ctx context.Context) []registry.Info
	Summary(ctx context.Context, id string) (*models.DatasetSummary, error)
	CreateView(ctx context.Context, id string, spec models.FilterSpec) (*models.Dataset, error)
	Validate(ctx context.Context, id string, rules models.ValidationRules) (*models.ValidationReport, error)
	Cluster(ctx context.Context, id string, req analysis.KMeansRequest) (*analysis.KMeansResult, error)
	Export(ctx context.Context, id, format string) ([]byte, string, error)
	Delete(ctx context.Context, id string) error
	CacheStats() cache.Stats
}

// Logger defines logging interface.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// MetricsCollector defines metrics collection interface.
type MetricsCollector interface {
	IncrementCounter(name string, labels ...string)
	RecordHistogram(name string, value float64, labels ...string)
	RecordGauge(name string, value float64, labels ...string)
	StartTimer(name string) Timer
}

// Timer represents a timing measurement.
type Timer interface {
	Stop() time.Duration
}
