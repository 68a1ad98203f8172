// Package api exposes the dataset service over an HTTP JSON API.
package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cohortlab/cohort/pkg/analysis"
	"github.com/cohortlab/cohort/pkg/errors"
	"github.com/cohortlab/cohort/pkg/models"
	"github.com/cohortlab/cohort/pkg/services"
)

// maxRequestBytes caps JSON request bodies.
const maxRequestBytes = 1 << 20

// Handler serves dataset operations over HTTP.
type Handler struct {
	service services.DatasetService
	logger  zerolog.Logger
}

// NewHandler creates an HTTP handler over the dataset service.
func NewHandler(svc services.DatasetService, logger zerolog.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes mounts all dataset routes on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/datasets", h.LoadDataset)
		r.Get("/datasets", h.ListDatasets)
		r.Get("/datasets/{id}", h.GetDataset)
		r.Delete("/datasets/{id}", h.DeleteDataset)
		r.Get("/datasets/{id}/summary", h.GetSummary)
		r.Post("/datasets/{id}/views", h.CreateView)
		r.Post("/datasets/{id}/validate", h.ValidateDataset)
		r.Post("/datasets/{id}/cluster", h.ClusterDataset)
		r.Get("/datasets/{id}/export", h.ExportDataset)
		r.Get("/cache/stats", h.CacheStats)
	})
}

// columnInfo describes one column in API responses.
type columnInfo struct {
	Name    string            `json:"name"`
	Type    models.ColumnType `json:"type"`
	Missing int               `json:"missing"`
	Coerced int               `json:"coerced"`
}

// datasetResponse is the API representation of a dataset.
type datasetResponse struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Source   string             `json:"source"`
	Rows     int                `json:"rows"`
	Columns  []columnInfo       `json:"columns"`
	LoadedAt string             `json:"loaded_at"`
	Report   *models.LoadReport `json:"report,omitempty"`
}

func toDatasetResponse(ds *models.Dataset) datasetResponse {
	columns := make([]columnInfo, len(ds.Columns))
	for i, col := range ds.Columns {
		columns[i] = columnInfo{
			Name:    col.Name,
			Type:    col.Type,
			Missing: col.Missing(),
			Coerced: col.Coerced,
		}
	}
	return datasetResponse{
		ID:       ds.ID,
		Name:     ds.Name,
		Source:   ds.Source,
		Rows:     ds.NumRows(),
		Columns:  columns,
		LoadedAt: ds.LoadedAt.Format(time.RFC3339),
		Report:   ds.Report,
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LoadDataset loads a dataset from a file, URL, or the sample generator.
func (h *Handler) LoadDataset(w http.ResponseWriter, r *http.Request) {
	var req services.LoadRequest
	if !h.decode(w, r, &req) {
		return
	}

	ds, err := h.service.Load(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toDatasetResponse(ds))
}

// ListDatasets lists registered datasets, newest first.
func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.List(r.Context()))
}

// GetDataset returns dataset metadata and a row preview. The limit query
// parameter bounds the preview; zero returns all rows.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, errors.New(errors.CodeInvalidRequest, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	h.writeJSON(w, http.StatusOK, struct {
		datasetResponse
		Records []map[string]interface{} `json:"records"`
	}{toDatasetResponse(ds), ds.Records(limit)})
}

// DeleteDataset removes a dataset and its derived views.
func (h *Handler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSummary returns per-column summaries and dataset metrics.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// CreateView applies a filter to a dataset and returns the resulting view.
func (h *Handler) CreateView(w http.ResponseWriter, r *http.Request) {
	var spec models.FilterSpec
	if !h.decode(w, r, &spec) {
		return
	}

	view, err := h.service.CreateView(r.Context(), chi.URLParam(r, "id"), spec)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toDatasetResponse(view))
}

// ValidateDataset runs data quality checks against a dataset.
func (h *Handler) ValidateDataset(w http.ResponseWriter, r *http.Request) {
	var rules models.ValidationRules
	if !h.decode(w, r, &rules) {
		return
	}

	report, err := h.service.Validate(r.Context(), chi.URLParam(r, "id"), rules)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// ClusterDataset runs k-means over numeric columns of a dataset.
func (h *Handler) ClusterDataset(w http.ResponseWriter, r *http.Request) {
	var req analysis.KMeansRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Cluster(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ExportDataset streams a dataset in the requested format. The format query
// parameter defaults to csv.
func (h *Handler) ExportDataset(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	data, contentType, err := h.service.Export(r.Context(), chi.URLParam(r, "id"), format)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write export body")
	}
}

// CacheStats returns view cache counters.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.CacheStats())
}

// decode reads a JSON request body; on failure it writes the error response
// and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		h.writeError(w, errors.Wrap(err, errors.CodeInvalidRequest, "invalid JSON body"))
		return false
	}
	return true
}

// errorResponse is the wire form of an error.
type errorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// writeError maps a service error to an HTTP status and JSON body.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	resp := errorResponse{Code: code, Message: errors.GetMessage(err)}
	var de *errors.DatasetError
	if stderrors.As(err, &de) {
		resp.Details = de.Details
	}
	h.writeJSON(w, httpStatus(code), resp)
}

// httpStatus maps error codes to HTTP statuses.
func httpStatus(code string) int {
	switch code {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidRequest:
		return http.StatusBadRequest
	case errors.CodeSchemaError, errors.CodeSourceUnreadable:
		return http.StatusUnprocessableEntity
	case errors.CodeAlreadyExists:
		return http.StatusConflict
	case errors.CodeUnauthorized:
		return http.StatusUnauthorized
	case errors.CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case errors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to encode response")
	}
}
