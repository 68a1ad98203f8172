// Package loader reads delimited tabular sources into canonical datasets.
package loader

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cohortlab/cohort/pkg/errors"
	"github.com/cohortlab/cohort/pkg/models"
)

// Default date layouts tried in order when parsing date columns.
var defaultDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// Default tokens treated as missing. Matched case-insensitively after
// trimming; the empty string covers blank cells.
var defaultMissingMarkers = []string{"", "na", "n/a", "null", "nan"}

// Schema declares the expected shape of a source: column types, the columns
// that must be present, and parsing options.
type Schema struct {
	// Columns maps column names to their declared types. Header columns not
	// listed here are loaded as text.
	Columns map[string]models.ColumnType `json:"columns"`

	// Required lists columns whose absence aborts the load.
	Required []string `json:"required,omitempty"`

	// DateLayouts overrides the layouts tried for date columns.
	DateLayouts []string `json:"date_layouts,omitempty"`

	// MissingMarkers overrides the tokens treated as missing values.
	MissingMarkers []string `json:"missing_markers,omitempty"`

	// Delimiter is the field separator; defaults to a comma.
	Delimiter string `json:"delimiter,omitempty"`
}

// Validate checks that all declared types are known.
func (s Schema) Validate() error {
	for name, typ := range s.Columns {
		if !typ.Known() {
			return errors.New(errors.CodeInvalidRequest,
				fmt.Sprintf("unknown type %q for column %q", typ, name))
		}
	}
	if len(s.Delimiter) > 1 {
		return errors.New(errors.CodeInvalidRequest, "delimiter must be a single character")
	}
	return nil
}

func (s Schema) dateLayouts() []string {
	if len(s.DateLayouts) > 0 {
		return s.DateLayouts
	}
	return defaultDateLayouts
}

func (s Schema) missingMarkers() map[string]struct{} {
	markers := s.MissingMarkers
	if len(markers) == 0 {
		markers = defaultMissingMarkers
	}
	set := make(map[string]struct{}, len(markers))
	for _, m := range markers {
		set[strings.ToLower(m)] = struct{}{}
	}
	return set
}

func (s Schema) delimiter() rune {
	if s.Delimiter == "" {
		return ','
	}
	return rune(s.Delimiter[0])
}

// Config holds loader settings.
type Config struct {
	// HTTPTimeout bounds URL fetches.
	HTTPTimeout time.Duration

	// MaxBodyBytes caps the bytes read from a URL source; zero means no cap.
	MaxBodyBytes int64
}

// Loader reads tabular data from files and URLs into datasets. Every load is
// an independent, synchronous call producing a new immutable dataset; the
// only side effect is reading the source.
type Loader struct {
	client *http.Client
	maxLen int64
	logger zerolog.Logger
}

// New creates a loader.
func New(cfg Config, logger zerolog.Logger) *Loader {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Loader{
		client: &http.Client{Timeout: timeout},
		maxLen: cfg.MaxBodyBytes,
		logger: logger,
	}
}

// Load reads the source (a file path or an http(s) URL) under the given
// schema and returns a normalized dataset. Missing required columns produce
// a schema error naming them; unparsable cells in typed columns are coerced
// to missing and counted, never failing the load.
func (l *Loader) Load(ctx context.Context, source string, schema Schema) (*models.Dataset, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	rc, err := l.open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	ds, err := l.parse(rc, source, schema)
	if err != nil {
		return nil, err
	}
	ds.Report.Duration = time.Since(start)

	l.logger.Info().
		Str("source", source).
		Int("rows", ds.NumRows()).
		Int("columns", ds.NumCols()).
		Dur("duration", ds.Report.Duration).
		Msg("Dataset loaded")

	return ds, nil
}

// open returns a reader over the source contents.
func (l *Loader) open(ctx context.Context, source string) (io.ReadCloser, error) {
	if u, err := url.Parse(source); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeSourceUnreadable, "invalid source URL")
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeSourceUnreadable, "failed to fetch source")
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, errors.New(errors.CodeSourceUnreadable,
				fmt.Sprintf("unexpected status %d fetching source", resp.StatusCode)).
				WithDetail("source", source)
		}
		if l.maxLen > 0 {
			return &cappedReadCloser{rc: resp.Body, remaining: l.maxLen, max: l.maxLen}, nil
		}
		return resp.Body, nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSourceUnreadable, "failed to open source file")
	}
	return f, nil
}

// cappedReadCloser fails the read once the body grows past the cap. Silent
// truncation would hand the caller a partial dataset that looks complete.
type cappedReadCloser struct {
	rc        io.ReadCloser
	remaining int64
	max       int64
}

func (c *cappedReadCloser) Read(p []byte) (int, error) {
	n, err := c.rc.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, errors.New(errors.CodeSourceUnreadable,
			fmt.Sprintf("source body exceeds %d byte limit", c.max))
	}
	return n, err
}

func (c *cappedReadCloser) Close() error {
	return c.rc.Close()
}

// parse reads delimited rows into typed columns.
func (l *Loader) parse(r io.Reader, source string, schema Schema) (*models.Dataset, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.Comma = schema.delimiter()
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.ErrEmptySource.WithDetail("source", source)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSourceUnreadable, "failed to read header row")
	}

	seen := make(map[string]struct{}, len(header))
	columns := make([]*models.Column, len(header))
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, errors.New(errors.CodeSchemaError,
				fmt.Sprintf("blank column name at position %d", i+1))
		}
		if _, dup := seen[name]; dup {
			return nil, errors.ErrDuplicateColumn.WithDetail("column", name)
		}
		seen[name] = struct{}{}

		typ, declared := schema.Columns[name]
		if !declared {
			typ = models.TypeText
		}
		columns[i] = models.NewColumn(name, typ)
	}

	if missing := missingRequired(schema.Required, seen); len(missing) > 0 {
		return nil, errors.New(errors.CodeSchemaError,
			fmt.Sprintf("required columns missing: %s", strings.Join(missing, ", "))).
			WithDetail("missing_columns", missing)
	}

	markers := schema.missingMarkers()
	layouts := schema.dateLayouts()

	rows := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeSourceUnreadable,
				"malformed row %d", rows+2)
		}
		for i, col := range columns {
			l.appendCell(col, rec[i], markers, layouts)
		}
		rows++
	}

	ds, err := models.NewDataset(datasetName(source), source, columns)
	if err != nil {
		return nil, err
	}

	missing := make(map[string]int, len(columns))
	coerced := make(map[string]int, len(columns))
	for _, col := range columns {
		missing[col.Name] = col.Missing()
		coerced[col.Name] = col.Coerced
		if col.Coerced > 0 {
			l.logger.Warn().
				Str("source", source).
				Str("column", col.Name).
				Str("type", string(col.Type)).
				Int("coerced", col.Coerced).
				Msg("Values coerced to missing")
		}
	}
	ds.Report = &models.LoadReport{
		Rows:    rows,
		Missing: missing,
		Coerced: coerced,
	}
	return ds, nil
}

// appendCell parses one cell into the column, coercing unparsable values in
// typed columns to missing.
func (l *Loader) appendCell(col *models.Column, raw string, markers map[string]struct{}, layouts []string) {
	value := strings.TrimSpace(raw)
	if _, miss := markers[strings.ToLower(value)]; miss {
		col.AppendMissing()
		return
	}

	switch col.Type {
	case models.TypeNumeric:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			col.AppendMissing()
			col.Coerced++
			return
		}
		col.AppendNumber(v)
	case models.TypeDate:
		for _, layout := range layouts {
			if t, err := time.Parse(layout, value); err == nil {
				col.AppendTime(t)
				return
			}
		}
		col.AppendMissing()
		col.Coerced++
	default:
		col.AppendString(value)
	}
}

func missingRequired(required []string, present map[string]struct{}) []string {
	var missing []string
	for _, name := range required {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// datasetName derives a human-readable name from the source location.
func datasetName(source string) string {
	s := strings.TrimRight(source, "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return source
	}
	return s
}
