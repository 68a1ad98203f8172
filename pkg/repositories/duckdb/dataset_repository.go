// Package duckdb persists datasets in an embedded DuckDB database.
package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cohortlab/cohort/pkg/errors"
	"github.com/cohortlab/cohort/pkg/models"
	"github.com/cohortlab/cohort/pkg/repositories"
)

// insertBatchRows bounds the number of rows per INSERT statement.
const insertBatchRows = 500

const metaTableDDL = `
CREATE TABLE IF NOT EXISTS datasets (
	id        VARCHAR PRIMARY KEY,
	name      VARCHAR NOT NULL,
	source    VARCHAR NOT NULL,
	loaded_at TIMESTAMP NOT NULL,
	columns   VARCHAR NOT NULL
)`

// columnSpec is the persisted description of one column. Stored as JSON in
// the metadata table so a dataset can be rebuilt with its declared types.
type columnSpec struct {
	Name string            `json:"name"`
	Type models.ColumnType `json:"type"`
}

// datasetRepository implements repositories.DatasetRepository for DuckDB.
// Each dataset gets its own data table plus a row in the datasets metadata
// table.
type datasetRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewDatasetRepository creates a DuckDB-backed dataset repository and ensures
// the metadata table exists.
func NewDatasetRepository(ctx context.Context, db *sql.DB, logger zerolog.Logger) (repositories.DatasetRepository, error) {
	if _, err := db.ExecContext(ctx, metaTableDDL); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageFailed, "failed to create metadata table")
	}
	return &datasetRepository{db: db, logger: logger}, nil
}

// Save writes a dataset, replacing any previous copy with the same ID.
func (r *datasetRepository) Save(ctx context.Context, ds *models.Dataset) error {
	if ds.ID == "" {
		return errors.New(errors.CodeInvalidRequest, "dataset has no ID")
	}

	specs := make([]columnSpec, len(ds.Columns))
	for i, col := range ds.Columns {
		specs[i] = columnSpec{Name: col.Name, Type: col.Type}
	}
	specJSON, err := json.Marshal(specs)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to encode column specs")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorageFailed, "failed to begin transaction")
	}
	defer tx.Rollback()

	table := tableName(ds.ID)
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return errors.Wrap(err, errors.CodeStorageFailed, "failed to drop stale data table")
	}
	if _, err := tx.ExecContext(ctx, createTableDDL(table, ds.Columns)); err != nil {
		return errors.Wrap(err, errors.CodeStorageFailed, "failed to create data table")
	}

	if err := r.insertRows(ctx, tx, table, ds); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM datasets WHERE id = ?", ds.ID); err != nil {
		return errors.Wrap(err, errors.CodeStorageFailed, "failed to replace metadata row")
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO datasets (id, name, source, loaded_at, columns) VALUES (?, ?, ?, ?, ?)",
		ds.ID, ds.Name, ds.Source, ds.LoadedAt.UTC(), string(specJSON),
	); err != nil {
		return errors.Wrap(err, errors.CodeStorageFailed, "failed to insert metadata row")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeStorageFailed, "failed to commit dataset")
	}

	r.logger.Debug().
		Str("id", ds.ID).
		Int("rows", ds.NumRows()).
		Msg("Dataset persisted")
	return nil
}

// insertRows writes dataset rows in batches, missing cells as NULL.
func (r *datasetRepository) insertRows(ctx context.Context, tx *sql.Tx, table string, ds *models.Dataset) error {
	rows := ds.NumRows()
	cols := len(ds.Columns)
	if rows == 0 || cols == 0 {
		return nil
	}

	for start := 0; start < rows; start += insertBatchRows {
		end := start + insertBatchRows
		if end > rows {
			end = rows
		}

		stmt := insertStmt(table, ds.Columns, end-start)
		args := make([]interface{}, 0, (end-start)*cols)
		for row := start; row < end; row++ {
			for _, col := range ds.Columns {
				args = append(args, cellValue(col, row))
			}
		}

		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return errors.Wrapf(err, errors.CodeStorageFailed,
				"failed to insert rows %d..%d", start, end)
		}
	}
	return nil
}

// Load reads a dataset back by ID.
func (r *datasetRepository) Load(ctx context.Context, id string) (*models.Dataset, error) {
	var (
		name     string
		source   string
		loadedAt time.Time
		specJSON string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT name, source, loaded_at, columns FROM datasets WHERE id = ?", id,
	).Scan(&name, &source, &loadedAt, &specJSON)
	if err == sql.ErrNoRows {
		return nil, errors.ErrDatasetNotFound.WithDetail("id", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageFailed, "failed to read metadata row")
	}

	var specs []columnSpec
	if err := json.Unmarshal([]byte(specJSON), &specs); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageFailed, "corrupt column specs")
	}

	columns := make([]*models.Column, len(specs))
	names := make([]string, len(specs))
	for i, spec := range specs {
		columns[i] = models.NewColumn(spec.Name, spec.Type)
		names[i] = quoteIdent(spec.Name)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ", "), quoteIdent(tableName(id)))
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageFailed, "failed to read data table")
	}
	defer rows.Close()

	dest := make([]interface{}, len(specs))
	for rows.Next() {
		holders := make([]interface{}, len(specs))
		for i, spec := range specs {
			switch spec.Type {
			case models.TypeNumeric:
				holders[i] = &sql.NullFloat64{}
			case models.TypeDate:
				holders[i] = &sql.NullTime{}
			default:
				holders[i] = &sql.NullString{}
			}
			dest[i] = holders[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, errors.CodeStorageFailed, "failed to scan data row")
		}
		for i, col := range columns {
			appendScanned(col, holders[i])
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageFailed, "error iterating data rows")
	}

	ds, err := models.NewDataset(name, source, columns)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageFailed, "persisted dataset is inconsistent")
	}
	ds.ID = id
	ds.LoadedAt = loadedAt.UTC()
	return ds, nil
}

// List returns the IDs of all persisted datasets.
func (r *datasetRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM datasets ORDER BY loaded_at DESC, id")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageFailed, "failed to list datasets")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, errors.CodeStorageFailed, "failed to scan id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageFailed, "error iterating ids")
	}
	return ids, nil
}

// Delete removes a persisted dataset. Deleting an absent ID is not an error.
func (r *datasetRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorageFailed, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM datasets WHERE id = ?", id); err != nil {
		return errors.Wrap(err, errors.CodeStorageFailed, "failed to delete metadata row")
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(tableName(id))); err != nil {
		return errors.Wrap(err, errors.CodeStorageFailed, "failed to drop data table")
	}
	return tx.Commit()
}

// Close releases the database handle.
func (r *datasetRepository) Close() error {
	return r.db.Close()
}

// tableName derives the data table name for a dataset ID. UUID hyphens are
// folded to underscores; the name is always quoted anyway.
func tableName(id string) string {
	return "ds_" + strings.ReplaceAll(id, "-", "_")
}

// quoteIdent quotes a SQL identifier, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// sqlType maps a column type to its DuckDB storage type.
func sqlType(typ models.ColumnType) string {
	switch typ {
	case models.TypeNumeric:
		return "DOUBLE"
	case models.TypeDate:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

// createTableDDL builds the CREATE TABLE statement for a dataset.
func createTableDDL(table string, columns []*models.Column) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = quoteIdent(col.Name) + " " + sqlType(col.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
}

// insertStmt builds a multi-row INSERT statement with placeholders.
func insertStmt(table string, columns []*models.Column, rows int) string {
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = quoteIdent(col.Name)
	}

	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	values := make([]string, rows)
	for i := range values {
		values[i] = placeholders
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		quoteIdent(table), strings.Join(names, ", "), strings.Join(values, ", "))
}

// cellValue returns the SQL value for one cell, nil for missing.
func cellValue(col *models.Column, row int) interface{} {
	if col.IsMissing(row) {
		return nil
	}
	switch col.Type {
	case models.TypeNumeric:
		return col.Numbers[row]
	case models.TypeDate:
		return col.Times[row].UTC()
	default:
		return col.Strings[row]
	}
}

// appendScanned appends one scanned SQL value to a column.
func appendScanned(col *models.Column, holder interface{}) {
	switch v := holder.(type) {
	case *sql.NullFloat64:
		if v.Valid {
			col.AppendNumber(v.Float64)
		} else {
			col.AppendMissing()
		}
	case *sql.NullTime:
		if v.Valid {
			col.AppendTime(v.Time.UTC())
		} else {
			col.AppendMissing()
		}
	case *sql.NullString:
		if v.Valid {
			col.AppendString(v.String)
		} else {
			col.AppendMissing()
		}
	}
}
