// Package export encodes datasets for consumption by presentation layers.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cohortlab/cohort/pkg/errors"
	"github.com/cohortlab/cohort/pkg/models"
)

// Supported export formats.
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatArrow = "arrow"
)

// ContentType returns the MIME type for a format.
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	case FormatArrow:
		return "application/vnd.apache.arrow.stream"
	default:
		return "application/octet-stream"
	}
}

// Encode renders the dataset in the requested format.
func Encode(ds *models.Dataset, format string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return CSV(ds)
	case FormatJSON:
		return JSON(ds)
	case FormatArrow:
		return ArrowIPC(ds)
	default:
		return nil, errors.ErrInvalidFormat.WithDetail("format", format)
	}
}

// CSV renders the dataset as delimited text. Missing cells become empty
// fields, the designated missing marker on the way back in.
func CSV(ds *models.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(ds.ColumnNames()); err != nil {
		return nil, errors.Wrap(err, errors.CodeExportFailed, "failed to write header")
	}

	rows := ds.NumRows()
	record := make([]string, len(ds.Columns))
	for i := 0; i < rows; i++ {
		for j, col := range ds.Columns {
			record[j] = cellString(col, i)
		}
		if err := w.Write(record); err != nil {
			return nil, errors.Wrap(err, errors.CodeExportFailed, "failed to write row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, errors.CodeExportFailed, "failed to flush output")
	}
	return buf.Bytes(), nil
}

// JSON renders the dataset as an array of records; missing cells are null.
func JSON(ds *models.Dataset) ([]byte, error) {
	data, err := json.Marshal(ds.Records(0))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeExportFailed, "failed to marshal records")
	}
	return data, nil
}

func cellString(col *models.Column, i int) string {
	if col.IsMissing(i) {
		return ""
	}
	switch col.Type {
	case models.TypeNumeric:
		return strconv.FormatFloat(col.Numbers[i], 'g', -1, 64)
	case models.TypeDate:
		return col.Times[i].Format(time.RFC3339)
	default:
		return col.Strings[i]
	}
}
