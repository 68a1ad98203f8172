package export

import (
	"bytes"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/cohortlab/cohort/pkg/errors"
	"github.com/cohortlab/cohort/pkg/models"
)

var timestampType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

// ArrowSchema maps the dataset's columns to an Arrow schema. Numeric columns
// become float64, dates become microsecond timestamps, everything else
// becomes UTF-8 strings. All fields are nullable so missing cells survive
// the trip.
func ArrowSchema(ds *models.Dataset) *arrow.Schema {
	fields := make([]arrow.Field, len(ds.Columns))
	for i, col := range ds.Columns {
		var dt arrow.DataType
		switch col.Type {
		case models.TypeNumeric:
			dt = arrow.PrimitiveTypes.Float64
		case models.TypeDate:
			dt = timestampType
		default:
			dt = arrow.BinaryTypes.String
		}
		fields[i] = arrow.Field{
			Name:     col.Name,
			Type:     dt,
			Nullable: true,
			Metadata: arrow.NewMetadata([]string{"cohort.type"}, []string{string(col.Type)}),
		}
	}
	return arrow.NewSchema(fields, nil)
}

// ArrowRecord builds an Arrow record batch from the dataset. The caller owns
// the returned record and must Release it.
func ArrowRecord(ds *models.Dataset, mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	schema := ArrowSchema(ds)
	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	rows := ds.NumRows()
	for j, col := range ds.Columns {
		switch col.Type {
		case models.TypeNumeric:
			b := builder.Field(j).(*array.Float64Builder)
			for i := 0; i < rows; i++ {
				if v, ok := col.NumberAt(i); ok {
					b.Append(v)
				} else {
					b.AppendNull()
				}
			}
		case models.TypeDate:
			b := builder.Field(j).(*array.TimestampBuilder)
			for i := 0; i < rows; i++ {
				if t, ok := col.TimeAt(i); ok {
					b.Append(arrow.Timestamp(t.UnixMicro()))
				} else {
					b.AppendNull()
				}
			}
		default:
			b := builder.Field(j).(*array.StringBuilder)
			for i := 0; i < rows; i++ {
				if v, ok := col.StringAt(i); ok {
					b.Append(v)
				} else {
					b.AppendNull()
				}
			}
		}
	}

	return builder.NewRecord(), nil
}

// ArrowIPC renders the dataset as an Arrow IPC stream.
func ArrowIPC(ds *models.Dataset) ([]byte, error) {
	mem := memory.NewGoAllocator()
	record, err := ArrowRecord(ds, mem)
	if err != nil {
		return nil, err
	}
	defer record.Release()

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(record.Schema()), ipc.WithAllocator(mem))
	if err := writer.Write(record); err != nil {
		writer.Close()
		return nil, errors.Wrap(err, errors.CodeExportFailed, "failed to write arrow record")
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, errors.CodeExportFailed, "failed to close arrow stream")
	}
	return buf.Bytes(), nil
}
