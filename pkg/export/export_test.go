package export

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortlab/cohort/pkg/errors"
	"github.com/cohortlab/cohort/pkg/models"
)

func exportDataset(t *testing.T) *models.Dataset {
	t.Helper()

	age := models.NewColumn("age", models.TypeNumeric)
	age.AppendNumber(34)
	age.AppendMissing()

	state := models.NewColumn("state", models.TypeCategorical)
	state.AppendString("CA")
	state.AppendString("TX")

	admitted := models.NewColumn("admitted", models.TypeDate)
	admitted.AppendTime(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	admitted.AppendMissing()

	ds, err := models.NewDataset("d", "test", []*models.Column{age, state, admitted})
	require.NoError(t, err)
	return ds
}

func TestCSV(t *testing.T) {
	data, err := CSV(exportDataset(t))
	require.NoError(t, err)

	expected := "age,state,admitted\n" +
		"34,CA,2024-03-01T12:00:00Z\n" +
		",TX,\n"
	assert.Equal(t, expected, string(data))
}

func TestJSON(t *testing.T) {
	data, err := JSON(exportDataset(t))
	require.NoError(t, err)

	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)

	assert.Equal(t, 34.0, records[0]["age"])
	assert.Nil(t, records[1]["age"], "missing cells are null")
	assert.Equal(t, "TX", records[1]["state"])
}

func TestArrowSchema(t *testing.T) {
	schema := ArrowSchema(exportDataset(t))

	require.Equal(t, 3, schema.NumFields())
	assert.Equal(t, arrow.PrimitiveTypes.Float64, schema.Field(0).Type)
	assert.Equal(t, arrow.BinaryTypes.String, schema.Field(1).Type)
	assert.Equal(t, arrow.TIMESTAMP, schema.Field(2).Type.ID())
	for i := 0; i < schema.NumFields(); i++ {
		assert.True(t, schema.Field(i).Nullable)
	}
}

func TestArrowIPC_RoundTrip(t *testing.T) {
	ds := exportDataset(t)
	data, err := ArrowIPC(ds)
	require.NoError(t, err)

	reader, err := ipc.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer reader.Release()

	require.True(t, reader.Next())
	record := reader.Record()
	assert.Equal(t, int64(2), record.NumRows())
	assert.Equal(t, int64(3), record.NumCols())
	assert.Equal(t, 1, record.Column(0).NullN(), "missing age survives as null")
	assert.False(t, reader.Next())
}

func TestEncode(t *testing.T) {
	ds := exportDataset(t)

	for _, format := range []string{FormatCSV, FormatJSON, FormatArrow} {
		data, err := Encode(ds, format)
		require.NoError(t, err, format)
		assert.NotEmpty(t, data, format)
	}

	_, err := Encode(ds, "parquet")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err))
	assert.Equal(t, "text/csv", ContentType(FormatCSV))
}
