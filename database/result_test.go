package database

import (
	"bytes"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	return &Result{
		Columns: []string{"id", "region", "closed_at"},
		Rows: [][]any{
			{int64(1), "emea", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
			{int64(2), "apac, north", nil},
		},
	}
}

func TestResultColumn(t *testing.T) {
	r := sampleResult()

	regions, ok := r.Column("region")
	require.True(t, ok)
	assert.Equal(t, []any{"emea", "apac, north"}, regions)

	_, ok = r.Column("missing")
	assert.False(t, ok)
}

func TestResultRecords(t *testing.T) {
	records := sampleResult().Records()
	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[1]["id"])
	assert.Nil(t, records[1]["closed_at"])
}

func TestResultLenNil(t *testing.T) {
	var r *Result
	assert.Zero(t, r.Len())
}

func TestResultJSON(t *testing.T) {
	data, err := json.Marshal(&Result{RowsAffected: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":[],"rows":[],"rowsAffected":3}`, string(data))

	data, err = json.Marshal(sampleResult())
	require.NoError(t, err)

	var decoded struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []string{"id", "region", "closed_at"}, decoded.Columns)
	assert.Equal(t, "apac, north", decoded.Rows[1][1])
}

func TestResultWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleResult().WriteCSV(&buf))

	want := "id,region,closed_at\n" +
		"1,emea,2024-03-01T12:00:00Z\n" +
		"2,\"apac, north\",\n"
	assert.Equal(t, want, buf.String())
}
