package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meTasking/sync/pkg/interval"
	"github.com/meTasking/sync/pkg/provider"
)

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("yaml"))
	assert.Equal(t, FormatTable, DetectFormat("table"))
	// With no request the choice depends on whether stdout is a
	// terminal; under go test it is piped.
	assert.Equal(t, FormatJSON, DetectFormat(""))
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]int{"created": 2}

	require.NoError(t, (&JSONFormatter{Indent: "  "}).Format(&buf, data))

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 2, decoded["created"])
	assert.Contains(t, buf.String(), "  ", "indentation requested")
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	data := struct {
		Name  string `yaml:"name"`
		Count int    `yaml:"count"`
	}{Name: "task", Count: 3}

	require.NoError(t, (&YAMLFormatter{}).Format(&buf, data))
	assert.Contains(t, buf.String(), "name: task")
	assert.Contains(t, buf.String(), "count: 3")
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	td := &TableData{
		Headers: []string{"Result", "ID"},
		Rows: [][]string{
			{"created", "new-0"},
			{"deleted", "d1"},
		},
	}

	require.NoError(t, (&TableFormatter{}).Format(&buf, td))
	out := buf.String()
	assert.Contains(t, out, "new-0")
	assert.Contains(t, out, "d1")
}

func TestTableFormatterFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).Format(&buf, map[string]string{"key": "value"}))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "value", decoded["key"])
}

func TestWriteReport(t *testing.T) {
	start := interval.Time(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	end := interval.Time(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	report := &provider.Report{
		Created: []*interval.Record{
			{ID: "new-0", Name: "task", Start: start, End: end, Action: interval.ActionCreate},
		},
		Skipped: []*interval.Record{
			{ID: "d9", Name: "stale", Start: start, End: end, Action: interval.ActionDelete},
		},
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteReport(&buf, FormatJSON, report))

		var decoded provider.Report
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded.Created, 1)
		assert.Equal(t, "new-0", decoded.Created[0].ID)
		require.Len(t, decoded.Skipped, 1)
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteReport(&buf, FormatTable, report))

		out := buf.String()
		assert.Contains(t, out, "created")
		assert.Contains(t, out, "new-0")
		assert.Contains(t, out, "skipped")
		assert.Contains(t, out, "d9")
		assert.Contains(t, strings.ToLower(out), "result")
	})
}
