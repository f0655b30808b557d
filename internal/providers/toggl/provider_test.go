package toggl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meTasking/sync/pkg/interval"
	"github.com/meTasking/sync/pkg/provider"
)

func mustTime(t *testing.T, s string) utc.Time {
	t.Helper()
	ts, err := interval.ParseTime(s)
	require.NoError(t, err)
	return ts
}

const entriesResponse = `[
	{"id": 101, "workspace_id": 7, "description": "standup", "start": "2024-03-01T09:00:00Z", "stop": "2024-03-01T09:15:00Z"},
	{"id": 102, "workspace_id": 8, "description": "other workspace", "start": "2024-03-01T09:00:00Z", "stop": "2024-03-01T09:30:00Z"},
	{"id": 103, "workspace_id": 7, "description": "SYNC-12:review", "start": "2024-03-01T10:00:00+01:00", "stop": "2024-03-01T11:00:00+01:00"}
]`

func newTestProvider(t *testing.T, serverURL string, cfg Config) *Provider {
	t.Helper()
	cfg.BaseURL = serverURL
	if cfg.Token == "" {
		cfg.Token = "token123"
	}
	if cfg.WorkspaceID == "" {
		cfg.WorkspaceID = "7"
	}
	p, err := New(provider.Options{AllowDelete: true}, cfg)
	require.NoError(t, err)
	return p
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(provider.Options{}, Config{WorkspaceID: "7"})
	require.Error(t, err, "token is required")

	_, err = New(provider.Options{}, Config{Token: "t"})
	require.Error(t, err, "workspace id is required")
}

func TestOpenFiltersWorkspace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/time_entries", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "token123", user)
		assert.Equal(t, "api_token", pass)
		w.Write([]byte(entriesResponse))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, Config{})
	require.NoError(t, p.Open(context.Background()))

	dump := p.Dump()
	require.Len(t, dump, 2, "entries from other workspaces are skipped")
	assert.Equal(t, "101", dump[0].ID)
	assert.Equal(t, "standup", dump[0].Name)
	assert.Equal(t, "", dump[0].Description, "no split without split mode")

	// The +01:00 entry is normalized to UTC.
	assert.Equal(t, "103", dump[1].ID)
	assert.Equal(t, "09:00", dump[1].Start.Format("15:04"))
}

func TestOpenSplitName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(entriesResponse))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, Config{SplitName: true})
	require.NoError(t, p.Open(context.Background()))

	dump := p.Dump()
	require.Len(t, dump, 2)
	assert.Equal(t, "standup", dump[0].Name, "no separator leaves the name whole")
	assert.Equal(t, "SYNC-12", dump[1].Name)
	assert.Equal(t, "review", dump[1].Description)
}

func TestOpenSendsWindow(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	since := mustTime(t, "2024-03-01T00:00:00Z")
	until := mustTime(t, "2024-03-02T00:00:00Z")
	p, err := New(provider.Options{Since: &since, Until: &until}, Config{
		Token: "t", WorkspaceID: "7", BaseURL: server.URL,
	})
	require.NoError(t, err)
	require.NoError(t, p.Open(context.Background()))

	assert.Contains(t, query, "start_date=2024-03-01T00")
	assert.Contains(t, query, "end_date=2024-03-02T00")
}

func TestApplyChanges(t *testing.T) {
	type request struct {
		method string
		path   string
		body   map[string]any
	}
	var requests []request

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := request{method: r.Method, path: r.URL.Path}
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req.body))
		}
		requests = append(requests, req)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, Config{SplitName: true})

	require.NoError(t, p.AddChanges([]*interval.Record{
		{
			ID:          "new-0",
			Name:        "SYNC-12",
			Description: "fix matching",
			Start:       mustTime(t, "2024-03-01T10:00:00Z"),
			End:         mustTime(t, "2024-03-01T11:00:00Z"),
			Action:      interval.ActionCreate,
		},
	}))
	require.NoError(t, p.Apply(context.Background()))

	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodPost, requests[0].method)
	assert.Equal(t, "/workspaces/7/time_entries", requests[0].path)
	assert.Equal(t, "SYNC-12: fix matching", requests[0].body["description"], "split mode joins on the way out")
	assert.Equal(t, "meTasking SYNC", requests[0].body["created_with"])
	assert.Equal(t, float64(7), requests[0].body["workspace_id"], "workspace id goes out numeric")
}

func TestApplyDelete(t *testing.T) {
	var deleted []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deleted = append(deleted, r.URL.Path)
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, Config{})
	require.NoError(t, p.AddChanges([]*interval.Record{
		{
			ID:     "101",
			Name:   "standup",
			Start:  mustTime(t, "2024-03-01T09:00:00Z"),
			End:    mustTime(t, "2024-03-01T09:15:00Z"),
			Action: interval.ActionDelete,
		},
	}))
	require.NoError(t, p.Apply(context.Background()))

	assert.Equal(t, []string{"/workspaces/7/time_entries/101"}, deleted)
}

func TestSplitJoinRoundTrip(t *testing.T) {
	p := newTestProvider(t, "http://unused", Config{SplitName: true})

	// The split happens at the last separator in the description.
	tests := []struct {
		input       string
		name        string
		description string
	}{
		{"SYNC-12:review", "SYNC-12", "review"},
		{"task_review", "task", "review"},
		{"SYNC-12: fix matching", "SYNC-12: fix", "matching"},
		{"standup", "standup", ""},
	}
	for _, tt := range tests {
		name, description := p.splitName(tt.input)
		assert.Equal(t, tt.name, name, "input %q", tt.input)
		assert.Equal(t, tt.description, description, "input %q", tt.input)
	}

	rec := &interval.Record{Name: "SYNC-12", Description: "fix matching"}
	assert.Equal(t, "SYNC-12: fix matching", p.joinName(rec))
	assert.Equal(t, "standup", p.joinName(&interval.Record{Name: "standup"}))
}
