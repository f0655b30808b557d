package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meTasking/sync/pkg/errors"
)

func TestClientGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"id": 42, "name": "task"}`))
	}))
	defer server.Close()

	client := New("test", nil)

	var out struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, client.GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, 42, out.ID)
	assert.Equal(t, "task", out.Name)
}

func TestClientPostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "hello", in["payload"])

		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := New("test", nil)

	var out struct {
		OK bool `json:"ok"`
	}
	err := client.PostJSON(context.Background(), server.URL, map[string]string{"payload": "hello"}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestClientErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "no such worklog"}`))
	}))
	defer server.Close()

	client := New("jira", nil)

	err := client.GetJSON(context.Background(), server.URL, &struct{}{})
	require.Error(t, err)

	var apiErr *errors.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "jira", apiErr.Provider)
	assert.Contains(t, apiErr.Message, "no such worklog")
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New("test", nil)

	require.NoError(t, client.GetJSON(context.Background(), server.URL, &struct{}{}))
	assert.Equal(t, int32(2), calls.Load(), "a transient 5xx is retried")
}

func TestClientDelete(t *testing.T) {
	var deleted atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deleted.Store(true)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New("test", nil)

	require.NoError(t, client.Delete(context.Background(), server.URL))
	assert.True(t, deleted.Load())
}

func TestBasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "token123", user)
		assert.Equal(t, "api_token", pass)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New("toggl", &BasicAuth{Username: "token123", Password: "api_token"})
	require.NoError(t, client.GetJSON(context.Background(), server.URL, &struct{}{}))
}

func TestBearerAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New("test", &BearerAuth{Token: "secret"})
	require.NoError(t, client.GetJSON(context.Background(), server.URL, &struct{}{}))
}
