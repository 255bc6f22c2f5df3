package onadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	log, _ := test.NewNullLogger()
	return NewClient(log, Config{BaseURL: srv.URL, Token: "tok", Timeout: 2 * time.Second}), srv
}

func TestFetchForms(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/forms", r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("owner"))
		assert.Equal(t, "Token tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"formid":1,"title":"Survey"}]`))
	})

	forms, status, err := client.FetchForms(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, forms, 1)
	assert.Equal(t, "Survey", forms[0].(map[string]any)["title"])
}

func TestFetchFormsEmpty(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	forms, status, err := client.FetchForms(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, forms)
}

func TestFetchSubmissions(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/data/42", r.URL.Path)
		w.Write([]byte(`[{"_id":1}]`))
	})

	data, status, err := client.FetchSubmissions(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, data, 1)
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		notFound    bool
		unavailable bool
	}{
		{name: "not found", status: http.StatusNotFound, notFound: true},
		{name: "server error", status: http.StatusInternalServerError, unavailable: true},
		{name: "forbidden", status: http.StatusForbidden, unavailable: true},
		{name: "bad json", status: http.StatusOK, body: "<html>", unavailable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, status, err := client.FetchSubmissions(context.Background(), "1")
			require.Error(t, err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.notFound, errors.Is(err, ErrNotFound))

			var unavailable *UnavailableError
			assert.Equal(t, tt.unavailable, errors.As(err, &unavailable))
		})
	}
}

func TestFetchUnreachable(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, status, err := client.FetchForms(context.Background(), "alice")
	assert.Equal(t, 0, status)

	var unavailable *UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "fetch_forms", unavailable.Op)
	assert.Zero(t, unavailable.Status)
}

func TestFetchDoesNotRetry(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	_, _, err := client.FetchForms(context.Background(), "alice")
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
