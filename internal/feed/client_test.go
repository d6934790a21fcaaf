package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSnapshotSuccess(t *testing.T) {
	t.Parallel()

	body := `{"updatedAt":"2026-07-30T12:00:00Z","controllers":[]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 0)
	raw, updatedAt, err := client.FetchSnapshot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, body, string(raw))
	assert.Equal(t, 2026, updatedAt.Year())
}

func TestFetchSnapshotUnexpectedStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 0)
	_, _, err := client.FetchSnapshot(context.Background())

	require.Error(t, err)
	var feedErr *Error
	require.ErrorAs(t, err, &feedErr)
	assert.Equal(t, KindHTTPStatus, feedErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, feedErr.StatusCode)
}

func TestFetchSnapshotMalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 0)
	_, _, err := client.FetchSnapshot(context.Background())

	require.Error(t, err)
	var feedErr *Error
	require.ErrorAs(t, err, &feedErr)
	assert.Equal(t, KindMalformedJSON, feedErr.Kind)
}

func TestFetchSnapshotMissingUpdatedAt(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"controllers":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 0)
	_, _, err := client.FetchSnapshot(context.Background())

	require.Error(t, err)
	var feedErr *Error
	require.ErrorAs(t, err, &feedErr)
	assert.Equal(t, KindMissingUpdatedAt, feedErr.Kind)
}

func TestFetchSnapshotNetworkError(t *testing.T) {
	t.Parallel()

	client := NewClient("http://127.0.0.1:0", 0)
	_, _, err := client.FetchSnapshot(context.Background())

	require.Error(t, err)
	var feedErr *Error
	require.ErrorAs(t, err, &feedErr)
	assert.Equal(t, KindNetwork, feedErr.Kind)
}
