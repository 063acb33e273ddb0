package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func fastConfig() Config {
	return Config{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Timeout:        5 * time.Second,
		Concurrency:    2,
	}
}

func TestFetchDate_Success(t *testing.T) {
	payload := []byte("not really parquet, but the client does not care")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2024/03/2024-03-15.parquet", r.URL.Path)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, quietLogger(), fastConfig())
	dir := t.TempDir()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	info, err := c.FetchDate(context.Background(), date, dir)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), info.Bytes)
	assert.NotEmpty(t, info.SHA256)

	got, err := os.ReadFile(info.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.NoFileExists(t, info.Path+".tmp")
}

func TestFetchDate_RetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, quietLogger(), fastConfig())
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	_, err := c.FetchDate(context.Background(), date, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchDate_PermanentErrorFailsFast(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, quietLogger(), fastConfig())
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	_, err := c.FetchDate(context.Background(), date, t.TempDir())
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a 404 must not be retried")
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &APIError{Status: 503}, true},
		{"rate limited", &APIError{Status: 429}, true},
		{"not found", &APIError{Status: 404}, false},
		{"forbidden", &APIError{Status: 403}, false},
		{"network failure", errors.New("connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransientError(tt.err))
		})
	}
}

func TestFetchRange_SkipsWeekendsAndManifested(t *testing.T) {
	var paths []string
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("data for " + r.URL.Path))
		paths = append(paths, r.URL.Path)
	}))
	defer srv.Close()

	dir := t.TempDir()
	manifest, err := OpenManifest(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	// Pre-record Tuesday so only Mon/Wed/Thu/Fri get fetched.
	require.NoError(t, manifest.Record("2024-03-12", Entry{File: "2024-03-12.parquet"}))

	cfg := fastConfig()
	cfg.Concurrency = 1 // serialize so the paths slice needs no lock
	c := NewClient(srv.URL, quietLogger(), cfg)

	start := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)  // Saturday
	end := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)   // Friday

	added, err := c.FetchRange(context.Background(), start, end, dir, manifest)
	require.NoError(t, err)
	assert.Equal(t, 4, added)
	assert.Equal(t, 5, manifest.Len())
	assert.NotContains(t, paths, "/2024/03/2024-03-09.parquet")
	assert.NotContains(t, paths, "/2024/03/2024-03-10.parquet")
	assert.NotContains(t, paths, "/2024/03/2024-03-12.parquet")
}

func TestManifest_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	m, err := OpenManifest(path)
	require.NoError(t, err)
	assert.False(t, m.Has("2024-03-15"))

	entry := Entry{File: "2024-03-15.parquet", Bytes: 123, SHA256: "abc", RunID: "run-1"}
	require.NoError(t, m.Record("2024-03-15", entry))

	reopened, err := OpenManifest(path)
	require.NoError(t, err)
	assert.True(t, reopened.Has("2024-03-15"))
	got, ok := reopened.Get("2024-03-15")
	require.True(t, ok)
	assert.Equal(t, entry.SHA256, got.SHA256)
	assert.Equal(t, 1, reopened.Len())
}

func TestOpenManifest_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := OpenManifest(path)
	require.Error(t, err)
}
