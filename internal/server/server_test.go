package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/stamford_chains/internal/chain"
	"github.com/eddiefleurent/stamford_chains/internal/mock"
	"github.com/eddiefleurent/stamford_chains/internal/models"
)

func testServer(t *testing.T, authToken string) (*Server, time.Time) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	gen := mock.NewGenerator(21)
	start := time.Date(2024, 3, 11, 0, 0, 0, 0, loc)
	path := filepath.Join(t.TempDir(), "chains.parquet")
	require.NoError(t, mock.WriteTrades(path, gen.Dataset(start, 3, loc)))

	loader, err := chain.New(path)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	srv := NewServer(Config{
		Port:           0,
		AuthToken:      authToken,
		DefaultFilters: chain.DefaultFilters(),
	}, loader, logger)
	return srv, start
}

func get(t *testing.T, srv *Server, url string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, "")
	rec := get(t, srv, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Positive(t, body["rows"])
}

func TestDataset(t *testing.T) {
	srv, _ := testServer(t, "")
	rec := get(t, srv, "/api/dataset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "trades", body["schema"])
	assert.Equal(t, "SPY", body["underlying"])
	assert.Equal(t, "2024-03-11", body["first_date"])
	assert.Equal(t, "2024-03-13", body["last_date"])
}

func TestDates(t *testing.T) {
	srv, _ := testServer(t, "")
	rec := get(t, srv, "/api/dates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var dates []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dates))
	assert.Equal(t, []string{"2024-03-11", "2024-03-12", "2024-03-13"}, dates)

	t.Run("bounded", func(t *testing.T) {
		rec := get(t, srv, "/api/dates?start=2024-03-12&end=2024-03-12", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var bounded []string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bounded))
		assert.Equal(t, []string{"2024-03-12"}, bounded)
	})

	t.Run("malformed bound", func(t *testing.T) {
		rec := get(t, srv, "/api/dates?start=tomorrow", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChain(t *testing.T) {
	srv, start := testServer(t, "")
	rec := get(t, srv, "/api/chain/"+start.Format("2006-01-02"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []models.ChainRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.NotEmpty(t, rows)
	for _, r := range rows {
		assert.GreaterOrEqual(t, r.Volume, chain.DefaultMinVolume)
	}

	t.Run("filter override", func(t *testing.T) {
		rec := get(t, srv, "/api/chain/"+start.Format("2006-01-02")+"?min_volume=50", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var filtered []models.ChainRow
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filtered))
		for _, r := range filtered {
			assert.GreaterOrEqual(t, r.Volume, int64(50))
		}
	})

	t.Run("empty day serves empty array", func(t *testing.T) {
		rec := get(t, srv, "/api/chain/2030-01-02", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("malformed date", func(t *testing.T) {
		rec := get(t, srv, "/api/chain/03-15-2024", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed filter", func(t *testing.T) {
		rec := get(t, srv, "/api/chain/"+start.Format("2006-01-02")+"?min_volume=-3", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestConditions(t *testing.T) {
	srv, start := testServer(t, "")
	rec := get(t, srv, "/api/conditions/"+start.Format("2006-01-02"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cond models.MarketConditions
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cond))
	assert.Positive(t, cond.Rows)
	assert.True(t, cond.Regime.Valid())

	t.Run("empty day yields unknown regime", func(t *testing.T) {
		rec := get(t, srv, "/api/conditions/2030-01-02", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var empty models.MarketConditions
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
		assert.Zero(t, empty.Rows)
		assert.Equal(t, models.RegimeUnknown, empty.Regime)
	})
}

func TestAuthMiddleware(t *testing.T) {
	srv, start := testServer(t, "sekrit")

	t.Run("health is always open", func(t *testing.T) {
		rec := get(t, srv, "/health", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		rec := get(t, srv, "/api/dates", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("header token accepted", func(t *testing.T) {
		rec := get(t, srv, "/api/dates", map[string]string{"X-Auth-Token": "sekrit"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("query token accepted", func(t *testing.T) {
		rec := get(t, srv, "/api/chain/"+start.Format("2006-01-02")+"?token=sekrit", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
