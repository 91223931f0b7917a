package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"gapscan/pkg/storage"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.EnsureTables(context.Background(), db))

	r := mux.NewRouter()
	RegisterRoutes(r, db, zap.NewNop())
	return r
}

func doJSON(t *testing.T, r *mux.Router, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func writePrimeFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "primes.txt")
	data := "2\n3\n5\n7\n11\n13\n17\n19\n23\n29\n31\n37\n41\n43\n47\n53\n59\n61\n67\n71\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func buildTestMap(t *testing.T, r *mux.Router, name string) {
	t.Helper()
	rec, body := doJSON(t, r, http.MethodPost, "/maps/build", BuildRequest{
		Name:        name,
		Input:       writePrimeFile(t),
		Modulus:     6,
		Start:       3,
		Count:       6,
		SearchBound: 10,
	})
	require.Equal(t, http.StatusOK, rec.Code, body)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	rec, body := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestBuildAndList(t *testing.T) {
	r := newTestRouter(t)
	buildTestMap(t, r, "mod6")

	rec, body := doJSON(t, r, http.MethodGet, "/maps", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	maps := body["maps"].([]any)
	require.Len(t, maps, 1)
	info := maps[0].(map[string]any)
	assert.Equal(t, "mod6", info["name"])
	assert.Equal(t, "mod6", info["scheme"])
}

func TestBuildValidation(t *testing.T) {
	r := newTestRouter(t)

	rec, _ := doJSON(t, r, http.MethodPost, "/maps/build", BuildRequest{Name: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := doJSON(t, r, http.MethodPost, "/maps/build", BuildRequest{
		Name:    "x",
		Input:   filepath.Join(t.TempDir(), "missing.txt"),
		Modulus: 6,
		Count:   5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "not found")

	// A negative start index is a configuration error, not a panic.
	rec, body = doJSON(t, r, http.MethodPost, "/maps/build", BuildRequest{
		Name:        "x",
		Input:       writePrimeFile(t),
		Modulus:     6,
		Start:       -1,
		Count:       2,
		SearchBound: 10,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "non-negative")

	// Window larger than the file: precondition failure, no map stored.
	rec, _ = doJSON(t, r, http.MethodPost, "/maps/build", BuildRequest{
		Name:        "x",
		Input:       writePrimeFile(t),
		Modulus:     6,
		Start:       3,
		Count:       100,
		SearchBound: 10,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, body = doJSON(t, r, http.MethodGet, "/maps", nil)
	assert.Empty(t, body["maps"])
}

func TestBuildMergesGapThresholds(t *testing.T) {
	r := newTestRouter(t)

	// Setting only the small cutoff must leave the large cutoff at its
	// default, keeping the Medium category reachable.
	rec, body := doJSON(t, r, http.MethodPost, "/maps/build", BuildRequest{
		Name:          "compound",
		Input:         writePrimeFile(t),
		Modulus:       6,
		GapCategories: true,
		GapSmall:      16,
		Start:         3,
		Count:         6,
		SearchBound:   10,
	})
	require.Equal(t, http.StatusOK, rec.Code, body)

	_, body = doJSON(t, r, http.MethodGet, "/maps", nil)
	maps := body["maps"].([]any)
	require.Len(t, maps, 1)
	info := maps[0].(map[string]any)
	assert.Equal(t, float64(16), info["gap_small"])
	assert.Equal(t, float64(22), info["gap_large"])
}

func TestScore(t *testing.T) {
	r := newTestRouter(t)
	buildTestMap(t, r, "mod6")

	rec, body := doJSON(t, r, http.MethodPost, "/score", ScoreRequest{Map: "mod6", Anchor: 52, Gap: 6})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4", body["bucket"])
	assert.Equal(t, float64(0), body["rate"])
	assert.Equal(t, float64(6), body["weighted"])

	// An odd anchor hits an impossible bucket: both the rate and the
	// weighted score carry the sentinel across the wire as its string
	// form rather than an unencodable +Inf.
	rec, body = doJSON(t, r, http.MethodPost, "/score", ScoreRequest{Map: "mod6", Anchor: 53, Gap: 4})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotZero(t, rec.Body.Len())
	assert.Equal(t, "Infinity", body["rate"])
	assert.Equal(t, "Infinity", body["weighted"])

	rec, _ = doJSON(t, r, http.MethodPost, "/score", ScoreRequest{Map: "ghost", Anchor: 52})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPredict(t *testing.T) {
	r := newTestRouter(t)
	buildTestMap(t, r, "mod6")

	rec, body := doJSON(t, r, http.MethodPost, "/predict", PredictRequest{
		Map:        "mod6",
		P:          23,
		Candidates: []uint64{29, 31, 37},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "weighted", body["strategy"])
	assert.Equal(t, float64(29), body["prediction"])

	rec, _ = doJSON(t, r, http.MethodPost, "/predict", PredictRequest{Map: "mod6"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, r, http.MethodPost, "/predict", PredictRequest{
		Map:        "mod6",
		Strategy:   "tie-break",
		P:          23,
		Candidates: []uint64{29, 31},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
