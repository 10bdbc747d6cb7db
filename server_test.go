package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) http.Handler {
	t.Helper()
	srv := newServer(nil, testCatalog(), pipelineConfig(), testLogger())
	return srv.routes()
}

func doGet(t *testing.T, handler http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthEndpoint(t *testing.T) {
	rec, body := doGet(t, testServer(t), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestAutocompleteEndpoint(t *testing.T) {
	rec, body := doGet(t, testServer(t), "/api/autocomplete?q=fish&type=supplement")
	assert.Equal(t, http.StatusOK, rec.Code)

	suggestions, ok := body["suggestions"].([]any)
	require.True(t, ok)
	require.Len(t, suggestions, 1)
	first := suggestions[0].(map[string]any)
	assert.Equal(t, "Omega-3", first["name"])
	assert.Equal(t, "supplement", first["kind"])
}

func TestAutocompleteShortQuery(t *testing.T) {
	rec, body := doGet(t, testServer(t), "/api/autocomplete?q=o")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["suggestions"])
}

func TestAutocompleteKindFilter(t *testing.T) {
	_, body := doGet(t, testServer(t), "/api/autocomplete?q=warf&type=supplement")
	assert.Empty(t, body["suggestions"])

	_, body = doGet(t, testServer(t), "/api/autocomplete?q=warf&type=drug")
	suggestions := body["suggestions"].([]any)
	require.Len(t, suggestions, 1)
}

func TestInteractionsEndpointValidation(t *testing.T) {
	handler := testServer(t)

	rec, body := doGet(t, handler, "/api/interactions?supplement=Omega-3")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "required")

	// Without a database the endpoint reports unavailability, not a panic.
	rec, _ = doGet(t, handler, "/api/interactions?supplement=Omega-3&medication=Warfarin")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVerifyEndpointWithoutDatabase(t *testing.T) {
	rec, _ := doGet(t, testServer(t), "/api/verify")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, KindSupplement, parseKind("supplement"))
	assert.Equal(t, KindMedication, parseKind("medication"))
	assert.Equal(t, KindMedication, parseKind(" DRUG "))
	assert.Equal(t, KindMedication, parseKind("rx"))
	assert.Equal(t, EntityKind(""), parseKind(""))
	assert.Equal(t, EntityKind(""), parseKind("food"))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, clampLimit("", 10, 50))
	assert.Equal(t, 5, clampLimit("5", 10, 50))
	assert.Equal(t, 50, clampLimit("500", 10, 50))
	assert.Equal(t, 10, clampLimit("not a number", 10, 50))
	assert.Equal(t, 10, clampLimit("-3", 10, 50))
}
