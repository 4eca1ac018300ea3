package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/agent-platform/internal/api/response"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	response.OK(rec, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"status": "ok"}, body["data"])
	assert.NotContains(t, body, "error")
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	response.NotFound(rec, "Session not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Session not found", body["error"])
	assert.NotContains(t, body, "data")
}

func TestJSON_NonSuccessStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, http.StatusAccepted, nil)
	assert.Equal(t, true, decode(t, rec)["success"])

	rec = httptest.NewRecorder()
	response.JSON(rec, http.StatusConflict, "x")
	assert.Equal(t, false, decode(t, rec)["success"])
}
