package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/agent-platform/internal/api"
	"github.com/Rrens/agent-platform/internal/catalog"
	"github.com/Rrens/agent-platform/internal/config"
	"github.com/Rrens/agent-platform/internal/metrics"
	"github.com/Rrens/agent-platform/internal/repository/memory"
	"github.com/Rrens/agent-platform/internal/security"
	"github.com/Rrens/agent-platform/internal/service"
)

const testSecret = "test-secret-key-with-32-chars!!"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func writeAgents(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	agents := map[string]string{
		"assistant": `
name: assistant
platform:
  description: General assistant
  app_type: chatbot
  capabilities: [chat]
`,
		"report_builder": `
name: report_builder
platform:
  description: Builds reports
  app_type: custom
  ui_config:
    layout: dashboard
`,
	}
	for name, content := range agents {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "agent.yaml"), []byte(content), 0o600))
	}
	return root
}

func newTestServer(t *testing.T, withAuth bool) *testServer {
	cfg := &config.Config{
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics", Namespace: "test"},
	}
	cat := catalog.NewFileCatalog(writeAgents(t))
	store := memory.NewConversationStore()
	t.Cleanup(func() { _ = store.Close() })
	collector := metrics.NewCollector("test")

	deps := api.Dependencies{
		Config:        cfg,
		Version:       "test",
		Platform:      service.NewPlatformService(cat, store, service.PlatformOptions{Metrics: collector}),
		Conversations: service.NewConversationService(store),
		Catalog:       cat,
		Store:         store,
		Metrics:       collector,
	}

	ts := &testServer{t: t}
	if withAuth {
		deps.JWT = security.NewJWTManager(testSecret, "agent-platform", time.Hour)
		token, err := deps.JWT.GenerateAccessToken("carol", "")
		require.NoError(t, err)
		ts.token = token
	}
	ts.handler = api.NewRouter(deps)
	return ts
}

func (s *testServer) do(method, path string, body any) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, false)

	code, env := s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	health := decodeData[map[string]any](t, env)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "test", health["version"])

	code, _ = s.do(http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodGet, "/list-apps", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"assistant", "report_builder"}, decodeData[[]string](t, env))
}

func TestApps(t *testing.T) {
	s := newTestServer(t, false)

	code, env := s.do(http.MethodGet, "/platform/apps", nil)
	require.Equal(t, http.StatusOK, code)
	list := decodeData[struct {
		Apps       []map[string]any `json:"apps"`
		TotalCount int              `json:"totalCount"`
		Categories map[string]int   `json:"categories"`
	}](t, env)
	assert.Equal(t, 2, list.TotalCount)
	assert.Equal(t, map[string]int{"chatbot": 1, "custom": 1}, list.Categories)
	assert.Equal(t, "assistant", list.Apps[0]["name"])
	assert.Equal(t, "chatbot", list.Apps[0]["appType"])

	code, env = s.do(http.MethodGet, "/platform/apps/report_builder", nil)
	require.Equal(t, http.StatusOK, code)
	app := decodeData[map[string]any](t, env)
	ui := app["uiConfig"].(map[string]any)
	assert.Equal(t, "dashboard", ui["layout"])
	assert.Equal(t, "modern", ui["theme"])

	code, env = s.do(http.MethodGet, "/platform/apps/ghost", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, false)

	code, env := s.do(http.MethodPost, "/platform/apps/assistant/launch", map[string]any{
		"user_id":        "alice",
		"session_config": map[string]any{"timeout": 600, "state": map[string]any{"lang": "en"}},
		"metadata":       map[string]any{"a": 1},
	})
	require.Equal(t, http.StatusOK, code, string(env.Error))
	launched := decodeData[map[string]any](t, env)
	info := launched["sessionInfo"].(map[string]any)
	sessionID := info["sessionId"].(string)
	assert.Equal(t, "alice", info["userId"])
	assert.Equal(t, "active", info["status"])
	assert.Equal(t, "assistant", launched["appInfo"].(map[string]any)["name"])
	assert.Contains(t, launched["websocketUrl"], "session_id="+sessionID)
	assert.Equal(t, "http://localhost:8000/run_sse", launched["sseUrl"])

	// the conversation is reachable through the passthrough routes
	code, env = s.do(http.MethodGet, "/apps/assistant/users/alice/sessions/"+sessionID, nil)
	require.Equal(t, http.StatusOK, code)
	conv := decodeData[map[string]any](t, env)
	assert.Equal(t, "en", conv["state"].(map[string]any)["lang"])

	code, env = s.do(http.MethodGet, "/platform/sessions/"+sessionID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, sessionID, decodeData[map[string]any](t, env)["sessionId"])

	code, env = s.do(http.MethodPut, "/platform/sessions/"+sessionID, map[string]any{
		"status":   "inactive",
		"metadata": map[string]any{"b": 2},
	})
	require.Equal(t, http.StatusOK, code)
	updated := decodeData[map[string]any](t, env)
	assert.Equal(t, "inactive", updated["status"])
	assert.Equal(t, map[string]any{"a": float64(1), "b": float64(2)}, updated["metadata"])

	code, _ = s.do(http.MethodPut, "/platform/sessions/"+sessionID, map[string]any{"status": "active"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPut, "/platform/sessions/"+sessionID, map[string]any{"status": "paused"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodGet, "/platform/sessions?app_name=assistant&status=inactive", nil)
	require.Equal(t, http.StatusOK, code)
	list := decodeData[map[string]any](t, env)
	assert.Equal(t, float64(1), list["totalCount"])
	assert.Equal(t, float64(0), list["activeCount"])

	code, _ = s.do(http.MethodDelete, "/platform/sessions/"+sessionID, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodDelete, "/platform/sessions/"+sessionID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodGet, "/platform/sessions/"+sessionID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodGet, "/apps/assistant/users/alice/sessions/"+sessionID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLaunchErrors(t *testing.T) {
	s := newTestServer(t, false)

	code, _ := s.do(http.MethodPost, "/platform/apps/ghost/launch", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env := s.do(http.MethodPost, "/platform/apps/assistant/launch", map[string]any{"user_mode": "team"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Error), "UserMode")

	code, _ = s.do(http.MethodPost, "/platform/apps/assistant/launch", map[string]any{
		"session_config": map[string]any{"timeout": -1},
	})
	assert.Equal(t, http.StatusBadRequest, code)

	req := httptest.NewRequest(http.MethodPost, "/platform/apps/assistant/launch", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSessionsQueryValidation(t *testing.T) {
	s := newTestServer(t, false)

	code, _ := s.do(http.MethodGet, "/platform/sessions?page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodGet, "/platform/sessions?page=0&page_size=10", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodGet, "/platform/sessions?status=paused", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	for i := 0; i < 3; i++ {
		code, _ = s.do(http.MethodPost, "/platform/apps/assistant/launch", nil)
		require.Equal(t, http.StatusOK, code)
	}
	code, env := s.do(http.MethodGet, "/platform/sessions?page=2&page_size=2", nil)
	require.Equal(t, http.StatusOK, code)
	list := decodeData[map[string]any](t, env)
	assert.Len(t, list["sessions"], 1)
	assert.Equal(t, float64(3), list["totalCount"])
	assert.Equal(t, float64(2), list["page"])
}

func TestCleanup(t *testing.T) {
	s := newTestServer(t, false)

	for i := 0; i < 2; i++ {
		code, _ := s.do(http.MethodPost, "/platform/apps/assistant/launch", map[string]any{
			"session_config": map[string]any{"timeout": 0},
		})
		require.Equal(t, http.StatusOK, code)
	}
	code, _ := s.do(http.MethodPost, "/platform/apps/assistant/launch", nil)
	require.Equal(t, http.StatusOK, code)

	code, env := s.do(http.MethodPost, "/platform/cleanup", nil)
	require.Equal(t, http.StatusOK, code)
	result := decodeData[map[string]any](t, env)
	assert.Equal(t, float64(2), result["deletedCount"])
	assert.Equal(t, "Cleaned up 2 expired sessions", result["message"])
}

func TestConversationPassthrough(t *testing.T) {
	s := newTestServer(t, false)
	path := "/apps/assistant/users/dave/sessions/custom-id"

	code, _ := s.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env := s.do(http.MethodPost, path, map[string]any{"state": map[string]any{"k": "v"}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "custom-id", decodeData[map[string]any](t, env)["sessionId"])

	code, _ = s.do(http.MethodPost, path, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestConversationCollection(t *testing.T) {
	s := newTestServer(t, false)
	base := "/apps/assistant/users/erin/sessions"

	code, env := s.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decodeData[[]map[string]any](t, env))

	code, env = s.do(http.MethodPost, base, map[string]any{"state": map[string]any{"k": "v"}})
	require.Equal(t, http.StatusOK, code)
	generated, _ := decodeData[map[string]any](t, env)["sessionId"].(string)
	require.NotEmpty(t, generated)

	code, _ = s.do(http.MethodPost, base+"/named", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPost, "/apps/assistant/users/frank/sessions/other", nil)
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, code)
	listed := decodeData[[]map[string]any](t, env)
	require.Len(t, listed, 2)
	ids := []any{listed[0]["sessionId"], listed[1]["sessionId"]}
	assert.ElementsMatch(t, []any{generated, "named"}, ids)

	code, env = s.do(http.MethodGet, base+"/"+generated, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"k": "v"}, decodeData[map[string]any](t, env)["state"])
}

func TestAuthEnabled(t *testing.T) {
	s := newTestServer(t, true)

	code, env := s.do(http.MethodPost, "/platform/apps/assistant/launch", nil)
	require.Equal(t, http.StatusOK, code)
	info := decodeData[map[string]any](t, env)["sessionInfo"].(map[string]any)
	assert.Equal(t, "carol", info["userId"])

	s.token = ""
	code, _ = s.do(http.MethodGet, "/platform/apps", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	s.do(http.MethodGet, "/platform/apps", nil)

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_http_requests_total{method="GET",route="/platform/apps",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), "test_app_cache_misses_total")
}
