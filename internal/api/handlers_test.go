package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"templstack/internal/advisory"
	"templstack/internal/offline"
	"templstack/internal/registry"
	"templstack/internal/resolver"
	"templstack/internal/store"
	"templstack/internal/transport"
)

// fakeRegistryDoer serves a static index for any configured registry.
func fakeRegistryDoer(entries []registry.TemplateMetadata) transport.DoerFunc {
	return func(ctx context.Context, req transport.Request) (*transport.Response, error) {
		if strings.HasSuffix(req.URL, "/v1/index") {
			body, _ := json.Marshal(map[string]interface{}{"entries": entries, "cursor": 7})
			return &transport.Response{Status: 200, Body: body}, nil
		}
		return &transport.Response{Status: 200, Body: []byte(`{}`)}, nil
	}
}

func newTestServer(t *testing.T) (*Server, *mux.Router) {
	t.Helper()
	ctx := context.Background()

	entries := []registry.TemplateMetadata{
		{ID: "t1", Name: "flutter-starter", Version: "1.0.0", Category: "mobile", Author: "acme"},
		{ID: "t2", Name: "react-starter", Version: "2.1.0", Category: "web", Author: "acme"},
		{ID: "t3", Name: "vue-starter", Version: "1.5.0", Category: "web", Author: "other"},
	}

	tr := transport.New(fakeRegistryDoer(entries), nil, transport.DefaultBreakerConfig(), nil)

	registries, err := registry.NewManager(ctx, store.NewMemoryStore(), tr, nil)
	require.NoError(t, err)

	_, err = registries.AddRegistry(ctx, registry.Config{
		ID:      "main",
		Name:    "Main",
		URL:     "https://registry.example.com",
		Type:    registry.TypeCommunity,
		Enabled: true,
	})
	require.NoError(t, err)

	_, err = registries.SyncRegistry(ctx, "main", registry.SyncFull)
	require.NoError(t, err)

	queue, err := offline.NewQueue(ctx, store.NewMemoryStore())
	require.NoError(t, err)
	probe := func(ctx context.Context) (time.Duration, error) { return time.Millisecond, nil }
	off := offline.NewManager(queue, offline.NewCache(), offline.NewRegistryRemote(registries), probe)

	server := &Server{
		Registries: registries,
		Offline:    off,
		Resolver:   resolver.New(nil),
		Transport:  tr,
		Policy:     advisory.Policy{},
	}

	router := mux.NewRouter()
	RegisterRoutes(router, server)
	return server, router
}

func doRequest(t *testing.T, router *mux.Router, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthHandler(t *testing.T) {
	_, router := newTestServer(t)

	rec := doRequest(t, router, "GET", "/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "online", body["offline"])
}

func TestSearchHandlerFilters(t *testing.T) {
	_, router := newTestServer(t)

	rec := doRequest(t, router, "GET", "/v1/search?q=starter&category=web", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var results []registry.TemplateMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 2)
	for _, entry := range results {
		require.Equal(t, "web", entry.Category)
	}

	rec = doRequest(t, router, "GET", "/v1/search?author=acme&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	require.Equal(t, "acme", results[0].Author)
}

func TestListRegistriesIncludesHealth(t *testing.T) {
	_, router := newTestServer(t)

	rec := doRequest(t, router, "GET", "/v1/registries", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	require.Equal(t, "main", views[0]["id"])
	require.Contains(t, views[0], "health")
}

func TestQueueHandler(t *testing.T) {
	server, router := newTestServer(t)

	_, err := server.Offline.Queue().Enqueue(context.Background(), offline.OpInstall,
		offline.OperationPayload{RegistryID: "main", Name: "flutter-starter", Version: "1.0.0"})
	require.NoError(t, err)

	rec := doRequest(t, router, "GET", "/v1/queue", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status offline.QueueStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, 1, status.Pending)
	require.Len(t, status.Operations, 1)
}

func TestStatsHandlers(t *testing.T) {
	_, router := newTestServer(t)

	rec := doRequest(t, router, "GET", "/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var cacheStats offline.CacheStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cacheStats))

	rec = doRequest(t, router, "GET", "/v1/network/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var netStats map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &netStats))
	require.Contains(t, netStats, "bandwidth")
	require.Contains(t, netStats, "breakers")
}

func TestResolveHandler(t *testing.T) {
	_, router := newTestServer(t)

	body := `{"dependencies": [{"name": "flutter-starter", "constraint": "^1.0.0", "kind": "runtime"}]}`
	rec := doRequest(t, router, "POST", "/v1/resolve", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result resolver.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, "1.0.0", result.ResolvedVersions["flutter-starter"])
}

func TestResolveHandlerRejectsBadInput(t *testing.T) {
	_, router := newTestServer(t)

	rec := doRequest(t, router, "POST", "/v1/resolve", `{"dependencies": []}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, "POST", "/v1/resolve", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
