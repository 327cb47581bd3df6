package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netviz/internal/domain"
	"netviz/internal/hub"
	"netviz/internal/reconciler"
	"netviz/internal/repository/sqlite"
	"netviz/internal/service"
)

type fixture struct {
	mux *http.ServeMux
	h   *GraphHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := service.NewGraphService(store, hub.New())
	h := NewGraphHandler(svc, hub.New())

	mux := http.NewServeMux()
	h.Register(mux)
	return &fixture{mux: mux, h: h}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func (f *fixture) createNode(t *testing.T, name string) domain.Node {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/nodes", map[string]any{
		"name": name,
		"type": domain.NodeTypeHost,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var node domain.Node
	decode(t, rec, &node)
	return node
}

func TestCreateNode(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/nodes", map[string]any{
		"name":    "core-router",
		"type":    "router",
		"address": "10.0.0.1",
		"metadata": map[string]any{
			"rack":  "r1",
			"empty": "",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var node domain.Node
	decode(t, rec, &node)
	assert.NotEmpty(t, node.ID)
	assert.Equal(t, "core-router", node.Name)
	assert.Equal(t, "router", node.Type)
	assert.Equal(t, domain.NodeStatusUnknown, node.Status)
	assert.Equal(t, "r1", node.Metadata["rack"])
	assert.NotContains(t, node.Metadata, "empty")
}

func TestCreateNodeValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/nodes", map[string]any{"name": "no-type"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/nodes", map[string]any{"type": "host"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/nodes", map[string]any{
		"name": "bad-status", "type": "host", "status": "sideways",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateNodeNameConflict(t *testing.T) {
	f := newFixture(t)
	f.createNode(t, "duplicate")

	rec := f.do(t, http.MethodPost, "/api/nodes", map[string]any{
		"name": "duplicate", "type": "host",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, "Conflict", body.Error)
}

func TestGetNode(t *testing.T) {
	f := newFixture(t)
	created := f.createNode(t, "lookup-me")

	rec := f.do(t, http.MethodGet, "/api/nodes/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var node domain.Node
	decode(t, rec, &node)
	assert.Equal(t, created.ID, node.ID)

	rec = f.do(t, http.MethodGet, "/api/nodes/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateNodePartial(t *testing.T) {
	f := newFixture(t)
	created := f.createNode(t, "partial")

	rec := f.do(t, http.MethodPut, "/api/nodes/"+created.ID, map[string]any{
		"status": "online",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var node domain.Node
	decode(t, rec, &node)
	assert.Equal(t, domain.NodeStatusOnline, node.Status)
	assert.Equal(t, "partial", node.Name, "fields absent from the body are unchanged")
	assert.Equal(t, created.Type, node.Type)
}

func TestUpdateNodeMissing(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/nodes/ghost", map[string]any{"status": "online"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteNodeCascades(t *testing.T) {
	f := newFixture(t)
	a := f.createNode(t, "a")
	b := f.createNode(t, "b")

	rec := f.do(t, http.MethodPost, "/api/edges", map[string]any{
		"source": a.ID, "target": b.ID, "type": "ethernet",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodDelete, "/api/nodes/"+a.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decode(t, rec, &body)
	assert.Equal(t, true, body["deleted"])

	rec = f.do(t, http.MethodGet, "/api/edges", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var edges []domain.Edge
	decode(t, rec, &edges)
	assert.Empty(t, edges, "edges touching the node are removed with it")
}

func TestDeleteNodeAbsent(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodDelete, "/api/nodes/never-existed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decode(t, rec, &body)
	assert.Equal(t, false, body["deleted"])
}

func TestCreateEdgeMissingEndpoint(t *testing.T) {
	f := newFixture(t)
	a := f.createNode(t, "only-node")

	rec := f.do(t, http.MethodPost, "/api/edges", map[string]any{
		"source": a.ID, "target": "nowhere",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdateEdge(t *testing.T) {
	f := newFixture(t)
	a := f.createNode(t, "left")
	b := f.createNode(t, "right")

	rec := f.do(t, http.MethodPost, "/api/edges", map[string]any{
		"source": a.ID, "target": b.ID, "bandwidth": "1Gbps",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var edge domain.Edge
	decode(t, rec, &edge)

	rec = f.do(t, http.MethodPut, "/api/edges/"+edge.ID, map[string]any{
		"status": "active",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated domain.Edge
	decode(t, rec, &updated)
	assert.Equal(t, domain.EdgeStatusActive, updated.Status)
	assert.Equal(t, "1Gbps", updated.Bandwidth)
}

func TestGetGraphReload(t *testing.T) {
	f := newFixture(t)
	f.createNode(t, "n1")
	f.createNode(t, "n2")

	rec := f.do(t, http.MethodGet, "/api/graph?reload=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Nodes []domain.Node `json:"nodes"`
		Edges []domain.Edge `json:"edges"`
	}
	decode(t, rec, &body)
	assert.Len(t, body.Nodes, 2)
	assert.Empty(t, body.Edges)
}

func TestGetStats(t *testing.T) {
	f := newFixture(t)
	f.createNode(t, "s1")

	rec := f.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats domain.Stats
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.TotalNodes)
}

func TestListAudit(t *testing.T) {
	f := newFixture(t)
	f.createNode(t, "audited-1")
	f.createNode(t, "audited-2")

	rec := f.do(t, http.MethodGet, "/api/audit?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Entries []domain.AuditEntry `json:"entries"`
		Count   int                 `json:"count"`
	}
	decode(t, rec, &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "audited-2", mustEntityName(t, body.Entries[0]), "newest entry first")

	rec = f.do(t, http.MethodGet, "/api/audit?limit=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func mustEntityName(t *testing.T, e domain.AuditEntry) string {
	t.Helper()
	raw, err := json.Marshal(e.NewData)
	require.NoError(t, err)
	var node domain.Node
	require.NoError(t, json.Unmarshal(raw, &node))
	return node.Name
}

func TestExportGraph(t *testing.T) {
	f := newFixture(t)
	f.createNode(t, "exported")

	rec := f.do(t, http.MethodGet, "/api/export/yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "exported")

	rec = f.do(t, http.MethodGet, "/api/export/xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportGraph(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/import/json", map[string]any{
		"nodes": []map[string]any{
			{"name": "imported-router", "type": "router", "address": "10.0.0.1"},
			{"name": "imported-host", "type": "host"},
		},
		"edges": []map[string]any{
			{"source": "imported-host", "target": "imported-router"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result map[string]any
	decode(t, rec, &result)
	assert.Equal(t, float64(2), result["nodes_created"])
	assert.Equal(t, float64(1), result["edges_created"])

	rec = f.do(t, http.MethodGet, "/api/nodes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var nodes []domain.Node
	decode(t, rec, &nodes)
	assert.Len(t, nodes, 2)
}

func TestMetricsCacheEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/metrics-cache", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "no collector wired")

	cache := reconciler.NewMetricsCache(time.Minute)
	cache.Set(domain.MetricsSnapshot{"demo-host": {}})
	f.h.SetMetricsCache(cache)

	rec = f.do(t, http.MethodGet, "/api/metrics-cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var info reconciler.Info
	decode(t, rec, &info)
	assert.Equal(t, 1, info.CacheSize)
	assert.True(t, info.Fresh)
	require.NotNil(t, info.LastUpdated)
}
