package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocausal/app"
	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal/api"
	"gocausal/internal/config"
	"gocausal/internal/container"
	"gocausal/internal/editor"
	"gocausal/internal/session"
	"gocausal/ports"
)

type stubEstimator struct {
	fit float64
}

func (s *stubEstimator) ModelList(ctx context.Context) ([]ports.ModelDescriptor, error) {
	return []ports.ModelDescriptor{{Name: "linear"}}, nil
}

func (s *stubEstimator) ModelOptions(ctx context.Context, model string) ([]ports.ModelParameter, error) {
	return []ports.ModelParameter{{Name: "alpha", Type: "float"}}, nil
}

func (s *stubEstimator) EstimateIntervention(ctx context.Context, req ports.InterventionRequest) (map[string]causal.Effect, error) {
	return map[string]causal.Effect{}, nil
}

func (s *stubEstimator) EstimateInfluence(ctx context.Context, req ports.GraphRequest) (map[string]float64, error) {
	return map[string]float64{}, nil
}

func (s *stubEstimator) EstimateEdgeStrength(ctx context.Context, req ports.GraphRequest) (map[string]map[string]float64, error) {
	return map[string]map[string]float64{}, nil
}

func (s *stubEstimator) EstimateFit(ctx context.Context, req ports.GraphRequest) (float64, error) {
	return s.fit, nil
}

func (s *stubEstimator) FindLatent(ctx context.Context, req ports.GraphRequest) ([]ports.LatentPair, error) {
	return nil, nil
}

type typedAttributes struct{}

func (typedAttributes) Attributes(ctx context.Context) ([]string, error) {
	return []string{"age", "region"}, nil
}

func (typedAttributes) DescribeAttributes(ctx context.Context) ([]ports.AttributeInfo, error) {
	return []ports.AttributeInfo{{Name: "age", Type: "numeric"}, {Name: "region", Type: "categorical"}}, nil
}

func newTestServer(t *testing.T) (*Server, *container.Container) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	blobs, err := session.NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)
	store := session.NewGraphStore(blobs)

	hub := api.NewSSEHub()
	t.Cleanup(hub.Stop)
	notifier := api.NewSSENotifier(hub)
	est := &stubEstimator{fit: 0.8}

	c := &container.Container{
		Config:    &config.Config{},
		GraphRepo: store,
		Estimator: est,
		SSEHub:    hub,
		Notifier:  notifier,
	}
	c.Estimation = app.NewEstimationService(est, notifier)
	c.Sessions = editor.NewSessionManager(editor.CanvasOptions{}, func(ctx context.Context, id core.SessionID, nodes []causal.Node, edges []causal.Edge) error {
		return store.Save(ctx, id, nodes, edges)
	})

	return NewServer(c), c
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, s *Server) string {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func decodeScene(t *testing.T, w *httptest.ResponseRecorder) editor.Scene {
	t.Helper()
	var scene editor.Scene
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scene))
	return scene
}

func TestCreateAndListSessions(t *testing.T) {
	s, _ := newTestServer(t)
	id := createSession(t, s)

	w := doJSON(t, s, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)
}

func TestSessionLookupErrors(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/sessions/not-a-uuid/scene", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/sessions/"+core.NewSessionID().String()+"/scene", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventsDriveTheCanvas(t *testing.T) {
	s, _ := newTestServer(t)
	id := createSession(t, s)
	base := "/api/sessions/" + id

	w := doJSON(t, s, http.MethodPost, base+"/events", editor.Event{Type: editor.EventDrop, X: 100, Y: 100, Attr: "age"})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, s, http.MethodPost, base+"/events", editor.Event{Type: editor.EventDrop, X: 300, Y: 100, Attr: "income"})
	require.Equal(t, http.StatusOK, w.Code)

	scene := decodeScene(t, w)
	assert.Len(t, scene.Nodes, 2)
	assert.Empty(t, scene.Edges)

	w = doJSON(t, s, http.MethodPost, base+"/events", editor.Event{Type: "swipe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, base+"/events", editor.Event{Type: editor.EventDrop, X: 100, Y: 100, Attr: "age"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestEstimateFitMergesScore(t *testing.T) {
	s, _ := newTestServer(t)
	id := createSession(t, s)
	base := "/api/sessions/" + id

	doJSON(t, s, http.MethodPost, base+"/events", editor.Event{Type: editor.EventDrop, X: 100, Y: 100, Attr: "age"})

	w := doJSON(t, s, http.MethodPost, base+"/estimate/fit", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "no focus yet")

	doJSON(t, s, http.MethodPost, base+"/events", editor.Event{Type: editor.EventPointerDown, X: 100, Y: 100})
	doJSON(t, s, http.MethodPost, base+"/events", editor.Event{Type: editor.EventPointerUp, X: 100, Y: 100})

	w = doJSON(t, s, http.MethodPost, base+"/estimate/fit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Result app.EstimationResult `json:"result"`
		Scene  editor.Scene         `json:"scene"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, app.EstimateFit, resp.Result.Kind)
	require.Len(t, resp.Scene.Nodes, 1)
	require.NotNil(t, resp.Scene.Nodes[0].FitScore)
	assert.InDelta(t, 0.8, *resp.Scene.Nodes[0].FitScore, 1e-9)

	w = doJSON(t, s, http.MethodPost, base+"/estimate/bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTreatmentAndModel(t *testing.T) {
	s, _ := newTestServer(t)
	id := createSession(t, s)
	base := "/api/sessions/" + id
	doJSON(t, s, http.MethodPost, base+"/events", editor.Event{Type: editor.EventDrop, X: 100, Y: 100, Attr: "age"})

	w := doJSON(t, s, http.MethodPut, base+"/nodes/age/treatment", treatmentRequest{Treatment: causal.TreatmentAtomic, Alternative: "60", Reference: "30"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodPut, base+"/nodes/missing/treatment", treatmentRequest{Treatment: causal.TreatmentShift, Shift: "x+1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, s, http.MethodPut, base+"/nodes/age/model", modelRequest{Model: "linear", Params: map[string]any{"alpha": 0.1}})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, base+"/models", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "linear")

	w = doJSON(t, s, http.MethodGet, base+"/models/linear/options", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alpha")

	w = doJSON(t, s, http.MethodGet, base+"/report?format=md", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "atomic 60 vs 30")
}

func TestSVGAndHTMLReport(t *testing.T) {
	s, _ := newTestServer(t)
	id := createSession(t, s)
	base := "/api/sessions/" + id
	doJSON(t, s, http.MethodPost, base+"/events", editor.Event{Type: editor.EventDrop, X: 100, Y: 100, Attr: "age"})

	w := doJSON(t, s, http.MethodGet, base+"/svg?width=640&height=480", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "image/svg+xml")
	assert.Contains(t, w.Body.String(), "<svg")

	w = doJSON(t, s, http.MethodGet, base+"/report", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<table>")
}

func TestExitSavesAndRestore(t *testing.T) {
	s, c := newTestServer(t)
	id := createSession(t, s)
	base := "/api/sessions/" + id
	doJSON(t, s, http.MethodPost, base+"/events", editor.Event{Type: editor.EventDrop, X: 100, Y: 100, Attr: "age"})

	w := doJSON(t, s, http.MethodPost, base+"/exit", nil)
	require.Equal(t, http.StatusOK, w.Code)

	nodes, _, err := c.GraphRepo.Load(context.Background(), core.SessionID(id))
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "age", nodes[0].ID)

	w = doJSON(t, s, http.MethodGet, base+"/scene", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/sessions", createSessionRequest{Restore: id})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, core.SessionID(id), resp.ID)
	assert.Len(t, resp.Scene.Nodes, 1)
}

func TestResolveLatentRejectsNonLatent(t *testing.T) {
	s, _ := newTestServer(t)
	id := createSession(t, s)
	base := "/api/sessions/" + id
	doJSON(t, s, http.MethodPost, base+"/events", editor.Event{Type: editor.EventDrop, X: 100, Y: 100, Attr: "age"})

	w := doJSON(t, s, http.MethodPost, base+"/latents/age/resolve", resolveRequest{Attribute: "region"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, base+"/latents/age/resolve", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttributesIncludeColumnTypes(t *testing.T) {
	_, c := newTestServer(t)

	w := doJSON(t, NewServer(c), http.MethodGet, "/api/attributes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"attributes":[]}`, w.Body.String())

	c.Attributes = typedAttributes{}
	w = doJSON(t, NewServer(c), http.MethodGet, "/api/attributes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"attributes": ["age", "region"],
		"columns": [{"name": "age", "type": "numeric"}, {"name": "region", "type": "categorical"}]
	}`, w.Body.String())
}

func TestAdminHealth(t *testing.T) {
	_, c := newTestServer(t)
	r := NewAdminRouter(c)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
