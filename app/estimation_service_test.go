package app

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/domain/geometry"
	"gocausal/internal/editor"
	"gocausal/ports"
)

type MockEstimator struct {
	mock.Mock
}

func (m *MockEstimator) ModelList(ctx context.Context) ([]ports.ModelDescriptor, error) {
	args := m.Called(ctx)
	return args.Get(0).([]ports.ModelDescriptor), args.Error(1)
}

func (m *MockEstimator) ModelOptions(ctx context.Context, model string) ([]ports.ModelParameter, error) {
	args := m.Called(ctx, model)
	return args.Get(0).([]ports.ModelParameter), args.Error(1)
}

func (m *MockEstimator) EstimateIntervention(ctx context.Context, req ports.InterventionRequest) (map[string]causal.Effect, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(map[string]causal.Effect), args.Error(1)
}

func (m *MockEstimator) EstimateInfluence(ctx context.Context, req ports.GraphRequest) (map[string]float64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(map[string]float64), args.Error(1)
}

func (m *MockEstimator) EstimateEdgeStrength(ctx context.Context, req ports.GraphRequest) (map[string]map[string]float64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(map[string]map[string]float64), args.Error(1)
}

func (m *MockEstimator) EstimateFit(ctx context.Context, req ports.GraphRequest) (float64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockEstimator) FindLatent(ctx context.Context, req ports.GraphRequest) ([]ports.LatentPair, error) {
	args := m.Called(ctx, req)
	return args.Get(0).([]ports.LatentPair), args.Error(1)
}

type recordingNotifier struct {
	mu     sync.Mutex
	sent   []ports.Notification
	scenes []editor.Scene
}

func (r *recordingNotifier) SceneChanged(_ core.SessionID, scene interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenes = append(r.scenes, scene.(editor.Scene))
}

func (r *recordingNotifier) Notify(_ core.SessionID, n ports.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) last() ports.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return ports.Notification{}
	}
	return r.sent[len(r.sent)-1]
}

type serverError struct{ msg string }

func (e *serverError) Error() string       { return "http 422: " + e.msg }
func (e *serverError) UserMessage() string { return e.msg }

// newSession builds a -> b plus a latent confounding a, with a focused.
func newSession(t *testing.T) *editor.Session {
	t.Helper()
	m := editor.NewSessionManager(editor.CanvasOptions{}, nil)
	s := m.Create()
	require.NoError(t, s.Canvas.Update(func(g *editor.GraphModel) error {
		for i, id := range []string{"a", "b"} {
			if _, err := g.AddNode(id, geometry.Point{X: float64(100 + 200*i), Y: 200}, causal.KindObserved); err != nil {
				return err
			}
		}
		if err := g.AddEdge(causal.Edge{Source: "a", Target: "b"}); err != nil {
			return err
		}
		if _, err := g.AddNode("latent_x", geometry.Point{X: 100, Y: 60}, causal.KindLatent); err != nil {
			return err
		}
		if err := g.AddEdge(causal.Edge{Source: "latent_x", Target: "a"}); err != nil {
			return err
		}
		return g.FocusNode("a")
	}))
	return s
}

func snapshot(s *editor.Session) (nodes []causal.Node, edges []causal.Edge) {
	s.Canvas.View(func(g *editor.GraphModel) { nodes, edges = g.Nodes(), g.Edges() })
	return
}

func observedOnly(req ports.GraphRequest) bool {
	if len(req.Nodes) != 2 || len(req.Edges) != 1 {
		return false
	}
	return req.Nodes[0].ID == "a" && req.Nodes[1].ID == "b" &&
		req.Edges[0] == ports.GraphEdge{Source: "a", Target: "b"}
}

func TestEstimateInfluenceMergesObservedResponse(t *testing.T) {
	est := new(MockEstimator)
	notes := &recordingNotifier{}
	svc := NewEstimationService(est, notes)
	sess := newSession(t)

	est.On("EstimateInfluence", mock.Anything, mock.MatchedBy(func(req ports.GraphRequest) bool {
		return observedOnly(req) && req.Focus == "a"
	})).Return(map[string]float64{"b": 0.5, "ghost": 1.0}, nil)

	res, err := svc.Estimate(context.Background(), sess, EstimateInfluence)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.False(t, res.Stale)
	assert.False(t, sess.Loading())

	nodes, _ := snapshot(sess)
	assert.Equal(t, 0.5, nodes[1].Influence["a"])
	assert.Equal(t, ports.LevelInfo, notes.last().Level)
	est.AssertExpectations(t)
}

func TestEstimateInterventionUsesTreatment(t *testing.T) {
	est := new(MockEstimator)
	svc := NewEstimationService(est, nil)
	sess := newSession(t)
	require.NoError(t, sess.Canvas.Update(func(g *editor.GraphModel) error {
		return g.SetTreatment("a", causal.TreatmentShift, "", "", "a + 1")
	}))

	est.On("EstimateIntervention", mock.Anything, mock.MatchedBy(func(req ports.InterventionRequest) bool {
		return !req.IsAtomic && req.Shift == "a + 1" && req.Focus == "a" && observedOnly(req.GraphRequest)
	})).Return(map[string]causal.Effect{"b": {Value: 0.8, ConfidenceInterval: [2]float64{0.6, 1.0}}}, nil)

	_, err := svc.Estimate(context.Background(), sess, EstimateIntervention)
	require.NoError(t, err)

	nodes, _ := snapshot(sess)
	assert.Equal(t, 0.8, nodes[1].ATE["a"].Value)
	est.AssertExpectations(t)
}

func TestEstimateEdgeStrengthAndFit(t *testing.T) {
	est := new(MockEstimator)
	svc := NewEstimationService(est, nil)
	sess := newSession(t)

	est.On("EstimateEdgeStrength", mock.Anything, mock.Anything).
		Return(map[string]map[string]float64{"b": {"a": 0.3}, "a": {"latent_x": 0.9}}, nil)
	est.On("EstimateFit", mock.Anything, mock.Anything).Return(0.77, nil)

	res, err := svc.Estimate(context.Background(), sess, EstimateEdgeStrength)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)

	res, err = svc.Estimate(context.Background(), sess, EstimateFit)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	nodes, edges := snapshot(sess)
	require.NotNil(t, nodes[0].FitScore)
	assert.Equal(t, 0.77, *nodes[0].FitScore)
	require.NotNil(t, edges[0].Weight)
	assert.Equal(t, 0.3, *edges[0].Weight)
}

func TestFindLatentAddsNodesWithoutFocus(t *testing.T) {
	est := new(MockEstimator)
	svc := NewEstimationService(est, nil)
	sess := newSession(t)
	require.NoError(t, sess.Canvas.Update(func(g *editor.GraphModel) error {
		g.ClearFocus()
		return nil
	}))

	est.On("FindLatent", mock.Anything, mock.MatchedBy(func(req ports.GraphRequest) bool {
		return req.Focus == ""
	})).Return([]ports.LatentPair{{N1: "a", N2: "b", Confounders: []causal.Confounder{{Name: "region", Score: 0.4}}}}, nil)

	res, err := svc.Estimate(context.Background(), sess, FindLatent)
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	nodes, edges := snapshot(sess)
	assert.Len(t, nodes, 4)
	assert.Len(t, edges, 4)
}

func TestEstimateGating(t *testing.T) {
	t.Run("no focus", func(t *testing.T) {
		est := new(MockEstimator)
		svc := NewEstimationService(est, nil)
		sess := newSession(t)
		require.NoError(t, sess.Canvas.Update(func(g *editor.GraphModel) error {
			g.ClearFocus()
			return nil
		}))

		_, err := svc.Estimate(context.Background(), sess, EstimateFit)
		assert.ErrorIs(t, err, core.ErrNoFocus)
		assert.False(t, sess.Loading())
		est.AssertNotCalled(t, "EstimateFit", mock.Anything, mock.Anything)
	})

	t.Run("latent focus", func(t *testing.T) {
		svc := NewEstimationService(new(MockEstimator), nil)
		sess := newSession(t)
		require.NoError(t, sess.Canvas.Update(func(g *editor.GraphModel) error { return g.FocusNode("latent_x") }))

		_, err := svc.Estimate(context.Background(), sess, EstimateInfluence)
		assert.ErrorIs(t, err, core.ErrNoFocus)
	})

	t.Run("cycle", func(t *testing.T) {
		est := new(MockEstimator)
		notes := &recordingNotifier{}
		svc := NewEstimationService(est, notes)
		sess := newSession(t)
		require.NoError(t, sess.Canvas.Update(func(g *editor.GraphModel) error {
			if err := g.AddEdge(causal.Edge{Source: "b", Target: "a"}); err != nil {
				return err
			}
			return g.FocusNode("a")
		}))

		_, err := svc.Estimate(context.Background(), sess, EstimateInfluence)
		assert.ErrorIs(t, err, core.ErrGraphHasCycle)
		assert.True(t, core.IsGatingError(err))
		assert.Equal(t, ports.LevelWarning, notes.last().Level)
		assert.Contains(t, notes.last().Message, "a")
		assert.False(t, sess.Loading())
	})

	t.Run("busy", func(t *testing.T) {
		svc := NewEstimationService(new(MockEstimator), nil)
		sess := newSession(t)
		require.True(t, sess.TryBeginLoading())

		_, err := svc.Estimate(context.Background(), sess, EstimateInfluence)
		assert.ErrorIs(t, err, core.ErrBusy)
		assert.True(t, sess.Loading(), "the in-flight request keeps the flag")
	})
}

func TestEstimateFailureLeavesGraphUntouched(t *testing.T) {
	est := new(MockEstimator)
	notes := &recordingNotifier{}
	svc := NewEstimationService(est, notes)
	sess := newSession(t)

	est.On("EstimateInfluence", mock.Anything, mock.Anything).
		Return(map[string]float64(nil), &serverError{msg: "singular matrix"})

	beforeNodes, beforeEdges := snapshot(sess)
	_, err := svc.Estimate(context.Background(), sess, EstimateInfluence)
	require.Error(t, err)

	afterNodes, afterEdges := snapshot(sess)
	assert.Equal(t, beforeNodes, afterNodes)
	assert.Equal(t, beforeEdges, afterEdges)
	assert.False(t, sess.Loading())

	last := notes.last()
	assert.Equal(t, ports.LevelError, last.Level)
	assert.Equal(t, "singular matrix", last.Message)
}

func TestEstimateAppliesStaleResponse(t *testing.T) {
	est := new(MockEstimator)
	svc := NewEstimationService(est, nil)
	sess := newSession(t)

	est.On("EstimateInfluence", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			_ = sess.Canvas.Update(func(g *editor.GraphModel) error {
				_, err := g.AddNode("c", geometry.Point{X: 500, Y: 200}, causal.KindObserved)
				return err
			})
		}).
		Return(map[string]float64{"b": 0.2, "c": 0.1}, nil)

	res, err := svc.Estimate(context.Background(), sess, EstimateInfluence)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, 2, res.Applied)
}

func TestStartRunsInBackground(t *testing.T) {
	est := new(MockEstimator)
	notes := &recordingNotifier{}
	svc := NewEstimationService(est, notes)
	sess := newSession(t)

	est.On("EstimateFit", mock.Anything, mock.Anything).Return(0.5, nil)

	require.NoError(t, svc.Start(sess, EstimateFit))
	svc.Wait()

	notes.mu.Lock()
	scenes := notes.scenes
	notes.mu.Unlock()
	require.Len(t, scenes, 2)
	assert.True(t, scenes[0].Loading, "scene pushed when loading starts")
	last := scenes[1]
	assert.False(t, last.Loading)
	require.Equal(t, "a", last.Nodes[0].ID)
	require.NotNil(t, last.Nodes[0].FitScore)
	assert.Equal(t, 0.5, *last.Nodes[0].FitScore)

	assert.False(t, sess.Loading())
	assert.Equal(t, "fit", notes.last().Kind)
	est.AssertExpectations(t)
}

func TestModelCalls(t *testing.T) {
	est := new(MockEstimator)
	notes := &recordingNotifier{}
	svc := NewEstimationService(est, notes)
	id := core.NewSessionID()

	est.On("ModelList", mock.Anything).Return([]ports.ModelDescriptor{{Name: "linear"}}, nil)
	est.On("ModelOptions", mock.Anything, "forest").
		Return([]ports.ModelParameter(nil), &serverError{msg: "unknown model"})

	models, err := svc.ModelList(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "linear", models[0].Name)

	_, err = svc.ModelOptions(context.Background(), id, "forest")
	assert.Error(t, err)
	assert.Equal(t, "unknown model", notes.last().Message)

	_, err = svc.ModelOptions(context.Background(), id, " ")
	assert.Error(t, err)
}

func TestParseEstimationKind(t *testing.T) {
	k, err := ParseEstimationKind(" Influence ")
	require.NoError(t, err)
	assert.Equal(t, EstimateInfluence, k)

	_, err = ParseEstimationKind("magic")
	assert.Error(t, err)
}
