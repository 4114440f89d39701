package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal"
	"gocausal/internal/editor"
	apperrors "gocausal/internal/errors"
	"gocausal/ports"
)

// EstimationKind names one of the remote estimation calls.
type EstimationKind string

const (
	EstimateIntervention EstimationKind = "intervention"
	EstimateInfluence    EstimationKind = "influence"
	EstimateEdgeStrength EstimationKind = "edge_strength"
	EstimateFit          EstimationKind = "fit"
	FindLatent           EstimationKind = "latent"
)

// ParseEstimationKind validates a kind received over the API.
func ParseEstimationKind(s string) (EstimationKind, error) {
	switch k := EstimationKind(strings.ToLower(strings.TrimSpace(s))); k {
	case EstimateIntervention, EstimateInfluence, EstimateEdgeStrength, EstimateFit, FindLatent:
		return k, nil
	}
	return "", apperrors.InvalidInput(fmt.Sprintf("unknown estimation %q", s))
}

// needsFocus reports whether the call is about one particular node.
func (k EstimationKind) needsFocus() bool {
	return k == EstimateIntervention || k == EstimateInfluence || k == EstimateFit
}

// EstimationResult summarises a merged response.
type EstimationResult struct {
	Kind     EstimationKind `json:"kind"`
	Focus    string         `json:"focus,omitempty"`
	Applied  int            `json:"applied"`
	Created  []string       `json:"created,omitempty"`
	Stale    bool           `json:"stale"`
	Duration time.Duration  `json:"duration"`
}

// estimationJob is the snapshot a request is built from.
type estimationJob struct {
	kind     EstimationKind
	focus    string
	graph    ports.GraphRequest
	treat    causal.Node
	topology core.TopologyHash
}

// EstimationService runs estimation calls for editor sessions: it gates on
// focus, cycles and the loading flag, sends only the observed subgraph and
// merges responses back into the session's graph.
type EstimationService struct {
	estimator ports.CausalEstimator
	notifier  ports.Notifier
	scenes    ports.SceneListener
	logger    *internal.Logger

	wg sync.WaitGroup
}

// NewEstimationService creates the service. notifier may be nil; when it
// also implements ports.SceneListener it receives the scene whenever the
// loading flag flips or a response is merged.
func NewEstimationService(estimator ports.CausalEstimator, notifier ports.Notifier) *EstimationService {
	s := &EstimationService{
		estimator: estimator,
		notifier:  notifier,
		logger:    internal.DefaultLogger.WithComponent("Estimation"),
	}
	if l, ok := notifier.(ports.SceneListener); ok {
		s.scenes = l
	}
	return s
}

// Estimate runs one estimation call and merges its result.
func (s *EstimationService) Estimate(ctx context.Context, sess *editor.Session, kind EstimationKind) (*EstimationResult, error) {
	job, err := s.prepare(sess, kind)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, sess, job)
}

// Start gates and launches an estimation call in the background. Gating
// errors are returned immediately; the outcome is delivered through the
// notifier.
func (s *EstimationService) Start(sess *editor.Session, kind EstimationKind) error {
	job, err := s.prepare(sess, kind)
	if err != nil {
		return err
	}
	s.pushScene(sess)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.run(context.Background(), sess, job)
	}()
	return nil
}

// Wait blocks until background estimations have finished.
func (s *EstimationService) Wait() { s.wg.Wait() }

// prepare claims the loading flag and snapshots the request. The flag is
// released again on any gating failure.
func (s *EstimationService) prepare(sess *editor.Session, kind EstimationKind) (*estimationJob, error) {
	if !sess.TryBeginLoading() {
		return nil, core.ErrBusy
	}

	var (
		job    = &estimationJob{kind: kind}
		gate   error
		groups [][]string
	)
	sess.Canvas.View(func(g *editor.GraphModel) {
		if focus, ok := g.FocusedNode(); ok {
			n, _ := g.Node(focus)
			if n.Observed() {
				job.focus = focus
				job.treat = n
			}
		}
		if kind.needsFocus() && job.focus == "" {
			gate = core.ErrNoFocus
			return
		}
		if g.HasCycle() {
			groups = g.CycleGroups()
			gate = core.ErrGraphHasCycle
			return
		}
		nodes, edges := g.ObservedSubgraph()
		if len(nodes) == 0 {
			gate = core.ErrEmptyGraph
			return
		}
		job.graph = ports.NewGraphRequest(nodes, edges, job.focus)
		job.topology = g.TopologyHash()
	})

	if gate != nil {
		sess.EndLoading()
		if errors.Is(gate, core.ErrGraphHasCycle) {
			s.notify(sess.ID, ports.LevelWarning, "cycle",
				fmt.Sprintf("Estimation is disabled while the graph has cycles: %s", formatGroups(groups)))
		}
		return nil, gate
	}
	return job, nil
}

// run performs the call and merges the result. The loading flag is always
// cleared; a failed call leaves the graph untouched.
func (s *EstimationService) run(ctx context.Context, sess *editor.Session, job *estimationJob) (*EstimationResult, error) {
	defer s.pushScene(sess)
	defer sess.EndLoading()
	start := time.Now()

	merge, err := s.call(ctx, job)
	if err != nil {
		s.logger.Warn("%s estimation failed for session %s: %v", job.kind, sess.ID, err)
		s.notify(sess.ID, ports.LevelError, string(job.kind), UserMessage(err))
		return nil, apperrors.Wrapf(err, "%s estimation failed", job.kind)
	}

	result := &EstimationResult{Kind: job.kind, Focus: job.focus}
	_ = sess.Canvas.Update(func(g *editor.GraphModel) error {
		if current := g.TopologyHash(); current != job.topology {
			// Applied anyway: ids that no longer exist are skipped by the merge.
			result.Stale = true
			s.logger.Warn("%s response for session %s arrived after the graph changed", job.kind, sess.ID)
		}
		merge(g, result)
		return nil
	})
	result.Duration = time.Since(start)

	s.logger.Info("%s estimation for session %s applied to %d targets in %s",
		job.kind, sess.ID, result.Applied, result.Duration.Round(time.Millisecond))
	s.notify(sess.ID, ports.LevelInfo, string(job.kind), completionMessage(result))
	return result, nil
}

type mergeFunc func(g *editor.GraphModel, result *EstimationResult)

// call issues the request and returns how to merge its response.
func (s *EstimationService) call(ctx context.Context, job *estimationJob) (mergeFunc, error) {
	switch job.kind {
	case EstimateIntervention:
		effects, err := s.estimator.EstimateIntervention(ctx, ports.InterventionRequest{
			GraphRequest: job.graph,
			IsAtomic:     job.treat.Treatment != causal.TreatmentShift,
			Alternative:  job.treat.Alternative,
			Reference:    job.treat.Reference,
			Shift:        job.treat.Shift,
		})
		if err != nil {
			return nil, err
		}
		return func(g *editor.GraphModel, r *EstimationResult) {
			r.Applied = g.ApplyEffects(job.focus, effects)
		}, nil

	case EstimateInfluence:
		influence, err := s.estimator.EstimateInfluence(ctx, job.graph)
		if err != nil {
			return nil, err
		}
		return func(g *editor.GraphModel, r *EstimationResult) {
			r.Applied = g.ApplyInfluence(job.focus, influence)
		}, nil

	case EstimateEdgeStrength:
		weights, err := s.estimator.EstimateEdgeStrength(ctx, job.graph)
		if err != nil {
			return nil, err
		}
		return func(g *editor.GraphModel, r *EstimationResult) {
			r.Applied = g.ApplyEdgeWeights(weights)
		}, nil

	case EstimateFit:
		score, err := s.estimator.EstimateFit(ctx, job.graph)
		if err != nil {
			return nil, err
		}
		return func(g *editor.GraphModel, r *EstimationResult) {
			if g.ApplyFit(job.focus, score) {
				r.Applied = 1
			}
		}, nil

	case FindLatent:
		pairs, err := s.estimator.FindLatent(ctx, job.graph)
		if err != nil {
			return nil, err
		}
		findings := make([]editor.LatentFinding, len(pairs))
		for i, p := range pairs {
			findings[i] = editor.LatentFinding{N1: p.N1, N2: p.N2, Confounders: p.Confounders}
		}
		return func(g *editor.GraphModel, r *EstimationResult) {
			r.Created = g.AddLatents(findings)
			r.Applied = len(r.Created)
		}, nil
	}
	return nil, apperrors.InvalidInput(fmt.Sprintf("unknown estimation %q", job.kind))
}

// ModelList returns the models offered by the causal service.
func (s *EstimationService) ModelList(ctx context.Context, sessionID core.SessionID) ([]ports.ModelDescriptor, error) {
	models, err := s.estimator.ModelList(ctx)
	if err != nil {
		s.notify(sessionID, ports.LevelError, "models", UserMessage(err))
		return nil, apperrors.Wrap(err, "model list failed")
	}
	return models, nil
}

// ModelOptions returns the tunable parameters of a model.
func (s *EstimationService) ModelOptions(ctx context.Context, sessionID core.SessionID, model string) ([]ports.ModelParameter, error) {
	if strings.TrimSpace(model) == "" {
		return nil, apperrors.InvalidInput("model is required")
	}
	params, err := s.estimator.ModelOptions(ctx, model)
	if err != nil {
		s.notify(sessionID, ports.LevelError, "models", UserMessage(err))
		return nil, apperrors.Wrap(err, "model options failed")
	}
	return params, nil
}

// pushScene sends the current scene, loading flag included.
func (s *EstimationService) pushScene(sess *editor.Session) {
	if s.scenes == nil {
		return
	}
	s.scenes.SceneChanged(sess.ID, sess.Scene())
}

func (s *EstimationService) notify(id core.SessionID, level ports.NotificationLevel, kind, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(id, ports.Notification{
		Level:     level,
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// UserMessage is the text shown for a failed call: the server's own message
// when it sent one.
func UserMessage(err error) string {
	var msgErr ports.MessageError
	if errors.As(err, &msgErr) && msgErr.UserMessage() != "" {
		return msgErr.UserMessage()
	}
	return err.Error()
}

func completionMessage(r *EstimationResult) string {
	switch r.Kind {
	case FindLatent:
		if len(r.Created) == 0 {
			return "No latent confounders found"
		}
		return fmt.Sprintf("Added %d latent node(s)", len(r.Created))
	case EstimateEdgeStrength:
		return fmt.Sprintf("Updated %d edge weight(s)", r.Applied)
	}
	return fmt.Sprintf("%s estimated for %s", r.Kind, r.Focus)
}

func formatGroups(groups [][]string) string {
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = strings.Join(g, " → ")
	}
	return strings.Join(parts, "; ")
}
