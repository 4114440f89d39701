// Package causalapi is the HTTP client of the remote causal-inference
// service. Requests are JSON POSTs to {base}/causal/<endpoint>; responses are
// read with gjson so that both wrapped ({"effects": {...}}) and bare bodies
// are accepted.
package causalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"gocausal/domain/causal"
	apperrors "gocausal/internal/errors"
	"gocausal/ports"
)

// Endpoint names under {base}/causal/.
const (
	endpointModels       = "models"
	endpointModelOptions = "model-options"
	endpointIntervention = "intervention"
	endpointInfluence    = "influence"
	endpointEdgeStrength = "edge-strength"
	endpointFit          = "fit"
	endpointLatent       = "latent"
)

// Config configures the client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// APIError is a non-2xx answer. Message is the server-provided text.
type APIError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("causal api %s: http %d: %s", e.Endpoint, e.Status, e.Message)
}

// UserMessage returns the server-provided text.
func (e *APIError) UserMessage() string { return e.Message }

// Client implements ports.CausalEstimator over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var (
	_ ports.CausalEstimator = (*Client)(nil)
	_ ports.MessageError    = (*APIError)(nil)
)

// NewClient creates a client. No retries are attempted.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing causal api base url")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: baseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// ModelList returns the models available for node fitting.
func (c *Client) ModelList(ctx context.Context) ([]ports.ModelDescriptor, error) {
	body, err := c.post(ctx, endpointModels, struct{}{})
	if err != nil {
		return nil, err
	}
	list := unwrap(body, "models")
	if !list.IsArray() {
		return nil, malformed(endpointModels, "expected a list of models")
	}

	var models []ports.ModelDescriptor
	for _, item := range list.Array() {
		if item.Type == gjson.String {
			models = append(models, ports.ModelDescriptor{Name: item.String()})
			continue
		}
		m := ports.ModelDescriptor{Name: item.Get("name").String()}
		for _, p := range item.Get("parameters").Array() {
			m.Parameters = append(m.Parameters, parseParameter(p))
		}
		models = append(models, m)
	}
	return models, nil
}

// ModelOptions returns the parameters of one model.
func (c *Client) ModelOptions(ctx context.Context, model string) ([]ports.ModelParameter, error) {
	body, err := c.post(ctx, endpointModelOptions, map[string]string{"model": model})
	if err != nil {
		return nil, err
	}
	list := unwrap(body, "options")
	if !list.IsArray() {
		return nil, malformed(endpointModelOptions, "expected a list of parameters")
	}
	var params []ports.ModelParameter
	for _, p := range list.Array() {
		params = append(params, parseParameter(p))
	}
	return params, nil
}

// EstimateIntervention returns the effect on each successor of the focus.
func (c *Client) EstimateIntervention(ctx context.Context, req ports.InterventionRequest) (map[string]causal.Effect, error) {
	body, err := c.post(ctx, endpointIntervention, req)
	if err != nil {
		return nil, err
	}
	obj := unwrap(body, "effects")
	if !obj.IsObject() {
		return nil, malformed(endpointIntervention, "expected an object of effects")
	}

	effects := make(map[string]causal.Effect)
	obj.ForEach(func(key, value gjson.Result) bool {
		eff := causal.Effect{Value: value.Get("ate").Float()}
		if ci := value.Get("confidenceInterval").Array(); len(ci) == 2 {
			eff.ConfidenceInterval = [2]float64{ci[0].Float(), ci[1].Float()}
		}
		effects[key.String()] = eff
		return true
	})
	return effects, nil
}

// EstimateInfluence returns each node's influence on the focus.
func (c *Client) EstimateInfluence(ctx context.Context, req ports.GraphRequest) (map[string]float64, error) {
	body, err := c.post(ctx, endpointInfluence, req)
	if err != nil {
		return nil, err
	}
	obj := unwrap(body, "influence")
	if !obj.IsObject() {
		return nil, malformed(endpointInfluence, "expected an object of influences")
	}
	out := make(map[string]float64)
	obj.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value.Float()
		return true
	})
	return out, nil
}

// EstimateEdgeStrength returns weights keyed by target, then source.
func (c *Client) EstimateEdgeStrength(ctx context.Context, req ports.GraphRequest) (map[string]map[string]float64, error) {
	body, err := c.post(ctx, endpointEdgeStrength, req)
	if err != nil {
		return nil, err
	}
	obj := unwrap(body, "weights")
	if !obj.IsObject() {
		return nil, malformed(endpointEdgeStrength, "expected an object of weights")
	}
	out := make(map[string]map[string]float64)
	obj.ForEach(func(target, sources gjson.Result) bool {
		bySource := make(map[string]float64)
		sources.ForEach(func(source, w gjson.Result) bool {
			bySource[source.String()] = w.Float()
			return true
		})
		out[target.String()] = bySource
		return true
	})
	return out, nil
}

// EstimateFit returns the fit score of the focus node.
func (c *Client) EstimateFit(ctx context.Context, req ports.GraphRequest) (float64, error) {
	body, err := c.post(ctx, endpointFit, req)
	if err != nil {
		return 0, err
	}
	v := unwrap(body, "fit")
	if v.Type != gjson.Number {
		return 0, malformed(endpointFit, "expected a numeric fit score")
	}
	return v.Float(), nil
}

// FindLatent returns the confounded pairs found in the graph.
func (c *Client) FindLatent(ctx context.Context, req ports.GraphRequest) ([]ports.LatentPair, error) {
	body, err := c.post(ctx, endpointLatent, req)
	if err != nil {
		return nil, err
	}
	list := unwrap(body, "latents")
	if !list.IsArray() {
		return nil, malformed(endpointLatent, "expected a list of latent pairs")
	}

	var pairs []ports.LatentPair
	for _, item := range list.Array() {
		p := ports.LatentPair{
			N1: item.Get("n1").String(),
			N2: item.Get("n2").String(),
		}
		for _, cf := range item.Get("confounders").Array() {
			p.Confounders = append(p.Confounders, causal.Confounder{
				Name:  cf.Get("name").String(),
				Score: cf.Get("score").Float(),
			})
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", endpoint, err)
	}

	url := c.baseURL + "/causal/" + endpoint
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperrors.ExternalServiceError("causal", fmt.Errorf("%s request failed: %w", endpoint, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	log.Printf("[CausalAPI] %s -> %d in %s", endpoint, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.ExternalServiceError("causal", &APIError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Message:  errorMessage(body, resp.StatusCode),
		})
	}
	if !gjson.ValidBytes(body) {
		return nil, malformed(endpoint, "response is not valid JSON")
	}
	return body, nil
}

// unwrap returns body[key] when present, otherwise the whole body.
func unwrap(body []byte, key string) gjson.Result {
	if r := gjson.GetBytes(body, key); r.Exists() {
		return r
	}
	return gjson.ParseBytes(body)
}

func errorMessage(body []byte, status int) string {
	for _, field := range []string{"message", "error", "detail"} {
		if m := gjson.GetBytes(body, field); m.Exists() && m.String() != "" {
			return m.String()
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
		return text
	}
	return http.StatusText(status)
}

func parseParameter(p gjson.Result) ports.ModelParameter {
	param := ports.ModelParameter{
		Name: p.Get("name").String(),
		Type: p.Get("type").String(),
	}
	if d := p.Get("default"); d.Exists() {
		param.Default = d.Value()
	}
	for _, ch := range p.Get("choices").Array() {
		param.Choices = append(param.Choices, ch.String())
	}
	return param
}

func malformed(endpoint, reason string) error {
	return apperrors.ExternalServiceError("causal", &APIError{Endpoint: endpoint, Status: http.StatusOK, Message: reason})
}
