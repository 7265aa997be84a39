package embedder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// HTTP is an Embedder backed by a CLIP-style inference service exposing
// POST /embed and POST /classify. Images travel base64-encoded in JSON.
type HTTP struct {
	baseURL string
	cfg     config
	limiter *rate.Limiter
}

// NewHTTP creates an HTTP embedder for the service at baseURL.
func NewHTTP(baseURL string, opts ...Option) *HTTP {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	h := &HTTP{baseURL: strings.TrimRight(baseURL, "/"), cfg: cfg}
	if cfg.rps > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(cfg.rps), 1)
	}
	return h
}

func (h *HTTP) Dimension() int { return h.cfg.dim }

// Model returns the configured model identifier.
func (h *HTTP) Model() string { return h.cfg.model }

type embedRequest struct {
	Model  string   `json:"model"`
	Image  string   `json:"image"`
	Labels []string `json:"labels,omitempty"`
}

// EmbedImage posts the image to /embed and unwraps whichever response shape
// the service returns.
func (h *HTTP) EmbedImage(ctx context.Context, img Image) ([]float32, error) {
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}
	raw, err := h.post(ctx, "/embed", embedRequest{Model: h.cfg.model, Image: base64.StdEncoding.EncodeToString(img.Data)})
	if err != nil {
		return nil, err
	}
	v, err := unwrapEmbedding(raw)
	if err != nil {
		return nil, err
	}
	if h.cfg.dim > 0 && len(v) != h.cfg.dim {
		return nil, fmt.Errorf("embedder: %s returned %d values, want %d", img.Name, len(v), h.cfg.dim)
	}
	return v, nil
}

// Classify posts the image and labels to /classify and returns the best label.
func (h *HTTP) Classify(ctx context.Context, img Image, labels []string) (int, error) {
	if len(labels) == 0 {
		return 0, ErrNoLabels
	}
	if len(img.Data) == 0 {
		return 0, ErrEmptyImage
	}
	raw, err := h.post(ctx, "/classify", embedRequest{
		Model:  h.cfg.model,
		Image:  base64.StdEncoding.EncodeToString(img.Data),
		Labels: labels,
	})
	if err != nil {
		return 0, err
	}
	return unwrapLabel(raw, len(labels))
}

func (h *HTTP) post(ctx context.Context, path string, body any) ([]byte, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embedder: rate limit wait: %w", err)
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("embedder: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.cfg.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.token)
	}

	started := time.Now()
	resp, err := h.cfg.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: %s request failed: %w", path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedder: read %s response: %w", path, err)
	}
	h.cfg.logger.WithFields(logrus.Fields{
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(started),
	}).Debug("embedder request")
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedder: %s returned %d: %s", path, resp.StatusCode, truncate(string(data), 200))
	}
	return data, nil
}

// embedResponse covers the shapes CLIP bindings commonly return.
type embedResponse struct {
	Embedding    []float32       `json:"embedding"`
	ImageEmbeds  json.RawMessage `json:"image_embeds"`
	PoolerOutput json.RawMessage `json:"pooler_output"`
	Data         []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func unwrapEmbedding(raw []byte) ([]float32, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return firstVector(trimmed)
	}
	var resp embedResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("embedder: decode embedding: %w", err)
	}
	switch {
	case len(resp.Embedding) > 0:
		return resp.Embedding, nil
	case len(resp.ImageEmbeds) > 0:
		return firstVector(resp.ImageEmbeds)
	case len(resp.PoolerOutput) > 0:
		return firstVector(resp.PoolerOutput)
	case len(resp.Data) > 0 && len(resp.Data[0].Embedding) > 0:
		return resp.Data[0].Embedding, nil
	}
	return nil, fmt.Errorf("embedder: response carries no embedding")
}

// firstVector accepts either a flat vector or a batch and returns the first row.
func firstVector(raw json.RawMessage) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		if len(flat) == 0 {
			return nil, fmt.Errorf("embedder: empty embedding")
		}
		return flat, nil
	}
	var batch [][]float32
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("embedder: decode embedding: %w", err)
	}
	if len(batch) == 0 || len(batch[0]) == 0 {
		return nil, fmt.Errorf("embedder: empty embedding batch")
	}
	return batch[0], nil
}

type classifyResponse struct {
	Index          *int        `json:"index"`
	Scores         []float64   `json:"scores"`
	LogitsPerImage [][]float64 `json:"logits_per_image"`
}

func unwrapLabel(raw []byte, n int) (int, error) {
	var resp classifyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, fmt.Errorf("embedder: decode classification: %w", err)
	}
	var best int
	switch {
	case resp.Index != nil:
		best = *resp.Index
	case len(resp.Scores) > 0:
		if len(resp.Scores) != n {
			return 0, fmt.Errorf("embedder: got %d scores for %d labels", len(resp.Scores), n)
		}
		best = argmax(resp.Scores)
	case len(resp.LogitsPerImage) > 0:
		row := resp.LogitsPerImage[0]
		if len(row) != n {
			return 0, fmt.Errorf("embedder: got %d logits for %d labels", len(row), n)
		}
		best = argmax(row)
	default:
		return 0, fmt.Errorf("embedder: response carries no classification")
	}
	if best < 0 || best >= n {
		return 0, fmt.Errorf("embedder: label index %d out of range [0,%d)", best, n)
	}
	return best, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Embedder = (*HTTP)(nil)
