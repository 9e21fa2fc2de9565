package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// Hosted implements Port against a raw JSON inference endpoint
// (HuggingFace-style hosted feature-extraction and summarization models).
// Unlike the Genkit adapter it must normalize the response shape itself:
// the endpoint may return a flat vector, a batch of one, or a
// batch × token × hidden tensor depending on the deployed model.
type Hosted struct {
	embedURL     string
	summarizeURL string
	apiKey       string
	dimension    int
	client       *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
}

var _ Port = (*Hosted)(nil)

// HostedConfig configures the hosted inference adapter.
type HostedConfig struct {
	EmbedURL     string
	SummarizeURL string // empty disables remote summarization (excerpt only)
	APIKey       string
	Dimension    int

	// RequestsPerSecond paces outbound calls to the shared endpoint.
	// Zero means 5 rps.
	RequestsPerSecond float64
}

// NewHosted creates the hosted inference adapter.
func NewHosted(cfg HostedConfig, logger *slog.Logger) (*Hosted, error) {
	if cfg.EmbedURL == "" {
		return nil, fmt.Errorf("embed URL is required")
	}
	if cfg.Dimension < 1 {
		return nil, fmt.Errorf("dimension must be positive, got %d", cfg.Dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &Hosted{
		embedURL:     cfg.EmbedURL,
		summarizeURL: cfg.SummarizeURL,
		apiKey:       cfg.APIKey,
		dimension:    cfg.Dimension,
		client:       &http.Client{Timeout: EmbedTimeout},
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		logger:       logger,
	}, nil
}

// Embed calls the feature-extraction endpoint and normalizes the result.
// Transient failures (429, 5xx, transport errors) are retried with
// bounded backoff; a shape the normalizer rejects is not.
func (h *Hosted) Embed(ctx context.Context, text string) ([]float32, error) {
	text = Truncate(text, EmbedCharBudget)

	var lastErr error
	for attempt := 0; attempt < maxEmbedAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoffDelay(attempt-1)); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrEmbeddingService, err)
			}
		}

		raw, retryable, err := h.post(ctx, h.embedURL, map[string]any{"inputs": text})
		if err != nil {
			lastErr = err
			if retryable {
				continue
			}
			return nil, err
		}

		vec, err := normalizeVector(raw)
		if err != nil {
			return nil, err
		}
		if len(vec) != h.dimension {
			return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrMalformedEmbedding, len(vec), h.dimension)
		}
		return vec, nil
	}

	return nil, fmt.Errorf("%w: %d attempts: %v", ErrEmbeddingService, maxEmbedAttempts, lastErr)
}

// Summarize calls the summarization endpoint once, falling back to
// Excerpt on any failure including rate limiting.
func (h *Hosted) Summarize(ctx context.Context, text string) (string, error) {
	if h.summarizeURL == "" {
		return Excerpt(text), nil
	}

	input := Truncate(text, SummarizeCharBudget)
	raw, _, err := h.post(ctx, h.summarizeURL, map[string]any{
		"inputs": input,
		"parameters": map[string]any{
			"max_length": 150,
			"min_length": 30,
		},
	})
	if err != nil {
		h.logger.Warn("summarization failed, using excerpt fallback", "error", err)
		return Excerpt(text), nil
	}

	// Expected shape: [{"summary_text": "..."}]
	var results []struct {
		SummaryText string `json:"summary_text"`
	}
	if err := json.Unmarshal(raw, &results); err != nil || len(results) == 0 {
		h.logger.Warn("unexpected summarization response, using excerpt fallback")
		return Excerpt(text), nil
	}

	summary := strings.TrimSpace(results[0].SummaryText)
	if summary == "" {
		return Excerpt(text), nil
	}
	return summary, nil
}

// post sends one JSON request and returns the response body. The second
// return reports whether the failure is worth retrying.
func (h *Hosted) post(ctx context.Context, url string, body any) (json.RawMessage, bool, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrEmbeddingService, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, false, fmt.Errorf("encoding inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("building inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrEmbeddingService, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, true, fmt.Errorf("%w: reading response: %v", ErrEmbeddingService, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return data, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: status %d", ErrEmbeddingService, resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("inference endpoint returned status %d: %s",
			resp.StatusCode, Truncate(string(data), 200))
	}
}
