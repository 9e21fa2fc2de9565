package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// summaryPrompt bounds the summarizer to a short, single-paragraph output.
const summaryPrompt = `Summarize the following team knowledge record in 2-3 sentences.
Focus on what was done or decided and why. Return ONLY the summary text.

%s`

// Genkit implements Port over a Genkit embedder and model. This is the
// default adapter; provider selection (Gemini, Ollama, OpenAI) happens at
// wiring time via Genkit plugins.
type Genkit struct {
	g         *genkit.Genkit
	embedder  ai.Embedder
	modelName string
	dimension int
	logger    *slog.Logger
}

var _ Port = (*Genkit)(nil)

// NewGenkit creates the Genkit-backed adapter. dimension is the fixed
// vector size every record in the deployment uses.
func NewGenkit(g *genkit.Genkit, embedder ai.Embedder, modelName string, dimension int, logger *slog.Logger) (*Genkit, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if dimension < 1 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Genkit{
		g:         g,
		embedder:  embedder,
		modelName: modelName,
		dimension: dimension,
		logger:    logger,
	}, nil
}

// Embed generates a vector embedding for the given text, retrying
// transient failures with bounded backoff.
func (e *Genkit) Embed(ctx context.Context, text string) ([]float32, error) {
	text = Truncate(text, EmbedCharBudget)
	dim := int32(e.dimension)

	var lastErr error
	for attempt := 0; attempt < maxEmbedAttempts; attempt++ {
		if attempt > 0 {
			e.logger.Debug("retrying embedding", "attempt", attempt+1)
			if err := sleepCtx(ctx, backoffDelay(attempt-1)); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrEmbeddingService, err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
		resp, err := e.embedder.Embed(callCtx, &ai.EmbedRequest{
			Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
			Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
		})
		cancel()

		if err != nil {
			lastErr = err
			continue
		}

		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty response", ErrMalformedEmbedding)
		}
		vec := resp.Embeddings[0].Embedding
		if len(vec) != e.dimension {
			return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrMalformedEmbedding, len(vec), e.dimension)
		}
		return vec, nil
	}

	return nil, fmt.Errorf("%w: %d attempts: %v", ErrEmbeddingService, maxEmbedAttempts, lastErr)
}

// Summarize generates a short summary, degrading to Excerpt on any
// failure. A single attempt only: summaries are a quality-of-life
// feature, not worth retry latency on the save path.
func (e *Genkit) Summarize(ctx context.Context, text string) (string, error) {
	input := Truncate(text, SummarizeCharBudget)

	callCtx, cancel := context.WithTimeout(ctx, SummarizeTimeout)
	defer cancel()

	resp, err := genkit.Generate(callCtx, e.g,
		ai.WithModelName(e.modelName),
		ai.WithPrompt(summaryPrompt, input),
		ai.WithConfig(&genai.GenerateContentConfig{
			MaxOutputTokens: 256,
		}),
	)
	if err != nil {
		e.logger.Warn("summarization failed, using excerpt fallback", "error", err)
		return Excerpt(text), nil
	}

	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		return Excerpt(text), nil
	}
	return summary, nil
}
