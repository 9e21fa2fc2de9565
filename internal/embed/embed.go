// Package embed abstracts the hosted model that turns text into a
// fixed-length vector and, separately, into a short summary.
//
// Two adapters implement the Port: a Genkit-backed one (Gemini, Ollama or
// OpenAI via plugins) and a Hosted one that speaks raw JSON to an
// inference endpoint. Both own input truncation and output-shape
// normalization so the pipelines never see provider quirks.
//
// Summarization is best-effort by design: any failure degrades to a
// deterministic excerpt of the input and is never surfaced to callers.
// Embedding is on the critical path: transient failures are retried with
// bounded backoff, then surfaced.
package embed

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMalformedEmbedding indicates the model returned a vector shape
	// the adapter cannot normalize. Not retried; this is a contract
	// change, not a transient failure.
	ErrMalformedEmbedding = errors.New("malformed embedding response")

	// ErrEmbeddingService indicates a transient service failure
	// (timeout, rate limit) that exhausted its retries.
	ErrEmbeddingService = errors.New("embedding service unavailable")
)

// Input truncation budgets, a character-count proxy for the model context
// limits. The summarizer tolerates longer input than the embedder.
const (
	EmbedCharBudget     = 2000
	SummarizeCharBudget = 4000
)

// ExcerptLength is the size of the deterministic summary fallback.
const ExcerptLength = 200

// Retry policy for embedding calls.
const (
	maxEmbedAttempts = 3
	backoffBase      = 500 * time.Millisecond
)

// Per-call timeouts. No call to the model may block indefinitely.
const (
	EmbedTimeout     = 30 * time.Second
	SummarizeTimeout = 30 * time.Second
)

// Port is the embedding/summarization capability consumed by the
// ingestion and retrieval pipelines.
type Port interface {
	// Embed returns a fixed-length vector for the text. The input is
	// truncated to EmbedCharBudget before the model call.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Summarize returns a short natural-language summary. It never
	// fails: on any model error it returns Excerpt(text).
	Summarize(ctx context.Context, text string) (string, error)
}

// Truncate cuts text to at most budget runes.
func Truncate(text string, budget int) string {
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	return string(runes[:budget])
}

// Excerpt is the deterministic summary fallback: the first ExcerptLength
// runes of the input plus an ellipsis marker.
func Excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= ExcerptLength {
		return text
	}
	return string(runes[:ExcerptLength]) + "..."
}

// backoffDelay returns the delay before the given retry attempt
// (attempt is zero-based; the first retry waits backoffBase).
func backoffDelay(attempt int) time.Duration {
	return backoffBase << attempt
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
