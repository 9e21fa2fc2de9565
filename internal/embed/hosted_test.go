package embed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/teamrecall/recall/internal/log"
)

func hostedForTest(t *testing.T, embedURL, summarizeURL string) *Hosted {
	t.Helper()
	h, err := NewHosted(HostedConfig{
		EmbedURL:          embedURL,
		SummarizeURL:      summarizeURL,
		Dimension:         3,
		RequestsPerSecond: 1000, // no pacing in tests
	}, log.NewNop())
	if err != nil {
		t.Fatalf("NewHosted() = %v", err)
	}
	return h
}

func TestHostedEmbed_FlatVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[0.1, 0.2, 0.3]`))
	}))
	defer srv.Close()

	vec, err := hostedForTest(t, srv.URL, "").Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embed() = %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("len(vec) = %d, want 3", len(vec))
	}
}

func TestHostedEmbed_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[[1, 2, 3]]`))
	}))
	defer srv.Close()

	vec, err := hostedForTest(t, srv.URL, "").Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed() = %v, want recovery after 429", err)
	}
	if len(vec) != 3 {
		t.Errorf("len(vec) = %d, want 3", len(vec))
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestHostedEmbed_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := hostedForTest(t, srv.URL, "").Embed(context.Background(), "text")
	if !errors.Is(err, ErrEmbeddingService) {
		t.Fatalf("Embed() = %v, want ErrEmbeddingService", err)
	}
	if calls.Load() != maxEmbedAttempts {
		t.Errorf("calls = %d, want %d", calls.Load(), maxEmbedAttempts)
	}
}

func TestHostedEmbed_MalformedNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"unexpected": true}`))
	}))
	defer srv.Close()

	_, err := hostedForTest(t, srv.URL, "").Embed(context.Background(), "text")
	if !errors.Is(err, ErrMalformedEmbedding) {
		t.Fatalf("Embed() = %v, want ErrMalformedEmbedding", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (shape errors are not transient)", calls.Load())
	}
}

func TestHostedEmbed_WrongDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[0.1, 0.2]`))
	}))
	defer srv.Close()

	_, err := hostedForTest(t, srv.URL, "").Embed(context.Background(), "text")
	if !errors.Is(err, ErrMalformedEmbedding) {
		t.Fatalf("Embed() = %v, want ErrMalformedEmbedding for dimension mismatch", err)
	}
}

func TestHostedSummarize_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"summary_text": "A concise summary."}]`))
	}))
	defer srv.Close()

	got, err := hostedForTest(t, srv.URL, srv.URL).Summarize(context.Background(), "long record text")
	if err != nil {
		t.Fatalf("Summarize() = %v", err)
	}
	if got != "A concise summary." {
		t.Errorf("Summarize() = %q", got)
	}
}

func TestHostedSummarize_FallsBackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	text := "the original record body"
	got, err := hostedForTest(t, srv.URL, srv.URL).Summarize(context.Background(), text)
	if err != nil {
		t.Fatalf("Summarize() = %v, must never fail", err)
	}
	if got != text {
		t.Errorf("Summarize() = %q, want excerpt fallback %q", got, text)
	}
}

func TestHostedSummarize_NoEndpoint(t *testing.T) {
	got, err := hostedForTest(t, "http://unused.invalid", "").Summarize(context.Background(), "short text")
	if err != nil {
		t.Fatalf("Summarize() = %v", err)
	}
	if got != "short text" {
		t.Errorf("Summarize() = %q, want excerpt of input", got)
	}
}
