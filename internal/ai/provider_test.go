package ai

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestNewProviderDefaultsToStub(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Dim() != 8 {
		t.Fatalf("expected default stub dim, got %d", p.Dim())
	}
}

func TestNewProviderRejectsUnknown(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Provider: "nonsense"})
	if err == nil {
		t.Fatal("expected an error for unknown provider")
	}
}

func TestSliceStreamEmitsThenEOF(t *testing.T) {
	s := newSliceStream("a", "b")
	ctx := context.Background()
	first, err := s.Next(ctx)
	if err != nil || first != "a" {
		t.Fatalf("expected %q, got %q err=%v", "a", first, err)
	}
	second, err := s.Next(ctx)
	if err != nil || second != "b" {
		t.Fatalf("expected %q, got %q err=%v", "b", second, err)
	}
	if _, err := s.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestWithRetryStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), time.Second, func() (any, error) {
		calls++
		return nil, errors.New("permanent")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one attempt for a non-retryable error, got %d", calls)
	}
}

func TestWithRetryRetriesRetryableErrorUntilSuccess(t *testing.T) {
	calls := 0
	out, err := withRetry(context.Background(), 2*time.Second, func() (any, error) {
		calls++
		if calls < 3 {
			return nil, retryable(errors.New("transient"))
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != "ok" || calls != 3 {
		t.Fatalf("expected success on third attempt, got out=%v calls=%d", out, calls)
	}
}

func TestIsTokenLimitErrorMatchesKnownPhrases(t *testing.T) {
	cases := []string{
		"this request exceeds the maximum context length",
		"token limit exceeded for this model",
		"too many tokens in the prompt",
	}
	for _, msg := range cases {
		if !IsTokenLimitError(errors.New(msg)) {
			t.Fatalf("expected %q to be classified as a token-limit error", msg)
		}
	}
	if IsTokenLimitError(errors.New("connection refused")) {
		t.Fatal("expected an unrelated error not to match")
	}
	if IsTokenLimitError(nil) {
		t.Fatal("expected nil error not to match")
	}
}

func TestStubEmbedMatchesConfiguredDimension(t *testing.T) {
	s := NewStub(16)
	vecs, err := s.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 16 {
		t.Fatalf("expected 2 vectors of dim 16, got %+v", vecs)
	}
}
