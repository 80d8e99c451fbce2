// Package ai is the unified provider abstraction (C5 embedder, C10
// generator): one small interface dispatched by provider ID, in the shape
// the teacher already used for its OpenAI/VertexAI clients
// (seanblong/reposearch internal/ai/client.go), extended to the full
// provider roster named in §4.9 of the specification.
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ProviderID enumerates the provider families the engine can bind to.
type ProviderID string

const (
	ProviderOpenAI     ProviderID = "openai"     // cloud chat API, OpenAI-style
	ProviderAzure      ProviderID = "azure"      // Azure OpenAI, deployment routing
	ProviderOpenRouter ProviderID = "openrouter" // managed multi-provider gateway
	ProviderBedrock    ProviderID = "bedrock"    // AWS Bedrock, role assumption
	ProviderDashScope  ProviderID = "dashscope"  // OpenAI-compatible managed API
	ProviderPrivate    ProviderID = "private"    // arbitrary self-hosted OpenAI-compatible endpoint
	ProviderOllama     ProviderID = "ollama"     // local-server family
	ProviderGoogle     ProviderID = "google"     // in-process Google generative model
	ProviderStub       ProviderID = "stub"       // deterministic test double
)

// Message is one chat turn sent to a provider.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// ChatRequest is the normalized input to a streaming chat call.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Stream is a lazy, finite sequence of text fragments with an explicit
// end-of-stream, cancellable via the context passed to the call that
// created it and never restartable once exhausted or cancelled.
type Stream interface {
	// Next blocks for the next fragment. It returns io.EOF when the
	// stream is exhausted.
	Next(ctx context.Context) (string, error)
	// Close releases any underlying connection. Safe to call multiple
	// times and after Next has returned io.EOF.
	Close() error
}

// Config binds one provider instance: credentials, routing, and the
// embedding dimension contract (§4.5.3).
type Config struct {
	Provider     ProviderID
	APIKey       string
	BaseURL      string // self-hosted/private endpoint, or override for hosted ones
	ChatModel    string
	EmbedModel   string
	Dim          int
	ProjectID    string // Google/GCP project, or AWS account context
	Location     string // Google region, or AWS region
	DeploymentID string // Azure deployment name
	RoleARN      string // Bedrock role to assume, if any
}

// Provider is the unified capability set: streaming chat generation plus
// batch/query embedding. Every concrete provider also reports its
// embedding dimension so the Vector Store can validate consistency before
// admitting vectors (§4.5.3).
type Provider interface {
	StreamChat(ctx context.Context, req ChatRequest) (Stream, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// NewProvider constructs a Provider for cfg.Provider. Unknown providers
// are a ValidationError at the caller (Configuration Resolver), not here;
// NewProvider returns a plain error so callers can wrap it as they see fit.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return newOpenAI(cfg), nil
	case ProviderAzure:
		return newAzure(cfg), nil
	case ProviderOpenRouter:
		return newOpenRouter(cfg), nil
	case ProviderDashScope:
		return newDashScope(cfg), nil
	case ProviderPrivate:
		return newPrivate(cfg), nil
	case ProviderOllama:
		return newOllama(cfg), nil
	case ProviderBedrock:
		return newBedrock(ctx, cfg)
	case ProviderGoogle:
		return newGoogle(ctx, cfg)
	case ProviderStub, "":
		return NewStub(cfg.Dim), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// retryableError marks an error as transient (timeout, rate-limit, 5xx,
// invalid-entity-on-retry) so withRetry will back off and try again.
type retryableError struct{ err error }

func (r retryableError) Error() string { return r.err.Error() }
func (r retryableError) Unwrap() error { return r.err }

func retryable(err error) error { return retryableError{err: err} }

func isRetryable(err error) bool {
	var r retryableError
	return errors.As(err, &r)
}

// withRetry retries fn with exponential backoff (full jitter) while err is
// retryable, bounded by a wall-clock cap. Other errors fail fast (§4.9).
func withRetry(ctx context.Context, wallClockCap time.Duration, fn func() (any, error)) (any, error) {
	deadline := time.Now().Add(wallClockCap)
	backoff := 250 * time.Millisecond
	attempt := 0
	for {
		out, err := fn()
		if err == nil || !isRetryable(err) {
			return out, unwrapRetryable(err)
		}
		attempt++
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempt, unwrapRetryable(err))
		}
		sleep := time.Duration(rand.Int63n(int64(backoff)))
		log.Warn().Err(err).Int("attempt", attempt).Dur("sleep", sleep).Msg("retrying transient provider error")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
		backoff *= 2
		if backoff > 8*time.Second {
			backoff = 8 * time.Second
		}
	}
}

func unwrapRetryable(err error) error {
	var r retryableError
	if errors.As(err, &r) {
		return r.err
	}
	return err
}

// IsTokenLimitError matches the provider error message patterns named in
// §4.11: "maximum context length", "token limit", "too many tokens".
func IsTokenLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"maximum context length", "token limit", "too many tokens"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// sliceStream turns a single complete string into a one-chunk Stream, used
// by providers that only return non-streaming responses (§4.9: "wrapping
// the non-streaming response as a single final chunk").
type sliceStream struct {
	chunks []string
	i      int
}

func newSliceStream(chunks ...string) *sliceStream { return &sliceStream{chunks: chunks} }

func (s *sliceStream) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.i >= len(s.chunks) {
		return "", io.EOF
	}
	c := s.chunks[s.i]
	s.i++
	return c, nil
}

func (s *sliceStream) Close() error { return nil }
