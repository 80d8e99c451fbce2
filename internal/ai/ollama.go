package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ollamaProvider speaks the OpenAI-compatible surface for chat (so it can
// reuse the shared streaming client) but Ollama's own native /api/embed
// endpoint for embeddings, which batches more directly than the
// OpenAI-compat shim. Grounded on bbiangul-go-reason/llm/ollama.go.
type ollamaProvider struct {
	*openAICompatClient
	nativeBase string
	model      string
}

func newOllama(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "llama3"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "nomic-embed-text"
	}
	base := cfg.BaseURL
	compat := newOpenAICompatClient(cfg, base+"/v1", func(r *http.Request) {
		// Ollama's local server does not require auth.
	})
	return &ollamaProvider{openAICompatClient: compat, nativeBase: base, model: cfg.EmbedModel}
}

// StreamChat prefixes the final user message with /no_think, suppressing
// chain-of-thought preambles on reasoning-tuned local models before
// delegating to the shared OpenAI-compatible streaming client.
func (p *ollamaProvider) StreamChat(ctx context.Context, req ChatRequest) (Stream, error) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			req.Messages[i].Content = "/no_think " + req.Messages[i].Content
			break
		}
	}
	return p.openAICompatClient.StreamChat(ctx, req)
}

func (p *ollamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, _ := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: texts})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.nativeBase+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, retryable(fmt.Errorf("ollama embed request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embed error %d: %s", resp.StatusCode, string(raw))
	}

	var out ollamaEmbedResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding ollama embed response: %w", err)
	}
	result := make([][]float32, len(out.Embeddings))
	for i, e := range out.Embeddings {
		result[i] = float64sToFloat32s(e)
	}
	return result, nil
}

func (p *ollamaProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ollama returned no embedding")
	}
	return out[0], nil
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func float64sToFloat32s(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
