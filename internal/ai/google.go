package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// googleProvider adapts the teacher's VertexAIClient (internal/ai/vertexai.go)
// to the unified Provider interface. The genai SDK's chat surface used here
// is non-streaming, so StreamChat wraps the complete response as the single
// final chunk the way §4.9 allows for providers without a verified streaming
// call shape — safer than guessing at an unconfirmed streaming method.
type googleProvider struct {
	cfg    Config
	client *genai.Client
}

func newGoogle(ctx context.Context, cfg Config) (Provider, error) {
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "text-embedding-005"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gemini-2.0-flash"
	}
	if cfg.Dim == 0 {
		cfg.Dim = 768
	}
	if cfg.Location == "" && strings.TrimSpace(cfg.APIKey) == "" {
		cfg.Location = "us-central1"
	}

	cc := genai.ClientConfig{Backend: genai.BackendVertexAI}
	if strings.TrimSpace(cfg.APIKey) != "" {
		cc.APIKey = cfg.APIKey
	}
	if strings.TrimSpace(cfg.ProjectID) != "" {
		cc.Project = cfg.ProjectID
	}
	if strings.TrimSpace(cfg.Location) != "" {
		cc.Location = cfg.Location
	}

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &googleProvider{cfg: cfg, client: client}, nil
}

func (p *googleProvider) Dim() int { return p.cfg.Dim }

func (p *googleProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *googleProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	cfg := genai.EmbedContentConfig{TaskType: "RETRIEVAL_DOCUMENT"}
	res, err := p.client.Models.EmbedContent(ctx, p.cfg.EmbedModel, genai.Text(text), &cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if res == nil || len(res.Embeddings) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return res.Embeddings[0].Values, nil
}

func (p *googleProvider) StreamChat(ctx context.Context, req ChatRequest) (Stream, error) {
	model := orDefault(req.Model, p.cfg.ChatModel)

	var sys *genai.Content
	var userParts []string
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			t := genai.Text(m.Content)
			sys = t[0]
		default:
			userParts = append(userParts, m.Content)
		}
	}

	temp := float32(req.Temperature)
	maxTokens := int32(req.MaxTokens)
	cfg := genai.GenerateContentConfig{}
	if temp > 0 {
		cfg.Temperature = &temp
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = maxTokens
	}
	if sys != nil {
		cfg.SystemInstruction = sys
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(strings.Join(userParts, "\n\n")), &cfg)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("no content returned")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(string(part.Text))
	}
	return newSliceStream(b.String()), nil
}
