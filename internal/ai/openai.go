package ai

import "net/http"

// newOpenAI binds the shared OpenAI-compatible client to the hosted OpenAI
// API, carrying forward the teacher's default model/dimension choices
// (this file previously held OpenAIClient; the HTTP plumbing moved into
// openaicompat.go so every OpenAI-wire provider shares it).
func newOpenAI(cfg Config) Provider {
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "text-embedding-3-small"
	}
	if cfg.Dim == 0 {
		cfg.Dim = defaultOpenAIDim(cfg.EmbedModel)
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return newOpenAICompatClient(cfg, base, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+cfg.APIKey)
		if cfg.ProjectID != "" {
			r.Header.Set("OpenAI-Project", cfg.ProjectID)
		}
	})
}

func defaultOpenAIDim(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	default:
		return 1536
	}
}
