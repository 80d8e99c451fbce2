package ai

import "net/http"

// newOpenRouter binds the shared OpenAI-compatible client to the
// OpenRouter gateway, which multiplexes many upstream model families
// behind one OpenAI-shaped API.
func newOpenRouter(cfg Config) Provider {
	if cfg.Dim == 0 {
		cfg.Dim = 1536
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://openrouter.ai/api/v1"
	}
	return newOpenAICompatClient(cfg, base, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+cfg.APIKey)
		r.Header.Set("HTTP-Referer", "https://github.com/anhhai680/deepwiki-sub000")
		r.Header.Set("X-Title", "deepwiki-sub000")
	})
}
