package ai

import "net/http"

// newDashScope binds the shared OpenAI-compatible client to Alibaba
// DashScope's OpenAI-compatible mode (dashscope.aliyuncs.com/compatible-mode).
func newDashScope(cfg Config) Provider {
	if cfg.Dim == 0 {
		cfg.Dim = 1536
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	}
	return newOpenAICompatClient(cfg, base, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	})
}

// newPrivate binds the shared OpenAI-compatible client to an arbitrary
// self-hosted endpoint that speaks the same wire protocol, the escape
// hatch named in §4.9 for deployments not covered by a named provider.
func newPrivate(cfg Config) Provider {
	if cfg.Dim == 0 {
		cfg.Dim = 768
	}
	return newOpenAICompatClient(cfg, cfg.BaseURL, func(r *http.Request) {
		if cfg.APIKey != "" {
			r.Header.Set("Authorization", "Bearer "+cfg.APIKey)
		}
	})
}
