package ai

import (
	"fmt"
	"net/http"
)

// newAzure binds the shared OpenAI-compatible client to an Azure OpenAI
// resource, which swaps bearer-auth for an api-key header and routes
// through a deployment ID rather than a bare model name.
func newAzure(cfg Config) Provider {
	if cfg.Dim == 0 {
		cfg.Dim = defaultOpenAIDim(cfg.EmbedModel)
	}
	base := cfg.BaseURL
	if cfg.DeploymentID != "" {
		base = fmt.Sprintf("%s/openai/deployments/%s", trimSlash(base), cfg.DeploymentID)
	}
	return newOpenAICompatClient(cfg, base, func(r *http.Request) {
		r.Header.Set("api-key", cfg.APIKey)
		q := r.URL.Query()
		q.Set("api-version", "2024-06-01")
		r.URL.RawQuery = q.Encode()
	})
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
