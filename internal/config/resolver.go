package config

import (
	"fmt"

	"github.com/anhhai680/deepwiki-sub000/internal/ai"
)

// Override carries the per-request fields the Query Pipeline may specify.
// ProviderID and ModelID take precedence over static config and host
// defaults (§4.14). Temperature and MaxTokens are carried but not applied:
// Resolve does not read them and the resolved ai.Config has no such fields.
type Override struct {
	ProviderID  string
	ModelID     string
	Temperature float64
	MaxTokens   int
}

// Resolver merges static provider/model configuration with per-request
// overrides into a fully specified ai.Config, the Configuration Resolver
// named as C14.
type Resolver struct {
	spec   Specification
	static StaticConfig
}

// NewResolver binds a resolver to one runtime Specification and its static
// documents.
func NewResolver(spec Specification, static StaticConfig) *Resolver {
	return &Resolver{spec: spec, static: static}
}

// Resolve returns a fully specified ai.Config for override, or a
// descriptive error if the provider or model is unrecognized. The Query
// Pipeline MUST call this before generation begins (§4.14).
func (r *Resolver) Resolve(override Override) (ai.Config, error) {
	providerID := override.ProviderID
	if providerID == "" {
		providerID = r.static.Generator.DefaultProvider
	}
	if providerID == "" {
		providerID = r.spec.Provider
	}

	providerCfg, ok := r.static.Generator.Providers[providerID]
	if !ok && providerID != string(ai.ProviderStub) {
		return ai.Config{}, fmt.Errorf("unknown provider: %q", providerID)
	}

	modelID := override.ModelID
	if modelID == "" {
		modelID = providerCfg.DefaultModel
	}
	if modelID == "" && providerID != string(ai.ProviderStub) {
		return ai.Config{}, fmt.Errorf("unknown model for provider %q: no default configured", providerID)
	}
	if len(providerCfg.Models) > 0 && modelID != "" && !contains(providerCfg.Models, modelID) {
		return ai.Config{}, fmt.Errorf("unknown model %q for provider %q", modelID, providerID)
	}

	cfg := ai.Config{
		Provider:     ai.ProviderID(providerID),
		APIKey:       r.spec.APIKey,
		BaseURL:      "",
		ChatModel:    modelID,
		EmbedModel:   r.spec.EmbedModel,
		Dim:          r.spec.Dim,
		ProjectID:    r.spec.ProjectID,
		Location:     r.spec.Location,
		DeploymentID: r.spec.DeploymentID,
		RoleARN:      r.spec.RoleARN,
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = r.static.Embedder.EmbedderModel
	}
	if cfg.Dim == 0 {
		cfg.Dim = r.static.Embedder.Dim
	}
	return cfg, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
