package config

import "testing"

func TestResolverAppliesOverrideThenStaticDefault(t *testing.T) {
	static := StaticConfig{Generator: defaultGeneratorConfig(), Embedder: defaultEmbedderConfig()}
	r := NewResolver(Specification{Provider: "stub"}, static)

	cfg, err := r.Resolve(Override{ProviderID: "openai"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChatModel != "gpt-4o-mini" {
		t.Fatalf("expected default model to be filled in, got %q", cfg.ChatModel)
	}
}

func TestResolverRejectsUnknownProvider(t *testing.T) {
	r := NewResolver(Specification{}, StaticConfig{Generator: defaultGeneratorConfig()})
	if _, err := r.Resolve(Override{ProviderID: "not-a-provider"}); err == nil {
		t.Fatal("expected an unknown-provider error")
	}
}

func TestResolverRejectsUnknownModel(t *testing.T) {
	r := NewResolver(Specification{}, StaticConfig{Generator: defaultGeneratorConfig()})
	if _, err := r.Resolve(Override{ProviderID: "openai", ModelID: "not-a-model"}); err == nil {
		t.Fatal("expected an unknown-model error")
	}
}

func TestResolverHonorsExplicitModelOverride(t *testing.T) {
	r := NewResolver(Specification{}, StaticConfig{Generator: defaultGeneratorConfig()})
	cfg, err := r.Resolve(Override{ProviderID: "openai", ModelID: "gpt-4o"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChatModel != "gpt-4o" {
		t.Fatalf("expected explicit override to win, got %q", cfg.ChatModel)
	}
}
