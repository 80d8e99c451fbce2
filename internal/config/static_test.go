package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSubstituteEnvReplacesKnownVar(t *testing.T) {
	t.Setenv("STATIC_TEST_KEY", "sk-abc123")
	out := substituteEnv([]byte(`{"apiKey": "${STATIC_TEST_KEY}"}`))
	if string(out) != `{"apiKey": "sk-abc123"}` {
		t.Fatalf("unexpected substitution result: %s", out)
	}
}

func TestSubstituteEnvLeavesUnsetVarLiteral(t *testing.T) {
	os.Unsetenv("STATIC_TEST_UNSET_VAR")
	out := substituteEnv([]byte(`{"apiKey": "${STATIC_TEST_UNSET_VAR}"}`))
	if string(out) != `{"apiKey": "${STATIC_TEST_UNSET_VAR}"}` {
		t.Fatalf("expected literal placeholder to survive, got %s", out)
	}
}

func TestLoadStaticFallsBackToDefaultsWhenDirEmpty(t *testing.T) {
	sc, err := LoadStatic(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if sc.Generator.DefaultProvider == "" {
		t.Fatal("expected a default provider")
	}
	if sc.Embedder.Dim == 0 {
		t.Fatal("expected a default embed dimension")
	}
}

func TestLoadStaticReadsGeneratorJSON(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STATIC_TEST_OPENAI_KEY", "sk-real")
	content := `{
		"defaultProvider": "openai",
		"providers": {
			"openai": {"models": ["gpt-4o-mini"], "defaultModel": "gpt-4o-mini"}
		}
	}`
	if err := os.WriteFile(filepath.Join(dir, "generator.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	sc, err := LoadStatic(dir)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Generator.DefaultProvider != "openai" {
		t.Fatalf("expected openai, got %q", sc.Generator.DefaultProvider)
	}
	if sc.Generator.Providers["openai"].DefaultModel != "gpt-4o-mini" {
		t.Fatalf("unexpected provider config: %+v", sc.Generator.Providers["openai"])
	}
}
