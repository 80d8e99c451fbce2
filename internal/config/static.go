package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/rs/zerolog/log"
)

// ProviderModelConfig is one provider entry in generator.json: its known
// models and the default model to use absent a request override.
type ProviderModelConfig struct {
	Models       []string `json:"models"`
	DefaultModel string   `json:"defaultModel"`
}

// GeneratorConfig is generator.json's shape (§6: "Model config endpoint").
type GeneratorConfig struct {
	DefaultProvider string                          `json:"defaultProvider"`
	Providers       map[string]ProviderModelConfig   `json:"providers"`
	ModelParams     map[string]map[string]any        `json:"modelParams,omitempty"`
}

// EmbedderConfig is embedder.json's shape: embedder, retriever, and
// text-splitter parameters.
type EmbedderConfig struct {
	EmbedderModel    string         `json:"embedderModel"`
	Dim              int            `json:"dim"`
	RetrieverTopK    int            `json:"retrieverTopK"`
	SplitterMaxTokens int           `json:"splitterMaxTokens"`
	SplitterOverlap  int            `json:"splitterOverlap"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// RepoConfig is repo.json's shape: default include/exclude filter lists.
type RepoConfig struct {
	ExcludedDirs  []string `json:"excludedDirs"`
	ExcludedFiles []string `json:"excludedFiles"`
	IncludedDirs  []string `json:"includedDirs,omitempty"`
	IncludedFiles []string `json:"includedFiles,omitempty"`
}

// StaticConfig bundles all three static documents.
type StaticConfig struct {
	Generator GeneratorConfig
	Embedder  EmbedderConfig
	Repo      RepoConfig
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnv replaces ${ENV_VAR} placeholders with process environment
// values. A placeholder whose variable is unset is left as the literal
// text and logged, per §6: "missing vars leave the literal placeholder and
// log a warning."
func substituteEnv(raw []byte) []byte {
	return envVarPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		v, ok := os.LookupEnv(string(name))
		if !ok {
			log.Warn().Str("var", string(name)).Msg("static config references unset environment variable")
			return match
		}
		return []byte(v)
	})
}

func loadJSON(path string, into any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	raw = substituteEnv(raw)
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// LoadStatic loads generator.json, embedder.json, and repo.json from dir.
// Any file absent from dir falls back to hardcoded defaults rather than
// failing, since a minimal deployment may rely entirely on env/flag
// configuration.
func LoadStatic(dir string) (StaticConfig, error) {
	sc := StaticConfig{
		Generator: defaultGeneratorConfig(),
		Embedder:  defaultEmbedderConfig(),
		Repo:      defaultRepoConfig(),
	}
	if dir == "" {
		return sc, nil
	}

	if p := filepath.Join(dir, "generator.json"); fileExists(p) {
		if err := loadJSON(p, &sc.Generator); err != nil {
			return StaticConfig{}, err
		}
	}
	if p := filepath.Join(dir, "embedder.json"); fileExists(p) {
		if err := loadJSON(p, &sc.Embedder); err != nil {
			return StaticConfig{}, err
		}
	}
	if p := filepath.Join(dir, "repo.json"); fileExists(p) {
		if err := loadJSON(p, &sc.Repo); err != nil {
			return StaticConfig{}, err
		}
	}
	return sc, nil
}

func defaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		DefaultProvider: "openai",
		Providers: map[string]ProviderModelConfig{
			"openai":     {Models: []string{"gpt-4o-mini", "gpt-4o"}, DefaultModel: "gpt-4o-mini"},
			"azure":      {Models: []string{"gpt-4o-mini"}, DefaultModel: "gpt-4o-mini"},
			"openrouter": {Models: []string{"openai/gpt-4o-mini"}, DefaultModel: "openai/gpt-4o-mini"},
			"dashscope":  {Models: []string{"qwen-plus"}, DefaultModel: "qwen-plus"},
			"bedrock":    {Models: []string{"anthropic.claude-3-5-sonnet-20240620-v1:0"}, DefaultModel: "anthropic.claude-3-5-sonnet-20240620-v1:0"},
			"ollama":     {Models: []string{"llama3"}, DefaultModel: "llama3"},
			"google":     {Models: []string{"gemini-2.0-flash"}, DefaultModel: "gemini-2.0-flash"},
			"private":    {Models: []string{"default"}, DefaultModel: "default"},
		},
	}
}

func defaultEmbedderConfig() EmbedderConfig {
	return EmbedderConfig{
		EmbedderModel:     "text-embedding-3-small",
		Dim:               1536,
		RetrieverTopK:     10,
		SplitterMaxTokens: 350,
		SplitterOverlap:   2,
	}
}

func defaultRepoConfig() RepoConfig {
	return RepoConfig{}
}
