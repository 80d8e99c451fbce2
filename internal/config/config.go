// Package config loads the engine's runtime configuration through the
// teacher's layering (internal/config/config.go in seanblong/reposearch):
// defaults, then YAML, then environment, then flags, each overriding the
// last. It additionally owns the persistence root and static provider/
// retrieval documents described in SPEC_FULL.md §A.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Specification is the fully resolved runtime configuration.
type Specification struct {
	Provider     string            `yaml:"provider"`
	APIKey       string            `yaml:"providerApiKey" envconfig:"PROVIDER_API_KEY"`
	EmbedModel   string            `yaml:"providerEmbedModel" envconfig:"PROVIDER_EMBEDDING_MODEL"`
	ChatModel    string            `yaml:"providerChatModel" envconfig:"PROVIDER_CHAT_MODEL"`
	ProjectID    string            `yaml:"providerProjectID" envconfig:"PROVIDER_PROJECT_ID"`
	Location     string            `yaml:"providerLocation" envconfig:"PROVIDER_LOCATION"`
	DeploymentID string            `yaml:"providerDeploymentID" envconfig:"PROVIDER_DEPLOYMENT_ID"`
	RoleARN      string            `yaml:"providerRoleARN" envconfig:"PROVIDER_ROLE_ARN"`
	Dim          int               `yaml:"providerDim" envconfig:"EMBED_DIM"`
	Database     string            `yaml:"database" envconfig:"DB_URL"`
	RootDir      string            `yaml:"rootDir" split_words:"true"`
	ConfigDir    string            `yaml:"configDir" split_words:"true"`
	GithubToken  string            `yaml:"githubToken" envconfig:"GITHUB_TOKEN"`
	GitlabToken  string            `yaml:"gitlabToken" envconfig:"GITLAB_TOKEN"`
	LogLevel     string            `yaml:"logLevel" split_words:"true"`
	Port         int               `yaml:"port" split_words:"true"`
	Auth         AuthSpecification `yaml:"auth"`

	flags *pflag.FlagSet `ignored:"true"`
}

// AuthSpecification configures the optional GitHub OAuth + JWT gate kept
// from the teacher (internal/auth/auth.go).
type AuthSpecification struct {
	Enabled            bool   `yaml:"enabled"`
	JwtSecret          string `yaml:"jwtSecret" split_words:"true"`
	GithubClientID     string `yaml:"githubClientID" split_words:"true"`
	GithubClientSecret string `yaml:"githubClientSecret" split_words:"true"`
	GithubRedirectURL  string `yaml:"githubRedirectURL" split_words:"true"`
	GithubAllowedOrg   string `yaml:"githubAllowedOrg" split_words:"true"`
}

const envPrefix = "ENGINE"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load resolves configuration in increasing precedence: defaults < YAML <
// environment < flags.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{"config/engine.yaml", "config/config.yaml", "./engine.yaml", "./config.yaml"} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	if strings.TrimSpace(cfg.RootDir) == "" {
		cfg.RootDir = "."
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.String("provider", c.Provider, "Default generation/embedding provider")
	fs.String("provider-api-key", c.APIKey, "Provider API key")
	fs.String("provider-embedding-model", c.EmbedModel, "Provider embedding model")
	fs.String("provider-chat-model", c.ChatModel, "Provider chat model")
	fs.String("provider-project-id", c.ProjectID, "Provider project ID")
	fs.String("provider-location", c.Location, "Provider location/region")
	fs.String("provider-deployment-id", c.DeploymentID, "Azure deployment ID")
	fs.String("provider-role-arn", c.RoleARN, "Bedrock role to assume")

	fs.Int("embed-dim", c.Dim, "Embedding dimensionality")
	fs.String("db-url", c.Database, "Optional shared-database DSN (Postgres ChunkStore)")

	fs.String("root-dir", c.RootDir, "Persistence root (repos/, databases/, wikicache/)")
	fs.String("config-dir", c.ConfigDir, "Override directory for generator.json/embedder.json/repo.json")
	fs.String("github-token", c.GithubToken, "GitHub API token")
	fs.String("gitlab-token", c.GitlabToken, "GitLab API token")

	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")

	fs.Bool("auth-enabled", c.Auth.Enabled, "Enable GitHub OAuth authentication")
	fs.String("auth-jwt-secret", c.Auth.JwtSecret, "JWT secret for signing tokens")
	fs.String("auth-github-client-id", c.Auth.GithubClientID, "GitHub OAuth App Client ID")
	fs.String("auth-github-client-secret", c.Auth.GithubClientSecret, "GitHub OAuth App Client Secret")
	fs.String("auth-github-redirect-url", c.Auth.GithubRedirectURL, "GitHub OAuth App Redirect URL")
	fs.String("auth-github-allowed-org", c.Auth.GithubAllowedOrg, "Optional: restrict login to a GitHub organization")

	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			*dst = v
		}
	}

	setStr("provider", &c.Provider)
	setStr("provider-api-key", &c.APIKey)
	setStr("provider-embedding-model", &c.EmbedModel)
	setStr("provider-chat-model", &c.ChatModel)
	setStr("provider-project-id", &c.ProjectID)
	setStr("provider-location", &c.Location)
	setStr("provider-deployment-id", &c.DeploymentID)
	setStr("provider-role-arn", &c.RoleARN)

	setInt("embed-dim", &c.Dim)
	setStr("db-url", &c.Database)

	setStr("root-dir", &c.RootDir)
	setStr("config-dir", &c.ConfigDir)
	setStr("github-token", &c.GithubToken)
	setStr("gitlab-token", &c.GitlabToken)

	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)

	setBool("auth-enabled", &c.Auth.Enabled)
	setStr("auth-jwt-secret", &c.Auth.JwtSecret)
	setStr("auth-github-client-id", &c.Auth.GithubClientID)
	setStr("auth-github-client-secret", &c.Auth.GithubClientSecret)
	setStr("auth-github-redirect-url", &c.Auth.GithubRedirectURL)
	setStr("auth-github-allowed-org", &c.Auth.GithubAllowedOrg)
}

func setDefaults(c *Specification) {
	c.LogLevel = "info"
	c.RootDir = "."
	c.Provider = "stub"
	c.Dim = 0
	c.Location = "us-central1"
	c.Port = 8080
	c.Auth.GithubRedirectURL = "http://localhost:3000/auth/callback"
	c.Auth.Enabled = false
}
