package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestSpecificationDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	clearTestEnv(t)

	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "stub" {
		t.Errorf("Expected Provider 'stub', got %q", cfg.Provider)
	}
	if cfg.Location != "us-central1" {
		t.Errorf("Expected Location 'us-central1', got %q", cfg.Location)
	}
	if cfg.RootDir != "." {
		t.Errorf("Expected RootDir '.', got %q", cfg.RootDir)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected LogLevel 'info', got %q", cfg.LogLevel)
	}
	if cfg.Auth.Enabled != false {
		t.Errorf("Expected Auth.Enabled false, got %v", cfg.Auth.Enabled)
	}
	if cfg.Auth.GithubRedirectURL != "http://localhost:3000/auth/callback" {
		t.Errorf("Expected default redirect URL, got %q", cfg.Auth.GithubRedirectURL)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "test-config.yaml")

	yamlContent := `
provider: "openai"
providerApiKey: "test-api-key"
providerEmbedModel: "text-embedding-3-small"
providerChatModel: "gpt-4o-mini"
providerProjectID: "test-project"
providerLocation: "us-west1"
providerDim: 1536
rootDir: "/tmp/engine"
githubToken: "ghp_test123"
logLevel: "debug"
auth:
  enabled: true
  jwtSecret: "super-secret-key"
  githubClientID: "test-client-id"
  githubClientSecret: "test-client-secret"
  githubRedirectURL: "https://example.com/auth/callback"
  githubAllowedOrg: "test-org"
`

	if err := os.WriteFile(configFile, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	clearTestEnv(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	cfg, err := Load(configFile, fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "openai" {
		t.Errorf("Expected Provider 'openai', got %q", cfg.Provider)
	}
	if cfg.APIKey != "test-api-key" {
		t.Errorf("Expected APIKey 'test-api-key', got %q", cfg.APIKey)
	}
	if cfg.EmbedModel != "text-embedding-3-small" {
		t.Errorf("Expected EmbedModel 'text-embedding-3-small', got %q", cfg.EmbedModel)
	}
	if cfg.Dim != 1536 {
		t.Errorf("Expected Dim 1536, got %d", cfg.Dim)
	}
	if cfg.Auth.Enabled != true {
		t.Errorf("Expected Auth.Enabled true, got %v", cfg.Auth.Enabled)
	}
	if cfg.Auth.GithubClientID != "test-client-id" {
		t.Errorf("Expected Auth.GithubClientID 'test-client-id', got %q", cfg.Auth.GithubClientID)
	}
}

func TestLoadFromEnvironmentVariables(t *testing.T) {
	clearTestEnv(t)

	envVars := map[string]string{
		"ENGINE_PROVIDER":                  "google",
		"ENGINE_PROVIDER_API_KEY":          "env-api-key",
		"ENGINE_PROVIDER_EMBEDDING_MODEL":  "env-embed-model",
		"ENGINE_PROVIDER_CHAT_MODEL":       "env-chat-model",
		"ENGINE_PROVIDER_PROJECT_ID":       "env-project-id",
		"ENGINE_PROVIDER_LOCATION":         "europe-west1",
		"ENGINE_EMBED_DIM":                 "768",
		"ENGINE_ROOT_DIR":                  "/env/root",
		"ENGINE_GITHUB_TOKEN":              "ghp_env123",
		"ENGINE_LOG_LEVEL":                 "warn",
		"ENGINE_AUTH_ENABLED":              "true",
		"ENGINE_AUTH_JWT_SECRET":           "env-jwt-secret",
		"ENGINE_AUTH_GITHUB_CLIENT_ID":     "env-client-id",
		"ENGINE_AUTH_GITHUB_CLIENT_SECRET": "env-client-secret",
		"ENGINE_AUTH_GITHUB_REDIRECT_URL":  "https://env.com/auth/callback",
		"ENGINE_AUTH_GITHUB_ALLOWED_ORG":   "env-org",
	}

	for key, value := range envVars {
		t.Setenv(key, value)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "google" {
		t.Errorf("Expected Provider 'google', got %q", cfg.Provider)
	}
	if cfg.APIKey != "env-api-key" {
		t.Errorf("Expected APIKey 'env-api-key', got %q", cfg.APIKey)
	}
	if cfg.Dim != 768 {
		t.Errorf("Expected Dim 768, got %d", cfg.Dim)
	}
	if cfg.Auth.Enabled != true {
		t.Errorf("Expected Auth.Enabled true, got %v", cfg.Auth.Enabled)
	}
	if cfg.Auth.GithubClientID != "env-client-id" {
		t.Errorf("Expected Auth.GithubClientID 'env-client-id', got %q", cfg.Auth.GithubClientID)
	}
}

func TestLoadFromFlags(t *testing.T) {
	clearTestEnv(t)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	args := []string{
		"--provider", "google",
		"--provider-api-key", "flag-api-key",
		"--provider-embedding-model", "flag-embed-model",
		"--embed-dim", "2048",
		"--auth-enabled",
		"--auth-github-client-id", "flag-client-id",
		"--log-level", "error",
	}

	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = append([]string{"test"}, args...)

	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "google" {
		t.Errorf("Expected Provider 'google', got %q", cfg.Provider)
	}
	if cfg.APIKey != "flag-api-key" {
		t.Errorf("Expected APIKey 'flag-api-key', got %q", cfg.APIKey)
	}
	if cfg.Dim != 2048 {
		t.Errorf("Expected Dim 2048, got %d", cfg.Dim)
	}
	if cfg.Auth.Enabled != true {
		t.Errorf("Expected Auth.Enabled true, got %v", cfg.Auth.Enabled)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("Expected LogLevel 'error', got %q", cfg.LogLevel)
	}
}

func TestConfigPrecedence(t *testing.T) {
	clearTestEnv(t)

	t.Setenv("ENGINE_PROVIDER", "env-provider")
	t.Setenv("ENGINE_LOG_LEVEL", "env-level")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = []string{"test", "--provider", "flag-provider"}

	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "flag-provider" {
		t.Errorf("Expected Provider 'flag-provider' (flag should override env), got %q", cfg.Provider)
	}
	if cfg.LogLevel != "env-level" {
		t.Errorf("Expected LogLevel 'env-level' (from env), got %q", cfg.LogLevel)
	}
}

func TestAutoDiscoverConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	origWd, _ := os.Getwd()
	defer func() {
		if err := os.Chdir(origWd); err != nil {
			t.Logf("Failed to restore working directory: %v", err)
		}
	}()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change to temp directory: %v", err)
	}

	if err := os.WriteFile("config.yaml", []byte(`provider: "discovered"`), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	clearTestEnv(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "discovered" {
		t.Errorf("Expected Provider 'discovered' (from auto-discovered file), got %q", cfg.Provider)
	}
}

func TestConfigFileFromEnvironment(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "custom-config.yaml")

	if err := os.WriteFile(configFile, []byte(`provider: "env-config"`), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	clearTestEnv(t)
	t.Setenv("ENGINE_CONFIG", configFile)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "env-config" {
		t.Errorf("Expected Provider 'env-config' (from ENGINE_CONFIG), got %q", cfg.Provider)
	}
}

func TestInvalidYAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := "provider: \"test\"\ninvalid: yaml: content: [\n"
	if err := os.WriteFile(configFile, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("Failed to write invalid YAML file: %v", err)
	}

	clearTestEnv(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	_, err := Load(configFile, fs)
	if err == nil {
		t.Fatal("Expected error for invalid YAML file")
	}
	if !strings.Contains(err.Error(), "load yaml") {
		t.Errorf("Expected YAML load error, got: %v", err)
	}
}

func TestNonExistentConfigFile(t *testing.T) {
	clearTestEnv(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	_, err := Load("/non/existent/config.yaml", fs)
	if err == nil {
		t.Fatal("Expected error for non-existent config file")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Expected: config file not found, got: %v", err)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()

	existingFile := filepath.Join(tmpDir, "existing.txt")
	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !fileExists(existingFile) {
		t.Error("fileExists should return true for existing file")
	}
	if fileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("fileExists should return false for non-existent file")
	}
	if fileExists(tmpDir) {
		t.Error("fileExists should return false for directory")
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	yamlFile := filepath.Join(tmpDir, "test.yaml")

	type TestStruct struct {
		Name  string `yaml:"name"`
		Value int    `yaml:"value"`
	}

	if err := os.WriteFile(yamlFile, []byte("name: \"test\"\nvalue: 42\n"), 0644); err != nil {
		t.Fatalf("Failed to write YAML file: %v", err)
	}

	var result TestStruct
	if err := loadYAML(yamlFile, &result); err != nil {
		t.Fatalf("loadYAML failed: %v", err)
	}

	if result.Name != "test" || result.Value != 42 {
		t.Errorf("Expected {test 42}, got %+v", result)
	}

	if err := loadYAML("/non/existent/file.yaml", &result); err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestBindFlagsAndApplyChangedFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg := Specification{Provider: "initial", Dim: 1024}

	bindFlags(fs, &cfg)

	if f := fs.Lookup("provider"); f == nil || f.DefValue != "initial" {
		t.Fatal("provider flag not bound correctly")
	}
	if fs.Lookup("embed-dim") == nil {
		t.Fatal("embed-dim flag not found")
	}
	if fs.Lookup("auth-enabled") == nil {
		t.Fatal("auth-enabled flag not found")
	}

	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = []string{"test", "--provider", "changed", "--embed-dim", "2048", "--auth-enabled"}

	if err := fs.Parse(os.Args[1:]); err != nil {
		t.Fatalf("Flag parsing failed: %v", err)
	}
	applyChangedFlags(fs, &cfg)

	if cfg.Provider != "changed" || cfg.Dim != 2048 || !cfg.Auth.Enabled {
		t.Errorf("applyChangedFlags did not apply expected values: %+v", cfg)
	}
}

func TestLogLevelDefaulting(t *testing.T) {
	clearTestEnv(t)
	t.Setenv("ENGINE_LOG_LEVEL", "")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected LogLevel to default to 'info' when empty, got %q", cfg.LogLevel)
	}
}

func TestAllFlagsAreBound(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg := Specification{}
	bindFlags(fs, &cfg)

	expectedFlags := []string{
		"config", "provider", "provider-api-key", "provider-embedding-model",
		"provider-chat-model", "provider-project-id", "provider-location",
		"provider-deployment-id", "provider-role-arn",
		"embed-dim", "db-url", "root-dir", "config-dir", "github-token",
		"gitlab-token", "log-level", "auth-enabled", "auth-jwt-secret",
		"auth-github-client-id", "auth-github-client-secret",
		"auth-github-redirect-url", "auth-github-allowed-org",
	}

	for _, flagName := range expectedFlags {
		if fs.Lookup(flagName) == nil {
			t.Errorf("Flag %q not found", flagName)
		}
	}
}

func clearTestEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"ENGINE_CONFIG", "ENGINE_PROVIDER", "ENGINE_PROVIDER_API_KEY",
		"ENGINE_PROVIDER_EMBEDDING_MODEL", "ENGINE_PROVIDER_CHAT_MODEL",
		"ENGINE_PROVIDER_PROJECT_ID", "ENGINE_PROVIDER_LOCATION",
		"ENGINE_EMBED_DIM", "ENGINE_ROOT_DIR", "ENGINE_GITHUB_TOKEN",
		"ENGINE_LOG_LEVEL", "ENGINE_AUTH_ENABLED", "ENGINE_AUTH_JWT_SECRET",
		"ENGINE_AUTH_GITHUB_CLIENT_ID", "ENGINE_AUTH_GITHUB_CLIENT_SECRET",
		"ENGINE_AUTH_GITHUB_REDIRECT_URL", "ENGINE_AUTH_GITHUB_ALLOWED_ORG",
	}
	for _, envVar := range envVars {
		if err := os.Unsetenv(envVar); err != nil {
			t.Logf("Failed to unset environment variable %s: %v", envVar, err)
		}
	}
}
