package query

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/anhhai680/deepwiki-sub000/internal/ai"
	"github.com/anhhai680/deepwiki-sub000/internal/config"
	"github.com/anhhai680/deepwiki-sub000/internal/ingest"
	"github.com/anhhai680/deepwiki-sub000/internal/memory"
	"github.com/anhhai680/deepwiki-sub000/internal/store"
	"github.com/anhhai680/deepwiki-sub000/pkg/models"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

func newTestPipeline(t *testing.T) (*Pipeline, models.Descriptor) {
	t.Helper()
	root := t.TempDir()
	repoDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(repoDir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := store.NewFileStore(root)
	if err != nil {
		t.Fatal(err)
	}
	provider := ai.NewStub(8)
	ingestPipeline := ingest.New(st, provider, root)

	resolver := config.NewResolver(config.Specification{Provider: "stub"}, config.StaticConfig{})
	sessions := memory.NewSessions(0, false)

	p := New(ingestPipeline, st, resolver, sessions)
	descriptor := models.Descriptor{HostKind: models.HostLocal, Locator: repoDir}
	return p, descriptor
}

func TestRunStreamsAnswerAndAppendsConversationTurn(t *testing.T) {
	p, descriptor := newTestPipeline(t)

	req := models.QueryRequest{
		Messages: []models.Message{{Role: models.RoleUser, Content: "what does main do?"}},
	}

	var fragments strings.Builder
	result, err := p.Run(context.Background(), "session-1", descriptor, req, config.Override{}, func(fragment string) {
		fragments.WriteString(fragment)
	})
	if err != nil {
		t.Fatal(err)
	}
	if fragments.Len() == 0 {
		t.Fatal("expected at least one streamed fragment")
	}
	if result.AnswerText != fragments.String() {
		t.Fatalf("expected result answer text to match streamed fragments, got %q vs %q", result.AnswerText, fragments.String())
	}
	if result.TokensUsed <= 0 {
		t.Fatal("expected a positive token estimate")
	}

	conversation := p.Sessions.Get("session-1")
	if conversation.Len() != 1 {
		t.Fatalf("expected one dialog turn appended, got %d", conversation.Len())
	}
	last, ok := conversation.Last()
	if !ok || last.UserText != "what does main do?" {
		t.Fatalf("unexpected last turn: %+v ok=%v", last, ok)
	}
}

func TestFetchPinnedReadsLocalFile(t *testing.T) {
	p, descriptor := newTestPipeline(t)
	if err := os.WriteFile(filepath.Join(descriptor.Locator, "README.md"), []byte("pinned body"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := p.fetchPinned(context.Background(), descriptor, "README.md")
	if got != "pinned body" {
		t.Fatalf("expected pinned file content, got %q", got)
	}
}

func TestFetchPinnedDegradesToEmptyOnMissingFile(t *testing.T) {
	p, descriptor := newTestPipeline(t)
	got := p.fetchPinned(context.Background(), descriptor, "does-not-exist.md")
	if got != "" {
		t.Fatalf("expected empty content for a missing pinned file, got %q", got)
	}
}

func TestFetchPinnedEmptyPathIsANoop(t *testing.T) {
	p, descriptor := newTestPipeline(t)
	if got := p.fetchPinned(context.Background(), descriptor, ""); got != "" {
		t.Fatalf("expected empty content when no path is pinned, got %q", got)
	}
}

func TestRunThreadsPinnedFileThroughPrompt(t *testing.T) {
	p, descriptor := newTestPipeline(t)
	if err := os.WriteFile(filepath.Join(descriptor.Locator, "NOTES.md"), []byte("pinned notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := models.QueryRequest{
		Messages:       []models.Message{{Role: models.RoleUser, Content: "what do the notes say?"}},
		PinnedFilePath: "NOTES.md",
	}

	result, err := p.Run(context.Background(), "session-pinned", descriptor, req, config.Override{}, func(string) {})
	if err != nil {
		t.Fatal(err)
	}
	if result.AnswerText == "" {
		t.Fatal("expected a non-empty answer with a pinned file set")
	}
}

func TestRunRejectsUnknownProviderOverride(t *testing.T) {
	p, descriptor := newTestPipeline(t)
	req := models.QueryRequest{
		Messages: []models.Message{{Role: models.RoleUser, Content: "hello"}},
	}

	_, err := p.Run(context.Background(), "session-2", descriptor, req, config.Override{ProviderID: "not-a-real-provider"}, func(string) {})
	if err == nil {
		t.Fatal("expected an error for an unresolvable provider override")
	}
}

func TestEstimateTokensIsQuarterOfByteLength(t *testing.T) {
	if got := estimateTokens("12345678"); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestLanguageNameFallsBackToEnglish(t *testing.T) {
	if got := languageName("xx"); got != "English" {
		t.Fatalf("expected fallback English, got %q", got)
	}
	if got := languageName("ja"); got != "Japanese" {
		t.Fatalf("expected Japanese, got %q", got)
	}
}
