package research

import (
	"strings"
	"testing"
)

func TestSystemPromptIncludesRepoContext(t *testing.T) {
	p := PromptParams{RepoType: "github", RepoURL: "https://github.com/acme/widgets", RepoName: "widgets", LanguageName: "English"}
	got := SystemPrompt(ModeSimpleChat, p)
	if !strings.Contains(got, "widgets") || !strings.Contains(got, "English") {
		t.Fatalf("expected repo/language context in prompt, got %q", got)
	}
}

func TestSystemPromptFinalIterationMentionsSynthesis(t *testing.T) {
	p := PromptParams{RepoType: "github", RepoURL: "https://github.com/acme/widgets", RepoName: "widgets", LanguageName: "English", ResearchIter: 5}
	got := SystemPrompt(ModeFinalIteration, p)
	if !strings.Contains(got, "final iteration") {
		t.Fatalf("expected final-iteration language, got %q", got)
	}
	if !strings.Contains(got, "5") {
		t.Fatalf("expected iteration number rendered, got %q", got)
	}
}

func TestSystemPromptFirstIterationDoesNotMentionSynthesis(t *testing.T) {
	p := PromptParams{RepoType: "github", RepoURL: "https://github.com/acme/widgets", RepoName: "widgets", LanguageName: "English"}
	got := SystemPrompt(ModeFirstIteration, p)
	if strings.Contains(got, "final iteration") {
		t.Fatalf("did not expect final-iteration language in first-iteration prompt, got %q", got)
	}
}
