package query

import (
	"fmt"
	"strings"

	"github.com/anhhai680/deepwiki-sub000/pkg/models"
)

// assembleInput is the material the Assemble stage needs to build one
// prompt, kept as plain fields rather than a growing parameter list.
type assembleInput struct {
	SystemPrompt  string
	History       []models.DialogTurn
	PinnedPath    string
	PinnedContent string
	Results       []models.SearchResult
	UserQuery     string
	SkipRetrieval bool
}

// assemblePrompt renders §4.8's labeled sections in order: system
// instructions, conversation history, pinned file, retrieved context
// grouped by source path, then the user query. When SkipRetrieval is set
// (the token-limit fallback path) retrieved context is replaced with an
// explicit note rather than omitted silently, per §4.11.
func assemblePrompt(in assembleInput) string {
	var b strings.Builder

	b.WriteString("## System Instructions\n")
	b.WriteString(in.SystemPrompt)
	b.WriteString("\n\n")

	if len(in.History) > 0 {
		b.WriteString("## Conversation History\n")
		for _, turn := range in.History {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", turn.UserText, turn.AssistantText)
		}
		b.WriteString("\n")
	}

	if in.PinnedPath != "" {
		fmt.Fprintf(&b, "## Pinned File: %s\n%s\n\n", in.PinnedPath, in.PinnedContent)
	}

	b.WriteString("## Retrieved Context\n")
	switch {
	case in.SkipRetrieval:
		b.WriteString("Retrieval augmentation was skipped for this turn due to a provider token-limit error; answering from conversation history and the pinned file only.\n\n")
	case len(in.Results) == 0:
		b.WriteString("No relevant context was retrieved for this query; answering without retrieval augmentation.\n\n")
	default:
		writeGroupedContext(&b, in.Results)
	}

	b.WriteString("## User Query\n")
	b.WriteString(in.UserQuery)
	b.WriteString("\n")

	return b.String()
}

// writeGroupedContext groups results by source path, each group under its
// own header, preserving the incoming (already score-ordered) sequence of
// first appearance.
func writeGroupedContext(b *strings.Builder, results []models.SearchResult) {
	order := make([]string, 0)
	grouped := map[string][]models.SearchResult{}
	for _, r := range results {
		if _, seen := grouped[r.Chunk.Path]; !seen {
			order = append(order, r.Chunk.Path)
		}
		grouped[r.Chunk.Path] = append(grouped[r.Chunk.Path], r)
	}

	for _, path := range order {
		fmt.Fprintf(b, "### %s\n", path)
		for _, r := range grouped[path] {
			fmt.Fprintf(b, "```%s\n%s\n```\n", r.Chunk.Language, r.Chunk.Content)
		}
	}
}
