// Package query implements the Query Pipeline (C9): Prepare, Retrieve,
// Assemble, Generate, Finalize, plus the token-limit fallback of §4.11.
// Each stage is a small method producing the value the next consumes, the
// same small-stage processing shape the ingestion pipeline uses, extended
// here with retrieval through the Vector Store, mode-aware prompt assembly,
// and streamed generation in place of a single non-streaming call.
package query

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/anhhai680/deepwiki-sub000/internal/acquire"
	"github.com/anhhai680/deepwiki-sub000/internal/ai"
	"github.com/anhhai680/deepwiki-sub000/internal/config"
	"github.com/anhhai680/deepwiki-sub000/internal/engineerr"
	"github.com/anhhai680/deepwiki-sub000/internal/ingest"
	"github.com/anhhai680/deepwiki-sub000/internal/memory"
	"github.com/anhhai680/deepwiki-sub000/internal/research"
	"github.com/anhhai680/deepwiki-sub000/internal/store"
	"github.com/anhhai680/deepwiki-sub000/pkg/models"
)

// inputTooLargeTokenThreshold is the original implementation's soft
// warning threshold: an assembled prompt above this token estimate is
// logged, never rejected (SPEC_FULL.md §C).
const inputTooLargeTokenThreshold = 7500

// Pipeline answers one QueryRequest against one already-configured
// repository, streaming generated text to the caller.
type Pipeline struct {
	Ingest   *ingest.Pipeline
	Store    store.ChunkStore
	Resolver *config.Resolver
	Sessions *memory.Sessions
	TopK     int
}

// New returns a Pipeline with a top_k of 10. Callers may set TopK
// afterwards; the retrieverTopK value from static embedder config is not
// read here.
func New(ing *ingest.Pipeline, st store.ChunkStore, resolver *config.Resolver, sessions *memory.Sessions) *Pipeline {
	return &Pipeline{Ingest: ing, Store: st, Resolver: resolver, Sessions: sessions, TopK: 10}
}

// Sink receives streamed answer fragments as they arrive.
type Sink func(fragment string)

// Run executes every stage of §4.8 for one request, streaming fragments
// to sink and appending a Dialog Turn to the session's Conversation on
// normal completion.
func (p *Pipeline) Run(ctx context.Context, sessionID string, descriptor models.Descriptor, req models.QueryRequest, override config.Override, sink Sink) (models.QueryResult, error) {
	conversation := p.Sessions.Get(sessionID)
	repoID := descriptor.RepoID()

	// Prepare.
	if _, err := p.Ingest.Ingest(ctx, descriptor); err != nil {
		return models.QueryResult{RepoID: repoID}, err
	}

	providerCfg, err := p.Resolver.Resolve(override)
	if err != nil {
		return models.QueryResult{RepoID: repoID}, engineerr.Validation("resolving provider/model: %v", err)
	}
	provider, err := ai.NewProvider(ctx, providerCfg)
	if err != nil {
		return models.QueryResult{RepoID: repoID}, engineerr.Validation("constructing provider: %v", err)
	}

	detection := research.Detect(req.Messages)
	userQuery := lastUserContent(detection.Messages)

	// Retrieve.
	results, err := p.retrieve(ctx, provider, repoID, descriptor.Ref, userQuery)
	if err != nil {
		return models.QueryResult{RepoID: repoID}, err
	}

	// Assemble.
	params := research.PromptParams{
		RepoType:     string(descriptor.HostKind),
		RepoURL:      descriptor.Locator,
		RepoName:     descriptor.ShortName(),
		LanguageName: languageName(req.Language),
		ResearchIter: detection.Iteration,
	}
	systemPrompt := research.SystemPrompt(detection.Mode, params)

	pinnedContent := p.fetchPinned(ctx, descriptor, req.PinnedFilePath)

	prompt := assemblePrompt(assembleInput{
		SystemPrompt:  systemPrompt,
		History:       conversation.Snapshot(),
		PinnedPath:    req.PinnedFilePath,
		PinnedContent: pinnedContent,
		Results:       results,
		UserQuery:     userQuery,
	})

	if estimateTokens(prompt) > inputTooLargeTokenThreshold {
		log.Warn().Int("estimated_tokens", estimateTokens(prompt)).Msg("input_too_large: assembled prompt exceeds soft threshold")
	}

	// Generate.
	var accumulated strings.Builder
	err = p.generate(ctx, provider, providerCfg, prompt, func(fragment string) {
		accumulated.WriteString(fragment)
		sink(fragment)
	})

	if err != nil {
		if ai.IsTokenLimitError(err) {
			return p.fallback(ctx, provider, providerCfg, repoID, systemPrompt, conversation, req, userQuery, pinnedContent, sink, &accumulated)
		}
		return models.QueryResult{RepoID: repoID}, engineerr.Transient(err, "generation failed")
	}

	// Finalize.
	conversation.Append(userQuery, accumulated.String())
	answer := accumulated.String()
	return models.QueryResult{
		RepoID:             repoID,
		AnswerText:         answer,
		TokensUsed:         estimateTokens(prompt) + estimateTokens(answer),
		DocumentsRetrieved: len(results),
	}, nil
}

// fetchPinned resolves req.PinnedFilePath to its content via the Repository
// Acquirer, when one is set. A fetch failure is logged and treated as no
// pinned content rather than failing the whole query — a missing or
// unreachable pinned file should degrade the answer, not block it.
func (p *Pipeline) fetchPinned(ctx context.Context, descriptor models.Descriptor, pinnedPath string) string {
	if pinnedPath == "" {
		return ""
	}
	content, err := acquire.FetchFile(ctx, descriptor, pinnedPath)
	if err != nil {
		log.Warn().Err(err).Str("path", pinnedPath).Msg("pinned file fetch failed, continuing without it")
		return ""
	}
	return content
}

// retrieve embeds the query and delegates ranking to the Vector Store,
// which ranks internally via the Similarity Index (file backend) or its
// own hybrid SQL scoring (Postgres backend).
func (p *Pipeline) retrieve(ctx context.Context, provider ai.Provider, repository, ref, userQuery string) ([]models.SearchResult, error) {
	qv, err := provider.EmbedQuery(ctx, userQuery)
	if err != nil {
		return nil, engineerr.Transient(err, "embedding query")
	}

	results, err := p.Store.Search(ctx, qv, p.TopK, store.QueryOpts{Repository: repository, Ref: ref, QueryText: userQuery})
	if err != nil {
		return nil, engineerr.Transient(err, "searching vector store")
	}
	return results, nil
}

func (p *Pipeline) generate(ctx context.Context, provider ai.Provider, cfg ai.Config, prompt string, onFragment func(string)) error {
	stream, err := provider.StreamChat(ctx, ai.ChatRequest{
		Model:    cfg.ChatModel,
		Messages: []ai.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		fragment, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		onFragment(fragment)
	}
}

// fallback re-invokes generation with retrieved context dropped, per
// §4.11's token-limit fallback.
func (p *Pipeline) fallback(ctx context.Context, provider ai.Provider, cfg ai.Config, repoID, systemPrompt string, conversation *memory.Conversation, req models.QueryRequest, userQuery, pinnedContent string, sink Sink, accumulated *strings.Builder) (models.QueryResult, error) {
	accumulated.Reset()
	prompt := assemblePrompt(assembleInput{
		SystemPrompt:  systemPrompt,
		History:       conversation.Snapshot(),
		PinnedPath:    req.PinnedFilePath,
		PinnedContent: pinnedContent,
		UserQuery:     userQuery,
		SkipRetrieval: true,
	})

	err := p.generate(ctx, provider, cfg, prompt, func(fragment string) {
		accumulated.WriteString(fragment)
		sink(fragment)
	})
	if err != nil {
		return models.QueryResult{RepoID: repoID}, engineerr.TokenLimit(err)
	}

	answer := accumulated.String()
	conversation.Append(userQuery, answer)
	return models.QueryResult{
		RepoID:             repoID,
		AnswerText:         answer,
		TokensUsed:         estimateTokens(prompt) + estimateTokens(answer),
		DocumentsRetrieved: 0,
	}, nil
}

func lastUserContent(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func languageName(code string) string {
	names := map[string]string{
		"en": "English", "ja": "Japanese", "zh": "Chinese", "es": "Spanish",
		"fr": "French", "de": "German", "pt": "Portuguese", "ko": "Korean",
	}
	if n, ok := names[code]; ok {
		return n
	}
	return "English"
}

func estimateTokens(s string) int {
	return len(s) / 4
}
