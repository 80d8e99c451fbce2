// Package ingest implements the Ingestion Pipeline (C8): acquire, walk,
// chunk, embed, and persist one repository, reusing a prior persisted
// index when one already exists. The worker-pool fan-out over chunks — a
// bounded number of goroutines draining a buffered channel, with per-chunk
// failures logged and dropped rather than returned — is grounded on
// the teacher's concurrent indexing loop (internal/indexer/indexer.go's
// Run), generalized from file-at-a-time summarization to chunk-at-a-time
// embedding.
package ingest

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/anhhai680/deepwiki-sub000/internal/acquire"
	"github.com/anhhai680/deepwiki-sub000/internal/ai"
	"github.com/anhhai680/deepwiki-sub000/internal/chunk"
	"github.com/anhhai680/deepwiki-sub000/internal/engineerr"
	"github.com/anhhai680/deepwiki-sub000/internal/store"
	"github.com/anhhai680/deepwiki-sub000/internal/walk"
	"github.com/anhhai680/deepwiki-sub000/pkg/models"
)

// maxWorkers caps ingestion concurrency the same way the teacher capped
// its indexer ("Cap at 8 to avoid overwhelming the AI API").
const maxWorkers = 8

// Pipeline wires the Repository Acquirer, File Walker, Chunker, an
// embedding Provider, and a ChunkStore into the ingest(descriptor)
// operation named by §4.7.
type Pipeline struct {
	Store       store.ChunkStore
	Provider    ai.Provider
	Root        string
	ChunkConfig chunk.Config
}

// New returns a Pipeline ready to ingest descriptors into root's
// <root>/repos and <root>/databases layout.
func New(st store.ChunkStore, provider ai.Provider, root string) *Pipeline {
	return &Pipeline{Store: st, Provider: provider, Root: root, ChunkConfig: chunk.DefaultConfig}
}

// Ingest resolves descriptor to a RepositoryIndex, reusing a prior
// persisted index for the same repo_id untouched if one already has
// chunks, and otherwise walking, chunking, embedding, and persisting
// fresh per §4.7's steps.
func (p *Pipeline) Ingest(ctx context.Context, descriptor models.Descriptor) (models.RepositoryIndex, error) {
	repoID := descriptor.RepoID()

	repos, err := p.Store.GetRepositories(ctx)
	if err != nil {
		return models.RepositoryIndex{}, engineerr.Ingestion(err, "listing repositories")
	}
	for _, r := range repos {
		if r == repoID {
			log.Info().Str("repo_id", repoID).Msg("reusing persisted index")
			return models.RepositoryIndex{RepoID: repoID, VectorDimension: p.Provider.Dim()}, nil
		}
	}

	path, err := acquire.Acquire(ctx, descriptor, p.Root)
	if err != nil {
		return models.RepositoryIndex{}, err
	}

	filter := walk.FilterSet{
		IncludeDirs:  descriptor.IncludeDirs,
		IncludeFiles: descriptor.IncludeFiles,
		ExcludeDirs:  descriptor.ExcludeDirs,
		ExcludeFiles: descriptor.ExcludeFiles,
	}
	files, err := walk.Walk(path, filter)
	if err != nil {
		return models.RepositoryIndex{}, engineerr.Ingestion(err, "walking %s", repoID)
	}

	chunks := make([]models.Chunk, 0, len(files)*4)
	for _, f := range files {
		for _, c := range chunk.Chunk(f, p.ChunkConfig) {
			c.Repository = repoID
			c.Ref = descriptor.Ref
			chunks = append(chunks, c)
		}
	}

	if err := p.embedAndStore(ctx, repoID, chunks); err != nil {
		return models.RepositoryIndex{}, err
	}

	return models.RepositoryIndex{
		RepoID:          repoID,
		Chunks:          chunks,
		VectorDimension: p.Provider.Dim(),
		PersistPath:     path,
		BuildTimestamp:  store.BuildTimestamp(),
	}, nil
}

type workItem struct {
	chunk models.Chunk
}

// embedAndStore fans chunks out across a bounded worker pool, each worker
// embedding and upserting one chunk at a time; a per-chunk embedding
// failure drops only that chunk (§4.7: "per-file embedding failures drop
// that file's chunks"), while a context cancellation aborts the whole
// ingestion without partial persistence.
func (p *Pipeline) embedAndStore(ctx context.Context, repository string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return engineerr.Ingestion(fmt.Errorf("no files discovered"), "ingesting %s", repository)
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > maxWorkers {
		numWorkers = maxWorkers
	}
	if numWorkers > len(chunks) {
		numWorkers = len(chunks)
	}

	workChan := make(chan workItem, numWorkers*2)
	var wg sync.WaitGroup
	var stored int
	var mu sync.Mutex

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workChan {
				vecs, err := p.Provider.Embed(ctx, []string{item.chunk.Content})
				if err != nil {
					log.Warn().Err(err).Str("path", item.chunk.Path).Msg("embedding failed, dropping chunk")
					continue
				}
				hash := chunk.ContentHash(item.chunk.Content)
				c := item.chunk
				c.ID = chunk.ID(c.Path, c.LineStart, c.LineEnd)
				if err := p.Store.UpsertChunk(ctx, c, vecs[0], hash); err != nil {
					log.Error().Err(err).Str("path", c.Path).Msg("upsert failed")
					continue
				}
				mu.Lock()
				stored++
				mu.Unlock()
			}
		}()
	}

	for _, c := range chunks {
		select {
		case workChan <- workItem{chunk: c}:
		case <-ctx.Done():
			close(workChan)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(workChan)
	wg.Wait()

	if stored == 0 {
		return engineerr.Ingestion(fmt.Errorf("no chunk survived embedding"), "ingesting %s", repository)
	}
	return nil
}
