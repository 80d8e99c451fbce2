package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/anhhai680/deepwiki-sub000/internal/similarity"
	"github.com/anhhai680/deepwiki-sub000/pkg/models"
)

// FileStore is the default Vector Store backend: one JSON document per
// repository at <root>/databases/<repo_id>.json, loaded fully into memory
// and reconciled to a single dominant embedding dimension on open. This is
// the zero-dependency persistence path the specification's default
// deployment relies on when no database is configured.
type FileStore struct {
	mu   sync.RWMutex
	root string

	// repository -> record, keyed for Upsert/GetChunkMeta lookups.
	records map[string][]Record
	dim     map[string]int
}

type fileStoreDocument struct {
	Records []Record `json:"records"`
}

// NewFileStore opens (or prepares to create) repository documents under
// <root>/databases/.
func NewFileStore(root string) (*FileStore, error) {
	dir := filepath.Join(root, "databases")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("preparing database directory: %w", err)
	}
	return &FileStore{
		root:    root,
		records: map[string][]Record{},
		dim:     map[string]int{},
	}, nil
}

func (f *FileStore) path(repository string) string {
	return filepath.Join(f.root, "databases", repository+".json")
}

// Migrate does nothing for the file backend and ignores summaryDim;
// persisted documents are loaded and reconciled by LoadRepository.
func (f *FileStore) Migrate(ctx context.Context, summaryDim int) error {
	return nil
}

// LoadRepository reads and reconciles a repository's persisted document,
// a no-op returning zero records if none exists yet.
func (f *FileStore) LoadRepository(repository string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path(repository))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", repository, err)
	}

	var doc fileStoreDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0, fmt.Errorf("parsing %s: %w", repository, err)
	}

	kept, dominant := Reconcile(doc.Records)
	f.records[repository] = kept
	f.dim[repository] = dominant
	return len(kept), nil
}

func (f *FileStore) persistLocked(repository string) error {
	doc := fileStoreDocument{Records: f.records[repository]}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path(repository), raw, 0o644)
}

// UpsertChunk inserts or replaces a chunk keyed by (ref, path, line span),
// the same identity the teacher's Postgres schema used for its conflict
// target.
func (f *FileStore) UpsertChunk(ctx context.Context, c models.Chunk, vec []float32, contentHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	recs := f.records[c.Repository]
	for i, r := range recs {
		if r.Chunk.Ref == c.Ref && r.Chunk.Path == c.Path && r.Chunk.LineStart == c.LineStart && r.Chunk.LineEnd == c.LineEnd {
			recs[i] = Record{Chunk: c, Vector: vec, ContentHash: contentHash}
			f.records[c.Repository] = recs
			return f.persistLocked(c.Repository)
		}
	}
	f.records[c.Repository] = append(recs, Record{Chunk: c, Vector: vec, ContentHash: contentHash})
	return f.persistLocked(c.Repository)
}

// GetChunkMeta reports whether a chunk already exists at the given
// identity, with its stored content hash. The Ingestion Pipeline does not
// call it.
func (f *FileStore) GetChunkMeta(ctx context.Context, repository, path string, ls, le int) (ChunkMeta, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, r := range f.records[repository] {
		if r.Chunk.Path == path && r.Chunk.LineStart == ls && r.Chunk.LineEnd == le {
			return ChunkMeta{ContentHash: r.ContentHash, Summary: r.Chunk.Summary, HasVector: len(r.Vector) > 0}, true, nil
		}
	}
	return ChunkMeta{}, false, nil
}

// GetRepositories lists every repository with a persisted document under
// <root>/databases/, loading (and reconciling, per §4.6) any document this
// process has not yet read into memory. This is what makes the Ingestion
// Pipeline's reuse check and the Vector Store's dimension reconciliation
// actually take effect across a process restart, rather than only within
// the process that first wrote a given repository.
func (f *FileStore) GetRepositories(ctx context.Context) ([]string, error) {
	dir := filepath.Join(f.root, "databases")
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	f.mu.RLock()
	loaded := make(map[string]bool, len(f.records))
	for repo := range f.records {
		loaded[repo] = true
	}
	f.mu.RUnlock()

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		repo := strings.TrimSuffix(e.Name(), ".json")
		if loaded[repo] {
			continue
		}
		if _, err := f.LoadRepository(repo); err != nil {
			return nil, err
		}
		loaded[repo] = true
	}

	out := make([]string, 0, len(loaded))
	for repo := range loaded {
		out = append(out, repo)
	}
	sort.Strings(out)
	return out, nil
}

// Search filters records by QueryOpts and ranks the survivors with a
// fresh Similarity Index (C7) built over just that candidate set,
// breaking ties by chunk ordinal for deterministic output as required by
// §4.6.
func (f *FileStore) Search(ctx context.Context, queryVec []float32, k int, opt QueryOpts) ([]models.SearchResult, error) {
	f.mu.RLock()
	recs := f.records[opt.Repository]
	cands := make([]Record, 0, len(recs))
	for _, r := range recs {
		if opt.Ref != "" && r.Chunk.Ref != opt.Ref {
			continue
		}
		if opt.Language != "" && r.Chunk.Language != opt.Language {
			continue
		}
		if opt.PathContains != "" && !strings.Contains(strings.ToLower(r.Chunk.Path), strings.ToLower(opt.PathContains)) {
			continue
		}
		cands = append(cands, r)
	}
	f.mu.RUnlock()

	if len(cands) == 0 || len(queryVec) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(cands))
	for i, c := range cands {
		vectors[i] = c.Vector
	}

	idx, err := similarity.Build(ctx, vectors, len(queryVec))
	if err != nil {
		return nil, fmt.Errorf("building similarity index: %w", err)
	}
	defer idx.Close()

	if k <= 0 || k > len(cands) {
		k = len(cands)
	}
	indices, scores, err := idx.Search(ctx, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("searching similarity index: %w", err)
	}

	out := make([]models.SearchResult, 0, len(indices))
	for i, idxPos := range indices {
		out = append(out, models.SearchResult{Chunk: cands[idxPos].Chunk, Score: scores[i]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.OrdinalWithinFile < out[j].Chunk.OrdinalWithinFile
	})
	return out, nil
}

// Close flushes nothing further; every mutation is persisted immediately.
func (f *FileStore) Close() error { return nil }
