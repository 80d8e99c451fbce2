// Package store implements the Vector Store (C6): per-repository
// persistence of {chunks, vectors, metadata} and the dominant-dimension
// reconciliation rule that keeps a heterogeneous embedding history from
// corrupting similarity search (§4.6). The interface shape and the hybrid
// semantic/lexical ranking formula are grounded on the teacher's Postgres
// store (internal/store/store.go), kept as the PostgresStore backend; the
// file-backed default is new, since the specification's default deployment
// has no database dependency.
package store

import (
	"context"
	"time"

	"github.com/anhhai680/deepwiki-sub000/pkg/models"
	"github.com/rs/zerolog/log"
)

// ChunkStore is the persistence and retrieval surface every backend
// implements, matching the teacher's ChunkStore contract generalized with
// a Close method. Dimension reconciliation is not part of the interface;
// FileStore applies Reconcile when it loads a persisted document.
type ChunkStore interface {
	GetRepositories(ctx context.Context) ([]string, error)
	Migrate(ctx context.Context, summaryDim int) error
	UpsertChunk(ctx context.Context, c models.Chunk, vec []float32, contentHash string) error
	Search(ctx context.Context, queryVec []float32, k int, opt QueryOpts) ([]models.SearchResult, error)
	GetChunkMeta(ctx context.Context, repository, path string, ls, le int) (ChunkMeta, bool, error)
	Close() error
}

// QueryOpts narrows a Search call the same way the teacher's store did:
// optional repository/ref/language/path filters plus the raw query text
// lexical ranking needs alongside the query vector.
type QueryOpts struct {
	Repository   string
	Ref          string
	Language     string
	PathContains string
	QueryText    string
}

// ChunkMeta is the subset of a persisted chunk's metadata that
// GetChunkMeta reports: its content hash, summary, and whether it has a
// vector.
type ChunkMeta struct {
	ContentHash string
	Summary     string
	HasVector   bool
}

// Record pairs one chunk with its embedding vector and content hash, the
// persisted unit written to <root>/databases/<repo_id>.json.
type Record struct {
	Chunk       models.Chunk `json:"chunk"`
	Vector      []float32    `json:"vector"`
	ContentHash string       `json:"content_hash"`
}

// Reconcile computes the dominant dimension among records' non-empty
// vectors and drops every record whose vector dimension differs, logging
// the offending source path per §4.6. A tie between dimensions goes to the
// one seen first in records. An empty input or an input with no valid
// embeddings returns (nil, 0).
func Reconcile(records []Record) ([]Record, int) {
	counts := map[int]int{}
	for _, r := range records {
		if len(r.Vector) > 0 {
			counts[len(r.Vector)]++
		}
	}
	dominant, best := 0, -1
	for _, r := range records {
		if n := counts[len(r.Vector)]; len(r.Vector) > 0 && n > best {
			dominant, best = len(r.Vector), n
		}
	}
	if best <= 0 {
		return nil, 0
	}

	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if len(r.Vector) != dominant {
			log.Warn().
				Str("source_path", r.Chunk.Path).
				Int("vector_dim", len(r.Vector)).
				Int("dominant_dim", dominant).
				Msg("dropping chunk with non-dominant embedding dimension")
			continue
		}
		kept = append(kept, r)
	}
	return kept, dominant
}

// BuildTimestamp exists so backends can stamp a RepositoryIndex without
// importing time directly in every caller.
func BuildTimestamp() time.Time { return time.Now() }
