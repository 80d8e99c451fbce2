// Package chunk splits file content into overlapping, token-bounded chunks
// with source metadata (C3). The splitting strategy — accumulate lines
// until the token cap, then back off to a line-granular overlap window —
// is grounded on the paragraph/overlap accumulator in
// bbiangul-go-reason/chunker/chunker.go, adapted from paragraphs to source
// lines so a chunk never splits inside a line (the chunker's "obvious
// atomic token unit").
package chunk

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/anhhai680/deepwiki-sub000/internal/tokencount"
	"github.com/anhhai680/deepwiki-sub000/pkg/models"
)

// Config controls chunk boundaries. Overlap is expressed in lines carried
// over from the tail of one chunk into the head of the next, keeping
// overlap consistent for one ingest run.
type Config struct {
	MaxTokens int
	Overlap   int
}

// DefaultConfig matches the embedder's retrieval chunk size used across the
// pack (§4.3 leaves the exact cap to the implementation).
var DefaultConfig = Config{MaxTokens: 350, Overlap: 2}

// Chunk splits one file record into ordered, overlapping chunks. Ordinals
// are 0-based and monotonic within the file.
func Chunk(file models.FileRecord, cfg Config) []models.Chunk {
	if cfg.MaxTokens <= 0 {
		cfg = DefaultConfig
	}
	lines := strings.Split(string(file.RawBytes), "\n")

	var out []models.Chunk
	ordinal := 0
	start := 0
	for start < len(lines) {
		end := start
		tokens := 0
		for end < len(lines) {
			lineTokens := tokencount.Count(lines[end], tokencount.FamilyGeneric)
			if end > start && tokens+lineTokens > cfg.MaxTokens {
				break
			}
			tokens += lineTokens
			end++
		}
		if end == start {
			end = start + 1 // a single oversized line still becomes its own chunk
		}

		content := strings.Join(lines[start:end], "\n")
		out = append(out, models.Chunk{
			Path:              file.RelativePath,
			Language:          file.LanguageHint,
			Content:           content,
			TokenCount:        tokencount.Count(content, tokencount.FamilyGeneric),
			LineStart:         start + 1,
			LineEnd:           end,
			OrdinalWithinFile: ordinal,
		})
		ordinal++

		if end >= len(lines) {
			break
		}
		next := end - cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// ContentHash returns the SHA-1 hash of a chunk's content, which the
// ingestion pipeline stores alongside each chunk. The pipeline does not
// compare stored hashes; it does not detect unchanged chunks on re-ingest.
func ContentHash(content string) string {
	h := sha1.Sum([]byte(content))
	return hex.EncodeToString(h[:])
}

// ID derives a stable chunk identifier from its source path and line span.
func ID(path string, lineStart, lineEnd int) string {
	h := sha1.Sum([]byte(path + "#" + strconv.Itoa(lineStart) + ":" + strconv.Itoa(lineEnd)))
	return hex.EncodeToString(h[:])
}
