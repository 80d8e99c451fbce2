// Package walk enumerates a repository's files honoring include/exclude
// rulesets and token-size caps (C2 of the specification), reusing the
// teacher's godirwalk-based traversal (internal/indexer/indexer.go in
// seanblong/reposearch) but restructured around an explicit FilterSet and a
// two-pass, code-then-docs discovery order.
package walk

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"

	"github.com/anhhai680/deepwiki-sub000/internal/tokencount"
	"github.com/anhhai680/deepwiki-sub000/pkg/models"
)

// FileKind is the walker's internal classification, mapped to
// models.FileKind once a record is emitted.
type FileKind string

const (
	KindCode FileKind = "code"
	KindDoc  FileKind = "doc"
)

// FilterSet controls which files Walk admits. Filter mode is inclusion iff
// either include list is non-empty; otherwise exclusion (§4.2).
type FilterSet struct {
	IncludeDirs  []string
	IncludeFiles []string
	ExcludeDirs  []string
	ExcludeFiles []string
}

func (f FilterSet) inclusionMode() bool {
	return len(f.IncludeDirs) > 0 || len(f.IncludeFiles) > 0
}

func normalizeDir(d string) string {
	d = filepath.ToSlash(strings.TrimSpace(d))
	d = strings.Trim(d, "/")
	return d
}

func (f FilterSet) accepts(relPath string) bool {
	relSlash := filepath.ToSlash(relPath)
	base := filepath.Base(relSlash)
	parts := strings.Split(relSlash, "/")

	if f.inclusionMode() {
		for _, dir := range f.IncludeDirs {
			nd := normalizeDir(dir)
			if nd == "" {
				continue
			}
			for _, p := range parts[:max0(len(parts)-1)] {
				if p == nd {
					return true
				}
			}
			if strings.HasPrefix(relSlash, nd+"/") {
				return true
			}
		}
		for _, suf := range f.IncludeFiles {
			if suf != "" && strings.HasSuffix(base, suf) {
				return true
			}
		}
		return len(f.IncludeDirs) == 0 && len(f.IncludeFiles) == 0
	}

	for _, dir := range f.ExcludeDirs {
		nd := normalizeDir(dir)
		if nd == "" {
			continue
		}
		for _, p := range parts[:max0(len(parts)-1)] {
			if p == nd {
				return false
			}
		}
	}
	for _, name := range f.ExcludeFiles {
		if name != "" && base == name {
			return false
		}
	}
	for _, dir := range DefaultExcludedDirs {
		for _, p := range parts[:max0(len(parts)-1)] {
			if p == dir {
				return false
			}
		}
	}
	for _, name := range DefaultExcludedFiles {
		if base == name {
			return false
		}
	}
	return true
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// isTestFixture mirrors the File Record invariant: is_implementation is
// false iff the relative path or basename indicates a test fixture.
func isTestFixture(relPath string) bool {
	p := strings.ToLower(filepath.ToSlash(relPath))
	base := filepath.Base(p)
	markers := []string{"/test/", "/tests/", "/testdata/", "/fixtures/", "/mocks/", "/__mocks__/"}
	for _, m := range markers {
		if strings.Contains("/"+p, m) {
			return true
		}
	}
	return strings.HasSuffix(base, "_test.go") ||
		strings.HasSuffix(base, ".test.js") ||
		strings.HasSuffix(base, ".test.ts") ||
		strings.HasPrefix(base, "test_") ||
		strings.HasSuffix(base, "_test.py")
}

// Walk enumerates tree's files, applying filter, ordering code files before
// documentation files, and skipping (with a warning, not a failure) any
// file whose token count exceeds its per-kind cap.
func Walk(tree string, filter FilterSet) ([]models.FileRecord, error) {
	var code, docs []models.FileRecord

	err := godirwalk.Walk(tree, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de != nil && de.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(tree, path)
			if relErr != nil {
				rel = path
			}
			if !filter.accepts(rel) {
				return nil
			}
			kind, ok := classify(rel)
			if !ok {
				return nil
			}

			b, readErr := os.ReadFile(path)
			if readErr != nil {
				log.Warn().Err(readErr).Str("path", rel).Msg("failed to read file, skipping")
				return nil
			}

			content := string(b)
			tc := tokencount.Count(content, tokencount.FamilyGeneric)
			multiplier := 1.0
			if kind == KindCode {
				multiplier = 10.0
			}
			if tokencount.IsTooLarge(content, tokencount.FamilyGeneric, multiplier) {
				log.Warn().Str("path", rel).Int("tokens", tc).Msg("file exceeds per-kind token cap, skipping")
				return nil
			}

			rec := models.FileRecord{
				RelativePath:     rel,
				LanguageHint:     strings.TrimPrefix(extOf(rel), "."),
				RawBytes:         b,
				TokenCount:       tc,
				IsImplementation: !isTestFixture(rel),
			}
			if kind == KindCode {
				rec.Kind = models.FileCode
				code = append(code, rec)
			} else {
				rec.Kind = models.FileDoc
				docs = append(docs, rec)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(code, func(i, j int) bool { return code[i].RelativePath < code[j].RelativePath })
	sort.Slice(docs, func(i, j int) bool { return docs[i].RelativePath < docs[j].RelativePath })

	return append(code, docs...), nil
}
