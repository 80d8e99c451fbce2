package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/anhhai680/deepwiki-sub000/internal/ai"
	"github.com/anhhai680/deepwiki-sub000/internal/store"
	"github.com/anhhai680/deepwiki-sub000/pkg/models"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

func writeLocalRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestIngestWalksChunksEmbedsAndPersists(t *testing.T) {
	root := t.TempDir()
	repoDir := writeLocalRepo(t)

	st, err := store.NewFileStore(root)
	if err != nil {
		t.Fatal(err)
	}
	provider := ai.NewStub(8)
	p := New(st, provider, root)

	descriptor := models.Descriptor{HostKind: models.HostLocal, Locator: repoDir}
	idx, err := p.Ingest(context.Background(), descriptor)
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if idx.VectorDimension != 8 {
		t.Fatalf("expected dimension 8, got %d", idx.VectorDimension)
	}
}

func TestIngestReusesPersistedIndexAcrossProcessRestart(t *testing.T) {
	root := t.TempDir()
	repoDir := writeLocalRepo(t)
	descriptor := models.Descriptor{HostKind: models.HostLocal, Locator: repoDir}

	firstStore, err := store.NewFileStore(root)
	if err != nil {
		t.Fatal(err)
	}
	firstPipeline := New(firstStore, ai.NewStub(8), root)
	if _, err := firstPipeline.Ingest(context.Background(), descriptor); err != nil {
		t.Fatal(err)
	}

	// A fresh FileStore and Pipeline simulate a process restart: nothing
	// is loaded into memory yet, so reuse can only work if GetRepositories
	// reads the persisted document back off disk.
	restartedStore, err := store.NewFileStore(root)
	if err != nil {
		t.Fatal(err)
	}
	restartedPipeline := New(restartedStore, ai.NewStub(8), root)

	idx, err := restartedPipeline.Ingest(context.Background(), descriptor)
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Chunks) != 0 {
		t.Fatalf("expected reuse after restart to skip re-walking, got %d chunks", len(idx.Chunks))
	}

	results, err := restartedStore.Search(context.Background(), make([]float32, 8), 10, store.QueryOpts{Repository: descriptor.RepoID()})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected the restarted store to serve search results from the persisted document")
	}
}

func TestIngestReusesExistingPersistedIndex(t *testing.T) {
	root := t.TempDir()
	repoDir := writeLocalRepo(t)

	st, err := store.NewFileStore(root)
	if err != nil {
		t.Fatal(err)
	}
	provider := ai.NewStub(8)
	p := New(st, provider, root)
	descriptor := models.Descriptor{HostKind: models.HostLocal, Locator: repoDir}

	if _, err := p.Ingest(context.Background(), descriptor); err != nil {
		t.Fatal(err)
	}

	idx, err := p.Ingest(context.Background(), descriptor)
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Chunks) != 0 {
		t.Fatalf("expected reuse path to skip re-walking, got %d chunks", len(idx.Chunks))
	}
}
