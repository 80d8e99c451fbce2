// Command ingest runs the Ingestion Pipeline (C8) for a single repository,
// replacing the teacher's cmd/indexer entrypoint: acquiring the tree
// (remote clone or local passthrough), walking, chunking, embedding, and
// persisting to the configured Vector Store.
package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/anhhai680/deepwiki-sub000/internal/ai"
	"github.com/anhhai680/deepwiki-sub000/internal/config"
	"github.com/anhhai680/deepwiki-sub000/internal/ingest"
	"github.com/anhhai680/deepwiki-sub000/internal/store"
	"github.com/anhhai680/deepwiki-sub000/pkg/models"
)

func main() {
	fs := pflag.NewFlagSet("engine-ingest", pflag.ExitOnError)
	repoURL := fs.String("repo-url", "", "Repository URL (github/gitlab/bitbucket) or local path")
	hostKind := fs.String("host-kind", "local", "github|gitlab|bitbucket|local")
	ref := fs.String("ref", "", "Branch/tag/sha; defaults to the host's default branch")

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	if *repoURL == "" {
		log.Fatal("--repo-url is required")
	}

	static, err := config.LoadStatic(cfg.ConfigDir)
	if err != nil {
		log.Fatalf("failed to load static config: %v", err)
	}

	var credential string
	switch models.HostKind(*hostKind) {
	case models.HostGithub:
		credential = cfg.GithubToken
	case models.HostGitlab:
		credential = cfg.GitlabToken
	}

	descriptor := models.Descriptor{
		HostKind:     models.HostKind(*hostKind),
		Locator:      *repoURL,
		Ref:          *ref,
		Credential:   credential,
		ExcludeDirs:  static.Repo.ExcludedDirs,
		ExcludeFiles: static.Repo.ExcludedFiles,
		IncludeDirs:  static.Repo.IncludedDirs,
		IncludeFiles: static.Repo.IncludedFiles,
	}

	ctx := context.Background()

	var chunkStore store.ChunkStore
	if cfg.Database != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		if err := pg.Migrate(ctx, static.Embedder.Dim); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		chunkStore = pg
	} else {
		fileStore, err := store.NewFileStore(cfg.RootDir)
		if err != nil {
			log.Fatalf("failed to open file store: %v", err)
		}
		chunkStore = fileStore
	}

	resolver := config.NewResolver(cfg, static)
	providerCfg, err := resolver.Resolve(config.Override{})
	if err != nil {
		log.Fatalf("failed to resolve provider: %v", err)
	}
	provider, err := ai.NewProvider(ctx, providerCfg)
	if err != nil {
		log.Fatalf("failed to construct provider: %v", err)
	}
	if provider.Dim() == 0 {
		log.Fatal("embedding dimension must be set (--embed-dim or embedder.json)")
	}

	pipeline := ingest.New(chunkStore, provider, cfg.RootDir)
	index, err := pipeline.Ingest(ctx, descriptor)
	if err != nil {
		log.Fatalf("ingestion failed: %v", err)
	}

	log.Printf("ingested repo_id=%s chunks=%d dim=%d", index.RepoID, len(index.Chunks), index.VectorDimension)
	os.Exit(0)
}
