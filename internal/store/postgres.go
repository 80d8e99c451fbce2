package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/anhhai680/deepwiki-sub000/pkg/models"
)

// PostgresStore is the pgvector-backed ChunkStore, an optional alternate
// backend for deployments that want hybrid semantic/lexical ranking over a
// real database instead of the default FileStore. Grounded directly on the
// teacher's internal/store/store.go, whose hybrid scoring query (cosine
// similarity + full-text rank + trigram path similarity + script/noise
// biases) is preserved unchanged since nothing about the new domain
// invalidates it — a chunk is a chunk whether it came from a repo-search
// index or a RAG answering engine.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to url and returns a ready PostgresStore.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: p}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// GetRepositories returns a list of all unique repositories in the database.
func (s *PostgresStore) GetRepositories(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT DISTINCT repository FROM chunks ORDER BY repository")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []string
	for rows.Next() {
		var repo string
		if err := rows.Scan(&repo); err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

// Migrate applies necessary database migrations and schema setup.
func (s *PostgresStore) Migrate(ctx context.Context, summaryDim int) error {
	q := `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS chunks (
  id            TEXT PRIMARY KEY,
  repository    TEXT NOT NULL,
  ref           TEXT NOT NULL DEFAULT '',
  path          TEXT NOT NULL,
  language      TEXT,
  summary       TEXT,
  content       TEXT,
  line_start    INT,
  line_end      INT,
  summary_vec   vector(%d),
  content_hash  TEXT,
  summarized_at TIMESTAMP WITH TIME ZONE,
  created_at    TIMESTAMP WITH TIME ZONE DEFAULT now(),
  ts_fielded    tsvector GENERATED ALWAYS AS (
	setweight(
	  to_tsvector('english',
		regexp_replace(coalesce(path,''), '[^A-Za-z0-9]+', ' ', 'g')
	  ),
	  'A'
	) ||
	setweight(to_tsvector('english', coalesce(summary,'')), 'B') ||
	setweight(to_tsvector('english', coalesce(content,'')), 'C')
  ) STORED
);

CREATE UNIQUE INDEX IF NOT EXISTS chunks_repo_path_span_ref_uidx
  ON chunks (repository, ref, path, line_start, line_end);

CREATE INDEX IF NOT EXISTS chunks_repository_idx
  ON chunks (repository);

CREATE INDEX IF NOT EXISTS chunks_hash_idx
  ON chunks (content_hash);
CREATE INDEX IF NOT EXISTS chunks_ts_fielded_gin
  ON chunks USING GIN (ts_fielded);

CREATE INDEX IF NOT EXISTS chunks_summary_vec_idx
  ON chunks USING ivfflat (summary_vec vector_cosine_ops) WITH (lists = 100);
`
	_, err := s.pool.Exec(ctx, fmt.Sprintf(q, summaryDim))
	return err
}

// UpsertChunk inserts or updates a chunk.
func (s *PostgresStore) UpsertChunk(ctx context.Context, c models.Chunk, vec []float32, contentHash string) error {
	var sv any
	if vec != nil {
		sv = pgvector.NewVector(vec)
	} else {
		sv = (*pgvector.Vector)(nil)
	}

	const q = `
		INSERT INTO chunks (
			id, repository, ref, path, language, summary, content,
			line_start, line_end, summary_vec, content_hash, summarized_at, created_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,
			CASE WHEN $6 <> '' THEN now() ELSE NULL END,
			now()
		)
		ON CONFLICT (repository, ref, path, line_start, line_end) DO UPDATE SET
			language     = EXCLUDED.language,
			content      = EXCLUDED.content,
			content_hash = EXCLUDED.content_hash,
			summary      = COALESCE(NULLIF(EXCLUDED.summary, ''), chunks.summary),
			summarized_at = COALESCE(EXCLUDED.summarized_at, chunks.summarized_at),
			summary_vec  = COALESCE(EXCLUDED.summary_vec, chunks.summary_vec),
			created_at   = chunks.created_at;`

	_, err := s.pool.Exec(ctx, q,
		c.ID, c.Repository, c.Ref, c.Path, c.Language, c.Summary, c.Content,
		c.LineStart, c.LineEnd, sv, contentHash,
	)
	return err
}

// Search performs hybrid semantic/lexical/trigram ranked retrieval over
// chunks belonging to one repository, the candidate set the Query Pipeline
// assembles its prompt from. The script/noise bias terms below bias
// ranking toward the kind of file a code question is actually about —
// runnable source over config when the question names a language or
// "script"/"cli", and away from sample/test/fixture paths that tend to
// restate rather than implement behavior — which matters as much for
// answering a question about a repository as it did for the teacher's
// plain search results.
func (s *PostgresStore) Search(ctx context.Context, queryVec []float32, k int, opt QueryOpts) ([]models.SearchResult, error) {
	qtext := strings.TrimSpace(opt.QueryText)
	if qtext == "" {
		return []models.SearchResult{}, nil
	}

	sv := pgvector.NewVector(queryVec)
	longest := longestToken(qtext)

	lq := strings.ToLower(qtext)
	// askedForScript: the query names a language/runtime/CLI term, so
	// cand.script_bias below should favor source files over config.
	askedForScript := strings.Contains(lq, "script") ||
		strings.Contains(lq, "scripts") ||
		strings.Contains(lq, "bash") ||
		strings.Contains(lq, "shell") ||
		strings.Contains(lq, "code") ||
		strings.Contains(lq, "program") ||
		strings.Contains(lq, "programs") ||
		strings.Contains(lq, "python") ||
		strings.Contains(lq, "cli")

	args := []any{sv, qtext, longest, askedForScript}
	ai := 5

	where := "TRUE"
	if opt.Repository != "" {
		where += fmt.Sprintf(" AND repository = $%d", ai)
		args = append(args, opt.Repository)
		ai++
	}
	if opt.Language != "" {
		where += fmt.Sprintf(" AND language = $%d", ai)
		args = append(args, opt.Language)
		ai++
	}
	if opt.PathContains != "" {
		where += fmt.Sprintf(" AND path ILIKE '%%' || $%d || '%%'", ai)
		args = append(args, opt.PathContains)
		ai++
	}
	if opt.Ref != "" {
		where += fmt.Sprintf(" AND ref = $%d", ai)
		args = append(args, opt.Ref)
	}

	q := fmt.Sprintf(`
WITH parsed AS (
  SELECT lower(x) AS lx
  FROM ts_debug('english', $2) d, unnest(d.lexemes) AS x
  WHERE d.alias NOT IN ('StopWord','Space','Blank','Punct','Num')
),
terms AS (
  SELECT COALESCE(ARRAY_AGG(DISTINCT lx), ARRAY[]::text[]) AS all_terms
  FROM parsed
),
q AS (
  SELECT
    $1::vector AS sv,
    to_tsquery('english',
      (SELECT CASE WHEN cardinality(all_terms) > 0
                   THEN array_to_string(all_terms, ' | ')
                   ELSE NULL END
       FROM terms)
    ) AS tq_any,
    phraseto_tsquery('english',
      (SELECT CASE WHEN cardinality(all_terms) > 0
                   THEN array_to_string(all_terms, ' ')
                   ELSE NULL END
       FROM terms)
    ) AS tq_phrase,
    NULLIF($3,'') AS tri_term,
    $4::bool AS asked_script
),
cand AS (
  SELECT
    id, repository, ref, path, language, summary, content, line_start, line_end, created_at,
    LEAST(GREATEST((1.0 - cosine_distance(summary_vec, (SELECT sv FROM q))), 0), 1) AS sem_sim,
    LEAST(GREATEST(
      ts_rank_cd(
        setweight(to_tsvector('english', coalesce(summary,'')), 'B'),
        (COALESCE((SELECT tq_any FROM q), ''::tsquery)
         || COALESCE((SELECT tq_phrase FROM q), ''::tsquery))
      ), 0), 1) AS lex_sum,
    COALESCE(similarity(lower(path), lower((SELECT tri_term FROM q))), 0) AS tri,
    CASE
      WHEN (SELECT asked_script FROM q) THEN
        CASE
          WHEN language IN ('shell','bash','sh','python','py','go') THEN 1
          WHEN language IN ('yaml','terraform','tf','json')         THEN -1
          ELSE 0
        END
      ELSE 0
    END AS script_bias,
    CASE
      WHEN lower(path) ~ '(?:(^|.*/))(sample|example|test|mock|fixture|tmp|temp|sandbox)(/|\\.|$)' THEN 1
      ELSE 0
    END AS noise_penalty
  FROM chunks
  WHERE %s
),
ranked AS (
  SELECT *,
         MAX(sem_sim) OVER()  AS max_sem,
         MAX(lex_sum) OVER()  AS max_lex,
         MAX(tri)     OVER()  AS max_tri
  FROM cand
)
SELECT
  id, repository, ref, path, language, summary, content, line_start, line_end, created_at,
  (
      0.80 * COALESCE(sem_sim / NULLIF(max_sem,0), 0) +
      0.15 * COALESCE(lex_sum / NULLIF(max_lex,0), 0) +
      0.05 * COALESCE(tri     / NULLIF(max_tri,0), 0) +
      0.10 * script_bias -
      0.07 * noise_penalty
  ) AS score
FROM ranked
ORDER BY score DESC
LIMIT %d;
`, where, k)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SearchResult
	for rows.Next() {
		var c models.Chunk
		var score float64
		if err := rows.Scan(
			&c.ID, &c.Repository, &c.Ref, &c.Path, &c.Language, &c.Summary, &c.Content, &c.LineStart, &c.LineEnd, &c.CreatedAt,
			&score,
		); err != nil {
			return nil, err
		}
		out = append(out, models.SearchResult{Chunk: c, Score: score})
	}
	return out, nil
}

func longestToken(s string) string {
	re := regexp.MustCompile(`[A-Za-z0-9._-]+`)
	toks := re.FindAllString(strings.ToLower(s), -1)
	longest := ""
	for _, t := range toks {
		if len(t) > len(longest) {
			longest = t
		}
	}
	return longest
}

// Ping checks database connectivity, bounded to a short timeout.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// GetChunkMeta retrieves metadata for a chunk by repository, path and line span.
func (s *PostgresStore) GetChunkMeta(ctx context.Context, repository, path string, ls, le int) (ChunkMeta, bool, error) {
	const q = `
      SELECT content_hash,
             COALESCE(summary, ''),
             summary_vec IS NOT NULL
      FROM chunks
      WHERE repository = $1 AND path = $2 AND line_start = $3 AND line_end = $4
      LIMIT 1`
	var m ChunkMeta
	err := s.pool.QueryRow(ctx, q, repository, path, ls, le).
		Scan(&m.ContentHash, &m.Summary, &m.HasVector)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChunkMeta{}, false, nil
		}
		return ChunkMeta{}, false, err
	}
	return m, true, nil
}

// GetRefs returns distinct refs for a given repository.
func (s *PostgresStore) GetRefs(ctx context.Context, repository string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT ref FROM chunks WHERE repository = $1 ORDER BY ref`, repository)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}
