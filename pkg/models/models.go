// Package models holds the entities shared across the ingestion and query
// pipelines: repository descriptors, chunks, retrieval results, and dialog
// turns. Types here are plain data; behavior lives in the owning packages.
package models

import "time"

// HostKind identifies the origin of a repository.
type HostKind string

const (
	HostGithub    HostKind = "github"
	HostGitlab    HostKind = "gitlab"
	HostBitbucket HostKind = "bitbucket"
	HostLocal     HostKind = "local"
)

// Descriptor identifies a repository to acquire and index.
type Descriptor struct {
	HostKind     HostKind
	Locator      string // URL for remote hosts, filesystem path for local
	Ref          string // branch/tag/sha; defaults to the host's default branch
	Credential   string // token/secret, never logged or echoed
	IncludeDirs  []string
	IncludeFiles []string
	ExcludeDirs  []string
	ExcludeFiles []string
}

// RepoID derives the stable persistence key for a descriptor: owner_repo
// for remote hosts (URL-derived) or the basename for local paths.
func (d Descriptor) RepoID() string { return repoID(d) }

// ShortName returns a human-friendly repository name for prompt labeling,
// e.g. "reposearch" out of "https://github.com/seanblong/reposearch".
func (d Descriptor) ShortName() string { return shortName(d) }

// FileKind classifies a File Record as source code or documentation.
type FileKind string

const (
	FileCode FileKind = "code"
	FileDoc  FileKind = "doc"
)

// FileRecord is one file discovered by the File Walker.
type FileRecord struct {
	RelativePath     string
	Kind             FileKind
	LanguageHint     string
	RawBytes         []byte
	TokenCount       int
	IsImplementation bool
}

// Chunk is a bounded, token-capped span of a source file — the atomic unit
// of retrieval.
type Chunk struct {
	ID                string    `json:"id"`
	Repository        string    `json:"repository"`
	Ref               string    `json:"ref"`
	Path              string    `json:"path"`
	Language          string    `json:"language"`
	Summary           string    `json:"summary"`
	Content           string    `json:"content"`
	TokenCount        int       `json:"token_count"`
	LineStart         int       `json:"line_start"`
	LineEnd           int       `json:"line_end"`
	OrdinalWithinFile int       `json:"ordinal_within_file"`
	CreatedAt         time.Time `json:"created_at"`
}

// Vector is an embedding: a dimension and its components. Admission to a
// Similarity Index requires every vector to share one dimension.
type Vector struct {
	Dimension  int       `json:"dimension"`
	Components []float32 `json:"components"`
}

// SearchResult pairs a retrieved chunk with its similarity score.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult is the ordered outcome of one k-NN search: descending
// score, ties broken by lower chunk ordinal.
type RetrievalResult struct {
	Results   []SearchResult
	MethodTag string
}

// QueryResult is the outcome of one Query Pipeline run: the streamed
// answer text plus the minimal metadata the Multi-Repository Coordinator
// collects per sub-request (§4.12).
type QueryResult struct {
	RepoID             string
	AnswerText         string
	TokensUsed         int
	DocumentsRetrieved int
}

// DialogTurn is one user/assistant exchange in a Conversation.
type DialogTurn struct {
	TurnID        string    `json:"turn_id"`
	UserText      string    `json:"user_text"`
	AssistantText string    `json:"assistant_text"`
	CreatedAt     time.Time `json:"created_at"`
}

// MessageRole is the role of one message in a Query Request.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one entry in a Query Request's conversation payload.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// QueryRequest is the caller's input to the Query Pipeline.
type QueryRequest struct {
	RepoRefs       []Descriptor
	Messages       []Message
	PinnedFilePath string
	Language       string
	ProviderID     string
	ModelID        string
	ExcludedDirs   []string
	ExcludedFiles  []string
	IncludedDirs   []string
	IncludedFiles  []string
}

// RepositoryIndex is the persisted outcome of ingesting one repository.
type RepositoryIndex struct {
	RepoID          string
	Chunks          []Chunk
	VectorDimension int
	PersistPath     string
	BuildTimestamp  time.Time
}
