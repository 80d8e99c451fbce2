package walk

import "strings"

// DefaultExcludedDirs mirrors the original system's defaults: virtual
// environments, package managers, VCS metadata, caches, build output, and
// IDE state, normalized to a trailing-slash-free directory name so a path
// component match is a plain string comparison.
var DefaultExcludedDirs = []string{
	".venv", "venv", "env", "virtualenv",
	"node_modules", "bower_components", "jspm_packages",
	".git", ".svn", ".hg", ".bzr",
	"__pycache__", ".pytest_cache", ".mypy_cache", ".ruff_cache",
	"dist", "build", "out", "target", "bin", "obj",
	".idea", ".vscode", ".vs", ".eclipse", ".settings",
	"logs", "log", "tmp", "temp", ".cache",
	".terraform", ".gradle", ".m2", "coverage",
}

// DefaultExcludedFiles mirrors the original system's lockfile, VCS config,
// and build-artifact basename blocklist.
var DefaultExcludedFiles = []string{
	"yarn.lock", "pnpm-lock.yaml", "npm-shrinkwrap.json", "poetry.lock",
	"Pipfile.lock", "Cargo.lock", "composer.lock", "go.sum",
	".DS_Store", "Thumbs.db", "desktop.ini", ".env",
	".gitignore", ".gitattributes", ".gitmodules",
	".editorconfig", ".flake8", "mypy.ini",
}

// codeExtensions and docExtensions are the fixed extension sets used to
// order discovery (§4.2: code files first, then documentation files) and
// to pick the per-kind token cap multiplier (10x for code, 1x for docs).
var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".java": true, ".rb": true, ".rs": true, ".c": true, ".h": true, ".cc": true,
	".cpp": true, ".hpp": true, ".cs": true, ".php": true, ".swift": true,
	".kt": true, ".scala": true, ".sh": true, ".bash": true, ".sql": true,
	".tf": true, ".proto": true, ".graphql": true,
}

var docExtensions = map[string]bool{
	".md": true, ".mdx": true, ".rst": true, ".txt": true, ".adoc": true,
	".yaml": true, ".yml": true, ".json": true, ".toml": true,
}

func classify(path string) (FileKind, bool) {
	ext := extOf(path)
	if codeExtensions[ext] {
		return KindCode, true
	}
	if docExtensions[ext] {
		return KindDoc, true
	}
	return "", false
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(path[i:])
}
