package walk

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWalkOrdersCodeBeforeDocs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", "# hello")
	writeFile(t, root, "main.go", "package main\nfunc main(){}\n")

	recs, err := Walk(root, FilterSet{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].RelativePath != "main.go" {
		t.Fatalf("expected code file first, got %q", recs[0].RelativePath)
	}
}

func TestWalkExcludesDefaultDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "node_modules/dep/index.js", "console.log(1)")
	writeFile(t, root, "src/app.js", "console.log(2)")

	recs, err := Walk(root, FilterSet{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].RelativePath != filepath.Join("src", "app.js") {
		t.Fatalf("expected only src/app.js, got %+v", recs)
	}
}

func TestWalkInclusionModeAcceptsOnlyListed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.go", "package main")
	writeFile(t, root, "other/skip.go", "package other")

	recs, err := Walk(root, FilterSet{IncludeDirs: []string{"src"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].RelativePath != filepath.Join("src", "app.go") {
		t.Fatalf("expected only src/app.go, got %+v", recs)
	}
}

func TestWalkMarksTestFixturesNotImplementation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "foo_test.go", "package foo")

	recs, err := Walk(root, FilterSet{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].IsImplementation {
		t.Fatalf("expected test fixture to be marked non-implementation, got %+v", recs)
	}
}

func TestWalkSkipsOversizedDocFile(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, 0, 40000)
	for i := 0; i < 10000; i++ {
		big = append(big, []byte("word ")...)
	}
	writeFile(t, root, "BIG.md", string(big))
	writeFile(t, root, "small.md", "tiny doc")

	recs, err := Walk(root, FilterSet{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].RelativePath != "small.md" {
		t.Fatalf("expected only small.md to survive, got %+v", recs)
	}
}
