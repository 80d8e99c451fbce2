package similarity

import (
	"context"
	"testing"
)

func TestBuildAndSearchReturnsClosestVectorFirst(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}
	idx, err := Build(context.Background(), vectors, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	indices, scores, err := idx.Search(context.Background(), []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(indices) != 2 {
		t.Fatalf("expected 2 results, got %d", len(indices))
	}
	if indices[0] != 0 {
		t.Fatalf("expected index 0 (exact match) ranked first, got %d", indices[0])
	}
	if scores[0] < scores[1] {
		t.Fatalf("expected descending score order, got %v", scores)
	}
}

func TestBuildRejectsMismatchedDimension(t *testing.T) {
	_, err := Build(context.Background(), [][]float32{{1, 2}, {1, 2, 3}}, 2)
	if err == nil {
		t.Fatal("expected an error for a mismatched vector dimension")
	}
}
