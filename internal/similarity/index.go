// Package similarity implements the Similarity Index (C7): an in-memory
// approximate k-NN search over one repository's reconciled vector set,
// built fresh per query pipeline run and discarded after. The vec0
// virtual-table approach — an in-process SQLite database extended with
// sqlite-vec, fed manually serialized float32 blobs — is grounded on
// bbiangul-go-reason/store/store.go's VectorSearch, the only retrieved
// repo that wires sqlite-vec end to end.
package similarity

import "context"

// Index is built once per search (§4.6: "Build is offline relative to a
// query") and answers repeated Search calls against the vectors it was
// built with.
type Index interface {
	Search(ctx context.Context, query []float32, topK int) ([]int, []float64, error)
	Close() error
}

// Build constructs an Index over vectors, all of which MUST share
// dimension (callers are expected to have already reconciled them via
// store.Reconcile). Ties in score are broken by ascending index order to
// keep output deterministic for identical inputs, per §4.6.
func Build(ctx context.Context, vectors [][]float32, dimension int) (Index, error) {
	return newSQLiteVecIndex(ctx, vectors, dimension)
}
