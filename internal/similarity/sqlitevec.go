package similarity

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// sqliteVecIndex is a k-NN index backed by an in-memory SQLite database
// with a vec0 virtual table, one per Build call. Row id equals the
// vector's position in the slice passed to Build, so Search can report
// indices directly into the caller's original chunk slice.
type sqliteVecIndex struct {
	db *sql.DB
}

func newSQLiteVecIndex(ctx context.Context, vectors [][]float32, dimension int) (Index, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory similarity index: %w", err)
	}

	schema := fmt.Sprintf(`CREATE VIRTUAL TABLE vec_items USING vec0(item_id INTEGER PRIMARY KEY, embedding float[%d]);`, dimension)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, `INSERT INTO vec_items (item_id, embedding) VALUES (?, ?)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	defer stmt.Close()

	for i, v := range vectors {
		if len(v) != dimension {
			db.Close()
			return nil, fmt.Errorf("vector at index %d has dimension %d, expected %d", i, len(v), dimension)
		}
		if _, err := stmt.ExecContext(ctx, i, serializeFloat32(v)); err != nil {
			db.Close()
			return nil, fmt.Errorf("inserting vector %d: %w", i, err)
		}
	}

	return &sqliteVecIndex{db: db}, nil
}

// Search returns the topK nearest items by ascending distance (highest
// similarity first), breaking ties by index order.
func (s *sqliteVecIndex) Search(ctx context.Context, query []float32, topK int) ([]int, []float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, distance
		FROM vec_items
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance, item_id
	`, serializeFloat32(query), topK)
	if err != nil {
		return nil, nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	type hit struct {
		id    int
		score float64
	}
	var hits []hit
	for rows.Next() {
		var id int
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, nil, err
		}
		hits = append(hits, hit{id: id, score: 1 / (1 + distance)})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})

	indices := make([]int, len(hits))
	scores := make([]float64, len(hits))
	for i, h := range hits {
		indices[i] = h.id
		scores[i] = h.score
	}
	return indices, scores, nil
}

func (s *sqliteVecIndex) Close() error { return s.db.Close() }

func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
