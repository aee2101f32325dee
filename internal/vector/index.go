// Package vector provides vector index and similarity search over image
// embeddings.
package vector

import "context"

// Index defines embedding storage and nearest-neighbor search. Vectors are
// assumed L2-normalized so inner product equals cosine similarity.
type Index interface {
	Upsert(ctx context.Context, id string, vec []float32, metadata map[string]string) error
	Query(ctx context.Context, vec []float32, topK int) ([]*Result, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// Result is a single search hit.
type Result struct {
	ID       string
	Score    float64 // cosine similarity, 0-1 for normalized vectors
	Metadata map[string]string
}
