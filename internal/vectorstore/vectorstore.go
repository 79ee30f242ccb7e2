// Package vectorstore provides read access to the indexed knowledge base.
// Indexing is done out of band; this package only searches it.
package vectorstore

import (
	"context"
	"errors"
)

var (
	// ErrNotReady is returned when the collection or table backing the
	// knowledge base does not exist yet.
	ErrNotReady = errors.New("knowledge base not initialized")

	// ErrUnavailable is returned when the store cannot be reached.
	ErrUnavailable = errors.New("vector store unreachable")
)

// Payload keys written by the indexer.
const (
	FieldContent  = "content"
	FieldSource   = "source_file"
	FieldCategory = "category"
)

// Candidate is a search hit together with its stored embedding, which the
// MMR selection needs to measure redundancy between hits.
type Candidate struct {
	ID       string
	Content  string
	Source   string
	Category string
	Score    float32
	Vector   []float32
}

// VectorStore defines the read operations the retriever needs.
type VectorStore interface {
	// Search returns up to limit nearest neighbours of vector, best first,
	// including their stored vectors.
	Search(ctx context.Context, vector []float32, limit int) ([]Candidate, error)

	// Ready reports whether the knowledge base exists and can be queried.
	Ready(ctx context.Context) (bool, error)

	// Count returns the number of indexed chunks.
	Count(ctx context.Context) (uint64, error)

	// Collection returns the name of the collection or table searched.
	Collection() string
}
