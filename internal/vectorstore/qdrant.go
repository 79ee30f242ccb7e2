package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// QdrantStore implements VectorStore using Qdrant
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantStore creates a new Qdrant vector store client
// url should be in format "host:port" (e.g., "localhost:6334")
func NewQdrantStore(ctx context.Context, url, collection string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{client: client, collection: collection}, nil
}

// Close closes the Qdrant client connection
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func (s *QdrantStore) Collection() string {
	return s.collection
}

// Ready checks that the collection exists
func (s *QdrantStore) Ready(ctx context.Context) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, classify(fmt.Errorf("failed to check collection existence: %w", err))
	}
	return exists, nil
}

// Count returns the exact number of points in the collection
func (s *QdrantStore) Count(ctx context.Context) (uint64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, classify(fmt.Errorf("failed to count points: %w", err))
	}
	return n, nil
}

// Search performs dense similarity search and returns stored vectors with the hits
func (s *QdrantStore) Search(ctx context.Context, vector []float32, limit int) ([]Candidate, error) {
	response, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, classify(fmt.Errorf("failed to search: %w", err))
	}

	results := make([]Candidate, 0, len(response))
	for _, point := range response {
		c := Candidate{
			ID:    pointID(point.GetId()),
			Score: point.GetScore(),
		}

		if payload := point.GetPayload(); payload != nil {
			c.Content = payload[FieldContent].GetStringValue()
			c.Source = payload[FieldSource].GetStringValue()
			c.Category = payload[FieldCategory].GetStringValue()
		}

		if v := point.GetVectors().GetVector(); v != nil {
			if dense := v.GetDense(); dense != nil {
				c.Vector = dense.GetData()
			} else {
				c.Vector = v.GetData()
			}
		}

		results = append(results, c)
	}

	return results, nil
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// classify maps transport errors onto the package sentinels.
func classify(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return err
	}
}

var _ VectorStore = (*QdrantStore)(nil)
