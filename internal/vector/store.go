package vector

import (
	"fmt"
	"sort"
	"sync"
)

// Hit is a single similarity-search match.
type Hit struct {
	ChunkID  string
	Distance float64
}

// Store is an in-memory brute-force similarity store keyed by chunk ID.
// All vectors share a fixed dimension. Safe for concurrent use; searches run
// concurrently with each other.
type Store struct {
	dim      int
	distance DistanceFunc
	mu       sync.RWMutex
	vectors  map[string][]float32
}

// NewStore creates a store for vectors of the given dimension using metric m.
func NewStore(dim int, m Metric) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	dist, err := DistanceFuncFor(m)
	if err != nil {
		return nil, err
	}
	return &Store{
		dim:      dim,
		distance: dist,
		vectors:  make(map[string][]float32),
	}, nil
}

// Upsert inserts or replaces the vector for a chunk ID.
func (s *Store) Upsert(chunkID string, vec []float32) error {
	if len(vec) != s.dim {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), s.dim)
	}
	cp := make([]float32, s.dim)
	copy(cp, vec)
	s.mu.Lock()
	s.vectors[chunkID] = cp
	s.mu.Unlock()
	return nil
}

// Remove deletes the given chunk IDs. Missing IDs are ignored.
func (s *Store) Remove(chunkIDs []string) {
	s.mu.Lock()
	for _, id := range chunkIDs {
		delete(s.vectors, id)
	}
	s.mu.Unlock()
}

// Replace atomically removes oldIDs and inserts vecs, under a single write
// lock, so no search observes the store between the delete and the insert.
func (s *Store) Replace(oldIDs []string, vecs map[string][]float32) error {
	for id, v := range vecs {
		if len(v) != s.dim {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", id, len(v), s.dim)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range oldIDs {
		delete(s.vectors, id)
	}
	for id, v := range vecs {
		cp := make([]float32, s.dim)
		copy(cp, v)
		s.vectors[id] = cp
	}
	return nil
}

// Search returns the k nearest chunks to query, ordered ascending by
// distance with ties broken by chunk ID. An empty store yields no results
// and no error.
func (s *Store) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), s.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	hits := make([]Hit, 0, len(s.vectors))
	for id, vec := range s.vectors {
		hits = append(hits, Hit{ChunkID: id, Distance: s.distance(query, vec)})
	}
	s.mu.RUnlock()
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Size returns the number of stored vectors.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}
