// internal/infra/memstore/store.go
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"explain_yourself_bot/internal/domain/post"
)

var _ post.Store = (*Store)(nil)

// Store is a process-local post.Store used for dry runs and tests.
type Store struct {
	mu      sync.RWMutex
	hashes  map[string]map[string]string
	indexes map[string]map[string]int64
}

func New() *Store {
	return &Store{
		hashes:  make(map[string]map[string]string),
		indexes: make(map[string]map[string]int64),
	}
}

func (s *Store) GetFields(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.hashes[key]))
	for k, v := range s.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) SetFields(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (s *Store) AddToIndex(_ context.Context, index, member string, score int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[index]
	if !ok {
		idx = make(map[string]int64)
		s.indexes[index] = idx
	}
	idx[member] = score
	return nil
}

func (s *Store) RemoveFromIndex(_ context.Context, index, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes[index], member)
	return nil
}

func (s *Store) ScanIndex(_ context.Context, index string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexes[index]
	members := make([]string, 0, len(idx))
	for m := range idx {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		if idx[members[i]] != idx[members[j]] {
			return idx[members[i]] < idx[members[j]]
		}
		return members[i] < members[j]
	})
	return members, nil
}

func (s *Store) IndexContains(_ context.Context, index, member string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[index][member]
	return ok, nil
}

func (s *Store) ScanKeys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.hashes {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
