package storage

import (
	"sort"
	"sync"

	"ChordDHT/internal/domain"
	"ChordDHT/internal/logger"
)

// Memory is an in-memory implementation of Storage. It is
// concurrency-safe and intended for local node storage.
type Memory struct {
	lgr  logger.Logger
	mu   sync.RWMutex
	data map[string]domain.Resource // keyed by the original key string
}

// NewMemoryStorage creates and returns a new, empty in-memory storage.
// This implementation is suitable for unit tests and for nodes that do
// not require persistence.
func NewMemoryStorage(lgr logger.Logger) *Memory {
	s := &Memory{
		lgr:  lgr,
		data: make(map[string]domain.Resource),
	}
	s.lgr.Debug("initialized in-memory storage")
	return s
}

// Put inserts or updates the given resource in the store, indexed by
// its raw key.
func (s *Memory) Put(resource domain.Resource) {
	s.mu.Lock()
	_, existed := s.data[resource.RawKey]
	s.data[resource.RawKey] = resource
	s.mu.Unlock()
	if existed {
		s.lgr.Debug("Put: resource updated", logger.FResource("resource", resource))
	} else {
		s.lgr.Debug("Put: resource inserted", logger.FResource("resource", resource))
	}
}

// Get retrieves the resource stored under the given raw key.
// If the key is not present, it returns ErrResourceNotFound.
func (s *Memory) Get(rawKey string) (domain.Resource, error) {
	s.mu.RLock()
	res, ok := s.data[rawKey]
	s.mu.RUnlock()
	if !ok {
		s.lgr.Debug("Get: resource not found", logger.F("key", rawKey))
		return domain.Resource{}, domain.ErrResourceNotFound
	}
	s.lgr.Debug("Get: resource retrieved", logger.FResource("resource", res))
	return res, nil
}

// Delete removes the resource stored under the given raw key.
// If the key is not present, it returns ErrResourceNotFound.
func (s *Memory) Delete(rawKey string) error {
	s.mu.Lock()
	_, ok := s.data[rawKey]
	if ok {
		delete(s.data, rawKey)
	}
	s.mu.Unlock()
	if !ok {
		s.lgr.Debug("Delete: resource not found", logger.F("key", rawKey))
		return domain.ErrResourceNotFound
	}
	s.lgr.Debug("Delete: resource deleted", logger.F("key", rawKey))
	return nil
}

// Between returns all resources with key hashes k such that
// k ∈ (from, to] on the ring. The wrap-around case (from > to) is
// handled by domain.ID.Between.
func (s *Memory) Between(from, to domain.ID) []domain.Resource {
	s.mu.RLock()
	var result []domain.Resource
	for _, res := range s.data {
		if res.Key.Between(from, to) {
			result = append(result, res)
		}
	}
	s.mu.RUnlock()
	keys := make([]string, 0, len(result))
	for _, r := range result {
		keys = append(keys, r.RawKey)
	}
	s.lgr.Debug("Between: range query completed",
		logger.F("from", from.String()),
		logger.F("to", to.String()),
		logger.F("count", len(result)),
		logger.F("keys", keys),
	)
	return result
}

// All returns a snapshot of all resources currently stored.
// The slice is a copy and modifications to it do not affect the storage.
func (s *Memory) All() []domain.Resource {
	s.mu.RLock()
	result := make([]domain.Resource, 0, len(s.data))
	for _, res := range s.data {
		result = append(result, res)
	}
	s.mu.RUnlock()
	return result
}

// DebugLog emits a structured DEBUG-level log with the contents of the
// storage, sorted by key for deterministic order. The contents are read
// under a read lock and logged as a snapshot without modifying the data.
func (s *Memory) DebugLog() {
	snapshot := s.All()
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].RawKey < snapshot[j].RawKey
	})
	entries := make([]map[string]any, 0, len(snapshot))
	for _, res := range snapshot {
		entries = append(entries, map[string]any{
			"key":  res.RawKey,
			"hash": res.Key.String(),
		})
	}
	s.lgr.Debug("Storage snapshot",
		logger.F("count", len(snapshot)),
		logger.F("resources", entries),
	)
}
