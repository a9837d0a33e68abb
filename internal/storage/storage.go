package storage

import "ChordDHT/internal/domain"

// Storage defines the local key-value operations a node performs on the
// data it is responsible for. Entries are keyed by the original key
// string, so that responsibility checks always re-derive the key hash
// from the same input.
type Storage interface {
	// Put inserts or updates a resource.
	Put(resource domain.Resource)

	// Get returns the resource stored under rawKey, or
	// domain.ErrResourceNotFound.
	Get(rawKey string) (domain.Resource, error)

	// Delete removes the resource stored under rawKey, or returns
	// domain.ErrResourceNotFound.
	Delete(rawKey string) error

	// Between returns all resources whose key hash k satisfies
	// k ∈ (from, to] on the ring.
	Between(from, to domain.ID) []domain.Resource

	// All returns a snapshot of every stored resource.
	All() []domain.Resource

	// DebugLog emits a structured snapshot of the storage contents.
	DebugLog()
}
