package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Arbiter-AC/arbiter/internal/domain/policy"
)

// DataStore implements policy.DataStore with an in-memory map.
// Last write wins per policy ID; no cross-ID ordering guarantees.
type DataStore struct {
	mu      sync.RWMutex
	entries map[string]*policy.StoreEntry
}

// NewDataStore creates an empty in-memory policy data store.
func NewDataStore() *DataStore {
	return &DataStore{
		entries: make(map[string]*policy.StoreEntry),
	}
}

// SetPolicyData stores a copy of the entry under the policy ID.
func (s *DataStore) SetPolicyData(ctx context.Context, policyID string, entry *policy.StoreEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[policyID] = entry.Clone()
	return nil
}

// GetPolicyData returns the entry for the policy ID.
func (s *DataStore) GetPolicyData(ctx context.Context, policyID string) (*policy.StoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[policyID]
	if !ok {
		return nil, policy.ErrPolicyNotFound
	}
	return entry.Clone(), nil
}

// GetAllPolicyData returns all entries sorted by policy ID.
func (s *DataStore) GetAllPolicyData(ctx context.Context) ([]*policy.StoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*policy.StoreEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		result = append(result, entry.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PolicyID < result[j].PolicyID })
	return result, nil
}

// RemovePolicyData deletes the entry. Absent IDs succeed silently.
func (s *DataStore) RemovePolicyData(ctx context.Context, policyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, policyID)
	return nil
}

// Compile-time interface verification.
var _ policy.DataStore = (*DataStore)(nil)
