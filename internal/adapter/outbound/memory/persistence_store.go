// Package memory provides in-memory store adapters.
// Thread-safe for concurrent access. For development and testing.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Arbiter-AC/arbiter/internal/domain/policy"
)

// PersistenceStore implements policy.PersistenceManager with in-memory maps.
// It keeps a full version history per policy ID and also serves as the
// default decision-side policy.StoreModule, holding published entries.
type PersistenceStore struct {
	mu        sync.RWMutex
	versions  map[string][]*policy.Record // PolicyID -> history, oldest first
	published map[string]*policy.StoreEntry
}

// NewPersistenceStore creates an empty in-memory persistence store.
func NewPersistenceStore() *PersistenceStore {
	return &PersistenceStore{
		versions:  make(map[string][]*policy.Record),
		published: make(map[string]*policy.StoreEntry),
	}
}

// AddOrUpdatePolicy persists the record. Admin-originated writes append a
// new version with the next decimal label; publish-path writes overwrite the
// latest version in place without growing the history.
func (s *PersistenceStore) AddOrUpdatePolicy(ctx context.Context, rec *policy.Record, adminOriginated bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := rec.Clone()
	stored.LastModifiedTime = time.Now().UTC().Format(time.RFC3339)

	history := s.versions[rec.PolicyID]
	if adminOriginated || len(history) == 0 {
		stored.Version = strconv.Itoa(len(history) + 1)
		s.versions[rec.PolicyID] = append(history, stored)
		return nil
	}
	stored.Version = history[len(history)-1].Version
	history[len(history)-1] = stored
	return nil
}

// GetPolicy returns the latest version of the policy.
func (s *PersistenceStore) GetPolicy(ctx context.Context, policyID string) (*policy.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.versions[policyID]
	if !ok {
		return nil, policy.ErrPolicyNotFound
	}
	return history[len(history)-1].Clone(), nil
}

// GetPolicies returns the latest versions for the given IDs, omitting
// missing ones.
func (s *PersistenceStore) GetPolicies(ctx context.Context, policyIDs []string) ([]*policy.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*policy.Record, 0, len(policyIDs))
	for _, id := range policyIDs {
		if history, ok := s.versions[id]; ok {
			result = append(result, history[len(history)-1].Clone())
		}
	}
	return result, nil
}

// GetPolicyVersion returns the record stored under the given version label.
func (s *PersistenceStore) GetPolicyVersion(ctx context.Context, policyID, version string) (*policy.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.versions[policyID] {
		if rec.Version == version {
			return rec.Clone(), nil
		}
	}
	return nil, policy.ErrPolicyNotFound
}

// GetVersions returns all version labels in creation order. Unknown IDs
// yield an empty slice.
func (s *PersistenceStore) GetVersions(ctx context.Context, policyID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.versions[policyID]
	labels := make([]string, 0, len(history))
	for _, rec := range history {
		labels = append(labels, rec.Version)
	}
	return labels, nil
}

// ListPolicyIDs returns all policy IDs in lexical order.
func (s *PersistenceStore) ListPolicyIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.versions))
	for id := range s.versions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// RemovePolicy deletes the policy and its history. Absent IDs succeed
// silently.
func (s *PersistenceStore) RemovePolicy(ctx context.Context, policyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.versions, policyID)
	return nil
}

// GetPublishedPolicy returns the decision-side projection of the policy.
func (s *PersistenceStore) GetPublishedPolicy(ctx context.Context, policyID string) (*policy.StoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.published[policyID]
	if !ok {
		return nil, policy.ErrPolicyNotFound
	}
	return entry.Clone(), nil
}

// ListPublishedPolicyIDs returns the IDs of all published policies in
// lexical order.
func (s *PersistenceStore) ListPublishedPolicyIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.published))
	for id := range s.published {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// IsPolicyExist reports whether a published entry exists for the ID.
func (s *PersistenceStore) IsPolicyExist(ctx context.Context, policyID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.published[policyID]
	return ok
}

// AddPolicy publishes the entry. Re-publishing an existing ID keeps the
// stored activation and order unless the entry's Set flags are set.
func (s *PersistenceStore) AddPolicy(ctx context.Context, entry *policy.StoreEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.published[entry.PolicyID] = policy.MergeEntry(s.published[entry.PolicyID], entry)
	return nil
}

// UpdatePolicy rewrites an existing published entry, honoring the Set flags.
func (s *PersistenceStore) UpdatePolicy(ctx context.Context, entry *policy.StoreEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.published[entry.PolicyID]
	if !ok {
		return policy.ErrPolicyNotFound
	}
	s.published[entry.PolicyID] = policy.MergeEntry(existing, entry)
	return nil
}

// DeletePolicy removes the published entry.
func (s *PersistenceStore) DeletePolicy(ctx context.Context, policyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.published[policyID]; !ok {
		return policy.ErrPolicyNotFound
	}
	delete(s.published, policyID)
	return nil
}

// GetPolicyDocument returns the published document text.
func (s *PersistenceStore) GetPolicyDocument(ctx context.Context, policyID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.published[policyID]
	if !ok {
		return "", policy.ErrPolicyNotFound
	}
	return entry.Document, nil
}

// GetOrderedPolicyIdentifiers returns published IDs sorted ascending by
// order, ties broken by policy ID lexical order.
func (s *PersistenceStore) GetOrderedPolicyIdentifiers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*policy.StoreEntry, 0, len(s.published))
	for _, entry := range s.published {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Order != entries[j].Order {
			return entries[i].Order < entries[j].Order
		}
		return entries[i].PolicyID < entries[j].PolicyID
	})

	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.PolicyID
	}
	return ids, nil
}

// Compile-time interface verification.
var (
	_ policy.PersistenceManager = (*PersistenceStore)(nil)
	_ policy.StoreModule        = (*PersistenceStore)(nil)
)
