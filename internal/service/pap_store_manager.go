package service

import (
	"context"
	"log/slog"

	"github.com/Arbiter-AC/arbiter/internal/domain/policy"
)

// PAPPolicyStoreManager is the administration façade: the single entry point
// administration callers use for the authoritative store. It composes the
// persistence manager with the store reader and holds no state of its own;
// all failure modes pass through from the composed operations.
type PAPPolicyStoreManager struct {
	store  policy.PersistenceManager
	reader *PAPPolicyStoreReader
}

// NewPAPPolicyStoreManager creates a new PAPPolicyStoreManager.
func NewPAPPolicyStoreManager(store policy.PersistenceManager, logger *slog.Logger) *PAPPolicyStoreManager {
	return &PAPPolicyStoreManager{
		store:  store,
		reader: NewPAPPolicyStoreReader(store, logger),
	}
}

// AddOrUpdatePolicy persists the record. adminOriginated selects the
// backend's versioning/audit behavior for administration-path writes.
func (m *PAPPolicyStoreManager) AddOrUpdatePolicy(ctx context.Context, rec *policy.Record, adminOriginated bool) error {
	return m.store.AddOrUpdatePolicy(ctx, rec, adminOriginated)
}

// RemovePolicy deletes the policy from the authoritative store.
func (m *PAPPolicyStoreManager) RemovePolicy(ctx context.Context, policyID string) error {
	return m.store.RemovePolicy(ctx, policyID)
}

// GetPolicyIDs lists all administration-side policy IDs.
func (m *PAPPolicyStoreManager) GetPolicyIDs(ctx context.Context) ([]string, error) {
	return m.store.ListPolicyIDs(ctx)
}

// GetPolicy returns the full record for the policy ID.
func (m *PAPPolicyStoreManager) GetPolicy(ctx context.Context, policyID string) (*policy.Record, error) {
	return m.reader.ReadPolicy(ctx, policyID)
}

// PolicyExists reports whether a record exists for the policy ID; never fails.
func (m *PAPPolicyStoreManager) PolicyExists(ctx context.Context, policyID string) bool {
	return m.reader.PolicyExists(ctx, policyID)
}

// GetLightPolicy returns the light view, or nil when absent.
func (m *PAPPolicyStoreManager) GetLightPolicy(ctx context.Context, policyID string) (*policy.Record, error) {
	return m.reader.ReadLightPolicy(ctx, policyID)
}

// GetMetaDataPolicy returns the metadata-only view, or nil when absent.
func (m *PAPPolicyStoreManager) GetMetaDataPolicy(ctx context.Context, policyID string) (*policy.Record, error) {
	return m.reader.ReadMetaDataPolicy(ctx, policyID)
}

// GetAllLightPolicies lists every policy as a light view.
func (m *PAPPolicyStoreManager) GetAllLightPolicies(ctx context.Context) ([]*policy.Record, error) {
	return m.reader.ReadAllLightPolicies(ctx)
}
