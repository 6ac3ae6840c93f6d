package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Arbiter-AC/arbiter/internal/domain/policy"
)

// PAPPolicyStoreReader transforms authoritative administration-side records
// into the requested view. It never mutates storage.
type PAPPolicyStoreReader struct {
	store  policy.PersistenceManager
	logger *slog.Logger
}

// NewPAPPolicyStoreReader creates a new PAPPolicyStoreReader.
func NewPAPPolicyStoreReader(store policy.PersistenceManager, logger *slog.Logger) *PAPPolicyStoreReader {
	return &PAPPolicyStoreReader{store: store, logger: logger}
}

// ReadPolicy returns the full record for the policy ID.
// Returns policy.ErrPolicyNotFound if the policy does not exist.
func (r *PAPPolicyStoreReader) ReadPolicy(ctx context.Context, policyID string) (*policy.Record, error) {
	rec, err := r.store.GetPolicy(ctx, policyID)
	if err != nil {
		if errors.Is(err, policy.ErrPolicyNotFound) {
			r.logger.Error("policy does not exist", "policy_id", policyID)
			return nil, fmt.Errorf("read policy %q: %w", policyID, policy.ErrPolicyNotFound)
		}
		return nil, policy.NewStoreError("read", policyID, err)
	}
	return rec, nil
}

// ReadLightPolicy returns the light view for the policy ID, or nil when the
// policy is absent. Absence is not an error on this path.
func (r *PAPPolicyStoreReader) ReadLightPolicy(ctx context.Context, policyID string) (*policy.Record, error) {
	rec, err := r.store.GetPolicy(ctx, policyID)
	if err != nil {
		if errors.Is(err, policy.ErrPolicyNotFound) {
			return nil, nil
		}
		return nil, policy.NewStoreError("read_light", policyID, err)
	}
	return rec.Light(), nil
}

// ReadMetaDataPolicy returns the metadata-only view for the policy ID, or
// nil when the policy is absent.
func (r *PAPPolicyStoreReader) ReadMetaDataPolicy(ctx context.Context, policyID string) (*policy.Record, error) {
	rec, err := r.store.GetPolicy(ctx, policyID)
	if err != nil {
		if errors.Is(err, policy.ErrPolicyNotFound) {
			return nil, nil
		}
		return nil, policy.NewStoreError("read_metadata", policyID, err)
	}
	return rec.MetaDataOnly(), nil
}

// ReadAllLightPolicies lists every administration-side policy as a light
// view. A record that fails to load is skipped, not fatal to the batch.
func (r *PAPPolicyStoreReader) ReadAllLightPolicies(ctx context.Context) ([]*policy.Record, error) {
	ids, err := r.store.ListPolicyIDs(ctx)
	if err != nil {
		return nil, policy.NewStoreError("list", "", err)
	}

	records, err := r.store.GetPolicies(ctx, ids)
	if err != nil {
		return nil, policy.NewStoreError("list", "", err)
	}

	lights := make([]*policy.Record, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		lights = append(lights, rec.Light())
	}
	return lights, nil
}

// PolicyExists reports whether a record exists for the policy ID. It never
// fails: backend errors are reported as false, which conflates "absent"
// with "unreachable" — callers making security decisions on existence must
// account for that.
func (r *PAPPolicyStoreReader) PolicyExists(ctx context.Context, policyID string) bool {
	_, err := r.store.GetPolicy(ctx, policyID)
	if err != nil {
		if !errors.Is(err, policy.ErrPolicyNotFound) {
			r.logger.Warn("existence check failed, treating as absent",
				"policy_id", policyID, "error", err)
		}
		return false
	}
	return true
}
