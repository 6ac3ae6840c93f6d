// Package service contains application services for the policy store layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Arbiter-AC/arbiter/internal/domain/policy"
	"github.com/Arbiter-AC/arbiter/internal/telemetry"
)

// PolicyStoreManager is the coordination core. It publishes administrative
// changes into the decision-side store and the policy data index together,
// computes activation/order defaults on first publish, and dispatches an
// evaluation cache invalidation after every durable mutation.
//
// Mutations on the same policy ID serialize; operations on different IDs
// proceed in parallel. Bulk reads take no per-ID lock and may observe a
// mutation in flight for other IDs.
type PolicyStoreManager struct {
	store       policy.StoreModule
	dataStore   policy.DataStore
	invalidator policy.CacheInvalidator
	logger      *slog.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	locks       *keyedLock
}

// NewPolicyStoreManager creates a new PolicyStoreManager.
func NewPolicyStoreManager(
	store policy.StoreModule,
	dataStore policy.DataStore,
	invalidator policy.CacheInvalidator,
	logger *slog.Logger,
	metrics *Metrics,
) *PolicyStoreManager {
	return &PolicyStoreManager{
		store:       store,
		dataStore:   dataStore,
		invalidator: invalidator,
		logger:      logger,
		metrics:     metrics,
		tracer:      otel.Tracer(telemetry.TracerName),
		locks:       newKeyedLock(),
	}
}

// AddPolicy publishes the record to the decision-side store. On first
// publish the store establishes both activation and order from the record;
// re-adding an existing ID overwrites content and version only, leaving the
// stored activation and order untouched.
func (m *PolicyStoreManager) AddPolicy(ctx context.Context, rec *policy.Record) error {
	lock := m.locks.get(rec.PolicyID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := m.tracer.Start(ctx, "PolicyStoreManager.AddPolicy")
	defer span.End()
	telemetry.RecordMutation(span, rec.PolicyID, policy.ActionUpdate)
	defer m.observe("add", time.Now())

	entry := entryFromRecord(rec)
	firstPublish := !m.store.IsPolicyExist(ctx, rec.PolicyID)
	if firstPublish {
		entry.SetOrder = true
		entry.SetActive = true
	} else {
		entry.SetActive = false
		entry.SetOrder = false
	}

	if err := m.store.AddPolicy(ctx, entry); err != nil {
		m.fail("add", rec.PolicyID, err)
		return policy.NewStoreError("add", rec.PolicyID, err)
	}
	if err := m.writeThrough(ctx, entry); err != nil {
		m.fail("add", rec.PolicyID, err)
		return policy.NewStoreError("add", rec.PolicyID, err)
	}

	m.metrics.MutationsTotal.WithLabelValues("add", "ok").Inc()
	if firstPublish {
		m.metrics.PublishedPolicies.Inc()
	}
	m.invalidate(ctx, span, rec.PolicyID, policy.ActionUpdate)
	m.logger.Info("policy published", "policy_id", rec.PolicyID, "version", rec.Version,
		"first_publish", firstPublish)
	return nil
}

// UpdatePolicy rewrites the published content and version of an existing
// policy. An update never implicitly changes activation or order, and it
// deliberately does not touch the policy data index: the stored index entry
// remains as-is until an explicit enable/disable or order call refreshes it.
func (m *PolicyStoreManager) UpdatePolicy(ctx context.Context, rec *policy.Record) error {
	lock := m.locks.get(rec.PolicyID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := m.tracer.Start(ctx, "PolicyStoreManager.UpdatePolicy")
	defer span.End()
	telemetry.RecordMutation(span, rec.PolicyID, policy.ActionUpdate)
	defer m.observe("update", time.Now())

	if !m.store.IsPolicyExist(ctx, rec.PolicyID) {
		m.metrics.MutationsTotal.WithLabelValues("update", "error").Inc()
		return fmt.Errorf("update policy %q: %w", rec.PolicyID, policy.ErrPolicyNotFound)
	}

	entry := entryFromRecord(rec)
	entry.SetActive = false
	entry.SetOrder = false

	if err := m.store.UpdatePolicy(ctx, entry); err != nil {
		m.fail("update", rec.PolicyID, err)
		return policy.NewStoreError("update", rec.PolicyID, err)
	}

	m.metrics.MutationsTotal.WithLabelValues("update", "ok").Inc()
	m.invalidate(ctx, span, rec.PolicyID, policy.ActionUpdate)
	m.logger.Info("policy updated", "policy_id", rec.PolicyID, "version", rec.Version)
	return nil
}

// EnableDisablePolicy flips the activation of an existing published policy
// and writes the change through to the policy data index.
func (m *PolicyStoreManager) EnableDisablePolicy(ctx context.Context, rec *policy.Record) error {
	lock := m.locks.get(rec.PolicyID)
	lock.Lock()
	defer lock.Unlock()

	action := policy.ActionDisable
	if rec.Active {
		action = policy.ActionEnable
	}

	ctx, span := m.tracer.Start(ctx, "PolicyStoreManager.EnableDisablePolicy")
	defer span.End()
	telemetry.RecordMutation(span, rec.PolicyID, action)
	defer m.observe("enable_disable", time.Now())

	if !m.store.IsPolicyExist(ctx, rec.PolicyID) {
		m.metrics.MutationsTotal.WithLabelValues("enable_disable", "error").Inc()
		return fmt.Errorf("enable/disable policy %q: %w", rec.PolicyID, policy.ErrPolicyNotFound)
	}

	entry := &policy.StoreEntry{
		PolicyID:  rec.PolicyID,
		Document:  rec.Document,
		Active:    rec.Active,
		Version:   rec.Version,
		SetActive: true,
	}
	if rec.Document != "" {
		entry.Digest = policy.DocumentDigest(rec.Document)
	}

	if err := m.store.UpdatePolicy(ctx, entry); err != nil {
		m.fail("enable_disable", rec.PolicyID, err)
		return policy.NewStoreError("enable_disable", rec.PolicyID, err)
	}
	if err := m.writeThrough(ctx, entry); err != nil {
		m.fail("enable_disable", rec.PolicyID, err)
		return policy.NewStoreError("enable_disable", rec.PolicyID, err)
	}

	m.metrics.MutationsTotal.WithLabelValues("enable_disable", "ok").Inc()
	m.invalidate(ctx, span, rec.PolicyID, action)
	m.logger.Info("policy activation changed", "policy_id", rec.PolicyID, "active", rec.Active)
	return nil
}

// OrderPolicy changes the evaluation precedence of an existing published
// policy and writes the change through to the policy data index. Content and
// activation are untouched.
func (m *PolicyStoreManager) OrderPolicy(ctx context.Context, rec *policy.Record) error {
	lock := m.locks.get(rec.PolicyID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := m.tracer.Start(ctx, "PolicyStoreManager.OrderPolicy")
	defer span.End()
	telemetry.RecordMutation(span, rec.PolicyID, policy.ActionOrder)
	defer m.observe("order", time.Now())

	if !m.store.IsPolicyExist(ctx, rec.PolicyID) {
		m.metrics.MutationsTotal.WithLabelValues("order", "error").Inc()
		return fmt.Errorf("order policy %q: %w", rec.PolicyID, policy.ErrPolicyNotFound)
	}

	entry := &policy.StoreEntry{
		PolicyID: rec.PolicyID,
		Document: rec.Document,
		Order:    rec.Order,
		Version:  rec.Version,
		SetOrder: true,
	}
	if rec.Document != "" {
		entry.Digest = policy.DocumentDigest(rec.Document)
	}

	if err := m.store.UpdatePolicy(ctx, entry); err != nil {
		m.fail("order", rec.PolicyID, err)
		return policy.NewStoreError("order", rec.PolicyID, err)
	}
	if err := m.writeThrough(ctx, entry); err != nil {
		m.fail("order", rec.PolicyID, err)
		return policy.NewStoreError("order", rec.PolicyID, err)
	}

	m.metrics.MutationsTotal.WithLabelValues("order", "ok").Inc()
	m.invalidate(ctx, span, rec.PolicyID, policy.ActionOrder)
	m.logger.Info("policy reordered", "policy_id", rec.PolicyID, "order", rec.Order)
	return nil
}

// RemovePolicy deletes the policy from the decision-side store and the
// policy data index. The decision-side store is deleted first so a crash
// mid-operation leaves no stale active projection; the index removal is
// attempted even when the store delete fails, and errors from both are
// joined. The cache invalidation is dispatched whenever the decision-side
// delete went through, so the evaluator learns about the removal even when
// index cleanup failed.
func (m *PolicyStoreManager) RemovePolicy(ctx context.Context, rec *policy.Record) error {
	lock := m.locks.get(rec.PolicyID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := m.tracer.Start(ctx, "PolicyStoreManager.RemovePolicy")
	defer span.End()
	telemetry.RecordMutation(span, rec.PolicyID, policy.ActionDelete)
	defer m.observe("remove", time.Now())

	if !m.store.IsPolicyExist(ctx, rec.PolicyID) {
		m.metrics.MutationsTotal.WithLabelValues("remove", "error").Inc()
		return fmt.Errorf("remove policy %q: %w", rec.PolicyID, policy.ErrPolicyNotFound)
	}

	storeErr := m.store.DeletePolicy(ctx, rec.PolicyID)
	indexErr := m.dataStore.RemovePolicyData(ctx, rec.PolicyID)

	if storeErr == nil {
		m.invalidate(ctx, span, rec.PolicyID, policy.ActionDelete)
	}
	if err := errors.Join(storeErr, indexErr); err != nil {
		m.fail("remove", rec.PolicyID, err)
		return policy.NewStoreError("remove", rec.PolicyID, err)
	}

	m.metrics.MutationsTotal.WithLabelValues("remove", "ok").Inc()
	m.metrics.PublishedPolicies.Dec()
	m.logger.Info("policy removed", "policy_id", rec.PolicyID)
	return nil
}

// GetPolicy reads published content from the decision-side store and the
// decision attributes from the policy data index. When no published content
// exists it returns a shell record carrying only the policy ID; callers must
// check for empty content.
func (m *PolicyStoreManager) GetPolicy(ctx context.Context, policyID string) (*policy.Record, error) {
	lock := m.locks.get(policyID)
	lock.RLock()
	defer lock.RUnlock()

	rec := &policy.Record{PolicyID: policyID}

	document, err := m.store.GetPolicyDocument(ctx, policyID)
	if err != nil {
		if errors.Is(err, policy.ErrPolicyNotFound) {
			return rec, nil
		}
		return nil, policy.NewStoreError("get", policyID, err)
	}
	rec.Document = document

	data, err := m.dataStore.GetPolicyData(ctx, policyID)
	if err != nil {
		if errors.Is(err, policy.ErrPolicyNotFound) {
			return rec, nil
		}
		return nil, policy.NewStoreError("get", policyID, err)
	}
	rec.Active = data.Active
	rec.Order = data.Order
	rec.Version = data.Version
	return rec, nil
}

// GetPolicyIDs returns the published policy IDs in the decision-side
// store's own identifier order. Evaluation-time sorting by order is the
// evaluator's responsibility.
func (m *PolicyStoreManager) GetPolicyIDs(ctx context.Context) ([]string, error) {
	ids, err := m.store.GetOrderedPolicyIdentifiers(ctx)
	if err != nil {
		return nil, policy.NewStoreError("list", "", err)
	}
	return ids, nil
}

// GetLightPolicies returns one light record per published policy, joining
// the decision-side identifier order with the index attributes. Policies
// with no index entry are listed with zero-value attributes.
func (m *PolicyStoreManager) GetLightPolicies(ctx context.Context) ([]*policy.Record, error) {
	ids, err := m.store.GetOrderedPolicyIdentifiers(ctx)
	if err != nil {
		return nil, policy.NewStoreError("list", "", err)
	}

	records := make([]*policy.Record, 0, len(ids))
	for _, id := range ids {
		rec := &policy.Record{PolicyID: id}
		if data, err := m.dataStore.GetPolicyData(ctx, id); err == nil {
			rec.Active = data.Active
			rec.Order = data.Order
			rec.Version = data.Version
		}
		records = append(records, rec)
	}
	return records, nil
}

// GetAllPolicyData returns every entry in the policy data index.
func (m *PolicyStoreManager) GetAllPolicyData(ctx context.Context) ([]*policy.StoreEntry, error) {
	entries, err := m.dataStore.GetAllPolicyData(ctx)
	if err != nil {
		return nil, policy.NewStoreError("list_data", "", err)
	}
	return entries, nil
}

// writeThrough mirrors the decision-side write into the policy data index,
// merging with the stored entry so unset attributes survive partial writes.
func (m *PolicyStoreManager) writeThrough(ctx context.Context, entry *policy.StoreEntry) error {
	existing, err := m.dataStore.GetPolicyData(ctx, entry.PolicyID)
	if err != nil && !errors.Is(err, policy.ErrPolicyNotFound) {
		return err
	}
	return m.dataStore.SetPolicyData(ctx, entry.PolicyID, policy.MergeEntry(existing, entry))
}

// invalidate dispatches a stale-cache notification synchronously, after the
// mutation is durably applied. The dispatch must happen before the mutating
// call returns to its caller.
func (m *PolicyStoreManager) invalidate(ctx context.Context, span trace.Span, policyID string, action policy.InvalidationAction) {
	inv := policy.Invalidation{
		EventID:  uuid.New().String(),
		PolicyID: policyID,
		Action:   action,
	}
	m.invalidator.Invalidate(ctx, inv)
	m.metrics.InvalidationsTotal.WithLabelValues(string(action)).Inc()
	telemetry.RecordInvalidation(span, inv)
	m.logger.Debug("cache invalidation dispatched",
		"policy_id", policyID, "action", string(action), "event_id", inv.EventID)
}

func (m *PolicyStoreManager) fail(operation, policyID string, err error) {
	m.metrics.MutationsTotal.WithLabelValues(operation, "error").Inc()
	m.logger.Error("policy store operation failed",
		"operation", operation, "policy_id", policyID, "error", err)
}

func (m *PolicyStoreManager) observe(operation string, start time.Time) {
	m.metrics.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// entryFromRecord builds the decision-side projection published for the
// record: identity, content, decision attributes, descriptors, and version.
func entryFromRecord(rec *policy.Record) *policy.StoreEntry {
	return &policy.StoreEntry{
		PolicyID:   rec.PolicyID,
		Document:   rec.Document,
		Active:     rec.Active,
		Order:      rec.Order,
		Version:    rec.Version,
		Attributes: append([]policy.AttributeDescriptor(nil), rec.Attributes...),
		Digest:     policy.DocumentDigest(rec.Document),
	}
}
