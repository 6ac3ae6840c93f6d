package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Arbiter-AC/arbiter/internal/domain/policy"
)

// RebuildPolicyIndex reconstructs the policy data index from the published
// read path of the persistence manager. The index is a rebuildable cache;
// the decision-side store stays authoritative, so after a crash or detected
// divergence this brings the index back in line. Index entries whose digest
// disagrees with the published document are logged before being replaced,
// and entries with no published counterpart are dropped.
//
// Returns the number of index entries written.
func RebuildPolicyIndex(ctx context.Context, store policy.PersistenceManager, dataStore policy.DataStore, logger *slog.Logger) (int, error) {
	ids, err := store.ListPublishedPolicyIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list published policies: %w", err)
	}

	published := make(map[string]bool, len(ids))
	written := 0
	for _, id := range ids {
		entry, err := store.GetPublishedPolicy(ctx, id)
		if err != nil {
			logger.Warn("skipping unreadable published policy", "policy_id", id, "error", err)
			continue
		}
		published[id] = true

		if stale, err := dataStore.GetPolicyData(ctx, id); err == nil && stale.Digest != entry.Digest {
			logger.Warn("index entry diverged from published policy",
				"policy_id", id, "index_digest", stale.Digest, "published_digest", entry.Digest)
		}

		if err := dataStore.SetPolicyData(ctx, id, entry); err != nil {
			return written, fmt.Errorf("write index entry %q: %w", id, err)
		}
		written++
	}

	// Drop index entries for policies no longer published.
	stale, err := dataStore.GetAllPolicyData(ctx)
	if err != nil && !errors.Is(err, policy.ErrPolicyNotFound) {
		return written, fmt.Errorf("list index entries: %w", err)
	}
	for _, entry := range stale {
		if published[entry.PolicyID] {
			continue
		}
		if err := dataStore.RemovePolicyData(ctx, entry.PolicyID); err != nil {
			logger.Warn("failed to drop stale index entry", "policy_id", entry.PolicyID, "error", err)
			continue
		}
		logger.Info("dropped stale index entry", "policy_id", entry.PolicyID)
	}

	logger.Info("policy index rebuilt", "published", len(ids), "written", written)
	return written, nil
}
