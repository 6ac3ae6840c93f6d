package policy

import "context"

// PersistenceManager is the administration-facing contract over the durable
// policy backend. It owns full-fidelity records and their version history.
// Interface owned by domain per hexagonal architecture.
type PersistenceManager interface {
	// AddOrUpdatePolicy persists the record. adminOriginated distinguishes
	// administration-path writes from internal publish actions; only
	// admin-originated writes create a new version.
	AddOrUpdatePolicy(ctx context.Context, rec *Record, adminOriginated bool) error

	// GetPolicy returns the latest record for the given policy ID.
	// Returns ErrPolicyNotFound if the policy does not exist.
	GetPolicy(ctx context.Context, policyID string) (*Record, error)

	// GetPolicies returns the records for the given IDs. Missing IDs are
	// omitted from the result, never an error.
	GetPolicies(ctx context.Context, policyIDs []string) ([]*Record, error)

	// GetPolicyVersion returns a specific version of a policy.
	// Returns ErrPolicyNotFound if the policy or version does not exist.
	GetPolicyVersion(ctx context.Context, policyID, version string) (*Record, error)

	// GetVersions returns all version labels for the policy in creation
	// order. Returns an empty slice for unknown IDs; never fails on them.
	GetVersions(ctx context.Context, policyID string) ([]string, error)

	// ListPolicyIDs returns all administration-side policy IDs.
	ListPolicyIDs(ctx context.Context) ([]string, error)

	// RemovePolicy deletes the policy and its version history.
	// Removing an absent policy succeeds silently.
	RemovePolicy(ctx context.Context, policyID string) error

	// GetPublishedPolicy returns the decision-side projection of a policy.
	// Returns ErrPolicyNotFound if the policy was never published.
	GetPublishedPolicy(ctx context.Context, policyID string) (*StoreEntry, error)

	// ListPublishedPolicyIDs returns the IDs of all published policies.
	ListPublishedPolicyIDs(ctx context.Context) ([]string, error)
}

// DocumentParser turns raw policy-language text into its declared policy ID.
// The full parser/validator lives with the evaluation engine; the store only
// needs identity extraction for the legacy read path.
type DocumentParser interface {
	PolicyID(document string) (string, error)
}

// StoreModule is the decision-side store consumed by the coordination core.
// It holds the published policies eligible for evaluation.
type StoreModule interface {
	// IsPolicyExist reports whether a published policy exists. Backend
	// errors are swallowed and reported as false: existence checks never
	// fail, at the cost of conflating "absent" with "unreachable".
	IsPolicyExist(ctx context.Context, policyID string) bool

	// AddPolicy publishes a new entry.
	AddPolicy(ctx context.Context, entry *StoreEntry) error

	// UpdatePolicy rewrites an existing entry. Activation and order are
	// only touched when the entry's SetActive/SetOrder flags are set.
	UpdatePolicy(ctx context.Context, entry *StoreEntry) error

	// DeletePolicy removes a published policy.
	// Returns ErrPolicyNotFound if the policy does not exist.
	DeletePolicy(ctx context.Context, policyID string) error

	// GetPolicyDocument returns the published document text.
	// Returns ErrPolicyNotFound if the policy does not exist.
	GetPolicyDocument(ctx context.Context, policyID string) (string, error)

	// GetOrderedPolicyIdentifiers returns all published policy IDs sorted
	// ascending by order, ties broken by policy ID lexical order.
	GetOrderedPolicyIdentifiers(ctx context.Context) ([]string, error)
}

// DataStore is the decision-side index keyed by policy ID. It is a
// rebuildable cache of {active, order, version} with last-write-wins
// semantics per policy ID; the decision-side store stays authoritative.
type DataStore interface {
	// SetPolicyData stores the entry for the policy ID.
	SetPolicyData(ctx context.Context, policyID string, entry *StoreEntry) error

	// GetPolicyData returns the entry for the policy ID.
	// Returns ErrPolicyNotFound if no entry exists.
	GetPolicyData(ctx context.Context, policyID string) (*StoreEntry, error)

	// GetAllPolicyData returns all entries.
	GetAllPolicyData(ctx context.Context) ([]*StoreEntry, error)

	// RemovePolicyData deletes the entry. Removing an absent entry
	// succeeds silently.
	RemovePolicyData(ctx context.Context, policyID string) error
}
