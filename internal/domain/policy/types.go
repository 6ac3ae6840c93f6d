// Package policy contains domain types for the policy store coordination layer.
package policy

import "github.com/cespare/xxhash/v2"

// AttributeDescriptor is one subject/resource/action/environment attribute
// extracted from a policy document. Descriptors are carried as opaque search
// metadata; the store never interprets them.
type AttributeDescriptor struct {
	// Category is the XACML attribute category URI.
	Category string `json:"category"`
	// AttributeID identifies the attribute within its category.
	AttributeID string `json:"attribute_id"`
	// DataType is the declared data type URI of the attribute value.
	DataType string `json:"data_type"`
	// Value is the literal attribute value.
	Value string `json:"value"`
}

// Record is the full-fidelity administration-side view of a policy.
// PolicyID is immutable after creation; Version is assigned per PolicyID in
// creation order.
type Record struct {
	// PolicyID is the unique, stable identity of the policy.
	PolicyID string `json:"policy_id"`
	// Version is the persisted version label, e.g. "3".
	Version string `json:"version"`
	// Document is the raw policy-language text. Empty in reduced views.
	Document string `json:"document,omitempty"`

	// Active and Order are the decision-relevant attributes. Order defines
	// evaluation precedence (lower sorts first).
	Active bool `json:"active"`
	Order  int  `json:"order"`

	// PolicyType distinguishes Policy from PolicySet documents.
	PolicyType string `json:"policy_type,omitempty"`
	// PolicyIDReferences lists policy IDs referenced by this document.
	PolicyIDReferences []string `json:"policy_id_references,omitempty"`
	// PolicySetIDReferences lists policy set IDs referenced by this document.
	PolicySetIDReferences []string `json:"policy_set_id_references,omitempty"`

	// EditorType and EditorMetadata round-trip administration-UI state.
	// Both are opaque to the store.
	EditorType     string   `json:"editor_type,omitempty"`
	EditorMetadata []string `json:"editor_metadata,omitempty"`

	// Attributes are the searchable attribute descriptors extracted from
	// the document.
	Attributes []AttributeDescriptor `json:"attributes,omitempty"`

	// LastModifiedTime is the backend-assigned modification timestamp.
	LastModifiedTime string `json:"last_modified_time,omitempty"`
	// LastModifiedUser is the administrator who performed the last write.
	LastModifiedUser string `json:"last_modified_user,omitempty"`
}

// Light returns a reduced copy for listing: document, attribute descriptors,
// and editor metadata are cleared, identity and decision attributes are kept.
func (r *Record) Light() *Record {
	light := *r
	light.Document = ""
	light.Attributes = []AttributeDescriptor{}
	light.EditorMetadata = []string{}
	light.PolicyIDReferences = append([]string(nil), r.PolicyIDReferences...)
	light.PolicySetIDReferences = append([]string(nil), r.PolicySetIDReferences...)
	return &light
}

// MetaDataOnly returns a copy with the document cleared and everything else
// intact, including attribute descriptors and editor metadata.
func (r *Record) MetaDataOnly() *Record {
	meta := *r
	meta.Document = ""
	meta.PolicyIDReferences = append([]string(nil), r.PolicyIDReferences...)
	meta.PolicySetIDReferences = append([]string(nil), r.PolicySetIDReferences...)
	meta.EditorMetadata = append([]string(nil), r.EditorMetadata...)
	meta.Attributes = append([]AttributeDescriptor(nil), r.Attributes...)
	return &meta
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	c.PolicyIDReferences = append([]string(nil), r.PolicyIDReferences...)
	c.PolicySetIDReferences = append([]string(nil), r.PolicySetIDReferences...)
	c.EditorMetadata = append([]string(nil), r.EditorMetadata...)
	c.Attributes = append([]AttributeDescriptor(nil), r.Attributes...)
	return &c
}

// StoreEntry is the decision-side projection of a policy. It is written to
// the decision-side store module on publish and mirrored into the
// PolicyDataStore index for fast listing.
type StoreEntry struct {
	// PolicyID is the policy identity.
	PolicyID string `json:"policy_id"`
	// Document is the raw policy text as published.
	Document string `json:"document,omitempty"`
	// Active reports whether the policy participates in evaluation.
	Active bool `json:"active"`
	// Order is the evaluation precedence (lower sorts first).
	Order int `json:"order"`
	// Version is the published version label.
	Version string `json:"version,omitempty"`

	// SetActive and SetOrder tell the store module which decision
	// attributes this write establishes. A write with SetActive=false must
	// leave the stored activation untouched; likewise for SetOrder.
	SetActive bool `json:"set_active"`
	SetOrder  bool `json:"set_order"`

	// Attributes are the searchable descriptors published with the policy.
	Attributes []AttributeDescriptor `json:"attributes,omitempty"`

	// Digest is the xxhash64 of Document, used to detect divergence
	// between the decision-side store and the index during rebuild.
	Digest uint64 `json:"digest,omitempty"`
}

// DocumentDigest computes the digest stored in StoreEntry.Digest.
func DocumentDigest(document string) uint64 {
	return xxhash.Sum64String(document)
}

// Clone returns a deep copy of the entry.
func (e *StoreEntry) Clone() *StoreEntry {
	c := *e
	c.Attributes = append([]AttributeDescriptor(nil), e.Attributes...)
	return &c
}

// MergeEntry applies incoming onto existing. Document, version, attributes,
// and digest follow the incoming entry when present; activation and order
// only move when the corresponding Set flag is set. A nil existing entry
// yields a plain copy of incoming.
func MergeEntry(existing, incoming *StoreEntry) *StoreEntry {
	merged := incoming.Clone()
	if existing == nil {
		return merged
	}
	if !incoming.SetActive {
		merged.Active = existing.Active
	}
	if !incoming.SetOrder {
		merged.Order = existing.Order
	}
	if incoming.Document == "" {
		merged.Document = existing.Document
		merged.Digest = existing.Digest
	}
	if incoming.Version == "" {
		merged.Version = existing.Version
	}
	if incoming.Attributes == nil {
		merged.Attributes = append([]AttributeDescriptor(nil), existing.Attributes...)
	}
	return merged
}
