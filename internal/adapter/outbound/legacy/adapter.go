// Package legacy adapts property-bag resources from the deprecated registry
// storage layout into full policy records. Retained for backward read
// compatibility only; the primary read path never depends on it.
package legacy

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Arbiter-AC/arbiter/internal/domain/policy"
)

// Well-known property keys of the legacy resource format.
const (
	PropActive               = "activePolicy"
	PropOrder                = "policyOrder"
	PropVersion              = "version"
	PropLastModifiedTime     = "lastModifiedTime"
	PropLastModifiedUser     = "lastModifiedUser"
	PropPolicyType           = "policyType"
	PropPolicyReferences     = "policyReferences"
	PropPolicySetReferences  = "policySetReferences"
	PropEditorType           = "policyEditor"
	PropEditorMetadataAmount = "basicPolicyEditorMetaDataAmount"
	PropEditorMetadataPrefix = "basicPolicyEditorMetaData"
)

// attributeSeparator delimits reference lists within a single property.
const attributeSeparator = ","

// Resource is one record of the legacy format: string properties by
// well-known key plus the raw document bytes.
type Resource struct {
	Properties map[string]string
	Content    []byte
}

// Property returns the named property, or "" when unset.
func (r *Resource) Property(key string) string {
	return r.Properties[key]
}

// Adapter produces full policy records from legacy resources. The policy ID
// comes from parsing the raw document; everything else comes from the
// property bag.
type Adapter struct {
	parser policy.DocumentParser
	logger *slog.Logger
}

// NewAdapter creates a new Adapter.
func NewAdapter(parser policy.DocumentParser, logger *slog.Logger) *Adapter {
	return &Adapter{parser: parser, logger: logger}
}

// ReadRecord adapts the resource into a full record. Malformed integer
// properties fail with policy.ParseError; a document that does not parse
// fails with the parser's error.
func (a *Adapter) ReadRecord(res *Resource) (*policy.Record, error) {
	document := string(res.Content)

	policyID, err := a.parser.PolicyID(document)
	if err != nil {
		a.logger.Error("failed to parse legacy policy resource", "error", err)
		return nil, fmt.Errorf("adapt legacy resource: %w", err)
	}

	rec := &policy.Record{
		PolicyID:         policyID,
		Document:         document,
		Active:           strings.EqualFold(res.Property(PropActive), "true"),
		Version:          res.Property(PropVersion),
		LastModifiedTime: res.Property(PropLastModifiedTime),
		LastModifiedUser: res.Property(PropLastModifiedUser),
		PolicyType:       res.Property(PropPolicyType),
		EditorType:       res.Property(PropEditorType),
	}

	if raw := res.Property(PropOrder); raw != "" {
		order, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &policy.ParseError{Property: PropOrder, Value: raw, Err: err}
		}
		rec.Order = order
	}

	if refs := strings.TrimSpace(res.Property(PropPolicyReferences)); refs != "" {
		rec.PolicyIDReferences = strings.Split(refs, attributeSeparator)
	}
	if refs := strings.TrimSpace(res.Property(PropPolicySetReferences)); refs != "" {
		rec.PolicySetIDReferences = strings.Split(refs, attributeSeparator)
	}

	if raw := res.Property(PropEditorMetadataAmount); raw != "" {
		amount, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &policy.ParseError{Property: PropEditorMetadataAmount, Value: raw, Err: err}
		}
		metadata := make([]string, amount)
		for i := 0; i < amount; i++ {
			metadata[i] = res.Property(PropEditorMetadataPrefix + strconv.Itoa(i))
		}
		rec.EditorMetadata = metadata
	}

	return rec, nil
}
