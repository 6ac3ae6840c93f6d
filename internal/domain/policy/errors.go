package policy

import (
	"errors"
	"fmt"
)

// ErrPolicyNotFound is returned when an operation references a policy ID or
// version that is absent from the relevant store. Bulk reads omit absent IDs
// instead of returning this error.
var ErrPolicyNotFound = errors.New("policy not found")

// StoreError reports a backend failure during a store operation. It carries
// the attempted operation and policy ID so callers and logs can scope the
// failure to a single policy.
type StoreError struct {
	Op       string
	PolicyID string
	Err      error
}

func (e *StoreError) Error() string {
	if e.PolicyID == "" {
		return fmt.Sprintf("policy store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("policy store %s %q: %v", e.Op, e.PolicyID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err with the operation and policy ID. Returns nil when
// err is nil.
func NewStoreError(op, policyID string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, PolicyID: policyID, Err: err}
}

// ParseError reports malformed legacy-format input encountered during
// resource adaptation, e.g. a non-integer order or metadata count property.
type ParseError struct {
	Property string
	Value    string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse legacy property %q=%q: %v", e.Property, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
