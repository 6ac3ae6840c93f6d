// Package state provides file-based persistence for the policy data index.
//
// The index.json file mirrors the decision-side attributes of every
// published policy. This package provides atomic writes, file locking, and
// backup functionality. The file is a rebuildable cache: losing it only
// costs an index rebuild from the decision-side store.
package state

import (
	"time"

	"github.com/Arbiter-AC/arbiter/internal/domain/policy"
)

// IndexState is the top-level structure persisted in index.json.
type IndexState struct {
	// Version is the schema version for forward compatibility. Currently "1".
	Version string `json:"version"`

	// Entries holds the decision-side projection per policy ID.
	Entries map[string]*policy.StoreEntry `json:"entries"`

	// CreatedAt is when this index file was first created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when this index file was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}
