// Package sqlite provides the durable SQLite-backed policy store adapter.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/Arbiter-AC/arbiter/internal/domain/policy"
)

const schema = `
CREATE TABLE IF NOT EXISTS pap_policy (
	policy_id             TEXT    NOT NULL,
	version               INTEGER NOT NULL,
	document              TEXT    NOT NULL,
	active                INTEGER NOT NULL DEFAULT 0,
	policy_order          INTEGER NOT NULL DEFAULT 0,
	policy_type           TEXT    NOT NULL DEFAULT '',
	policy_references     TEXT    NOT NULL DEFAULT '[]',
	policy_set_references TEXT    NOT NULL DEFAULT '[]',
	editor_type           TEXT    NOT NULL DEFAULT '',
	editor_metadata       TEXT    NOT NULL DEFAULT '[]',
	attributes            TEXT    NOT NULL DEFAULT '[]',
	last_modified_time    TEXT    NOT NULL DEFAULT '',
	last_modified_user    TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (policy_id, version)
);

CREATE TABLE IF NOT EXISTS published_policy (
	policy_id    TEXT    PRIMARY KEY,
	document     TEXT    NOT NULL,
	active       INTEGER NOT NULL DEFAULT 0,
	policy_order INTEGER NOT NULL DEFAULT 0,
	version      TEXT    NOT NULL DEFAULT '',
	attributes   TEXT    NOT NULL DEFAULT '[]',
	digest       TEXT    NOT NULL DEFAULT '0'
);
`

// Store implements policy.PersistenceManager and policy.StoreModule on a
// SQLite database. The pap_policy table keeps the full version history per
// policy ID; published_policy holds the decision-side projection.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and prepares the
// schema. Use ":memory:" for an ephemeral store in tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open policy database: %w", err)
	}
	// modernc's driver serializes writes per connection; a single connection
	// avoids SQLITE_BUSY on concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare policy schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// AddOrUpdatePolicy persists the record. Admin-originated writes append a
// new version row; publish-path writes overwrite the latest version.
func (s *Store) AddOrUpdatePolicy(ctx context.Context, rec *policy.Record, adminOriginated bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var latest int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM pap_policy WHERE policy_id = ?`,
		rec.PolicyID).Scan(&latest)
	if err != nil {
		return fmt.Errorf("resolve latest version: %w", err)
	}

	version := latest
	if adminOriginated || latest == 0 {
		version = latest + 1
	}

	refs, setRefs, editorMeta, attrs, err := marshalRecordColumns(rec)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pap_policy (
			policy_id, version, document, active, policy_order, policy_type,
			policy_references, policy_set_references, editor_type,
			editor_metadata, attributes, last_modified_time, last_modified_user
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (policy_id, version) DO UPDATE SET
			document = excluded.document,
			active = excluded.active,
			policy_order = excluded.policy_order,
			policy_type = excluded.policy_type,
			policy_references = excluded.policy_references,
			policy_set_references = excluded.policy_set_references,
			editor_type = excluded.editor_type,
			editor_metadata = excluded.editor_metadata,
			attributes = excluded.attributes,
			last_modified_time = excluded.last_modified_time,
			last_modified_user = excluded.last_modified_user`,
		rec.PolicyID, version, rec.Document, rec.Active, rec.Order, rec.PolicyType,
		refs, setRefs, rec.EditorType, editorMeta, attrs,
		time.Now().UTC().Format(time.RFC3339), rec.LastModifiedUser)
	if err != nil {
		return fmt.Errorf("write policy %q version %d: %w", rec.PolicyID, version, err)
	}

	return tx.Commit()
}

// GetPolicy returns the latest version of the policy.
func (s *Store) GetPolicy(ctx context.Context, policyID string) (*policy.Record, error) {
	row := s.db.QueryRowContext(ctx, selectRecord+`
		WHERE policy_id = ? ORDER BY version DESC LIMIT 1`, policyID)
	return scanRecord(row)
}

// GetPolicies returns the latest versions for the given IDs, omitting
// missing ones.
func (s *Store) GetPolicies(ctx context.Context, policyIDs []string) ([]*policy.Record, error) {
	result := make([]*policy.Record, 0, len(policyIDs))
	for _, id := range policyIDs {
		rec, err := s.GetPolicy(ctx, id)
		if errors.Is(err, policy.ErrPolicyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

// GetPolicyVersion returns the record stored under the given version label.
func (s *Store) GetPolicyVersion(ctx context.Context, policyID, version string) (*policy.Record, error) {
	v, err := strconv.Atoi(version)
	if err != nil {
		return nil, policy.ErrPolicyNotFound
	}
	row := s.db.QueryRowContext(ctx, selectRecord+`
		WHERE policy_id = ? AND version = ?`, policyID, v)
	return scanRecord(row)
}

// GetVersions returns all version labels in creation order. Unknown IDs
// yield an empty slice.
func (s *Store) GetVersions(ctx context.Context, policyID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version FROM pap_policy WHERE policy_id = ? ORDER BY version`, policyID)
	if err != nil {
		return nil, fmt.Errorf("list versions of %q: %w", policyID, err)
	}
	defer func() { _ = rows.Close() }()

	var labels []string
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		labels = append(labels, strconv.Itoa(v))
	}
	if labels == nil {
		labels = []string{}
	}
	return labels, rows.Err()
}

// ListPolicyIDs returns all policy IDs in lexical order.
func (s *Store) ListPolicyIDs(ctx context.Context) ([]string, error) {
	return s.listIDs(ctx, `SELECT DISTINCT policy_id FROM pap_policy ORDER BY policy_id`)
}

// RemovePolicy deletes the policy and its history. Absent IDs succeed
// silently.
func (s *Store) RemovePolicy(ctx context.Context, policyID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM pap_policy WHERE policy_id = ?`, policyID); err != nil {
		return fmt.Errorf("remove policy %q: %w", policyID, err)
	}
	return nil
}

// GetPublishedPolicy returns the decision-side projection of the policy.
func (s *Store) GetPublishedPolicy(ctx context.Context, policyID string) (*policy.StoreEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT policy_id, document, active, policy_order, version, attributes, digest
		FROM published_policy WHERE policy_id = ?`, policyID)
	return scanEntry(row)
}

// ListPublishedPolicyIDs returns the IDs of all published policies in
// lexical order.
func (s *Store) ListPublishedPolicyIDs(ctx context.Context) ([]string, error) {
	return s.listIDs(ctx, `SELECT policy_id FROM published_policy ORDER BY policy_id`)
}

// IsPolicyExist reports whether a published entry exists. Backend errors
// are swallowed and reported as false.
func (s *Store) IsPolicyExist(ctx context.Context, policyID string) bool {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM published_policy WHERE policy_id = ?`, policyID).Scan(&one)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("existence check failed, treating as absent",
				"policy_id", policyID, "error", err)
		}
		return false
	}
	return true
}

// AddPolicy publishes the entry, keeping stored activation and order unless
// the entry's Set flags are set.
func (s *Store) AddPolicy(ctx context.Context, entry *policy.StoreEntry) error {
	return s.upsertPublished(ctx, entry, false)
}

// UpdatePolicy rewrites an existing published entry, honoring the Set flags.
func (s *Store) UpdatePolicy(ctx context.Context, entry *policy.StoreEntry) error {
	return s.upsertPublished(ctx, entry, true)
}

// DeletePolicy removes the published entry.
func (s *Store) DeletePolicy(ctx context.Context, policyID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM published_policy WHERE policy_id = ?`, policyID)
	if err != nil {
		return fmt.Errorf("delete published policy %q: %w", policyID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return policy.ErrPolicyNotFound
	}
	return nil
}

// GetPolicyDocument returns the published document text.
func (s *Store) GetPolicyDocument(ctx context.Context, policyID string) (string, error) {
	var document string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM published_policy WHERE policy_id = ?`, policyID).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return "", policy.ErrPolicyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read published policy %q: %w", policyID, err)
	}
	return document, nil
}

// GetOrderedPolicyIdentifiers returns published IDs sorted ascending by
// order, ties broken by policy ID lexical order.
func (s *Store) GetOrderedPolicyIdentifiers(ctx context.Context) ([]string, error) {
	return s.listIDs(ctx,
		`SELECT policy_id FROM published_policy ORDER BY policy_order, policy_id`)
}

func (s *Store) upsertPublished(ctx context.Context, entry *policy.StoreEntry, mustExist bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT policy_id, document, active, policy_order, version, attributes, digest
		FROM published_policy WHERE policy_id = ?`, entry.PolicyID)
	existing, err := scanEntry(row)
	if err != nil && !errors.Is(err, policy.ErrPolicyNotFound) {
		return err
	}
	if existing == nil && mustExist {
		return policy.ErrPolicyNotFound
	}

	merged := policy.MergeEntry(existing, entry)
	attrs, err := json.Marshal(merged.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO published_policy (policy_id, document, active, policy_order, version, attributes, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (policy_id) DO UPDATE SET
			document = excluded.document,
			active = excluded.active,
			policy_order = excluded.policy_order,
			version = excluded.version,
			attributes = excluded.attributes,
			digest = excluded.digest`,
		merged.PolicyID, merged.Document, merged.Active, merged.Order,
		merged.Version, string(attrs), strconv.FormatUint(merged.Digest, 10))
	if err != nil {
		return fmt.Errorf("publish policy %q: %w", entry.PolicyID, err)
	}

	return tx.Commit()
}

func (s *Store) listIDs(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list policy ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan policy id: %w", err)
		}
		ids = append(ids, id)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, rows.Err()
}

const selectRecord = `
	SELECT policy_id, version, document, active, policy_order, policy_type,
	       policy_references, policy_set_references, editor_type,
	       editor_metadata, attributes, last_modified_time, last_modified_user
	FROM pap_policy`

func scanRecord(row *sql.Row) (*policy.Record, error) {
	var (
		rec        policy.Record
		version    int
		refs       string
		setRefs    string
		editorMeta string
		attrs      string
	)
	err := row.Scan(&rec.PolicyID, &version, &rec.Document, &rec.Active, &rec.Order,
		&rec.PolicyType, &refs, &setRefs, &rec.EditorType, &editorMeta, &attrs,
		&rec.LastModifiedTime, &rec.LastModifiedUser)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, policy.ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan policy record: %w", err)
	}
	rec.Version = strconv.Itoa(version)

	if err := json.Unmarshal([]byte(refs), &rec.PolicyIDReferences); err != nil {
		return nil, fmt.Errorf("decode policy references: %w", err)
	}
	if err := json.Unmarshal([]byte(setRefs), &rec.PolicySetIDReferences); err != nil {
		return nil, fmt.Errorf("decode policy set references: %w", err)
	}
	if err := json.Unmarshal([]byte(editorMeta), &rec.EditorMetadata); err != nil {
		return nil, fmt.Errorf("decode editor metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(attrs), &rec.Attributes); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	return &rec, nil
}

func scanEntry(row *sql.Row) (*policy.StoreEntry, error) {
	var (
		entry  policy.StoreEntry
		attrs  string
		digest string
	)
	err := row.Scan(&entry.PolicyID, &entry.Document, &entry.Active, &entry.Order,
		&entry.Version, &attrs, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, policy.ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan published policy: %w", err)
	}
	if err := json.Unmarshal([]byte(attrs), &entry.Attributes); err != nil {
		return nil, fmt.Errorf("decode published attributes: %w", err)
	}
	if entry.Digest, err = strconv.ParseUint(digest, 10, 64); err != nil {
		return nil, fmt.Errorf("decode published digest: %w", err)
	}
	return &entry, nil
}

func marshalRecordColumns(rec *policy.Record) (refs, setRefs, editorMeta, attrs string, err error) {
	if refs, err = marshalColumn(emptySlice(rec.PolicyIDReferences)); err != nil {
		return "", "", "", "", err
	}
	if setRefs, err = marshalColumn(emptySlice(rec.PolicySetIDReferences)); err != nil {
		return "", "", "", "", err
	}
	if editorMeta, err = marshalColumn(emptySlice(rec.EditorMetadata)); err != nil {
		return "", "", "", "", err
	}
	if attrs, err = marshalColumn(rec.Attributes); err != nil {
		return "", "", "", "", err
	}
	return refs, setRefs, editorMeta, attrs, nil
}

func marshalColumn(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal policy column: %w", err)
	}
	return string(b), nil
}

// emptySlice keeps nil string slices encoding as [] instead of null.
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Compile-time interface verification.
var (
	_ policy.PersistenceManager = (*Store)(nil)
	_ policy.StoreModule        = (*Store)(nil)
)
