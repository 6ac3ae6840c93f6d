package state

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Arbiter-AC/arbiter/internal/domain/policy"
)

func testStore(t *testing.T) (*FileDataStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.json")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	store, err := NewFileDataStore(path, logger)
	if err != nil {
		t.Fatalf("NewFileDataStore: %v", err)
	}
	return store, path
}

func TestFileDataStore_StartsEmpty(t *testing.T) {
	store, _ := testStore(t)

	entries, err := store.GetAllPolicyData(context.Background())
	if err != nil {
		t.Fatalf("GetAllPolicyData() unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("fresh store holds %d entries, want 0", len(entries))
	}
}

func TestFileDataStore_SetPersistsToDisk(t *testing.T) {
	store, path := testStore(t)
	ctx := context.Background()

	entry := &policy.StoreEntry{PolicyID: "policy-1", Active: true, Order: 2, Version: "1"}
	if err := store.SetPolicyData(ctx, "policy-1", entry); err != nil {
		t.Fatalf("SetPolicyData() unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("index file not written: %v", err)
	}
	var state IndexState
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatalf("index file is not valid JSON: %v", err)
	}
	if _, ok := state.Entries["policy-1"]; !ok {
		t.Error("persisted index missing policy-1")
	}
	if state.Version != "1" {
		t.Errorf("state version = %q, want 1", state.Version)
	}
}

func TestFileDataStore_ReloadAcrossInstances(t *testing.T) {
	store, path := testStore(t)
	ctx := context.Background()

	if err := store.SetPolicyData(ctx, "policy-1", &policy.StoreEntry{PolicyID: "policy-1", Order: 5}); err != nil {
		t.Fatalf("SetPolicyData() unexpected error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	reopened, err := NewFileDataStore(path, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.GetPolicyData(ctx, "policy-1")
	if err != nil {
		t.Fatalf("GetPolicyData() after reload: %v", err)
	}
	if got.Order != 5 {
		t.Errorf("reloaded Order = %d, want 5", got.Order)
	}
}

func TestFileDataStore_RemovePersists(t *testing.T) {
	store, path := testStore(t)
	ctx := context.Background()

	if err := store.SetPolicyData(ctx, "policy-1", &policy.StoreEntry{PolicyID: "policy-1"}); err != nil {
		t.Fatalf("SetPolicyData() unexpected error: %v", err)
	}
	if err := store.RemovePolicyData(ctx, "policy-1"); err != nil {
		t.Fatalf("RemovePolicyData() unexpected error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	reopened, err := NewFileDataStore(path, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := reopened.GetPolicyData(ctx, "policy-1"); !errors.Is(err, policy.ErrPolicyNotFound) {
		t.Errorf("removed entry survived reload: %v", err)
	}
}

func TestFileDataStore_RemoveAbsentDoesNotTouchFile(t *testing.T) {
	store, path := testStore(t)

	if err := store.RemovePolicyData(context.Background(), "ghost"); err != nil {
		t.Fatalf("RemovePolicyData() on absent = %v, want nil", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("removing an absent entry should not create the index file")
	}
}

func TestFileDataStore_CreatesBackup(t *testing.T) {
	store, path := testStore(t)
	ctx := context.Background()

	if err := store.SetPolicyData(ctx, "policy-1", &policy.StoreEntry{PolicyID: "policy-1"}); err != nil {
		t.Fatalf("SetPolicyData() unexpected error: %v", err)
	}
	// Second write backs up the first file.
	if err := store.SetPolicyData(ctx, "policy-2", &policy.StoreEntry{PolicyID: "policy-2"}); err != nil {
		t.Fatalf("SetPolicyData() unexpected error: %v", err)
	}

	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Errorf("backup file missing: %v", err)
	}
}

func TestFileDataStore_FilePermissions(t *testing.T) {
	store, path := testStore(t)

	if err := store.SetPolicyData(context.Background(), "policy-1", &policy.StoreEntry{PolicyID: "policy-1"}); err != nil {
		t.Fatalf("SetPolicyData() unexpected error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		t.Errorf("index file mode = %04o, want 0600", mode)
	}
}

func TestFileDataStore_CorruptFileFailsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	if _, err := NewFileDataStore(path, logger); err == nil {
		t.Fatal("NewFileDataStore() should fail on a corrupt index file")
	}
}
