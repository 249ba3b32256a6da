package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "follows.yaml"))

	teams, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(teams) != 0 {
		t.Errorf("expected no teams, got %v", teams)
	}
}

func TestFileStore_SaveThenLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "follows.yaml")
	store := NewFileStore(path, WithFileMode(0o600))

	if err := store.Save(ctx, []int{971, 254, 254, 0, 1678}); err != nil {
		t.Fatalf("save: %v", err)
	}

	teams, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want := []int{254, 971, 1678}; !reflect.DeepEqual(teams, want) {
		t.Errorf("expected %v, got %v", want, teams)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected mode 0600, got %o", perm)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestFileStore_ReadsHandWrittenYAML(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "follows.yaml")
	if err := os.WriteFile(path, []byte("followed:\n  - 118\n  - 254\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	teams, err := NewFileStore(path).Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want := []int{118, 254}; !reflect.DeepEqual(teams, want) {
		t.Errorf("expected %v, got %v", want, teams)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "follows.yaml")
	if err := os.WriteFile(path, []byte("followed: [254, frc\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileStore(path).Load(ctx); !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestFileStore_UnwritableDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(filepath.Join(blocker, "follows.yaml"))
	if err := store.Save(ctx, []int{254}); !errors.Is(err, ErrWrite) {
		t.Errorf("expected ErrWrite, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(254, 118, 254)

	teams, _ := store.Load(ctx)
	if want := []int{118, 254}; !reflect.DeepEqual(teams, want) {
		t.Errorf("expected %v, got %v", want, teams)
	}

	teams[0] = 9999
	again, _ := store.Load(ctx)
	if again[0] != 118 {
		t.Error("expected Load to return a copy")
	}

	if err := store.Save(ctx, []int{1678}); err != nil {
		t.Fatal(err)
	}
	if store.Saves() != 1 {
		t.Errorf("expected 1 save, got %d", store.Saves())
	}
	teams, _ = store.Load(ctx)
	if !reflect.DeepEqual(teams, []int{1678}) {
		t.Errorf("expected [1678], got %v", teams)
	}
}
