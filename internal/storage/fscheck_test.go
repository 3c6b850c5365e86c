package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckLocalFilesystemAllowsLocal(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "ordergate.db")
	err := checkLocalFilesystemWith(dbPath, func(string) (string, error) { return "ext4", nil })
	if err != nil {
		t.Fatalf("expected local filesystem to pass, got: %v", err)
	}
}

func TestCheckLocalFilesystemRejectsNetwork(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "ordergate.db")
	err := checkLocalFilesystemWith(dbPath, func(string) (string, error) { return "NFS", nil })
	if err == nil || !strings.Contains(err.Error(), "network filesystem") {
		t.Fatalf("expected network filesystem error, got %v", err)
	}
}

func TestCheckLocalFilesystemInspectsNearestExisting(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var inspected string
	err := checkLocalFilesystemWith(filepath.Join(root, "a", "b", "ordergate.db"), func(p string) (string, error) {
		inspected = p
		return "ext4", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inspected != root {
		t.Fatalf("inspected %q, want %q", inspected, root)
	}
}

func TestCheckLocalFilesystemToleratesDetectionFailure(t *testing.T) {
	t.Parallel()

	err := checkLocalFilesystemWith(t.TempDir(), func(string) (string, error) { return "", errors.New("unsupported") })
	if err != nil {
		t.Fatalf("detection failure should not block, got %v", err)
	}
}
