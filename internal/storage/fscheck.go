package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mattjoyce/ordergate/internal/log"
)

var networkFilesystems = []string{"afpfs", "cifs", "nfs", "smbfs", "smb2", "webdav"}

// CheckLocalFilesystem refuses paths on network mounts.
func CheckLocalFilesystem(path string) error {
	return checkLocalFilesystemWith(path, detectFilesystemType)
}

// checkLocalFilesystemWith refuses database paths on network mounts, where
// SQLite locking is unreliable. Platforms without detection are allowed.
func checkLocalFilesystemWith(path string, detect func(string) (string, error)) error {
	existing, err := nearestExistingPath(path)
	if err != nil {
		return fmt.Errorf("resolve database path %q: %w", path, err)
	}

	fsType, err := detect(existing)
	if err != nil {
		log.WithComponent("storage").Debug("filesystem detection skipped", "path", existing, "error", err)
		return nil
	}
	if isNetworkFilesystem(fsType) {
		return fmt.Errorf("database path %q is on network filesystem %q; keep state.path on local disk", path, fsType)
	}
	return nil
}

func nearestExistingPath(path string) (string, error) {
	candidate, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	for {
		_, err := os.Stat(candidate)
		switch {
		case err == nil:
			return candidate, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent for %q", path)
		}
		candidate = parent
	}
}

func isNetworkFilesystem(fsType string) bool {
	return slices.Contains(networkFilesystems, strings.ToLower(strings.TrimSpace(fsType)))
}
