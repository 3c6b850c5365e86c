package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

const checksumFile = ".checksums"

// ChecksumManifest pins config file contents by BLAKE3 hash.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// WriteChecksums pins the current contents of the config file (and its .env,
// if present) in a .checksums manifest beside it.
func WriteChecksums(configPath string) (*ChecksumManifest, error) {
	dir := filepath.Dir(configPath)
	manifest := &ChecksumManifest{
		Version:     1,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Hashes:      make(map[string]string),
	}
	for _, name := range []string{filepath.Base(configPath), ".env"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		h, err := ComputeBlake3Hash(path)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", name, err)
		}
		manifest.Hashes[name] = h
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal checksums: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, checksumFile), data, 0o600); err != nil {
		return nil, fmt.Errorf("write checksums: %w", err)
	}
	return manifest, nil
}

// LoadChecksums reads the manifest beside configPath. It returns nil, nil when
// no manifest exists.
func LoadChecksums(configPath string) (*ChecksumManifest, error) {
	data, err := os.ReadFile(filepath.Join(filepath.Dir(configPath), checksumFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checksums: %w", err)
	}

	var manifest ChecksumManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse checksums: %w", err)
	}
	if manifest.Version != 1 {
		return nil, fmt.Errorf("unsupported checksums version: %d", manifest.Version)
	}
	return &manifest, nil
}

// VerifyChecksums checks every pinned file against the manifest. Without a
// manifest there is nothing to verify.
func VerifyChecksums(configPath string) error {
	manifest, err := LoadChecksums(configPath)
	if err != nil || manifest == nil {
		return err
	}
	dir := filepath.Dir(configPath)
	for name, want := range manifest.Hashes {
		got, err := ComputeBlake3Hash(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("verify %s: %w", name, err)
		}
		if got != want {
			return fmt.Errorf("hash mismatch for %s: expected %s, got %s\n"+
				"If you edited this file intentionally, run: ordergate config lock", name, want, got)
		}
	}
	return nil
}
