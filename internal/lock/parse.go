package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads an lpck.lock.yaml file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is inside the archive directory
	if err != nil {
		return nil, fmt.Errorf("reading lock file: %w", err)
	}
	return Parse(data)
}

// Parse parses lpck.lock.yaml content.
func Parse(data []byte) (*File, error) {
	var lf File
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parsing lock YAML: %w", err)
	}
	return &lf, nil
}

// Save writes the lock file into archiveDir and returns its path.
func Save(archiveDir string, lf *File) (string, error) {
	data, err := yaml.Marshal(lf)
	if err != nil {
		return "", fmt.Errorf("marshaling lock file: %w", err)
	}
	path := filepath.Join(archiveDir, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil { //nolint:gosec // lock file needs to be readable
		return "", fmt.Errorf("writing lock file: %w", err)
	}
	return path, nil
}
