package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ProjectDirName is the per-repo directory holding config.yaml, the
// optional .graph.toml override, and (by sqlite convention) the database
// file itself. Renamed from the teacher's .beads convention.
const ProjectDirName = ".graph"

// FindProjectDir walks up from start looking for a .graph directory,
// stopping at the filesystem root or the system temp directory (so a
// stray .graph left in /tmp during tests never gets picked up).
func FindProjectDir(start string) (string, error) {
	tempDir := filepath.Clean(os.TempDir())
	path := start
	for {
		clean := filepath.Clean(path)
		if clean == tempDir {
			break
		}
		candidate := filepath.Join(path, ProjectDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
	}
	return "", fmt.Errorf("no %s directory found above %s", ProjectDirName, start)
}
