package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileArtifactStore persists error artifacts under baseDir/<taskID>/<name>,
// the filesystem-backed ArtifactStore implementation cmd/noos-server wires
// in (the Storage Adapter has no blob store of its own).
type FileArtifactStore struct {
	BaseDir string
}

// NewFileArtifactStore constructs a FileArtifactStore rooted at baseDir;
// directories are created by Put on first write.
func NewFileArtifactStore(baseDir string) *FileArtifactStore {
	return &FileArtifactStore{BaseDir: baseDir}
}

// Put writes content to baseDir/taskID/name and returns that path (relative
// only when baseDir is) for the wire layer to can serve back as resultUrl/errorFiles entries.
func (s *FileArtifactStore) Put(taskID, name string, content []byte) (string, error) {
	dir := filepath.Join(s.BaseDir, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	return path, nil
}
