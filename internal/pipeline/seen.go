package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SeenStore persists the client-local tier of the seen-songs history. It is
// fast and ephemeral across reinstalls; the durable tier lives server-side.
type SeenStore interface {
	Load() ([]string, error)
	Save(ids []string) error
}

// FileSeenStore keeps the local seen-songs history in a JSON file.
type FileSeenStore struct {
	path string
}

const (
	configDirName = "trackline"
	seenFileName  = "seen_songs.json"
)

// DefaultSeenStore returns a FileSeenStore at the default location:
// ~/.config/trackline/seen_songs.json
func DefaultSeenStore() (*FileSeenStore, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("getting user config dir: %w", err)
	}
	return &FileSeenStore{path: filepath.Join(configDir, configDirName, seenFileName)}, nil
}

// NewFileSeenStore creates a FileSeenStore with a custom path.
func NewFileSeenStore(path string) *FileSeenStore {
	return &FileSeenStore{path: path}
}

// Load reads the stored identities from disk.
// Returns (nil, nil) if the file does not exist.
func (s *FileSeenStore) Load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading seen-songs file: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parsing seen-songs file: %w", err)
	}
	return ids, nil
}

// Save writes the identities to disk, creating the parent directory if
// needed.
func (s *FileSeenStore) Save(ids []string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encoding seen songs: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing seen-songs file: %w", err)
	}
	return nil
}
