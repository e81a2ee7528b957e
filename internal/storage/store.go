package storage

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"mcsr-analyzer/internal/mcsr"
)

// JSONStore persists a Collection as a single indented JSON file
type JSONStore struct {
	path      string
	backupDir string // optional; previous file is gzipped here before each overwrite
}

// NewJSONStore creates a store for the given file
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// SetBackupDir enables gzip backups of the previous file before every Save
func (s *JSONStore) SetBackupDir(dir string) error {
	if dir == "" {
		s.backupDir = ""
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	s.backupDir = dir
	return nil
}

// Path returns the backing file path
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the collection from disk. A missing file yields an empty collection.
func (s *JSONStore) Load() (*Collection, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewCollection(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	c := NewCollection()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return c, nil
}

// Save overwrites the file with the full collection
func (s *JSONStore) Save(c *Collection) error {
	if s.backupDir != "" {
		if _, err := s.Backup(); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Write next to the target, then rename over it
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

// Backup gzips the current file into the backup directory.
// Returns the archive path, or "" when there is nothing to back up.
func (s *JSONStore) Backup() (string, error) {
	src, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer src.Close()

	filename := fmt.Sprintf("%s_%s.gz", filepath.Base(s.path), time.Now().Format("2006-01-02_15-04-05.000"))
	backupPath := filepath.Join(s.backupDir, filename)
	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	defer dst.Close()

	gzWriter := gzip.NewWriter(dst)
	if _, err := io.Copy(gzWriter, src); err != nil {
		return "", fmt.Errorf("failed to compress backup: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return "", err
	}

	log.Printf("[Store] Backed up %s to %s", filepath.Base(s.path), filename)
	return backupPath, nil
}

// Merge appends freshly fetched matches to whatever is stored for username.
// No deduplication happens here; run the dedupe pass to restore uniqueness.
// Other keys of an existing entry are left as they are.
func Merge(c *Collection, username string, fetched []mcsr.Match) int {
	um, ok := c.Get(username)
	if !ok || um == nil {
		um = &UserMatches{}
		c.Set(username, um)
	}

	combined := make([]mcsr.Match, 0, len(um.Data)+len(fetched))
	combined = append(combined, um.Data...)
	combined = append(combined, fetched...)

	um.Status = StatusSuccess
	um.Data = combined
	return len(fetched)
}
