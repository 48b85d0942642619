package memory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const backupTimeLayout = "20060102T150405Z"

// Recovery describes a load that found a corrupted document and replaced it
// with a default one. BackupPath is empty when the backup copy failed, in
// which case BackupErr says why.
type Recovery struct {
	BackupPath string
	BackupErr  error
}

// Store reads and writes the project memory document at one path. It keeps
// no state between calls; every command does its own load and save.
type Store struct {
	path string
}

// NewStore creates a store for the document at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document. A missing file yields a fresh default document.
// A file that is not valid JSON or whose root is not an object is copied to
// a timestamped backup beside it and replaced with a default document; the
// returned Recovery is non-nil in that case. Other read failures are errors.
func (s *Store) Load() (*Document, *Recovery, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("project memory not found, using defaults", "path", s.path)
			return DefaultDocument(), nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read project memory: %w", err)
	}

	doc, parseErr := ParseDocument(data)
	if parseErr == nil {
		slog.Debug("project memory loaded", "path", s.path, "capabilities", len(doc.Capabilities))
		return doc, nil, nil
	}

	slog.Info("project memory is corrupted, resetting", "path", s.path, "error", parseErr)
	recovery := &Recovery{}
	recovery.BackupPath, recovery.BackupErr = s.backup(data)

	fresh := DefaultDocument()
	if err := s.Save(fresh); err != nil {
		return nil, recovery, fmt.Errorf("failed to reset corrupted project memory: %w", err)
	}
	return fresh, recovery, nil
}

// backup writes the corrupted bytes next to the document as
// <name>.corrupt.<UTC timestamp>.
func (s *Store) backup(data []byte) (string, error) {
	name := fmt.Sprintf("%s.corrupt.%s", filepath.Base(s.path), now().Format(backupTimeLayout))
	backupPath := filepath.Join(filepath.Dir(s.path), name)
	mode := os.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(backupPath, data, mode); err != nil {
		return "", fmt.Errorf("failed to back up corrupted project memory: %w", err)
	}
	return backupPath, nil
}

// Save normalizes doc, stamps schema version and updated_at, and replaces
// the file atomically: the JSON goes to a temporary sibling which is synced
// and renamed over the target, so readers see either the old or the new
// document and never a partial one.
func (s *Store) Save(doc *Document) error {
	doc.Normalize()
	doc.SchemaVersion = SchemaVersion
	doc.UpdatedAt = Timestamp(now())

	data, err := EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("failed to encode project memory: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create memory dir: %w", err)
	}

	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp.%d.%d", filepath.Base(s.path), os.Getpid(), now().UnixNano()))
	if err := writeSynced(tmpPath, data); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace project memory: %w", err)
	}
	slog.Debug("project memory saved", "path", s.path, "bytes", len(data))
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	return nil
}

// EncodeDocument renders doc as 2-space indented JSON with a trailing
// newline. Non-ASCII and HTML characters are written as-is.
func EncodeDocument(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
