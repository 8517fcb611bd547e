// Package storage persists comment attachments on local disk under
// generated unique names.
package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
)

const PublicPrefix = "/uploads"

type FileInfo struct {
	FileName    string `json:"file_name"`
	FilePath    string `json:"file_path"`
	ContentType string `json:"content_type"`
}

type FileStore struct {
	Dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

// Save writes the stream under a uuid-based name, keeping the original
// extension, and returns the descriptor with the retrievable path. The
// write completes before the caller persists the comment row.
func (s *FileStore) Save(name, contentType string, r io.Reader) (*FileInfo, error) {
	generated := uuid.NewString() + filepath.Ext(name)

	dst, err := os.Create(filepath.Join(s.Dir, generated))
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	return &FileInfo{
		FileName:    name,
		FilePath:    path.Join(PublicPrefix, generated),
		ContentType: contentType,
	}, nil
}
