package storage

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const sniffLen = 3072

// ScratchFile is an upload persisted for the lifetime of one request.
type ScratchFile struct {
	Path        string
	Name        string // sanitized client filename
	Size        int64
	SHA256      string
	ContentType string
}

// ScratchStore writes uploads under unique names in a single directory.
type ScratchStore struct {
	dir string
}

// NewScratchStore creates dir if it does not exist yet.
func NewScratchStore(dir string) (*ScratchStore, error) {
	if dir == "" {
		dir = "./uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &ScratchStore{dir: dir}, nil
}

func (s *ScratchStore) Dir() string {
	return s.dir
}

// Save streams r into a new file named <uuid><ext>. The extension comes from
// the sanitized client name, or from the sniffed content type when the name
// carries none.
func (s *ScratchStore) Save(ctx context.Context, originalName string, r io.Reader) (*ScratchFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	mt := mimetype.Detect(head)

	name := SecureFilename(originalName)
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = mt.Extension()
	}

	path := filepath.Join(s.dir, uuid.NewString()+ext)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(file, hash), br)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &ScratchFile{
		Path:        path,
		Name:        name,
		Size:        size,
		SHA256:      hex.EncodeToString(hash.Sum(nil)),
		ContentType: mt.String(),
	}, nil
}

// Remove deletes a scratch file. Missing files are not an error.
func (s *ScratchStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
