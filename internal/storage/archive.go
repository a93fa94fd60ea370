// Package storage keeps raw RFC 5322 messages on disk so the original
// bytes survive parsing. One file per message, partitioned by tenant
// and account.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage errors
var (
	ErrPathTraversal   = errors.New("path traversal detected")
	ErrMessageNotFound = errors.New("archived message not found")
	ErrMessageTooLarge = errors.New("message exceeds size limit")
)

// MaxMessageSize caps one archived message (25 MB).
const MaxMessageSize = 25 * 1024 * 1024

// Archive defines raw message persistence.
type Archive interface {
	// Store writes one raw message and returns its relative path.
	Store(tenantID, accountID uint, uid uint32, raw []byte) (string, error)
	// Open returns a reader over an archived message.
	Open(path string) (io.ReadCloser, error)
	// Remove deletes an archived message. Missing files are not an
	// error.
	Remove(path string) error
}

// localArchive implements Archive on the local filesystem.
type localArchive struct {
	basePath string
}

// NewLocalArchive creates an Archive rooted at basePath.
func NewLocalArchive(basePath string) (Archive, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &localArchive{basePath: basePath}, nil
}

// validatePath ensures path stays within basePath.
func (a *localArchive) validatePath(path string) (string, error) {
	cleanPath := filepath.Clean(path)
	if filepath.IsAbs(cleanPath) || strings.Contains(cleanPath, "..") {
		return "", ErrPathTraversal
	}

	fullPath := filepath.Join(a.basePath, cleanPath)
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("invalid archive path: %w", err)
	}
	absBase, err := filepath.Abs(a.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return "", ErrPathTraversal
	}
	return absPath, nil
}

func (a *localArchive) Store(tenantID, accountID uint, uid uint32, raw []byte) (string, error) {
	if len(raw) > MaxMessageSize {
		return "", ErrMessageTooLarge
	}

	relPath := filepath.Join(
		fmt.Sprintf("t%d", tenantID),
		fmt.Sprintf("a%d", accountID),
		fmt.Sprintf("%d.eml", uid),
	)
	fullPath := filepath.Join(a.basePath, relPath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("creating account directory: %w", err)
	}

	// Write through a temp file so a crash never leaves a truncated
	// message at the final path.
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".archive-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing message: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("placing message: %w", err)
	}

	return relPath, nil
}

func (a *localArchive) Open(path string) (io.ReadCloser, error) {
	fullPath, err := a.validatePath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("opening archived message: %w", err)
	}
	return file, nil
}

func (a *localArchive) Remove(path string) error {
	fullPath, err := a.validatePath(path)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing archived message: %w", err)
	}
	return nil
}
