package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Archive keeps the original uploaded files so a table row can be checked
// against its source image during review.
type Archive interface {
	// Save stores a file and returns its archive path
	Save(name string, data []byte) (string, error)

	// Get retrieves a file by archive path
	Get(path string) ([]byte, error)

	// Delete removes a file
	Delete(path string) error
}

// DirArchive implements Archive on a local directory
type DirArchive struct {
	basePath string
}

// NewDirArchive creates the directory if needed
func NewDirArchive(basePath string) (*DirArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &DirArchive{basePath: basePath}, nil
}

// Save stores a file under a sanitized name
func (d *DirArchive) Save(name string, data []byte) (string, error) {
	name = sanitizeFilename(name)
	if err := os.WriteFile(filepath.Join(d.basePath, name), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return name, nil
}

// Get retrieves a file by archive path
func (d *DirArchive) Get(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(d.basePath, filepath.Base(path)))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file
func (d *DirArchive) Delete(path string) error {
	if err := os.Remove(filepath.Join(d.basePath, filepath.Base(path))); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// NopArchive discards uploads; used when no storage directory is
// configured.
type NopArchive struct{}

func (NopArchive) Save(name string, data []byte) (string, error) { return "", nil }
func (NopArchive) Get(path string) ([]byte, error) {
	return nil, fmt.Errorf("no archive configured")
}
func (NopArchive) Delete(path string) error { return nil }

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9가-힣\s\-_.]`)
	multiSpace  = regexp.MustCompile(`\s+`)
)

// sanitizeFilename tames phone-generated names: strips special
// characters, collapses whitespace, bounds the length.
func sanitizeFilename(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(filepath.Base(name), ext)

	base = unsafeChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(multiSpace.ReplaceAllString(base, " "))

	if runes := []rune(base); len(runes) > 50 {
		base = string(runes[:50])
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}
