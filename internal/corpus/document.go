// Package corpus reads the pre-fetched document tree: JSON records holding a
// page URL and its raw markup.
package corpus

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/errors"
)

// Document is one corpus record.
type Document struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Read loads and decodes the record at path. A record without content is
// reported as ErrEmptyDocument; undecodable JSON as ErrMalformedDocument.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w: %v", path, apperrors.ErrMalformedDocument, err)
	}
	if doc.URL == "" {
		doc.URL = path
	}
	if strings.TrimSpace(doc.Content) == "" {
		return &doc, fmt.Errorf("%s: %w", path, apperrors.ErrEmptyDocument)
	}
	return &doc, nil
}

// IsRecord reports whether path names an existing .json file.
func IsRecord(path string) bool {
	if filepath.Ext(path) != ".json" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Walk returns every .json file under dir, sorted.
func Walk(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".json" {
			files = append(files, filepath.Clean(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking corpus %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
