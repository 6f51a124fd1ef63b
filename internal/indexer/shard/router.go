// Package shard partitions the term space into 27 buckets, one per lowercase
// letter plus a catch-all, and maps each bucket to its shard file.
package shard

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CatchAll is the key for terms that do not start with a letter a-z.
const CatchAll = "_"

// FileExt is the extension of every shard file, final or partial.
const FileExt = ".spdx"

var keys = func() []string {
	k := make([]string, 0, 27)
	for c := 'a'; c <= 'z'; c++ {
		k = append(k, string(c))
	}
	return append(k, CatchAll)
}()

// KeyFor returns the bucket of a stemmed term.
func KeyFor(term string) string {
	if term == "" {
		return CatchAll
	}
	c := term[0]
	if c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	if c >= 'a' && c <= 'z' {
		return string(c)
	}
	return CatchAll
}

// Keys returns all 27 bucket keys, letters first.
func Keys() []string {
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// Valid reports whether key is one of the 27 buckets.
func Valid(key string) bool {
	if key == CatchAll {
		return true
	}
	return len(key) == 1 && key[0] >= 'a' && key[0] <= 'z'
}

// FileName is the final shard file name for key.
func FileName(key string) string {
	return "shard_" + key + FileExt
}

// KeyFromFileName reverses FileName.
func KeyFromFileName(name string) (string, bool) {
	if !strings.HasPrefix(name, "shard_") || !strings.HasSuffix(name, FileExt) {
		return "", false
	}
	key := strings.TrimSuffix(strings.TrimPrefix(name, "shard_"), FileExt)
	return key, Valid(key)
}

// Router resolves terms and keys to final shard files under one directory.
type Router struct {
	dataDir string
}

func NewRouter(dataDir string) *Router {
	return &Router{dataDir: dataDir}
}

// Route returns the bucket and shard file path for term.
func (r *Router) Route(term string) (key, path string) {
	key = KeyFor(term)
	return key, r.Path(key)
}

// Path returns the shard file path for key.
func (r *Router) Path(key string) string {
	return filepath.Join(r.dataDir, FileName(key))
}

// PartialDir is where partial files for key are written under tempDir.
func PartialDir(tempDir, key string) string {
	return filepath.Join(tempDir, key)
}

func (r *Router) DataDir() string {
	return r.dataDir
}

func (r *Router) String() string {
	return fmt.Sprintf("shard.Router(%s)", r.dataDir)
}
