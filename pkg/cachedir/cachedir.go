// Package cachedir derives the on-disk location of a compiler's incremental cache.
//
// The directory name depends only on the compiler identity and a configuration
// discriminator, so restarted workers for the same compiler and configuration find
// their previous state again.
package cachedir

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

const (
	namePrefix = "rustc-worker"
	hashLen    = 8 // bytes of BLAKE3 output kept in the name
)

// A ResourceError means the cache directory could not be created or written.
type ResourceError struct {
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("incremental cache directory %s is unusable: %v", e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// Name returns the directory name for identity and discriminator.
//
// The identity is always hashed. A filename-safe discriminator is appended verbatim,
// anything else is appended as "~" plus its hash. "~" never appears in a safe
// discriminator, so the two forms cannot collide.
func Name(identity, discriminator string) string {
	name := namePrefix + "-" + shortHash(identity)
	switch {
	case discriminator == "":
	case isSafe(discriminator):
		name += "-" + discriminator
	default:
		name += "-~" + shortHash(discriminator)
	}
	return name
}

// Resolve returns root/Name(identity, discriminator) after making sure the directory
// exists and is writable. An empty root means os.TempDir(). Resolve is idempotent.
func Resolve(root, identity, discriminator string) (string, error) {
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, Name(identity, discriminator))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &ResourceError{Path: dir, Err: err}
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return "", &ResourceError{Path: dir, Err: err}
	}
	probe.Close()
	if err := os.Remove(probe.Name()); err != nil {
		return "", &ResourceError{Path: dir, Err: err}
	}
	return dir, nil
}

func shortHash(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:hashLen])
}

func isSafe(s string) bool {
	if s == "." || s == ".." {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '+', c == '-':
		default:
			return false
		}
	}
	return true
}
