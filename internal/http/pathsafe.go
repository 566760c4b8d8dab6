package httpx

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrInvalidName indicates a client-supplied file name or path is unsafe.
var ErrInvalidName = errors.New("invalid file name")

// safeName rejects names containing path separators or dot-dot segments so
// they can be joined under a designated root without escaping it.
func safeName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return ErrInvalidName
	}
	return nil
}

// resolveWithinRoot normalizes a client-supplied relative path and resolves
// it under root, rejecting anything that would escape the root after
// normalization.
func resolveWithinRoot(root, rel string) (string, error) {
	if rel == "" || strings.Contains(rel, "\\") {
		return "", ErrInvalidName
	}
	cleaned := filepath.Clean("/" + filepath.FromSlash(rel))
	// Clean with a leading separator collapses any ".." above the root.
	target := filepath.Join(root, cleaned)
	relToRoot, err := filepath.Rel(root, target)
	if err != nil || relToRoot == ".." || strings.HasPrefix(relToRoot, ".."+string(filepath.Separator)) {
		return "", ErrInvalidName
	}
	if strings.Contains(rel, "..") {
		return "", ErrInvalidName
	}
	return target, nil
}
