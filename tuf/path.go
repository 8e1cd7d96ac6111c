package tuf

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SanitizePath removes all leading path separators from the stored path.
//
// The rest of the path is returned verbatim; use SafeJoin to resolve it against the extraction directory.
func SanitizePath(raw string) string {
	return strings.TrimLeft(raw, `/\`)
}

// SafeJoin joins dir and the sanitized relative path name.
//
// Returns an error wrapping ErrUnsafePath if the result would not be dir itself or a descendant of it. An empty
// name resolves to dir.
func SafeJoin(dir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." {
		return filepath.Clean(dir), nil
	}

	if filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}

	return filepath.Join(dir, clean), nil
}

// entryName validates the stored path of the node and returns its sanitized form.
//
// The ZlibSuffix renaming is applied to non-directory nodes whose kind word equals ZlibKind.
func entryName(n *Node, offset int64) (string, error) {
	raw, ok := n.RawPath()
	if !ok {
		return "", formatError("read node path", offset, fmt.Errorf("%w: %q", ErrPathTooLong, raw))
	}

	name := SanitizePath(raw)
	if n.IsDir() {
		return name, nil
	}

	if name == "" {
		return "", formatError("read node path", offset, fmt.Errorf("%w: %q", ErrEmptyPath, raw))
	}

	if n.Kind() == ZlibKind {
		name += ZlibSuffix
	}

	return name, nil
}
