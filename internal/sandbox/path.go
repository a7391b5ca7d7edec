// Package sandbox confines filesystem tool calls to a single workspace
// root, defeating both ".." traversal and symlink escapes.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Path resolves requested paths against Root. A requested path is built
// component by component: an absolute root or drive prefix is simply
// dropped (an absolute path is treated as workspace-relative, not
// rejected), while any ".." component is an immediate, unconditional
// traversal fault — there is no resolved path that could legitimize it.
//
// Once the candidate is built, both it and Root are canonicalized (with
// fs.create_dir_all-equivalent fallback for paths that don't exist yet)
// and the candidate is verified to still live under the canonical root.
// This second check is what catches a symlink planted inside the
// workspace that points back out of it.
type Path struct {
	Root string
}

// ErrTraversal marks an attempted ".." path component.
type ErrTraversal struct{}

func (ErrTraversal) Error() string {
	return "SECURITY FAULT: illegal path traversal attempt detected, access denied"
}

// ErrEscape marks a resolved path landing outside the workspace root,
// typically via a symlink planted inside the workspace.
type ErrEscape struct {
	Candidate string
	Root      string
}

func (e ErrEscape) Error() string {
	return fmt.Sprintf("SECURITY FAULT: attempted to access %q which is outside the designated workspace %q", e.Candidate, e.Root)
}

// Resolve returns the sandbox-verified path for requested: Root joined
// with the requested components, absolute when Root is absolute.
func (p Path) Resolve(requested string) (string, error) {
	root := p.Root
	if strings.TrimSpace(root) == "" {
		root = "."
	}

	candidate := root
	for _, part := range strings.Split(filepath.ToSlash(requested), "/") {
		switch part {
		case "", ".":
			// empty segments (from a leading "/" or doubled slash) and "."
			// contribute nothing — this is how an absolute path gets
			// folded back under root instead of rejected.
		case "..":
			return "", ErrTraversal{}
		default:
			candidate = filepath.Join(candidate, part)
		}
	}

	canonicalRoot, err := canonicalizeOrCreate(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	canonicalCandidate, err := canonicalizeOrCreateParent(candidate)
	if err != nil {
		canonicalCandidate = candidate
	}

	rel, err := filepath.Rel(canonicalRoot, canonicalCandidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", ErrEscape{Candidate: canonicalCandidate, Root: canonicalRoot}
	}

	return candidate, nil
}

// canonicalizeOrCreate canonicalizes path, creating it as a directory
// first if it doesn't yet exist.
func canonicalizeOrCreate(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return "", fmt.Errorf("create workspace root %q: %w", path, err)
		}
	}
	return filepath.EvalSymlinks(path)
}

// canonicalizeOrCreateParent walks up from path to the nearest existing
// ancestor, canonicalizes that, then re-appends the non-existent suffix —
// letting a write/create call resolve a path whose leaf doesn't exist yet.
func canonicalizeOrCreateParent(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	existing := abs
	var suffix []string
	for {
		if _, err := os.Stat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		suffix = append([]string{filepath.Base(existing)}, suffix...)
		existing = parent
	}

	canonical, err := filepath.EvalSymlinks(existing)
	if err != nil {
		canonical = existing
	}
	for _, part := range suffix {
		canonical = filepath.Join(canonical, part)
	}
	return canonical, nil
}
