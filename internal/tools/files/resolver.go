package files

import (
	"strings"

	"github.com/haasonsaas/nexus/internal/sandbox"
)

// Resolver resolves and validates workspace-relative paths, delegating the
// actual sandboxing to sandbox.Path.
type Resolver struct {
	Root string
}

// Resolve returns a sandbox-verified path within the workspace root
// (absolute when Root is). An empty path is rejected up front; everything else is handed to
// sandbox.Path, which folds absolute inputs under the root rather than
// rejecting them and only errors on ".." traversal or a symlink escape.
func (r Resolver) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errPathRequired
	}
	return sandbox.Path{Root: r.Root}.Resolve(path)
}

var errPathRequired = pathRequiredError{}

type pathRequiredError struct{}

func (pathRequiredError) Error() string { return "path is required" }
