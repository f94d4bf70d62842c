package streamserver

import (
	"path/filepath"
	"strings"
)

// Authorizer decides whether a request path may be served and resolves it to
// a real filesystem location. Handlers trust the paths it returns.
type Authorizer interface {
	Authorize(requestPath string) (string, bool)
}

type rootAuthorizer struct {
	roots []string
}

// NewRootAuthorizer allows exactly the files under the given library roots.
// Symlinks are resolved before the containment check, so a link pointing
// outside a root is rejected.
func NewRootAuthorizer(roots []string) Authorizer {
	cleaned := make([]string, 0, len(roots))
	for _, root := range roots {
		if root = strings.TrimSpace(root); root != "" {
			cleaned = append(cleaned, filepath.Clean(root))
		}
	}
	return &rootAuthorizer{roots: cleaned}
}

func (a *rootAuthorizer) Authorize(requestPath string) (string, bool) {
	rel := filepath.Clean("/" + requestPath)

	for _, root := range a.roots {
		candidate := filepath.Join(root, rel)
		resolved, err := filepath.EvalSymlinks(candidate)
		if err != nil {
			continue
		}
		resolvedRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			continue
		}
		if resolved == resolvedRoot || strings.HasPrefix(resolved, resolvedRoot+string(filepath.Separator)) {
			return resolved, true
		}
	}
	return "", false
}
