package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for names that are absolute or leave the output directory.
var ErrUnsafePath = errors.New("unsafe artifact path")

// PathGuard ensures operations stay within a base directory.
type PathGuard struct {
	BaseDir string
}

// NewPathGuard constructs a guard rooted at baseDir.
func NewPathGuard(baseDir string) (*PathGuard, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, err
	}
	return &PathGuard{BaseDir: absBase}, nil
}

// Resolve validates and returns an absolute path inside BaseDir. Forward
// slashes are accepted on every platform.
func (g *PathGuard) Resolve(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnsafePath)
	}
	clean := filepath.Clean(filepath.FromSlash(p))
	if filepath.IsAbs(clean) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) {
		return "", fmt.Errorf("%w: %q is absolute", ErrUnsafePath, p)
	}
	abs := filepath.Clean(filepath.Join(g.BaseDir, clean))

	if !strings.HasPrefix(abs, g.BaseDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q escapes %s", ErrUnsafePath, p, g.BaseDir)
	}
	return abs, nil
}

// Safe reports whether name resolves to a file inside BaseDir.
func (g *PathGuard) Safe(name string) bool {
	_, err := g.Resolve(name)
	return err == nil
}
