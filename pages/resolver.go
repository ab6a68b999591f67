package pages

import (
	"os"
	"path/filepath"

	"github.com/prior-it/tweb/core"
)

// Resolver maps page keys to markdown source files.
// It has no state of its own, existence is checked against the filesystem on every call.
type Resolver struct {
	dir       string
	root      string
	extension string
}

// NewResolver creates a resolver that looks up pages in dir. The empty page key always resolves
// to root, which is used as-is and not joined with dir.
func NewResolver(dir string, root string, extension string) *Resolver {
	if len(dir) == 0 {
		dir = "."
	}
	if len(extension) == 0 {
		extension = core.MarkdownExtension
	}
	return &Resolver{
		dir:       dir,
		root:      root,
		extension: extension,
	}
}

// Root returns the path of the root document.
func (r *Resolver) Root() string {
	return r.root
}

// Dir returns the directory that page keys are resolved against.
func (r *Resolver) Dir() string {
	return r.dir
}

// Path returns the source path for the given key without checking whether it exists.
// Keys that would escape the page directory resolve to the empty string.
func (r *Resolver) Path(key core.PageKey) string {
	if key.IsRoot() {
		return r.root
	}
	name := filepath.FromSlash(key.FileName(r.extension))
	if !filepath.IsLocal(name) {
		return ""
	}
	return filepath.Join(r.dir, name)
}

// Resolve returns the source path for the given key and whether it denotes a regular file.
// The root document is always considered to exist. Filesystem errors count as non-existent.
func (r *Resolver) Resolve(key core.PageKey) core.ResolvedPath {
	path := r.Path(key)
	resolved := core.ResolvedPath{Key: key, Path: path}
	if key.IsRoot() {
		resolved.Exists = true
		return resolved
	}
	if len(path) == 0 {
		return resolved
	}
	resolved.Exists = isReadableFile(path)
	return resolved
}

// isReadableFile stats before opening so that fifos and devices are never opened.
func isReadableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	return file.Close() == nil
}

// Exists is a shorthand for Resolve(key).Exists
func (r *Resolver) Exists(key core.PageKey) bool {
	return r.Resolve(key).Exists
}
