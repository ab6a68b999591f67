package core

import "strings"

// MarkdownExtension is appended to page keys that do not carry it already.
const MarkdownExtension = ".md"

// PageKey is the client-supplied name of a document. The empty key refers to the root document.
type PageKey string

// IsRoot returns true if this key refers to the configured root document.
func (key PageKey) IsRoot() bool {
	return len(key) == 0
}

func (key PageKey) String() string {
	if key.IsRoot() {
		return "/"
	}
	return string(key)
}

// FileName returns the key with the markdown extension appended if it is not present yet.
// The root key has no file name of its own.
func (key PageKey) FileName(extension string) string {
	if key.IsRoot() {
		return ""
	}
	if strings.HasSuffix(string(key), extension) {
		return string(key)
	}
	return string(key) + extension
}

// ResolvedPath is the on-disk source location of a page key.
type ResolvedPath struct {
	Key    PageKey
	Path   string
	Exists bool
}
