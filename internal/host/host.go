// Package host abstracts how import specifiers become canonical paths and
// how source text is loaded. The compiler never touches the file system
// directly.
package host

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/loom-lang/loom/internal/stdlib"
)

// Ext is the source-file extension, auto-appended to relative specifiers
// that lack one.
const Ext = ".loom"

type Host interface {
	// Resolve turns an import specifier written in referrer into a canonical
	// path. Supported forms: ./relative, ../up, and stdlib:name.
	Resolve(specifier string, referrer string) (string, error)
	// Load returns the text for a canonical path. Failures propagate to the
	// caller unchanged.
	Load(path string) (string, error)
}

// resolveCommon handles the specifier grammar shared by all hosts.
func resolveCommon(specifier, referrer string) (string, error) {
	if name, ok := strings.CutPrefix(specifier, "stdlib:"); ok {
		p, ok := stdlib.PathFor(name)
		if !ok {
			return "", fmt.Errorf("unknown standard library %q", name)
		}
		return p, nil
	}
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		if path.Ext(specifier) == "" {
			specifier += Ext
		}
		dir := path.Dir(referrer)
		return path.Clean(path.Join(dir, specifier)), nil
	}
	return "", fmt.Errorf("unsupported import specifier %q", specifier)
}

// MapHost serves sources from an in-memory map keyed by canonical path.
// Tests and fixture archives use it.
type MapHost struct {
	Files map[string]string
}

func NewMapHost(files map[string]string) *MapHost {
	return &MapHost{Files: files}
}

func (h *MapHost) Resolve(specifier, referrer string) (string, error) {
	return resolveCommon(specifier, referrer)
}

func (h *MapHost) Load(p string) (string, error) {
	if text, ok := stdlib.TextFor(p); ok {
		return text, nil
	}
	text, ok := h.Files[p]
	if !ok {
		return "", fmt.Errorf("library not found: %s", p)
	}
	// Source text is NFC-normalised at the boundary so identifiers compare
	// byte-wise everywhere downstream.
	return norm.NFC.String(text), nil
}

// OSHost loads sources from the file system rooted at Root.
type OSHost struct {
	Root string
}

func NewOSHost(root string) *OSHost {
	return &OSHost{Root: root}
}

func (h *OSHost) Resolve(specifier, referrer string) (string, error) {
	return resolveCommon(specifier, referrer)
}

func (h *OSHost) Load(p string) (string, error) {
	if text, ok := stdlib.TextFor(p); ok {
		return text, nil
	}
	data, err := os.ReadFile(filepath.Join(h.Root, filepath.FromSlash(p)))
	if err != nil {
		return "", err
	}
	return norm.NFC.String(string(data)), nil
}
