// Package extract turns files into plain text for indexing. Each supported
// format has an Extractor; a Registry picks one by file extension.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Extractor returns the plain text content of the file at path.
type Extractor interface {
	Extract(path string) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(path string) (string, error)

func (f ExtractorFunc) Extract(path string) (string, error) { return f(path) }

// Registry maps lower-case file extensions (with the dot) to extractors.
type Registry struct {
	byExt    map[string]Extractor
	fallback Extractor
}

// NewRegistry returns a registry with the text, PDF and EPUB extractors.
// With passthroughUnknown, files of any other extension are read as text;
// otherwise they are rejected with ErrUnsupportedFormat.
func NewRegistry(passthroughUnknown bool) *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}
	r.Register(".txt", Text{})
	r.Register(".pdf", PDF{})
	r.Register(".epub", EPUB{})
	if passthroughUnknown {
		r.fallback = Text{}
	}
	return r
}

// Register sets the extractor for ext, replacing any existing one.
func (r *Registry) Register(ext string, e Extractor) {
	r.byExt[strings.ToLower(ext)] = e
}

// Extract dispatches on the file extension. Failures wrap either
// ErrUnsupportedFormat or ErrExtractionFailed.
func (r *Registry) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.byExt[ext]
	if !ok {
		if r.fallback == nil {
			return "", fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, filepath.Base(path))
		}
		e = r.fallback
	}
	text, err := e.Extract(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", apperrors.ErrExtractionFailed, filepath.Base(path), err)
	}
	return text, nil
}
