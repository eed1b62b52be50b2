package formats

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/transtools/doctrans/internal/document"
)

// Registry maps file extensions to document formats. External formats
// (docx, pptx, xlsx, pdf) register through the same contract.
type Registry struct {
	byExt map[string]document.Format
}

func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]document.Format)}
}

// DefaultRegistry returns a registry with the in-core formats registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewTxtFormat())
	r.Register(NewSrtFormat())
	r.Register(NewMdFormat())
	return r
}

func (r *Registry) Register(f document.Format) {
	for _, ext := range f.Extensions() {
		r.byExt[strings.ToLower(ext)] = f
	}
}

// ForPath resolves the format responsible for a file path by extension.
func (r *Registry) ForPath(path string) (document.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	f, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported document format: %q", ext)
	}
	return f, nil
}

// Supported lists registered extensions.
func (r *Registry) Supported() []string {
	ret := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		ret = append(ret, ext)
	}
	return ret
}
