package server

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
)

// SourceHandler serves rewritten requests straight from a source checkout on
// disk. It can stand in for the secondary origin when no separate file
// server is running.
type SourceHandler struct {
	fileServer http.Handler
	filesystem fs.FS
}

// NewSourceHandler creates a handler serving files below root.
func NewSourceHandler(root string) (*SourceHandler, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %q is not a directory", root)
	}
	return newSourceHandler(os.DirFS(root)), nil
}

func newSourceHandler(fsys fs.FS) *SourceHandler {
	return &SourceHandler{
		fileServer: http.FileServer(http.FS(fsys)),
		filesystem: fsys,
	}
}

func (h *SourceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	if !fs.ValidPath(name) {
		http.NotFound(w, r)
		return
	}

	// Only regular files; directory listings of a source tree are not served.
	info, err := fs.Stat(h.filesystem, name)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	// Sources change under the developer's hands.
	w.Header().Set("Cache-Control", "no-store")
	h.fileServer.ServeHTTP(w, r)
}
