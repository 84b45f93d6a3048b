//go:build !dev

package resources

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var embedded embed.FS

func staticFS() fs.FS {
	fsys, _ := fs.Sub(embedded, "static")
	return fsys
}

// Embedded assets are versioned with the binary.
func setCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
}
