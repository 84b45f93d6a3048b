// Package resources serves the explorer page's static assets.
package resources

import (
	"net/http"
)

// StaticDirectoryPath is the path to static assets from the project root.
const StaticDirectoryPath = "internal/ui/resources/static"

// Handler returns an HTTP handler for serving static files under /static/.
func Handler() http.Handler {
	fileServer := http.FileServer(http.FS(staticFS()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCacheHeaders(w)
		http.StripPrefix("/static/", fileServer).ServeHTTP(w, r)
	})
}
