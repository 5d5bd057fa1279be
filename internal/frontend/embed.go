// Package frontend serves the dashboard's static assets. Assets are
// embedded in the binary; development mode serves them straight from the
// filesystem so edits show up without a rebuild.
package frontend

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFiles embed.FS

// Handler serves the embedded static assets.
func Handler() http.Handler {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

// DirHandler serves static assets from the given directory. Used with the
// -dev flag.
func DirHandler(dir string) http.Handler {
	return http.FileServer(http.Dir(dir))
}
