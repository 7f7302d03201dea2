// Package spec embeds the API document served to the swagger UI.
package spec

import (
	_ "embed"
	"net/http"
)

//go:embed openapi.yaml
var document []byte

// OpenAPIHandler serves the embedded document. Embedding keeps the binary
// self-contained; there is no file to go stale relative to the routes.
func OpenAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(document)
	}
}
