package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hendrianz14/tripay-callback-service/internal/api/middleware"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func traceID(r *http.Request) string {
	return middleware.TraceIDFromContext(r.Context())
}
