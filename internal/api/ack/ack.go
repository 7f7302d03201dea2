package ack

import (
	"encoding/json"
	"net/http"
)

// Response is the acknowledgment body the gateway inspects. Success=true is
// the only thing that stops redelivery, so both "processed" and
// "intentionally ignored" use it; Note distinguishes them for operators.
type Response struct {
	Success bool   `json:"success"`
	Note    string `json:"note,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK acknowledges the callback; the gateway will not redeliver.
func OK(w http.ResponseWriter, note string) {
	write(w, http.StatusOK, Response{Success: true, Note: note})
}

// Fail rejects the callback with the given status. 5xx statuses signal the
// gateway to retry; 4xx statuses signal it to stop.
func Fail(w http.ResponseWriter, status int, msg string) {
	write(w, status, Response{Success: false, Error: msg})
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
