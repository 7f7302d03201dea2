package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hendrianz14/tripay-callback-service/internal/tripay"
)

// Simulator builds callback requests signed the way the gateway signs them.
// Used by the handler tests and for poking a local instance without real
// gateway traffic.
type Simulator struct {
	secret string
}

func NewSimulator(secret string) *Simulator {
	return &Simulator{secret: secret}
}

// SignedRequest marshals payload and attaches a valid signature header.
func (s *Simulator) SignedRequest(method, target string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal callback payload: %w", err)
	}

	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Callback-Signature", tripay.Sign(s.secret, body))
	return req, nil
}
