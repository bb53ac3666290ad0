// Package model defines shared types for the proxy.
package model

import (
	"context"
	"log/slog"
	"net/http"
)

// Credentials are the caller's FCA Register API credentials. They are
// forwarded upstream as-is and must never be logged.
type Credentials struct {
	Email string
	Key   string
}

// LogValue keeps credentials out of structured logs.
func (Credentials) LogValue() slog.Value { return slog.StringValue("[REDACTED]") }

// ForwardRequest is a validated client request ready to be sent upstream.
type ForwardRequest struct {
	Ctx         context.Context
	Path        string // upstream resource path, always starts with "/"
	Credentials Credentials
}

// UpstreamResponse is a fully buffered response from the FCA Register API.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}
