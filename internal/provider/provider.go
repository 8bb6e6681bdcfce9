// Package provider holds the upstream text-generation backends and the
// ordered registry that selects between them.
package provider

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/smartcs/smartcs-backend/internal"
)

// ErrorKind classifies an upstream failure.
type ErrorKind string

const (
	KindTimeout            ErrorKind = "timeout"
	KindAuthError          ErrorKind = "auth_error"
	KindRateLimited        ErrorKind = "rate_limited"
	KindServiceUnavailable ErrorKind = "service_unavailable"
	KindNetworkError       ErrorKind = "network_error"
	KindMalformedResponse  ErrorKind = "malformed_response"
)

// Error is a classified provider failure. The orchestrator converts every
// variant into a fallback reply; it never reaches the caller.
type Error struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Provider is a text-generation backend. Enabled is re-evaluated on every
// call so externally rotated credentials take effect without a restart.
//
// Stream returns a finite, single-pass chunk sequence; the channel is closed
// after a chunk with Final set. Cancelling ctx tears down the upstream
// stream.
type Provider interface {
	Name() string
	Enabled() bool
	Complete(ctx context.Context, transcript []internal.Message) (string, error)
	Stream(ctx context.Context, transcript []internal.Message) (<-chan internal.StreamChunk, error)
}

// credentialUsable reports whether an API key looks real: non-empty, longer
// than 20 characters, and not a placeholder like "your_api_key_here".
func credentialUsable(key string) bool {
	return len(key) > 20 && !strings.Contains(key, "your_")
}

// envCredential reads a key live from the environment; never cached.
func envCredential(envKey string) string {
	return os.Getenv(envKey)
}
