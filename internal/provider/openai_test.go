package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smartcs/smartcs-backend/internal"
)

const testKey = "sk-0123456789012345678901234567"

func testTranscript() []internal.Message {
	return []internal.Message{
		{Role: internal.RoleSystem, Content: "你是测试助手"},
		{Role: internal.RoleUser, Content: "在吗"},
	}
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenAICompatible {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv(EnvMoonshotKey, testKey)
	return NewOpenAICompatible("Moonshot AI", srv.URL, "moonshot-v1-8k", EnvMoonshotKey)
}

func TestCompleteSuccess(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer "+testKey {
			t.Errorf("unexpected auth header %q", got)
		}
		var payload chatPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("bad request payload: %v", err)
		}
		if payload.Stream {
			t.Error("single-shot call must not request streaming")
		}
		if len(payload.Messages) != 2 {
			t.Errorf("expected 2 messages on the wire, got %d", len(payload.Messages))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "在的，请讲"}},
			},
		})
	})

	got, err := p.Complete(context.Background(), testTranscript())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "在的，请讲" {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestCompleteStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusUnauthorized, KindAuthError},
		{http.StatusForbidden, KindAuthError},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusServiceUnavailable, KindServiceUnavailable},
		{http.StatusBadRequest, KindServiceUnavailable},
	}

	for _, tc := range cases {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})

		_, err := p.Complete(context.Background(), testTranscript())
		var perr *Error
		if !errors.As(err, &perr) {
			t.Fatalf("status %d: expected *Error, got %v", tc.status, err)
		}
		if perr.Kind != tc.want {
			t.Errorf("status %d: kind = %s, want %s", tc.status, perr.Kind, tc.want)
		}
		if perr.Provider != "Moonshot AI" {
			t.Errorf("status %d: provider = %q", tc.status, perr.Provider)
		}
	}
}

func TestCompleteMalformedResponse(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := p.Complete(context.Background(), testTranscript())
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindMalformedResponse {
		t.Fatalf("expected malformed response error, got %v", err)
	}
}

func TestCompleteNetworkError(t *testing.T) {
	t.Setenv(EnvMoonshotKey, testKey)
	p := NewOpenAICompatible("Moonshot AI", "http://127.0.0.1:1", "moonshot-v1-8k", EnvMoonshotKey)

	_, err := p.Complete(context.Background(), testTranscript())
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if perr.Kind != KindNetworkError && perr.Kind != KindTimeout {
		t.Fatalf("expected transport-level kind, got %s", perr.Kind)
	}
}

func TestStreamDeltasAndSentinel(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var payload chatPayload
		json.NewDecoder(r.Body).Decode(&payload)
		if !payload.Stream {
			t.Error("streaming call must request streaming")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"你"}}]}` + "\n\n"))
		w.Write([]byte("data: not-json-at-all\n\n")) // skipped, not fatal
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"好"}}]}` + "\n\n"))
		w.Write([]byte(`data: {"choices":[{"delta":{"content":""},"finish_reason":"stop"}]}` + "\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	})

	chunks, err := p.Stream(context.Background(), testTranscript())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var full strings.Builder
	var final internal.StreamChunk
	finals := 0
	for chunk := range chunks {
		full.WriteString(chunk.Delta)
		if chunk.Final {
			final = chunk
			finals++
		}
	}

	if full.String() != "你好" {
		t.Fatalf("accumulated text = %q, want 你好", full.String())
	}
	if finals != 1 {
		t.Fatalf("expected exactly one final chunk, got %d", finals)
	}
	if final.FinishReason != "stop" {
		t.Fatalf("finish reason = %q, want stop", final.FinishReason)
	}
}

func TestStreamAuthFailureBeforeAnyChunk(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := p.Stream(context.Background(), testTranscript())
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindAuthError {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestStreamCancellationTearsDown(t *testing.T) {
	release := make(chan struct{})
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"第一段"}}]}` + "\n\n"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release // hold the stream open until the client cancels
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	chunks, err := p.Stream(ctx, testTranscript())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	<-chunks // first delta
	cancel()

	// The channel must close rather than hang once the consumer is gone.
	for range chunks {
	}
}
