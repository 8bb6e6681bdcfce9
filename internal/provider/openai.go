package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/smartcs/smartcs-backend/internal"
)

const (
	completeTimeout = 20 * time.Second
	streamTimeout   = 60 * time.Second
)

// OpenAICompatible calls a chat-completions endpoint in the OpenAI wire
// format (Moonshot, DeepSeek and friends).
type OpenAICompatible struct {
	name   string
	url    string
	model  string
	envKey string
	client *http.Client
}

func NewOpenAICompatible(name, url, model, envKey string) *OpenAICompatible {
	return &OpenAICompatible{
		name:   name,
		url:    url,
		model:  model,
		envKey: envKey,
		// No client-level timeout: per-call deadlines come from the
		// request context, streaming reads would outlive a fixed cap.
		client: &http.Client{},
	}
}

func (p *OpenAICompatible) Name() string { return p.name }

func (p *OpenAICompatible) Enabled() bool {
	return credentialUsable(envCredential(p.envKey))
}

type chatPayload struct {
	Model       string             `json:"model"`
	Messages    []internal.Message `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	TopP        float64            `json:"top_p,omitempty"`
	Stream      bool               `json:"stream"`
}

func (p *OpenAICompatible) newRequest(ctx context.Context, transcript []internal.Message, stream bool) (*http.Request, error) {
	payload := chatPayload{
		Model:       p.model,
		Messages:    transcript,
		MaxTokens:   800,
		Temperature: 0.7,
		TopP:        0.9,
		Stream:      stream,
	}
	if stream {
		payload.MaxTokens = 1000
		payload.TopP = 0
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+envCredential(p.envKey))
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	return req, nil
}

// Complete performs a single-shot chat completion.
func (p *OpenAICompatible) Complete(ctx context.Context, transcript []internal.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completeTimeout)
	defer cancel()

	req, err := p.newRequest(ctx, transcript, false)
	if err != nil {
		return "", &Error{Provider: p.name, Kind: KindNetworkError, Err: err}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &Error{Provider: p.name, Kind: classifyTransport(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &Error{
			Provider: p.name,
			Kind:     classifyStatus(resp.StatusCode),
			Err:      errors.New(resp.Status + ": " + strings.TrimSpace(string(body))),
		}
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &Error{Provider: p.name, Kind: KindMalformedResponse, Err: err}
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", &Error{Provider: p.name, Kind: KindMalformedResponse, Err: errors.New("response has no message content")}
	}
	return out.Choices[0].Message.Content, nil
}

// Stream performs a streaming chat completion. The returned channel is
// closed after a final chunk; non-conforming SSE records are logged and
// skipped without aborting the stream.
func (p *OpenAICompatible) Stream(ctx context.Context, transcript []internal.Message) (<-chan internal.StreamChunk, error) {
	ctx, cancel := context.WithTimeout(ctx, streamTimeout)

	req, err := p.newRequest(ctx, transcript, true)
	if err != nil {
		cancel()
		return nil, &Error{Provider: p.name, Kind: KindNetworkError, Err: err}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		cancel()
		return nil, &Error{Provider: p.name, Kind: classifyTransport(err), Err: err}
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, &Error{
			Provider: p.name,
			Kind:     classifyStatus(resp.StatusCode),
			Err:      errors.New(resp.Status + ": " + strings.TrimSpace(string(body))),
		}
	}

	out := make(chan internal.StreamChunk)
	go func() {
		defer close(out)
		defer cancel()
		defer resp.Body.Close()

		emit := func(c internal.StreamChunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		reader := bufio.NewReader(resp.Body)
		finishReason := "stop"
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					log.Printf("[provider] %s: stream read error: %v", p.name, err)
					finishReason = "error"
				}
				break
			}

			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				break
			}

			var event struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
					FinishReason string `json:"finish_reason"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				log.Printf("[provider] %s: skipping malformed stream record: %v", p.name, err)
				continue
			}
			if len(event.Choices) == 0 {
				continue
			}
			if delta := event.Choices[0].Delta.Content; delta != "" {
				if !emit(internal.StreamChunk{Delta: delta}) {
					return
				}
			}
			if fr := event.Choices[0].FinishReason; fr != "" {
				finishReason = fr
			}
		}

		emit(internal.StreamChunk{Final: true, FinishReason: finishReason})
	}()
	return out, nil
}

func classifyStatus(code int) ErrorKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuthError
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return KindServiceUnavailable
	default:
		return KindServiceUnavailable
	}
}

func classifyTransport(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetworkError
}
