package provider

import (
	"context"
	"errors"
	"log"
	"net/http"

	"google.golang.org/genai"

	"github.com/smartcs/smartcs-backend/internal"
)

// Gemini talks to the Gemini API through the genai SDK. The client is built
// per call so the credential is always the current environment value.
type Gemini struct {
	model  string
	envKey string
}

func NewGemini(model, envKey string) *Gemini {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{model: model, envKey: envKey}
}

func (p *Gemini) Name() string { return "Gemini" }

func (p *Gemini) Enabled() bool {
	return credentialUsable(envCredential(p.envKey))
}

// newChat builds a chat seeded with everything but the final user message,
// which is returned separately for SendMessage.
func (p *Gemini) newChat(ctx context.Context, transcript []internal.Message) (*genai.Chat, string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  envCredential(p.envKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, "", &Error{Provider: p.Name(), Kind: KindNetworkError, Err: err}
	}

	var config *genai.GenerateContentConfig
	var history []*genai.Content
	pending := ""
	for i, m := range transcript {
		switch m.Role {
		case internal.RoleSystem:
			config = &genai.GenerateContentConfig{
				SystemInstruction: &genai.Content{
					Parts: []*genai.Part{{Text: m.Content}},
				},
			}
		case internal.RoleUser:
			if i == len(transcript)-1 {
				pending = m.Content
				continue
			}
			history = append(history, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		case internal.RoleAssistant:
			history = append(history, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}

	chat, err := client.Chats.Create(ctx, p.model, config, history)
	if err != nil {
		return nil, "", &Error{Provider: p.Name(), Kind: classifyGenai(err), Err: err}
	}
	return chat, pending, nil
}

func (p *Gemini) Complete(ctx context.Context, transcript []internal.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completeTimeout)
	defer cancel()

	chat, pending, err := p.newChat(ctx, transcript)
	if err != nil {
		return "", err
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: pending})
	if err != nil {
		return "", &Error{Provider: p.Name(), Kind: classifyGenai(err), Err: err}
	}
	text := candidateText(resp)
	if text == "" {
		return "", &Error{Provider: p.Name(), Kind: KindMalformedResponse, Err: errors.New("response has no text candidates")}
	}
	return text, nil
}

func (p *Gemini) Stream(ctx context.Context, transcript []internal.Message) (<-chan internal.StreamChunk, error) {
	ctx, cancel := context.WithTimeout(ctx, streamTimeout)

	chat, pending, err := p.newChat(ctx, transcript)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan internal.StreamChunk)
	go func() {
		defer close(out)
		defer cancel()

		emit := func(c internal.StreamChunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		finishReason := "stop"
		for resp, err := range chat.SendMessageStream(ctx, genai.Part{Text: pending}) {
			if err != nil {
				log.Printf("[provider] %s: stream error: %v", p.Name(), err)
				finishReason = "error"
				break
			}
			if delta := candidateText(resp); delta != "" {
				if !emit(internal.StreamChunk{Delta: delta}) {
					return
				}
			}
		}
		emit(internal.StreamChunk{Final: true, FinishReason: finishReason})
	}()
	return out, nil
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			return part.Text
		}
	}
	return ""
}

func classifyGenai(err error) ErrorKind {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindAuthError
		case http.StatusTooManyRequests:
			return KindRateLimited
		case http.StatusServiceUnavailable:
			return KindServiceUnavailable
		default:
			return KindServiceUnavailable
		}
	}
	return classifyTransport(err)
}
