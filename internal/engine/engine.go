// Package engine decides how each inbound message is answered: from the
// rule table, by the first enabled provider, or by a locally synthesized
// fallback. It owns the per-session history update and exposes a single-shot
// and a streaming entry point. It always produces some reply; provider
// failures never surface to the caller.
package engine

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/smartcs/smartcs-backend/internal"
	"github.com/smartcs/smartcs-backend/internal/audit"
	"github.com/smartcs/smartcs-backend/internal/fallback"
	"github.com/smartcs/smartcs-backend/internal/provider"
	"github.com/smartcs/smartcs-backend/internal/rules"
	"github.com/smartcs/smartcs-backend/internal/store"
)

// ErrEmptyMessage is the only caller-visible failure: a blank input message
// is rejected before the state machine runs.
var ErrEmptyMessage = errors.New("message must not be empty")

// Typewriter pacing for relaying fixed and fallback replies as a stream.
const (
	defaultPaceRunes    = 3
	defaultPaceInterval = 50 * time.Millisecond
)

type Engine struct {
	registry *provider.Registry
	history  *store.History
	fb       *fallback.Generator
	recorder audit.Recorder

	paceRunes    int
	paceInterval time.Duration
}

type Option func(*Engine)

// WithPacing overrides the typewriter pacing for simulated streams. Tests
// pass interval 0 to run unpaced.
func WithPacing(runes int, interval time.Duration) Option {
	return func(e *Engine) {
		e.paceRunes = runes
		e.paceInterval = interval
	}
}

// WithRecorder attaches a best-effort audit recorder.
func WithRecorder(r audit.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func New(registry *provider.Registry, history *store.History, fb *fallback.Generator, opts ...Option) *Engine {
	e := &Engine{
		registry:     registry,
		history:      history,
		fb:           fb,
		recorder:     nil,
		paceRunes:    defaultPaceRunes,
		paceInterval: defaultPaceInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ReplyOnce answers a message synchronously. The result always carries a
// reply; the only error is an empty input message.
func (e *Engine) ReplyOnce(ctx context.Context, message, sessionID string) (internal.ReplyResult, error) {
	if strings.TrimSpace(message) == "" {
		return internal.ReplyResult{}, ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = "default"
	}

	unlock := e.history.LockSession(sessionID)
	defer unlock()

	start := time.Now()

	if m, ok := rules.Lookup(message); ok {
		log.Printf("[engine] %s: fixed reply (%s/%s)", sessionID, m.Type, m.Category)
		e.commitRound(ctx, sessionID, message, m.Reply, internal.SourceFixed, m.Category, start)
		return internal.ReplyResult{Reply: m.Reply, Source: internal.SourceFixed, Category: m.Category}, nil
	}

	p := e.registry.Select()
	if p == nil {
		log.Printf("[engine] %s: no provider enabled, using fallback", sessionID)
		reply := e.fb.Reply(message)
		e.commitRound(ctx, sessionID, message, reply, internal.SourceFallback, "fallback", start)
		return internal.ReplyResult{Reply: reply, Source: internal.SourceFallback, Category: "fallback"}, nil
	}

	// The pending user message rides on a transcript copy; the store is
	// only touched once the round has an assistant reply to pair with.
	wire := append(e.history.Transcript(sessionID), internal.Message{
		Role:    internal.RoleUser,
		Content: message,
	})

	text, err := p.Complete(ctx, wire)
	if err != nil {
		log.Printf("[engine] %s: provider %s failed, using fallback: %v", sessionID, p.Name(), err)
		reply := e.fb.Reply(message)
		e.commitRound(ctx, sessionID, message, reply, internal.SourceFallback, "fallback", start)
		return internal.ReplyResult{Reply: reply, Source: internal.SourceFallback, Category: "fallback"}, nil
	}

	log.Printf("[engine] %s: provider %s answered in %s", sessionID, p.Name(), time.Since(start))
	e.commitRound(ctx, sessionID, message, text, p.Name(), "ai", start)
	return internal.ReplyResult{Reply: text, Source: p.Name(), Category: "ai"}, nil
}

// ReplyStream answers a message as a finite chunk sequence. Fixed and
// fallback replies are relayed with typewriter pacing; provider streams are
// relayed as they arrive. Draining the sequence and concatenating deltas
// reconstructs the reply that is written to history.
func (e *Engine) ReplyStream(ctx context.Context, message, sessionID string) (<-chan internal.StreamChunk, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = "default"
	}

	out := make(chan internal.StreamChunk)
	go func() {
		defer close(out)

		unlock := e.history.LockSession(sessionID)
		defer unlock()

		start := time.Now()

		if m, ok := rules.Lookup(message); ok {
			log.Printf("[engine] %s: streaming fixed reply (%s)", sessionID, m.Category)
			if e.pace(ctx, out, m.Reply) {
				e.commitRound(ctx, sessionID, message, m.Reply, internal.SourceFixed, m.Category, start)
			}
			return
		}

		p := e.registry.Select()
		if p == nil {
			reply := e.fb.Reply(message)
			if e.pace(ctx, out, reply) {
				e.commitRound(ctx, sessionID, message, reply, internal.SourceFallback, "fallback", start)
			}
			return
		}

		wire := append(e.history.Transcript(sessionID), internal.Message{
			Role:    internal.RoleUser,
			Content: message,
		})

		upstream, err := p.Stream(ctx, wire)
		if err != nil {
			log.Printf("[engine] %s: provider %s stream failed, using fallback: %v", sessionID, p.Name(), err)
			reply := e.fb.Reply(message)
			if e.pace(ctx, out, reply) {
				e.commitRound(ctx, sessionID, message, reply, internal.SourceFallback, "fallback", start)
			}
			return
		}

		var full strings.Builder
		for chunk := range upstream {
			select {
			case out <- chunk:
			case <-ctx.Done():
				// Caller went away: drain nothing further, the
				// provider tears its stream down on ctx, and the
				// turn is not written to history.
				return
			}
			full.WriteString(chunk.Delta)
			if chunk.Final {
				if chunk.FinishReason != "error" && full.Len() > 0 {
					e.commitRound(ctx, sessionID, message, full.String(), p.Name(), "ai", start)
				}
				return
			}
		}
	}()
	return out, nil
}

// pace relays a known reply a few runes at a time, ending with a final
// chunk. It reports whether the whole reply was delivered.
func (e *Engine) pace(ctx context.Context, out chan<- internal.StreamChunk, reply string) bool {
	runes := []rune(reply)
	for i := 0; i < len(runes); i += e.paceRunes {
		end := i + e.paceRunes
		if end > len(runes) {
			end = len(runes)
		}
		select {
		case out <- internal.StreamChunk{Delta: string(runes[i:end])}:
		case <-ctx.Done():
			return false
		}
		if e.paceInterval > 0 && end < len(runes) {
			select {
			case <-time.After(e.paceInterval):
			case <-ctx.Done():
				return false
			}
		}
	}
	select {
	case out <- internal.StreamChunk{Final: true, FinishReason: "stop"}:
		return true
	case <-ctx.Done():
		return false
	}
}

// commitRound appends the completed user/assistant pair to history as one
// unit and audits both messages best-effort.
func (e *Engine) commitRound(ctx context.Context, sessionID, userText, assistantText, source, category string, start time.Time) {
	e.history.AppendRound(sessionID,
		internal.Message{Role: internal.RoleUser, Content: userText},
		internal.Message{Role: internal.RoleAssistant, Content: assistantText},
	)

	if e.recorder == nil {
		return
	}
	elapsed := time.Since(start).Milliseconds()
	for _, entry := range []audit.Entry{
		{SessionID: sessionID, Role: internal.RoleUser, Content: userText, Source: "user"},
		{SessionID: sessionID, Role: internal.RoleAssistant, Content: assistantText, Source: source, Category: category, ResponseMS: elapsed},
	} {
		if err := e.recorder.Record(ctx, audit.Stamp(entry)); err != nil {
			log.Printf("[audit] record failed: %v", err)
		}
	}
}
