// Package store keeps per-session conversation transcripts in memory.
package store

import (
	"sync"

	"github.com/smartcs/smartcs-backend/internal"
)

// History maps session ids to transcripts. A transcript is created lazily on
// first access, seeded with the system prompt, and lives until Clear is
// called: the map itself is never evicted automatically.
//
// Each session also carries a mutex that the engine holds for the duration
// of one orchestration call, so overlapping requests on the same session
// serialize instead of interleaving their read-append sequences.
type History struct {
	mu           sync.Mutex
	sessions     map[string]*session
	systemPrompt string
	maxRounds    int
}

type session struct {
	callMu   sync.Mutex
	messages []internal.Message
}

func New(systemPrompt string, maxRounds int) *History {
	return &History{
		sessions:     make(map[string]*session),
		systemPrompt: systemPrompt,
		maxRounds:    maxRounds,
	}
}

func (h *History) get(sessionID string) *session {
	s, ok := h.sessions[sessionID]
	if !ok {
		s = &session{messages: []internal.Message{{
			Role:    internal.RoleSystem,
			Content: h.systemPrompt,
		}}}
		h.sessions[sessionID] = s
	}
	return s
}

// LockSession acquires the per-session call mutex and returns its release
// function. Callers hold it across one full orchestration call.
func (h *History) LockSession(sessionID string) func() {
	h.mu.Lock()
	s := h.get(sessionID)
	h.mu.Unlock()

	s.callMu.Lock()
	return s.callMu.Unlock
}

// Transcript returns a copy of the session's transcript, creating it seeded
// with the system message if the session has never been seen. The copy is
// never empty.
func (h *History) Transcript(sessionID string) []internal.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.get(sessionID)
	cp := make([]internal.Message, len(s.messages))
	copy(cp, s.messages)
	return cp
}

// Peek returns a copy of an existing transcript without creating one.
func (h *History) Peek(sessionID string) ([]internal.Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[sessionID]
	if !ok {
		return nil, false
	}
	cp := make([]internal.Message, len(s.messages))
	copy(cp, s.messages)
	return cp, true
}

// AppendRound appends a completed user/assistant pair as one unit and prunes
// the transcript. Incomplete rounds are never written: a failed provider
// call leaves the transcript exactly as it was.
func (h *History) AppendRound(sessionID string, user, assistant internal.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.get(sessionID)
	s.messages = append(s.messages, user, assistant)
	s.messages = prune(s.messages, h.maxRounds)
}

// prune keeps the system message plus the most recent maxRounds rounds. If
// the cut splits a user/assistant pair, the leading orphan assistant message
// is dropped too, so the first retained turn is always a user message.
// Providers reject transcripts that open with a dangling assistant turn.
func prune(messages []internal.Message, maxRounds int) []internal.Message {
	limit := 1 + 2*maxRounds
	if len(messages) <= limit {
		return messages
	}

	kept := make([]internal.Message, 0, limit)
	kept = append(kept, messages[0])
	kept = append(kept, messages[len(messages)-(limit-1):]...)

	if len(kept) > 1 && kept[1].Role == internal.RoleAssistant {
		kept = append(kept[:1], kept[2:]...)
	}
	return kept
}

// Clear deletes the session's transcript. It reports whether one existed.
func (h *History) Clear(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[sessionID]; !ok {
		return false
	}
	delete(h.sessions, sessionID)
	return true
}

// Sessions enumerates active sessions for diagnostics.
func (h *History) Sessions() []internal.SessionInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]internal.SessionInfo, 0, len(h.sessions))
	for id, s := range h.sessions {
		out = append(out, internal.SessionInfo{
			SessionID:    id,
			MessageCount: len(s.messages),
		})
	}
	return out
}
