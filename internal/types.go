package internal

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a transcript, in the wire shape providers expect.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Reply sources, as reported to the caller. A provider-answered reply uses
// the provider name as its source.
const (
	SourceFixed    = "fixed"
	SourceFallback = "fallback"
)

// ReplyResult is the outcome of a single-shot orchestration call.
type ReplyResult struct {
	Reply    string `json:"reply"`
	Source   string `json:"source"`
	Category string `json:"category"`
}

// StreamChunk is one element of a streaming reply. The sequence is finite
// and ends with exactly one chunk having Final set.
type StreamChunk struct {
	Delta        string `json:"delta"`
	Final        bool   `json:"final"`
	FinishReason string `json:"finishReason,omitempty"`
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type ChatResponse struct {
	Success  bool   `json:"success"`
	Reply    string `json:"reply"`
	Source   string `json:"source,omitempty"`
	Category string `json:"category,omitempty"`
}

type SessionInfo struct {
	SessionID    string `json:"sessionId"`
	MessageCount int    `json:"messageCount"`
}

// MessagePreview is a truncated transcript entry for the history endpoint.
type MessagePreview struct {
	Index   int    `json:"index"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
