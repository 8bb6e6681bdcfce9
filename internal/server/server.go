// Package server wires the HTTP surface around the engine.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartcs/smartcs-backend/internal"
	"github.com/smartcs/smartcs-backend/internal/engine"
	"github.com/smartcs/smartcs-backend/internal/provider"
	"github.com/smartcs/smartcs-backend/internal/rules"
	"github.com/smartcs/smartcs-backend/internal/store"
)

const version = "2.0.0"

type Server struct {
	engine   *engine.Engine
	history  *store.History
	registry *provider.Registry
	router   *gin.Engine
}

func New(e *engine.Engine, history *store.History, registry *provider.Registry) *Server {
	s := &Server{
		engine:   e,
		history:  history,
		registry: registry,
		router:   gin.Default(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "message": "后端服务运行正常"})
	})

	r.POST("/api/chat", s.handleChat)
	r.POST("/api/chat/stream", s.handleChatStream)
	r.GET("/api/chat/history/:sessionId", s.handleHistory)
	r.DELETE("/api/chat/history/:sessionId", s.handleClearHistory)
	r.GET("/api/chat/sessions", s.handleSessions)
	r.GET("/api/chat/stats", s.handleStats)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "接口不存在"})
	})
}

func (s *Server) handleChat(c *gin.Context) {
	var req internal.ChatRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "消息不能为空"})
		return
	}

	result, err := s.engine.ReplyOnce(c.Request.Context(), req.Message, req.SessionID)
	if err != nil {
		if errors.Is(err, engine.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "消息不能为空"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "智能客服暂时不可用"})
		return
	}

	c.JSON(http.StatusOK, internal.ChatResponse{
		Success:  true,
		Reply:    result.Reply,
		Source:   result.Source,
		Category: result.Category,
	})
}

// sseEvent is the OpenAI-style wire shape streamed to the front end.
type sseEvent struct {
	Choices []sseChoice `json:"choices"`
}

type sseChoice struct {
	Index        int      `json:"index"`
	Delta        sseDelta `json:"delta"`
	FinishReason *string  `json:"finish_reason"`
}

type sseDelta struct {
	Content string `json:"content"`
}

func (s *Server) handleChatStream(c *gin.Context) {
	var req internal.ChatRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "消息不能为空"})
		return
	}

	chunks, err := s.engine.ReplyStream(c.Request.Context(), req.Message, req.SessionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "消息不能为空"})
		return
	}

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeaderNow()

	write := func(v any) {
		b, err := json.Marshal(v)
		if err != nil {
			return
		}
		c.Writer.WriteString("data: " + string(b) + "\n\n")
		c.Writer.Flush()
	}

	for chunk := range chunks {
		if chunk.Final {
			reason := chunk.FinishReason
			if reason == "" {
				reason = "stop"
			}
			write(sseEvent{Choices: []sseChoice{{Delta: sseDelta{}, FinishReason: &reason}}})
			break
		}
		write(sseEvent{Choices: []sseChoice{{Delta: sseDelta{Content: chunk.Delta}}}})
	}

	c.Writer.WriteString("data: [DONE]\n\n")
	c.Writer.Flush()
}

func (s *Server) handleHistory(c *gin.Context) {
	// A never-seen session comes back seeded with the system message,
	// same as asking the engine would leave it.
	sessionID := c.Param("sessionId")
	messages := s.history.Transcript(sessionID)

	previews := make([]internal.MessagePreview, 0, len(messages))
	for i, m := range messages {
		previews = append(previews, internal.MessagePreview{
			Index:   i,
			Role:    m.Role,
			Content: truncateRunes(m.Content, 100),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId":    sessionID,
		"messageCount": len(messages),
		"history":      previews,
	})
}

func (s *Server) handleClearHistory(c *gin.Context) {
	deleted := s.history.Clear(c.Param("sessionId"))
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": deleted})
}

func (s *Server) handleSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.history.Sessions()})
}

func (s *Server) handleStats(c *gin.Context) {
	providers := gin.H{}
	for _, p := range s.registry.All() {
		providers[p.Name()] = p.Enabled()
	}
	c.JSON(http.StatusOK, gin.H{
		"apiProviders":         providers,
		"fixedReplyCategories": rules.Categories(),
		"version":              version,
	})
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Run blocks serving HTTP on the given port.
func (s *Server) Run(port string) error {
	return s.router.Run(":" + port)
}
