// Package audit persists a best-effort log of chat turns. Failures here are
// logged and swallowed; the reply path never depends on the audit log.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/smartcs/smartcs-backend/internal"
)

var (
	ErrInvalidStoreType = errors.New("audit: invalid store type")
	ErrInvalidConfig    = errors.New("audit: invalid store config")
)

// Entry is one audited message.
type Entry struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"session_id"`
	Role       internal.Role `json:"role"`
	Content    string        `json:"content"`
	Source     string        `json:"source"`
	Category   string        `json:"category"`
	ResponseMS int64         `json:"response_ms"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Recorder stores audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}

// StoreType selects the audit driver.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeNop    StoreType = "nop"
	StoreTypeRedis  StoreType = "redis"
)

// Option configures a recorder.
type Option func(*config)

type config struct {
	redisClient *redis.Client
	redisTTL    time.Duration
}

func WithRedisClient(client *redis.Client) Option {
	return func(c *config) { c.redisClient = client }
}

func WithRedisTTL(ttl time.Duration) Option {
	return func(c *config) { c.redisTTL = ttl }
}

// NewRecorder builds a recorder for the given driver type. Redis requires
// WithRedisClient.
func NewRecorder(storeType StoreType, opts ...Option) (Recorder, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeNop:
		return nopRecorder{}, nil

	case StoreTypeMemory:
		return &memoryRecorder{entries: make(map[string][]Entry)}, nil

	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		ttl := cfg.redisTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		return &redisRecorder{client: cfg.redisClient, ttl: ttl}, nil

	default:
		return nil, ErrInvalidStoreType
	}
}

// Stamp fills in the entry id and timestamp.
func Stamp(e Entry) Entry {
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now()
	return e
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Entry) error { return nil }
func (nopRecorder) Close() error                        { return nil }

type memoryRecorder struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

func (m *memoryRecorder) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.SessionID] = append(m.entries[e.SessionID], e)
	return nil
}

func (m *memoryRecorder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	return nil
}

// Entries returns the audited entries for a session, for diagnostics and
// tests.
func (m *memoryRecorder) Entries(sessionID string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Entry, len(m.entries[sessionID]))
	copy(cp, m.entries[sessionID])
	return cp
}

type redisRecorder struct {
	client *redis.Client
	ttl    time.Duration
}

func (r *redisRecorder) Record(ctx context.Context, e Entry) error {
	key := "audit:" + e.SessionID
	val, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := r.client.RPush(ctx, key, val).Err(); err != nil {
		return err
	}
	return r.client.Expire(ctx, key, r.ttl).Err()
}

func (r *redisRecorder) Close() error {
	return r.client.Close()
}
