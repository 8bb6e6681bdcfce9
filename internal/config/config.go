// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// DefaultSystemPrompt seeds every new transcript.
const DefaultSystemPrompt = `你是一个专业的客服助手，请按照以下要求回答问题：
# 角色设定：
- 你是企业的智能客服助手
- 友好、专业、乐于助人
- 如果不知道答案，诚实说明

# 回答要求：
1. 使用中文回答
2. 语气友好自然
3. 回答简洁明了
4. 如果问题需要人工处理，引导用户联系客服
5. 适当使用表情符号让对话更友好

# 当前上下文：
用户的问题是关于企业服务的，请根据常识和专业知识回答。`

// Config carries everything except provider credentials, which are read
// live from the environment at selection time so key rotation needs no
// restart.
type Config struct {
	Port         string
	MaxRounds    int
	SystemPrompt string
	GeminiModel  string

	// Audit log; redis is used when RedisAddr is set.
	RedisAddr     string
	RedisPassword string
	AuditTTL      time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:          getenv("PORT", "8080"),
		MaxRounds:     10,
		SystemPrompt:  getenv("SYSTEM_PROMPT", DefaultSystemPrompt),
		GeminiModel:   os.Getenv("GEMINI_MODEL_NAME"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		AuditTTL:      24 * time.Hour,
	}

	if v := os.Getenv("MAX_ROUNDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("MAX_ROUNDS must be a positive integer, got %q", v)
		}
		cfg.MaxRounds = n
	}

	if v := os.Getenv("AUDIT_TTL_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("AUDIT_TTL_HOURS must be a positive integer, got %q", v)
		}
		cfg.AuditTTL = time.Duration(n) * time.Hour
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
