// Package cmd wires the CLI: `serve` runs the HTTP backend, `chat` talks to
// the same engine from a terminal.
package cmd

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/smartcs/smartcs-backend/internal/audit"
	"github.com/smartcs/smartcs-backend/internal/config"
	"github.com/smartcs/smartcs-backend/internal/engine"
	"github.com/smartcs/smartcs-backend/internal/fallback"
	"github.com/smartcs/smartcs-backend/internal/provider"
	"github.com/smartcs/smartcs-backend/internal/server"
	"github.com/smartcs/smartcs-backend/internal/store"
)

func buildEngine(cfg *config.Config) (*engine.Engine, *store.History, *provider.Registry, error) {
	history := store.New(cfg.SystemPrompt, cfg.MaxRounds)
	registry := provider.DefaultRegistry(cfg.GeminiModel)
	fb := fallback.New(time.Now().UnixNano())

	recorderType := audit.StoreTypeMemory
	var opts []audit.Option
	if cfg.RedisAddr != "" {
		recorderType = audit.StoreTypeRedis
		opts = append(opts,
			audit.WithRedisClient(redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
			})),
			audit.WithRedisTTL(cfg.AuditTTL),
		)
	}
	recorder, err := audit.NewRecorder(recorderType, opts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create audit recorder: %w", err)
	}

	e := engine.New(registry, history, fb, engine.WithRecorder(recorder))
	return e, history, registry, nil
}

func Execute() error {
	rootCmd := &cobra.Command{
		Use:          "smartcs",
		Short:        "智能客服 backend: rule-matched, provider-backed chat with fallback",
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			e, history, registry, err := buildEngine(cfg)
			if err != nil {
				return err
			}

			srv := server.New(e, history, registry)
			log.Printf("后端服务运行在 http://localhost:%s", cfg.Port)
			return srv.Run(cfg.Port)
		},
	}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the engine from the terminal (type 'exit' to quit)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			e, _, _, err := buildEngine(cfg)
			if err != nil {
				return err
			}

			sessionID, _ := cmd.Flags().GetString("session")
			fmt.Println("Starting chat session (type 'exit' to quit)")
			fmt.Println("----------------------------------------")

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("\nYou: ")
				if !scanner.Scan() {
					break
				}
				input := strings.TrimSpace(scanner.Text())
				if input == "exit" {
					break
				}
				if input == "" {
					continue
				}

				chunks, err := e.ReplyStream(cmd.Context(), input, sessionID)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					continue
				}
				fmt.Print("Bot: ")
				for chunk := range chunks {
					fmt.Print(chunk.Delta)
				}
				fmt.Println()
			}
			return scanner.Err()
		},
	}
	chatCmd.Flags().String("session", "local", "session id for the terminal conversation")

	rootCmd.AddCommand(serveCmd, chatCmd)
	return rootCmd.Execute()
}
