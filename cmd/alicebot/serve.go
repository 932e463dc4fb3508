package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dimanchick22/alicebot/character"
	"github.com/dimanchick22/alicebot/conversation"
	"github.com/dimanchick22/alicebot/db"
	"github.com/dimanchick22/alicebot/imagegen"
	"github.com/dimanchick22/alicebot/imagegen/stablediffusion"
	"github.com/dimanchick22/alicebot/internal/bot"
	"github.com/dimanchick22/alicebot/internal/config"
	"github.com/dimanchick22/alicebot/internal/llmutil"
	"github.com/dimanchick22/alicebot/internal/logutil"
	"github.com/dimanchick22/alicebot/internal/telegram"
	"github.com/dimanchick22/alicebot/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot (long polling, or webhook when telegram.webhook_url is set)",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logutil.New(cfg.App)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, telShutdown, err := telemetry.Setup(ctx, cfg.App.TelemetryEnabled, version)
	if err != nil {
		return err
	}
	defer telShutdown()

	persona := character.Alice()
	if cfg.App.CharacterFile != "" {
		persona, err = character.Load(cfg.App.CharacterFile)
		if err != nil {
			return fmt.Errorf("load character %s: %w", cfg.App.CharacterFile, err)
		}
		logger.Info("character_loaded", "file", cfg.App.CharacterFile, "name", persona.Name)
	}

	store, err := buildStore(ctx, cfg.Storage, conversation.Limits{
		MaxTurns:         cfg.LLM.MaxHistory,
		MaxConversations: cfg.Storage.MaxConversations,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("storage_close_error", "error", cerr.Error())
		}
	}()
	logger.Info("storage_ready", "type", cfg.Storage.Type)

	llmClient, ollamaClient, err := llmutil.Build(cfg.LLM)
	if err != nil {
		return err
	}

	var images *imagegen.Service
	if cfg.Image.Enabled {
		sd := stablediffusion.New(cfg.Image.Endpoint, cfg.Image.Model, 0)
		images = imagegen.NewService(sd, cfg.Image.OutputDir, cfg.Image.SafetyCheck)
		logger.Info("image_generation_enabled", "provider", cfg.Image.Provider, "output_dir", cfg.Image.OutputDir)
	}

	b := bot.New(cfg, bot.Deps{
		Logger:    logger,
		API:       telegram.New(nil, "", cfg.Telegram.BotToken),
		Store:     store,
		Persona:   persona,
		LLM:       llmClient,
		Ollama:    ollamaClient,
		Images:    images,
		Telemetry: tel,
	})
	return b.Run(ctx)
}

// buildStore constructs the conversation backend named by storage.type. The
// redis backend is pinged up front so a bad address fails at startup instead
// of on the first message.
func buildStore(ctx context.Context, cfg config.StorageSettings, limits conversation.Limits) (conversation.Store, error) {
	switch cfg.Type {
	case config.StorageMemory:
		return conversation.NewMemory(limits), nil
	case config.StorageFile:
		return conversation.NewFile(cfg.ConversationsDir(), limits)
	case config.StorageRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		return conversation.NewRedis(rdb, limits), nil
	case config.StorageSQLite:
		dbCfg := db.DefaultConfig()
		dbCfg.Path = cfg.SQLitePath()
		gdb, err := db.Open(dbCfg)
		if err != nil {
			return nil, err
		}
		return conversation.NewSQLite(gdb, limits), nil
	default:
		return nil, fmt.Errorf("unknown storage.type: %s", cfg.Type)
	}
}
