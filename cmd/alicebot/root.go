package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "ALICE"

func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alicebot",
		Short: "Telegram companion bot with an LLM brain and a template fallback",
		RunE:  runServe,
	}

	cobra.OnInitialize(initConfig)

	cmd.PersistentFlags().String("config", "", "Config file path (optional).")
	_ = viper.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))

	cmd.PersistentFlags().String("bot-token", "", "Telegram bot token.")
	cmd.PersistentFlags().String("webhook-url", "", "Public webhook URL; empty uses long polling.")
	cmd.PersistentFlags().String("llm-provider", "", "LLM provider: ollama|openai|anthropic|none.")
	cmd.PersistentFlags().String("llm-model", "", "Model name, or auto to pick from the backend.")
	cmd.PersistentFlags().String("llm-endpoint", "", "LLM backend base URL.")
	cmd.PersistentFlags().String("storage-type", "", "Conversation storage: memory|file|redis|sqlite.")
	cmd.PersistentFlags().String("data-dir", "", "Root directory for file/sqlite state.")
	cmd.PersistentFlags().String("character-file", "", "Persona markdown file; empty uses the built-in persona.")
	cmd.PersistentFlags().Bool("images", false, "Enable image generation.")
	cmd.PersistentFlags().String("log-level", "", "Logging level: debug|info|warn|error.")
	cmd.PersistentFlags().String("log-format", "", "Logging format: text|json.")
	cmd.PersistentFlags().Bool("debug", false, "Debug logging shortcut.")

	_ = viper.BindPFlag("telegram.bot_token", cmd.PersistentFlags().Lookup("bot-token"))
	_ = viper.BindPFlag("telegram.webhook_url", cmd.PersistentFlags().Lookup("webhook-url"))
	_ = viper.BindPFlag("llm.provider", cmd.PersistentFlags().Lookup("llm-provider"))
	_ = viper.BindPFlag("llm.model", cmd.PersistentFlags().Lookup("llm-model"))
	_ = viper.BindPFlag("llm.endpoint", cmd.PersistentFlags().Lookup("llm-endpoint"))
	_ = viper.BindPFlag("storage.type", cmd.PersistentFlags().Lookup("storage-type"))
	_ = viper.BindPFlag("storage.data_dir", cmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("character.file", cmd.PersistentFlags().Lookup("character-file"))
	_ = viper.BindPFlag("image.enabled", cmd.PersistentFlags().Lookup("images"))
	_ = viper.BindPFlag("logging.level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", cmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("debug", cmd.PersistentFlags().Lookup("debug"))

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newModelsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func initConfig() {
	initViperDefaults()
	bindBareEnv()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	cfgFile := strings.TrimSpace(viper.GetString("config"))
	if cfgFile == "" {
		return
	}

	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
	}
}

// bindBareEnv binds the unprefixed variable names (BOT_TOKEN, LLM_PROVIDER,
// ...) in addition to the ALICE_-prefixed forms AutomaticEnv resolves, so a
// plain .env works without the prefix.
func bindBareEnv() {
	for key, env := range map[string]string{
		"telegram.bot_token":           "BOT_TOKEN",
		"telegram.webhook_url":         "WEBHOOK_URL",
		"telegram.webhook_listen_addr": "WEBHOOK_LISTEN_ADDR",
		"telegram.max_connections":     "MAX_CONNECTIONS",
		"llm.provider":                 "LLM_PROVIDER",
		"llm.model":                    "LLM_MODEL",
		"llm.endpoint":                 "LLM_ENDPOINT",
		"llm.api_key":                  "LLM_API_KEY",
		"llm.temperature":              "LLM_TEMPERATURE",
		"llm.max_tokens":               "LLM_MAX_TOKENS",
		"llm.top_p":                    "LLM_TOP_P",
		"llm.auto_select":              "LLM_AUTO_SELECT",
		"llm.request_timeout":          "LLM_REQUEST_TIMEOUT",
		"llm.max_history":              "MAX_HISTORY",
		"image.enabled":                "IMAGE_GENERATION",
		"image.provider":               "IMAGE_PROVIDER",
		"image.model":                  "IMAGE_MODEL",
		"image.endpoint":               "IMAGE_ENDPOINT",
		"image.output_dir":             "IMAGE_OUTPUT_DIR",
		"image.safety_check":           "IMAGE_SAFETY_CHECK",
		"storage.type":                 "STORAGE_TYPE",
		"storage.data_dir":             "DATA_DIR",
		"storage.redis_addr":           "REDIS_ADDR",
		"storage.max_conversations":    "MAX_CONVERSATIONS",
		"debug":                        "DEBUG",
		"logging.level":                "LOG_LEVEL",
		"logging.format":               "LOG_FORMAT",
		"logging.file":                 "LOG_FILE",
		"rate_limit":                   "RATE_LIMIT",
		"telemetry.enabled":            "TELEMETRY_ENABLED",
		"character.file":               "CHARACTER_FILE",
	} {
		_ = viper.BindEnv(key, env)
	}
}
