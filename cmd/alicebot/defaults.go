package main

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	viper.SetDefault("telegram.webhook_listen_addr", ":8443")
	viper.SetDefault("telegram.max_connections", 40)
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.max_concurrency", 3)

	viper.SetDefault("llm.provider", "ollama")
	viper.SetDefault("llm.model", "auto")
	viper.SetDefault("llm.endpoint", "")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.max_tokens", 200)
	viper.SetDefault("llm.top_p", 0.9)
	viper.SetDefault("llm.auto_select", true)
	viper.SetDefault("llm.max_history", 10)
	viper.SetDefault("llm.request_timeout", 60*time.Second)

	viper.SetDefault("image.enabled", false)
	viper.SetDefault("image.provider", "stable_diffusion")
	viper.SetDefault("image.model", "")
	viper.SetDefault("image.endpoint", "http://127.0.0.1:7860")
	viper.SetDefault("image.output_dir", filepath.Join("data", "generated_images"))
	viper.SetDefault("image.safety_check", true)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.data_dir", "data")
	viper.SetDefault("storage.redis_addr", "127.0.0.1:6379")
	viper.SetDefault("storage.max_conversations", 1000)

	viper.SetDefault("debug", false)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.file", "")
	viper.SetDefault("rate_limit", 60)
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("character.file", "")
}
