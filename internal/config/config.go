package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	// LLM settings
	LLMProvider      string `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL"`
	OpenAIModel      string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	WhisperModel     string `env:"WHISPER_MODEL" envDefault:"whisper-1"`
	YandexOAuthToken string `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string `env:"YANDEX_FOLDER_ID"`

	// Conversation defaults
	DefaultLanguage string `env:"DEFAULT_LANGUAGE" envDefault:"hi"`
	ContextWindow   int    `env:"CONTEXT_WINDOW" envDefault:"6"`

	// Recording
	RecordingCap  time.Duration `env:"RECORDING_CAP" envDefault:"15s"`
	RecordingTick time.Duration `env:"RECORDING_TICK" envDefault:"100ms"`

	// Storage
	DBPath       string `env:"DB_PATH" envDefault:"data/bolonyay.db"`
	AuditLogPath string `env:"AUDIT_LOG_PATH" envDefault:"logs/exchanges.jsonl"`
	ExportDir    string `env:"EXPORT_DIR" envDefault:"data/exports"`

	// Retention
	RetentionDays int    `env:"RETENTION_DAYS" envDefault:"30"`
	PurgeCronSpec string `env:"PURGE_CRON_SPEC" envDefault:"0 3 * * *"`

	// HTTP API
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// Telegram front end (optional)
	TelegramBotToken  string  `env:"TELEGRAM_BOT_TOKEN"`
	AllowedUsers      []int64 `env:"ALLOWED_USERS" envSeparator:":"`
	AllowlistFilePath string  `env:"ALLOWLIST_FILE_PATH" envDefault:"data/allowlist.json"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
