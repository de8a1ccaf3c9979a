// Package config reads the service configuration from the environment.
package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type StorageDriver string

const (
	StorageMemory StorageDriver = "memory"
	StorageFile   StorageDriver = "file"
	StorageSQLite StorageDriver = "sqlite"
)

type Config struct {
	// LLM settings
	LLMProvider      LLMProvider   `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	OpenAIModel      string        `env:"OPENAI_MODEL" envDefault:"meta-llama/llama-3.1-8b-instruct"`
	YandexOAuthToken string        `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string        `env:"YANDEX_FOLDER_ID"`
	LLMTemperature   float32       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LLMMaxTokens     int           `env:"LLM_MAX_TOKENS" envDefault:"1024"`
	LLMTimeout       time.Duration `env:"LLM_TIMEOUT" envDefault:"45s"`

	// OpenRouter attribution (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER" envDefault:"https://algeriavirtualtravel.com"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE" envDefault:"Algeria Virtual Travel"`

	// Prompts
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH"`
	LexiconPath      string `env:"LEXICON_PATH"`

	// Catalog backend
	CatalogBaseURL   string        `env:"CATALOG_BASE_URL"`
	CatalogRPS       float64       `env:"CATALOG_RPS" envDefault:"20"`
	CategoryCacheTTL time.Duration `env:"CATEGORY_CACHE_TTL" envDefault:"10m"`
	SearchTimeout    time.Duration `env:"SEARCH_TIMEOUT" envDefault:"10s"`

	// Quota and locale
	DailyLimit    int    `env:"DAILY_LIMIT" envDefault:"50"`
	QuotaTimezone string `env:"QUOTA_TIMEZONE" envDefault:"Africa/Algiers"`
	DefaultLocale string `env:"DEFAULT_LOCALE" envDefault:"en"`

	// Storage
	StorageDriver StorageDriver `env:"STORAGE_DRIVER" envDefault:"file"`
	StoragePath   string        `env:"STORAGE_PATH" envDefault:"data/quota.json"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	LogFilePath   string        `env:"LOG_FILE_PATH" envDefault:"logs/log.jsonl"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// HTTP
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Scheduler
	ReportCron          string `env:"REPORT_CRON" envDefault:"0 21 * * *"`
	CategoryRefreshCron string `env:"CATEGORY_REFRESH_CRON" envDefault:"@every 5m"`

	// Telegram front end
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN"`
	MessageParseMode string  `env:"MESSAGE_PARSE_MODE" envDefault:"HTML"`
	TelegramAdminIDs []int64 `env:"TELEGRAM_ADMIN_IDS" envSeparator:","`
}

func New() *Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}

// Parse reads the configuration from the environment without exiting on error.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves QuotaTimezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	if c.QuotaTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.QuotaTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
