// Package config loads settings from defaults, an optional file and the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. EXPENSEBOT_SERVER_PORT.
const EnvPrefix = "EXPENSEBOT"

// MockToken marks transport credentials that were never configured.
const MockToken = "change_me"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	BigQuery  BigQueryConfig  `mapstructure:"bigquery"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	WhatsApp  WhatsAppConfig  `mapstructure:"whatsapp"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Media     MediaConfig     `mapstructure:"media"`
	Notion    NotionConfig    `mapstructure:"notion"`
	Chatbot   ChatbotConfig   `mapstructure:"chatbot"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	// Driver is one of memory, sqlite, postgres, bigquery.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type BigQueryConfig struct {
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
	Table   string `mapstructure:"table"`
}

type RedisConfig struct {
	// Addr empty keeps the key-value store in memory.
	Addr      string `mapstructure:"addr"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type GeminiConfig struct {
	APIKey               string        `mapstructure:"api_key"`
	APIVersion           string        `mapstructure:"api_version"`
	UseVertex            bool          `mapstructure:"use_vertex"`
	Project              string        `mapstructure:"project"`
	Location             string        `mapstructure:"location"`
	Model                string        `mapstructure:"model"`
	LongModel            string        `mapstructure:"long_model"`
	LongMessageThreshold int           `mapstructure:"long_message_threshold"`
	Temperature          float32       `mapstructure:"temperature"`
	Timeout              time.Duration `mapstructure:"timeout"`
	FailureThreshold     uint32        `mapstructure:"failure_threshold"`
	OpenTimeout          time.Duration `mapstructure:"open_timeout"`
	TranscriptionModel   string        `mapstructure:"transcription_model"`
	SpeechModel          string        `mapstructure:"speech_model"`
	Voice                string        `mapstructure:"voice"`
}

type AssistantConfig struct {
	DefaultCurrency  string        `mapstructure:"default_currency"`
	MaxMessageLength int           `mapstructure:"max_message_length"`
	Timezone         string        `mapstructure:"timezone"`
	IdempotencyTTL   time.Duration `mapstructure:"idempotency_ttl"`
	TranscribeAudio  bool          `mapstructure:"transcribe_audio"`
}

type WhatsAppConfig struct {
	VerifyToken   string        `mapstructure:"verify_token"`
	AccessToken   string        `mapstructure:"access_token"`
	PhoneNumberID string        `mapstructure:"phone_number_id"`
	APIVersion    string        `mapstructure:"api_version"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type TelegramConfig struct {
	BotToken    string        `mapstructure:"bot_token"`
	BaseURL     string        `mapstructure:"base_url"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// SecretToken is checked against X-Telegram-Bot-Api-Secret-Token on webhooks.
	SecretToken string `mapstructure:"secret_token"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type QuotaConfig struct {
	MaxMessagesPerChat int           `mapstructure:"max_messages_per_chat"`
	Window             time.Duration `mapstructure:"window"`
}

type MediaConfig struct {
	// Bucket set archives inbound media to GCS; Dir archives to disk; both empty disables.
	Bucket string `mapstructure:"bucket"`
	Dir    string `mapstructure:"dir"`
}

type NotionConfig struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
}

type ChatbotConfig struct {
	Persona            string        `mapstructure:"persona"`
	Instructions       string        `mapstructure:"instructions"`
	Model              string        `mapstructure:"model"`
	Temperature        float32       `mapstructure:"temperature"`
	MaxInputCharacters int           `mapstructure:"max_input_characters"`
	ChatHistoryLimit   int           `mapstructure:"chat_history_limit"`
	MaxMessagesPerChat int           `mapstructure:"max_messages_per_chat"`
	QuotaWindow        time.Duration `mapstructure:"quota_window"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
	MaxFunctionCalls   int           `mapstructure:"max_function_calls"`
	AudioInput         bool          `mapstructure:"audio_input"`
	AudioOutput        bool          `mapstructure:"audio_output"`
}

type JobsConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// Load reads defaults, then path when non-empty, then the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, fmt.Errorf("Load: bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("Load: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Load: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "expenses.db")

	v.SetDefault("bigquery.dataset", "expenses")
	v.SetDefault("bigquery.table", "transactions")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "expensebot:")

	v.SetDefault("gemini.api_version", "")
	v.SetDefault("gemini.use_vertex", false)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.long_model", "gemini-2.5-flash")
	v.SetDefault("gemini.long_message_threshold", 80)
	v.SetDefault("gemini.temperature", 0.0)
	v.SetDefault("gemini.timeout", 30*time.Second)
	v.SetDefault("gemini.failure_threshold", 5)
	v.SetDefault("gemini.open_timeout", 30*time.Second)
	v.SetDefault("gemini.location", "us-central1")
	v.SetDefault("gemini.transcription_model", "gemini-2.5-flash")
	v.SetDefault("gemini.speech_model", "gemini-2.5-flash-preview-tts")
	v.SetDefault("gemini.voice", "Kore")

	v.SetDefault("assistant.default_currency", "CAD")
	v.SetDefault("assistant.max_message_length", 1000)
	v.SetDefault("assistant.timezone", "UTC")
	v.SetDefault("assistant.idempotency_ttl", 24*time.Hour)
	v.SetDefault("assistant.transcribe_audio", true)

	v.SetDefault("whatsapp.verify_token", MockToken)
	v.SetDefault("whatsapp.access_token", MockToken)
	v.SetDefault("whatsapp.phone_number_id", MockToken)
	v.SetDefault("whatsapp.api_version", "v21.0")
	v.SetDefault("whatsapp.base_url", "https://graph.facebook.com")
	v.SetDefault("whatsapp.timeout", 20*time.Second)

	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("telegram.poll_timeout", 30*time.Second)
	v.SetDefault("telegram.timeout", 20*time.Second)
	v.SetDefault("telegram.secret_token", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "expense-bot")

	v.SetDefault("quota.max_messages_per_chat", 0)
	v.SetDefault("quota.window", 24*time.Hour)

	v.SetDefault("media.bucket", "")
	v.SetDefault("media.dir", "")

	v.SetDefault("chatbot.persona", "sales")
	v.SetDefault("chatbot.instructions", "")
	v.SetDefault("chatbot.model", "gemini-2.5-flash")
	v.SetDefault("chatbot.temperature", 0.2)
	v.SetDefault("chatbot.max_input_characters", 1000)
	v.SetDefault("chatbot.chat_history_limit", 20)
	v.SetDefault("chatbot.max_messages_per_chat", 500)
	v.SetDefault("chatbot.quota_window", 24*time.Hour)
	v.SetDefault("chatbot.cache_ttl", 10*time.Minute)
	v.SetDefault("chatbot.max_function_calls", 5)
	v.SetDefault("chatbot.audio_input", true)
	v.SetDefault("chatbot.audio_output", false)

	v.SetDefault("jobs.workers", 5)
	v.SetDefault("jobs.queue_size", 100)
}

// bindLegacyEnv keeps the plain variable names deployments already use.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"database.dsn":             {"EXPENSEBOT_DATABASE_DSN", "DATABASE_URL"},
		"whatsapp.verify_token":    {"EXPENSEBOT_WHATSAPP_VERIFY_TOKEN", "WHATSAPP_VERIFY_TOKEN"},
		"whatsapp.access_token":    {"EXPENSEBOT_WHATSAPP_ACCESS_TOKEN", "WHATSAPP_ACCESS_TOKEN"},
		"whatsapp.phone_number_id": {"EXPENSEBOT_WHATSAPP_PHONE_NUMBER_ID", "WHATSAPP_PHONE_NUMBER_ID"},
		"telegram.bot_token":       {"EXPENSEBOT_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN"},
		"gemini.api_key":           {"EXPENSEBOT_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"notion.token":             {"EXPENSEBOT_NOTION_TOKEN", "NOTION_TOKEN"},
		"notion.database_id":       {"EXPENSEBOT_NOTION_DATABASE_ID", "NOTION_DATABASE_ID"},
		"bigquery.project":         {"EXPENSEBOT_BIGQUERY_PROJECT", "GOOGLE_CLOUD_PROJECT"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "sqlite", "postgres":
	case "bigquery":
		if c.BigQuery.Project == "" {
			return fmt.Errorf("bigquery.project is required for the bigquery driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if len(c.Assistant.DefaultCurrency) != 3 {
		return fmt.Errorf("assistant.default_currency %q is not a 3-letter code", c.Assistant.DefaultCurrency)
	}
	if _, err := time.LoadLocation(c.Assistant.Timezone); err != nil {
		return fmt.Errorf("assistant.timezone: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// Location returns the configured timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Assistant.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WhatsAppMockMode reports whether outbound WhatsApp messages are only logged.
func (c *Config) WhatsAppMockMode() bool {
	return c.WhatsApp.AccessToken == "" || c.WhatsApp.AccessToken == MockToken
}
