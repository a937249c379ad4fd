package conf

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	// Time zones must resolve in minimal containers too
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/khmercoders/kcbot/internal/biz/repo"
	"github.com/khmercoders/kcbot/internal/biz/usecase"
)

// EnvPrefix is prepended to every environment override, e.g. KCBOT_SERVER_ADDR
const EnvPrefix = "KCBOT"

// Config represents application configuration
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Summary  SummaryConfig  `mapstructure:"summary"`
	Link     LinkConfig     `mapstructure:"link"`
	Log      LogConfig      `mapstructure:"log"`

	// DevMode also records and summarizes private chats
	DevMode bool `mapstructure:"dev_mode"`

	PromptsPath string `mapstructure:"prompts_path"`

	// Prompts configuration (loaded from YAML)
	Prompts *PromptsConfig `mapstructure:"-"`
}

// TelegramConfig contains Bot API settings
type TelegramConfig struct {
	Token            string `mapstructure:"token"`
	APIURL           string `mapstructure:"api_url"`
	WebhookURL       string `mapstructure:"webhook_url"`
	WebhookSecret    string `mapstructure:"webhook_secret"`
	RegisterCommands bool   `mapstructure:"register_commands"`
}

// ServerConfig contains the webhook listener settings
type ServerConfig struct {
	Addr        string        `mapstructure:"addr"`
	WebhookPath string        `mapstructure:"webhook_path"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	Debug       bool          `mapstructure:"debug"`
}

// DatabaseConfig contains SQLite settings
type DatabaseConfig struct {
	Path          string `mapstructure:"path"`
	BusyTimeoutMS int    `mapstructure:"busy_timeout_ms"`
}

// LLMConfig contains the OpenAI-compatible completion endpoint
type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Stream      bool    `mapstructure:"stream"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

// SummaryConfig contains /summary settings
type SummaryConfig struct {
	Limit    int           `mapstructure:"limit"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Timezone string        `mapstructure:"timezone"`
	Persona  string        `mapstructure:"persona"`
}

// LinkConfig contains the account link service settings
type LinkConfig struct {
	APIURL  string        `mapstructure:"api_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level          string `mapstructure:"level"`
	Format         string `mapstructure:"format"`
	AddSource      bool   `mapstructure:"add_source"`
	File           string `mapstructure:"file"`
	RotationHours  int    `mapstructure:"rotation_hours"`
	MaxAgeDays     int    `mapstructure:"max_age_days"`
	RotationSizeMB int    `mapstructure:"rotation_size_mb"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.api_url", "https://api.telegram.org")
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.webhook_secret", "")
	v.SetDefault("telegram.register_commands", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.webhook_path", "/telegram/webhook")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.debug", false)

	v.SetDefault("database.path", "data/kcbot.db")
	v.SetDefault("database.busy_timeout_ms", 5000)

	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "@cf/meta/llama-3.3-70b-instruct-fp8-fast")
	v.SetDefault("llm.stream", false)
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.temperature", 0.3)

	v.SetDefault("summary.limit", repo.DefaultHistoryLimit)
	v.SetDefault("summary.timeout", 30*time.Second)
	v.SetDefault("summary.timezone", "UTC")
	v.SetDefault("summary.persona", "Khmercoders assistant")

	v.SetDefault("link.api_url", "https://khmercoder.com/api/account/link")
	v.SetDefault("link.timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.add_source", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.rotation_hours", 24)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.rotation_size_mb", 100)

	v.SetDefault("dev_mode", false)
	v.SetDefault("prompts_path", "")
}

// Load reads .env, the optional YAML file at path (or KCBOT_CONFIG, or
// configs/kcbot.yaml) and the environment, in increasing priority.
func Load(path string) (*Config, error) {
	// A missing .env is normal in production
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Names used by the previous deployment
	_ = v.BindEnv("telegram.token", EnvPrefix+"_TELEGRAM_TOKEN", "BOT_TOKEN")
	_ = v.BindEnv("dev_mode", EnvPrefix+"_DEV_MODE", "DEV_MODE")

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("kcbot")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	prompts, err := LoadPromptsConfig(cfg.PromptsPath)
	if err != nil {
		return nil, err
	}
	cfg.Prompts = prompts

	return cfg, nil
}

// Location resolves the summary time zone
func (c *SummaryConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, &ConfigError{Field: "summary.timezone", Message: err.Error()}
	}
	return loc, nil
}

// ToSummaryConfig converts to the summary usecase configuration
func (c *Config) ToSummaryConfig() (usecase.SummaryConfig, error) {
	loc, err := c.Summary.Location()
	if err != nil {
		return usecase.SummaryConfig{}, err
	}

	prompts := c.Prompts
	if prompts == nil {
		prompts = DefaultPromptsConfig()
	}

	return usecase.SummaryConfig{
		Limit:    c.Summary.Limit,
		Timeout:  c.Summary.Timeout,
		Location: loc,
		Prompts: usecase.SummaryPrompts{
			System:        prompts.SystemPrompt(c.Summary.Persona),
			UserGeneral:   prompts.Summary.UserGeneral,
			UserWithQuery: prompts.Summary.UserWithQuery,
		},
	}, nil
}

// Validate checks the settings the webhook server needs
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return &ConfigError{Field: "telegram.token", Message: "required (BOT_TOKEN or KCBOT_TELEGRAM_TOKEN)"}
	}
	if !strings.HasPrefix(c.Server.WebhookPath, "/") {
		return &ConfigError{Field: "server.webhook_path", Message: "must start with /"}
	}
	if c.Summary.Timeout <= 0 {
		return &ConfigError{Field: "summary.timeout", Message: "must be positive"}
	}
	if c.Summary.Limit < 0 {
		return &ConfigError{Field: "summary.limit", Message: "must not be negative"}
	}
	if _, err := c.Summary.Location(); err != nil {
		return err
	}
	return c.ValidateStore()
}

// ValidateStore checks the settings every command touching the database needs
func (c *Config) ValidateStore() error {
	if c.Database.Path == "" {
		return &ConfigError{Field: "database.path", Message: "required"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
