package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del frontend.
type Config struct {
	HTTPPort        string   `env:"HTTP_PORT" envDefault:"8080"`
	FrontendOrigins []string `env:"FRONTEND_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	BackendURL  string `env:"BACKEND_URL" envDefault:"http://localhost:8000"`
	ChatAPIURL  string `env:"CHAT_API_URL"`
	ChatAPIKey  string `env:"CHAT_API_KEY"`
	ChatModel   string `env:"CHAT_MODEL" envDefault:"llama-3.1-8b-instant"`
	DatabaseURL string `env:"DATABASE_URL"`

	DeviceCookieSecret string        `env:"DEVICE_COOKIE_SECRET,required"`
	DeviceCookieSecure bool          `env:"DEVICE_COOKIE_SECURE" envDefault:"false"`
	TokenVaultKey      string        `env:"TOKEN_VAULT_KEY"`
	SessionIdleTTL     time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`

	QuotaCooldown     time.Duration `env:"QUOTA_COOLDOWN" envDefault:"60s"`
	QuotaMaxPerMinute int           `env:"QUOTA_MAX_PER_MINUTE" envDefault:"10"`

	WhatsAppSoftwareNumber string `env:"WHATSAPP_SOFTWARE_NUMBER" envDefault:"918828016278"`
	WhatsAppHardwareNumber string `env:"WHATSAPP_HARDWARE_NUMBER" envDefault:"917506750982"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"TYForge"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`
	LeadNotifyTo string `env:"LEAD_NOTIFY_TO"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.BackendURL = strings.TrimRight(strings.TrimSpace(cfg.BackendURL), "/")
	cfg.ChatAPIURL = strings.TrimRight(strings.TrimSpace(cfg.ChatAPIURL), "/")
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate revisa combinaciones que env no puede expresar con tags.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL cannot be empty")
	}
	if len(c.DeviceCookieSecret) < 16 {
		return fmt.Errorf("DEVICE_COOKIE_SECRET must be at least 16 characters")
	}
	if c.TokenVaultKey != "" && len(c.TokenVaultKey) < 16 {
		return fmt.Errorf("TOKEN_VAULT_KEY must be at least 16 characters")
	}
	if c.QuotaMaxPerMinute <= 0 {
		return fmt.Errorf("QUOTA_MAX_PER_MINUTE must be > 0")
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be > 0")
	}
	return nil
}

// ChatEnabled indica si hay un backend de chat configurado.
func (c *Config) ChatEnabled() bool {
	return c.ChatAPIURL != ""
}
