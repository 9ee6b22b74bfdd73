package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds settings read from the environment.
type Config struct {
	TSheets TSheets
	Tokens  Tokens
	Log     Log
}

// TSheets configures the QuickBooks Time API client.
type TSheets struct {
	BaseURL      string        `env:"TSHEETS_BASE_URL" env-default:"https://rest.tsheets.com/api/v1" env-description:"QuickBooks Time API base URL"`
	AccessToken  string        `env:"TSHEETS_ACCESS_TOKEN" env-description:"Static access token; bypasses the token store"`
	ClientID     string        `env:"TSHEETS_CLIENT_ID" env-description:"OAuth client id used to refresh tokens"`
	ClientSecret string        `env:"TSHEETS_CLIENT_SECRET" env-description:"OAuth client secret used to refresh tokens"`
	TokenURL     string        `env:"TSHEETS_TOKEN_URL" env-default:"https://rest.tsheets.com/api/v1/grant" env-description:"OAuth token endpoint"`
	Timeout      time.Duration `env:"TSHEETS_TIMEOUT" env-default:"30s" env-description:"Per-request timeout"`
	PageLimit    int           `env:"TSHEETS_PAGE_LIMIT" env-default:"200" env-description:"Records per page (max 200)"`
}

// Tokens selects where OAuth tokens are kept.
type Tokens struct {
	Backend  string `env:"SHIFTSHEET_TOKEN_BACKEND" env-default:"file" env-description:"Token store backend: file or redis"`
	Path     string `env:"SHIFTSHEET_TOKEN_FILE" env-description:"Token file path (default <config dir>/token.json)"`
	RedisURL string `env:"SHIFTSHEET_REDIS_URL" env-description:"Redis URL for the redis backend"`
}

// Log configures diagnostics written to stderr.
type Log struct {
	Level  string `env:"SHIFTSHEET_LOG_LEVEL" env-default:"info" env-description:"debug, info, warn or error"`
	Format string `env:"SHIFTSHEET_LOG_FORMAT" env-default:"console" env-description:"console or json"`
}

// Load reads the configuration from the environment and applies defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	if cfg.Tokens.Path == "" {
		if dir := Dir(); dir != "" {
			cfg.Tokens.Path = filepath.Join(dir, "token.json")
		}
	}
	if cfg.TSheets.PageLimit <= 0 || cfg.TSheets.PageLimit > 200 {
		return nil, fmt.Errorf("TSHEETS_PAGE_LIMIT must be between 1 and 200, got %d", cfg.TSheets.PageLimit)
	}
	if cfg.TSheets.Timeout <= 0 {
		return nil, fmt.Errorf("TSHEETS_TIMEOUT must be positive, got %s", cfg.TSheets.Timeout)
	}
	return &cfg, nil
}

// Usage describes every supported environment variable.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
