package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"

	coreconfig "github.com/m3rciful/timebot/core/config"
	coredatabase "github.com/m3rciful/timebot/core/database"
	"github.com/m3rciful/timebot/core/errs"
)

// OdooConfig points at the Odoo instance used for time entries and invoices.
type OdooConfig struct {
	URL      string `yaml:"url" envconfig:"ODOO_URL"`
	DB       string `yaml:"db" envconfig:"ODOO_DB"`
	Username string `yaml:"username" envconfig:"ODOO_USERNAME"`
	APIKey   string `yaml:"api_key" envconfig:"ODOO_API_KEY"`
	// CompanyID selects the company; 0 picks the first one Odoo returns.
	CompanyID      int64 `yaml:"company_id" envconfig:"ODOO_COMPANY_ID"`
	TimeoutSeconds int   `yaml:"timeout_seconds" envconfig:"ODOO_TIMEOUT_SECONDS"`
}

// LLMConfig configures transcription and intent recognition.
type LLMConfig struct {
	// VoiceEnabled turns on the voice pipeline; the API key is then required.
	VoiceEnabled   bool   `yaml:"voice_enabled" envconfig:"VOICE_ENABLED"`
	APIKey         string `yaml:"api_key" envconfig:"GEMINI_API_KEY"`
	Model          string `yaml:"model" envconfig:"GEMINI_MODEL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"GEMINI_TIMEOUT_SECONDS"`
}

// NotifyConfig configures the HTTP endpoint used by cron scripts.
// An empty Listen disables the endpoint.
type NotifyConfig struct {
	Listen string `yaml:"listen" envconfig:"NOTIFY_LISTEN"`
	Token  string `yaml:"token" envconfig:"NOTIFY_TOKEN"`
}

// ScriptConfig exposes a local executable as a bot command.
type ScriptConfig struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	Command        string   `yaml:"command"`
	Args           []string `yaml:"args"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	AdminOnly      bool     `yaml:"admin_only"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Odoo     OdooConfig          `yaml:"odoo"`
	LLM      LLMConfig           `yaml:"llm"`
	Database coredatabase.Config `yaml:"database"`
	Notify   NotifyConfig        `yaml:"notify"`
	Scripts  []ScriptConfig      `yaml:"scripts" ignored:"true"`
	Timezone string              `yaml:"timezone" envconfig:"TIMEZONE"`

	loc *time.Location
}

// CoreConfig exposes the embedded bot configuration.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// Location returns the configured timezone, loaded by Validate.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// OdooTimeout returns the Odoo HTTP timeout.
func (c *Config) OdooTimeout() time.Duration {
	return time.Duration(c.Odoo.TimeoutSeconds) * time.Second
}

// LLMTimeout returns the Gemini request timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// Load reads .env, the YAML file at path and the environment, then validates the result.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads variables from file without overriding ones already set.
func loadDotEnv(file string) error {
	err := godotenv.Load(file)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return errs.Configuration("config.dotenv", err)
}

// Validate checks required settings and fills defaults.
func (c *Config) Validate() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	var missing []string
	if c.Telegram.ChatID == 0 {
		missing = append(missing, "telegram.chat_id (TELEGRAM_CHAT_ID)")
	}
	c.Odoo.URL = strings.TrimRight(strings.TrimSpace(c.Odoo.URL), "/")
	for _, f := range []struct{ val, name string }{
		{c.Odoo.URL, "odoo.url (ODOO_URL)"},
		{c.Odoo.DB, "odoo.db (ODOO_DB)"},
		{c.Odoo.Username, "odoo.username (ODOO_USERNAME)"},
		{c.Odoo.APIKey, "odoo.api_key (ODOO_API_KEY)"},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	if c.LLM.VoiceEnabled && strings.TrimSpace(c.LLM.APIKey) == "" {
		missing = append(missing, "llm.api_key (GEMINI_API_KEY) when voice is enabled")
	}
	if len(missing) > 0 {
		return errs.Configuration("config", fmt.Errorf("missing required settings: %s", strings.Join(missing, ", ")))
	}

	if c.Odoo.TimeoutSeconds <= 0 {
		c.Odoo.TimeoutSeconds = 30
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-2.5-flash"
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.Notify.Listen != "" && c.Notify.Token == "" {
		return errs.Configuration("config", errors.New("notify.token is required when notify.listen is set"))
	}

	if err := c.Database.Normalize(); err != nil {
		return errs.Configuration("config.database", err)
	}

	seen := make(map[string]struct{}, len(c.Scripts))
	for i := range c.Scripts {
		s := &c.Scripts[i]
		s.Name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s.Name), "/"))
		if s.Name == "" || strings.TrimSpace(s.Command) == "" {
			return errs.Configuration("config.scripts", fmt.Errorf("script #%d needs name and command", i+1))
		}
		if _, dup := seen[s.Name]; dup {
			return errs.Configuration("config.scripts", fmt.Errorf("duplicate script %q", s.Name))
		}
		seen[s.Name] = struct{}{}
		if s.TimeoutSeconds <= 0 {
			s.TimeoutSeconds = 300
		}
	}

	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		c.loc = time.Local
		return nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return errs.Configuration("config.timezone", fmt.Errorf("invalid timezone %q: %w", tz, err))
	}
	c.loc = loc
	return nil
}
