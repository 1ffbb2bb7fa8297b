package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the config file is looked up when no path is given
const DefaultPath = "config/config.yaml"

// Config represents the application configuration
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Probe    ProbeConfig    `yaml:"probe"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// TelegramConfig represents Telegram Bot API configuration
type TelegramConfig struct {
	BotToken string        `yaml:"bot_token"`
	ChatIDs  StringList    `yaml:"chat_ids"`
	APIURL   string        `yaml:"api_url"`
	Proxy    string        `yaml:"proxy"` // SOCKS5 host:port, empty for direct
	Timeout  time.Duration `yaml:"timeout"`
}

// MonitorConfig represents monitoring configuration
type MonitorConfig struct {
	Domains      StringList    `yaml:"domains"`
	RunAt        string        `yaml:"run_at"` // HH:MM, local time
	AlertDays    int           `yaml:"alert_days"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ProbeConfig bounds the outbound lookups
type ProbeConfig struct {
	TLSTimeout   time.Duration `yaml:"tls_timeout"`
	WhoisTimeout time.Duration `yaml:"whois_timeout"`
}

// ServerConfig represents the status API configuration
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
	Mode    string `yaml:"mode"` // debug/release
}

// DatabaseConfig represents the settings override store
type DatabaseConfig struct {
	Path string `yaml:"path"` // empty disables the store
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// LoadError is returned when the configuration cannot be used at all
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load config %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

var (
	ErrMissingToken      = errors.New("telegram.bot_token is required")
	ErrMissingRecipients = errors.New("telegram.chat_ids is required")
)

// StringList accepts either a YAML sequence or a comma-separated scalar
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = SplitList(value.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a list or a comma-separated string", value.Line)
	}
}

// SplitList splits a comma-separated value, dropping surrounding spaces.
// Empty entries are kept so callers can decide what a blank item means.
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// Default returns a configuration populated with defaults
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			APIURL:  "https://api.telegram.org",
			Timeout: 30 * time.Second,
		},
		Monitor: MonitorConfig{
			RunAt:        "09:00",
			AlertDays:    7,
			PollInterval: time.Second,
		},
		Probe: ProbeConfig{
			TLSTimeout:   10 * time.Second,
			WhoisTimeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Port: "8080",
			Mode: "release",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults,
// then applies environment overrides (a .env file next to the process is
// honoured when present).
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Path: ".env", Err: err}
	}
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Telegram.BotToken = token
	}
	if ids := os.Getenv("TELEGRAM_CHAT_IDS"); ids != "" {
		c.Telegram.ChatIDs = SplitList(ids)
	}
	if domains := os.Getenv("MONITOR_DOMAINS"); domains != "" {
		c.Monitor.Domains = SplitList(domains)
	}
	if runAt := os.Getenv("MONITOR_RUN_AT"); runAt != "" {
		c.Monitor.RunAt = runAt
	}
}

// Validate checks the monitoring section. Domains may be empty: that is
// reported per cycle, not at startup.
func (c *Config) Validate() error {
	if _, _, err := ParseRunAt(c.Monitor.RunAt); err != nil {
		return err
	}
	if c.Monitor.AlertDays < 0 {
		return fmt.Errorf("monitor.alert_days must not be negative, got %d", c.Monitor.AlertDays)
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be positive, got %s", c.Monitor.PollInterval)
	}
	if c.Probe.TLSTimeout <= 0 || c.Probe.WhoisTimeout <= 0 {
		return errors.New("probe timeouts must be positive")
	}
	return nil
}

// ValidateTelegram checks the fields needed to deliver notifications
func (c *Config) ValidateTelegram() error {
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return ErrMissingToken
	}
	if len(c.Telegram.Recipients()) == 0 {
		return ErrMissingRecipients
	}
	if c.Telegram.Timeout <= 0 {
		return fmt.Errorf("telegram.timeout must be positive, got %s", c.Telegram.Timeout)
	}
	return nil
}

// Recipients returns the non-blank, de-duplicated chat IDs in config order
func (t *TelegramConfig) Recipients() []string {
	seen := make(map[string]struct{}, len(t.ChatIDs))
	out := make([]string, 0, len(t.ChatIDs))
	for _, id := range t.ChatIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ParseRunAt parses an HH:MM time of day
func ParseRunAt(value string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("monitor.run_at must be HH:MM, got %q", value)
	}
	return t.Hour(), t.Minute(), nil
}

// SettingKeys lists the keys the settings store may override
var SettingKeys = []string{
	"monitor.run_at",
	"monitor.alert_days",
	"monitor.domains",
	"telegram.chat_ids",
}

// ApplySettings overrides configuration with values from the settings store
func (c *Config) ApplySettings(settings map[string]string) []string {
	var applied []string

	if val, ok := settings["monitor.run_at"]; ok && val != "" {
		c.Monitor.RunAt = val
		applied = append(applied, "monitor.run_at")
	}
	if val, ok := settings["monitor.alert_days"]; ok && val != "" {
		if days, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			c.Monitor.AlertDays = days
			applied = append(applied, "monitor.alert_days")
		}
	}
	if val, ok := settings["monitor.domains"]; ok && val != "" {
		c.Monitor.Domains = SplitList(val)
		applied = append(applied, "monitor.domains")
	}
	if val, ok := settings["telegram.chat_ids"]; ok && val != "" {
		c.Telegram.ChatIDs = SplitList(val)
		applied = append(applied, "telegram.chat_ids")
	}

	return applied
}
