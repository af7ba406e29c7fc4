// Package config loads and validates camsentry YAML configuration.
// It applies defaults so the daemon can rely on fully populated values.
// The loaded Config is built once at startup and never mutated.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"camsentry/internal/validate"
)

// Detection categories understood by the pipeline.
const (
	CategoryPerson  = "person"
	CategoryVehicle = "vehicle"
	CategoryAnimal  = "animal"
)

// Categories lists the known detection categories in report order.
var Categories = []string{CategoryPerson, CategoryVehicle, CategoryAnimal}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ListenConfig holds the FTP control listener address.
type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ArchiveConfig controls archiving of originals with positive detections.
type ArchiveConfig struct {
	Enable bool   `yaml:"enable"`
	Dir    string `yaml:"dir"`
}

// DetectorConfig references the external object-detection service.
type DetectorConfig struct {
	URL        string `yaml:"url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// TelegramConfig holds the bot credential used for chat notifications.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
}

// StoreConfig holds connection parameters for the external key-value store.
type StoreConfig struct {
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	ArmedKeyPrefix string `yaml:"armed_key_prefix"`
}

// CategoryConfig is a per-category detection toggle with its confidence
// threshold.
type CategoryConfig struct {
	Enable    bool    `yaml:"enable"`
	Threshold float64 `yaml:"threshold"`
}

// HoursConfig is a time-of-day window in 24-hour "HH:MM" form.
// The window may wrap midnight (start > end).
type HoursConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Minutes parses both bounds into minutes of day.
func (h HoursConfig) Minutes() (start, end int, err error) {
	start, err = parseClock(h.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("start: %w", err)
	}
	end, err = parseClock(h.End)
	if err != nil {
		return 0, 0, fmt.Errorf("end: %w", err)
	}
	return start, end, nil
}

// parseClock converts "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, errors.New("expected HH:MM")
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 || hh > 23 {
		return 0, errors.New("invalid hour")
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 {
		return 0, errors.New("invalid minute")
	}
	return hh*60 + mm, nil
}

// UserConfig describes one camera account.
type UserConfig struct {
	Username        string                    `yaml:"username"`
	PassHash        string                    `yaml:"pass_hash"`
	ArmedDefault    bool                      `yaml:"armed_default"`
	AutoArm         bool                      `yaml:"auto_arm"`
	Detect          map[string]CategoryConfig `yaml:"detect"`
	WorkingHours    HoursConfig               `yaml:"working_hours"`
	TelegramChatID  int64                     `yaml:"telegram_chat_id"`
	AlertWebhookURL string                    `yaml:"alert_webhook_url"`
	WatermarkText   string                    `yaml:"watermark_text"`
}

// Category returns the detection settings for a category name.
// Unknown or unconfigured categories are disabled.
func (u UserConfig) Category(name string) CategoryConfig {
	if u.Detect == nil {
		return CategoryConfig{}
	}
	return u.Detect[name]
}

// Config mirrors the camsentry.yaml schema.
type Config struct {
	Log       LogConfig             `yaml:"log"`
	Listen    ListenConfig          `yaml:"listen"`
	RootDir   string                `yaml:"root_dir"`
	Archive   ArchiveConfig         `yaml:"archive"`
	QueueSize int                   `yaml:"queue_size"`
	Detector  DetectorConfig        `yaml:"detector"`
	Telegram  TelegramConfig        `yaml:"telegram"`
	Store     StoreConfig           `yaml:"store"`
	Users     map[string]UserConfig `yaml:"users"`
}

// FindByUsername resolves a configured user by its protocol username.
func (c *Config) FindByUsername(username string) (id string, u UserConfig, ok bool) {
	for id, u := range c.Users {
		if u.Username == username {
			return id, u, true
		}
	}
	return "", UserConfig{}, false
}

// Load reads a YAML config file, applies defaults, and validates it.
// It returns a fully populated Config or a descriptive error.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes raw YAML bytes, applies defaults, and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	applyDefaults(&c)
	if err := validateConfig(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyDefaults populates zero-values with sane defaults.
func applyDefaults(c *Config) {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Listen.Host == "" {
		c.Listen.Host = "0.0.0.0"
	}
	if c.Listen.Port == 0 {
		c.Listen.Port = 2121
	}
	if c.QueueSize == 0 {
		c.QueueSize = 100
	}
	if c.Detector.TimeoutSec == 0 {
		c.Detector.TimeoutSec = 30
	}
	if c.Store.Addr == "" {
		c.Store.Addr = "127.0.0.1:6379"
	}
	if c.Store.ArmedKeyPrefix == "" {
		c.Store.ArmedKeyPrefix = "armed:"
	}
	for id, u := range c.Users {
		if u.Username == "" {
			u.Username = id
		}
		if u.WorkingHours.Start == "" {
			u.WorkingHours.Start = "00:00"
		}
		if u.WorkingHours.End == "" {
			u.WorkingHours.End = "23:59"
		}
		if u.WatermarkText == "" {
			u.WatermarkText = "{username} {timestamp}"
		}
		c.Users[id] = u
	}
}

// validateConfig performs sanity checks for required fields and ranges.
// It does not mutate the config.
func validateConfig(c *Config) error {
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		return errors.New("listen.port is invalid")
	}
	if _, err := validate.RootPath(c.RootDir); err != nil {
		return fmt.Errorf("root_dir: %w", err)
	}
	if c.Archive.Enable {
		if _, err := validate.RootPath(c.Archive.Dir); err != nil {
			return fmt.Errorf("archive.dir: %w", err)
		}
	}
	if c.QueueSize < 1 {
		return errors.New("queue_size must be at least 1")
	}
	if strings.TrimSpace(c.Detector.URL) == "" {
		return errors.New("detector.url is required")
	}
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return errors.New("telegram.bot_token is required")
	}
	if len(c.Users) == 0 {
		return errors.New("at least one user must be configured")
	}
	for id, u := range c.Users {
		if err := validate.UserID(id); err != nil {
			return fmt.Errorf("user %q: %w", id, err)
		}
		if err := validate.UserID(u.Username); err != nil {
			return fmt.Errorf("user %q: username: %w", id, err)
		}
		if strings.TrimSpace(u.PassHash) == "" {
			return fmt.Errorf("user %q: pass_hash is required", id)
		}
		if _, _, err := u.WorkingHours.Minutes(); err != nil {
			return fmt.Errorf("user %q: working_hours: %w", id, err)
		}
		for name, cat := range u.Detect {
			if !knownCategory(name) {
				return fmt.Errorf("user %q: unknown detection category %q", id, name)
			}
			if cat.Enable && (cat.Threshold <= 0 || cat.Threshold > 1) {
				return fmt.Errorf("user %q: category %q: threshold must be in (0,1]", id, name)
			}
		}
	}
	return nil
}

func knownCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}
