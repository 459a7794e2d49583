// Package config provides YAML-based configuration loading for Foreman.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Foreman configuration, loaded from config.yaml.
type Config struct {
	Database  DatabaseConfig `yaml:"database"`
	Sweep     SweepConfig    `yaml:"sweep"`
	Notifiers NotifierConfig `yaml:"notifiers"`
	Server    ServerConfig   `yaml:"server"`
	Users     []UserConfig   `yaml:"users"`
}

// DatabaseConfig holds connection settings for the MySQL server.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// SweepConfig holds escalation thresholds and the sweep cadence.
type SweepConfig struct {
	AlertAfterHours    int    `yaml:"alert_after_hours"`    // first alert once a session exceeds this
	AlertIntervalHours int    `yaml:"alert_interval_hours"` // rate limit between alerts per user
	MaxAlerts          int    `yaml:"max_alerts"`           // auto-pause after this many unanswered alerts
	CloseAfterHours    int    `yaml:"close_after_hours"`    // auto-close at this much continuous work
	Cadence            string `yaml:"cadence"`              // 5-field cron expression for the daemon
}

// AlertAfter returns the first-alert threshold as a duration.
func (s SweepConfig) AlertAfter() time.Duration {
	return time.Duration(s.AlertAfterHours) * time.Hour
}

// AlertInterval returns the per-user alert rate limit as a duration.
func (s SweepConfig) AlertInterval() time.Duration {
	return time.Duration(s.AlertIntervalHours) * time.Hour
}

// CloseAfter returns the continuous-work ceiling as a duration.
func (s SweepConfig) CloseAfter() time.Duration {
	return time.Duration(s.CloseAfterHours) * time.Hour
}

// NotifierConfig holds chat platform credentials. Empty sections disable
// that platform; the persisted outbox is always written.
type NotifierConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack delivery settings.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord delivery settings.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// UserConfig seeds a user and their project memberships.
type UserConfig struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Email       string             `yaml:"email"`
	Memberships []MembershipConfig `yaml:"memberships"`
}

// MembershipConfig binds a seeded user to a project with a role.
type MembershipConfig struct {
	Project string `yaml:"project"`
	Role    string `yaml:"role"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Database == "" {
		c.Database.Database = "foreman"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Sweep.AlertAfterHours == 0 {
		c.Sweep.AlertAfterHours = 2
	}
	if c.Sweep.AlertIntervalHours == 0 {
		c.Sweep.AlertIntervalHours = 2
	}
	if c.Sweep.MaxAlerts == 0 {
		c.Sweep.MaxAlerts = 3
	}
	if c.Sweep.CloseAfterHours == 0 {
		c.Sweep.CloseAfterHours = 12
	}
	if c.Sweep.Cadence == "" {
		c.Sweep.Cadence = "*/30 * * * *"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Sweep.CloseAfterHours <= c.Sweep.AlertAfterHours {
		errs = append(errs, "sweep.close_after_hours must exceed sweep.alert_after_hours")
	}
	if c.Sweep.MaxAlerts < 1 {
		errs = append(errs, "sweep.max_alerts must be at least 1")
	}
	for i, u := range c.Users {
		if u.ID == "" {
			errs = append(errs, fmt.Sprintf("users[%d].id is required", i))
		}
		for j, m := range u.Memberships {
			if m.Project == "" {
				errs = append(errs, fmt.Sprintf("users[%d].memberships[%d].project is required", i, j))
			}
			switch m.Role {
			case "developer", "qa", "team_leader":
			default:
				errs = append(errs, fmt.Sprintf("users[%d].memberships[%d].role %q is not one of developer, qa, team_leader", i, j, m.Role))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
