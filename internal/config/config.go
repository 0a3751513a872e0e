// Package config provides YAML-based configuration loading for the QC engine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, loaded from qc.yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`
	Notify   NotifyConfig   `yaml:"notify"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	QC       QCConfig       `yaml:"qc"`
	Seed     SeedConfig     `yaml:"seed"`
}

// DatabaseConfig selects the SQL backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables the Redis-backed number sequencer when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NATSConfig enables publishing QC events when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// NotifyConfig configures chat notifications.
type NotifyConfig struct {
	Slack   ChatConfig `yaml:"slack"`
	Discord ChatConfig `yaml:"discord"`
}

// ChatConfig holds credentials for a chat notifier. Empty BotToken disables it.
type ChatConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port      int    `yaml:"port"`
	RateLimit string `yaml:"rate_limit"` // ulule format, e.g. "300-M"
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// QCConfig holds the tunable thresholds of the engine.
type QCConfig struct {
	Timezone            string  `yaml:"timezone"`
	InspectorMaxPending int     `yaml:"inspector_max_pending"`
	SLAHours            int     `yaml:"sla_hours"`
	OverloadThreshold   int     `yaml:"overload_threshold"`
	QualityFailRate     float64 `yaml:"quality_fail_rate"`
	QualityMinSample    int     `yaml:"quality_min_sample"`
	AlertSchedule       string  `yaml:"alert_schedule"`
}

// SeedConfig lists reference rows written by `qc db init`.
type SeedConfig struct {
	Inspectors []SeedInspector     `yaml:"inspectors"`
	Orders     []SeedOrder         `yaml:"orders"`
	Customers  map[string][]string `yaml:"customer_requirements"`
}

// SeedInspector is an inspector row.
type SeedInspector struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// SeedOrder is a production order row.
type SeedOrder struct {
	ID           string `yaml:"id"`
	OrderNumber  string `yaml:"order_number"`
	Quantity     int    `yaml:"quantity"`
	CustomerName string `yaml:"customer_name"`
	BranchID     string `yaml:"branch_id"`
}

// Load reads a YAML config file from path and returns a validated Config.
// A .env file next to the working directory is loaded first, if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

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
	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides secrets and endpoints from the environment.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Database.Driver, "QC_DATABASE_DRIVER")
	set(&c.Database.DSN, "QC_DATABASE_DSN")
	set(&c.Redis.Addr, "QC_REDIS_ADDR")
	set(&c.Redis.Password, "QC_REDIS_PASSWORD")
	set(&c.NATS.URL, "QC_NATS_URL")
	set(&c.Notify.Slack.BotToken, "QC_SLACK_BOT_TOKEN")
	set(&c.Notify.Discord.BotToken, "QC_DISCORD_BOT_TOKEN")
	if v := getenv("QC_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// applyDefaults fills in default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "qc.db"
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "qc"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimit == "" {
		c.Server.RateLimit = "300-M"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.QC.Timezone == "" {
		c.QC.Timezone = "Local"
	}
	if c.QC.InspectorMaxPending == 0 {
		c.QC.InspectorMaxPending = 10
	}
	if c.QC.SLAHours == 0 {
		c.QC.SLAHours = 24
	}
	if c.QC.OverloadThreshold == 0 {
		c.QC.OverloadThreshold = 10
	}
	if c.QC.QualityMinSample == 0 {
		c.QC.QualityMinSample = 5
	}
	if c.QC.AlertSchedule == "" {
		c.QC.AlertSchedule = "*/15 * * * *"
	}
}

// validate checks that all fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite, mysql or postgres", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q must be console or json", c.Log.Format))
	}
	if _, err := time.LoadLocation(c.QC.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("qc.timezone %q: %v", c.QC.Timezone, err))
	}
	if c.QC.InspectorMaxPending < 0 {
		errs = append(errs, "qc.inspector_max_pending must be positive")
	}
	if c.QC.QualityFailRate < 0 || c.QC.QualityFailRate > 100 {
		errs = append(errs, "qc.quality_fail_rate must be between 0 and 100")
	}
	for i, in := range c.Seed.Inspectors {
		if in.ID == "" {
			errs = append(errs, fmt.Sprintf("seed.inspectors[%d].id is required", i))
		}
	}
	for i, o := range c.Seed.Orders {
		if o.ID == "" || o.OrderNumber == "" {
			errs = append(errs, fmt.Sprintf("seed.orders[%d] requires id and order_number", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.QC.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SLA returns the pending-inspection SLA window.
func (c *Config) SLA() time.Duration {
	return time.Duration(c.QC.SLAHours) * time.Hour
}
