// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	MinPasswordLen int           `yaml:"min_password_len"`
	BcryptCost     int           `yaml:"bcrypt_cost"`
}

type TrialConfig struct {
	Days int `yaml:"days"`
}

type ModuleConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	SponsorLink string `yaml:"sponsor_link"`
	Color       string `yaml:"color"`
	CodePrefix  string `yaml:"code_prefix"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"` // file|memory|sqlite|postgres|redis
	Dir         string `yaml:"dir"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresURL string `yaml:"postgres_url"`
	KeyPrefix   string `yaml:"key_prefix"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RateLimitConfig struct {
	LoginPerWindow  int           `yaml:"login_per_window"`
	RedeemPerWindow int           `yaml:"redeem_per_window"`
	Window          time.Duration `yaml:"window"`
}

type AdminConfig struct {
	APIKey string `yaml:"api_key"`
}

type SchedulerConfig struct {
	StatsInterval time.Duration `yaml:"stats_interval"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Trial     TrialConfig     `yaml:"trial"`
	Modules   []ModuleConfig  `yaml:"modules"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Admin     AdminConfig     `yaml:"admin"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// DefaultModules mirrors the stations served by the dashboard.
var DefaultModules = []ModuleConfig{
	{ID: "nasdaq", Name: "Nasdaq Weather Station", SponsorLink: "https://www.bilibili.com/", Color: "indigo", CodePrefix: "NAS"},
	{ID: "sp500", Name: "S&P 500 Weather Station", SponsorLink: "https://fred.stlouisfed.org/series/INDPRO", Color: "blue", CodePrefix: "SP5"},
	{ID: "gold", Name: "Gold Macro Weather Station", SponsorLink: "https://im.qq.com/index/#/", Color: "yellow", CodePrefix: "GLD"},
}

// LoadConfig reads the YAML file at path, applies .env and environment
// overrides, fills defaults and validates. A missing file is not an error;
// the service can run on defaults plus environment.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// .env is optional
	_ = godotenv.Load()
	applyEnv(&cfg)

	cfg.Runtime.Dev = dev
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		cfg.Admin.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.PostgresURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 5000
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 10 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 7 * 24 * time.Hour
	}
	if cfg.Auth.MinPasswordLen <= 0 {
		cfg.Auth.MinPasswordLen = 6
	}
	if cfg.Trial.Days <= 0 {
		cfg.Trial.Days = 7
	}
	if len(cfg.Modules) == 0 {
		cfg.Modules = append([]ModuleConfig(nil), DefaultModules...)
	}
	for i := range cfg.Modules {
		cfg.Modules[i].ID = strings.ToLower(strings.TrimSpace(cfg.Modules[i].ID))
		if cfg.Modules[i].CodePrefix == "" && len(cfg.Modules[i].ID) >= 3 {
			cfg.Modules[i].CodePrefix = strings.ToUpper(cfg.Modules[i].ID[:3])
		}
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "file"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/entitlements.db"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "entitlements"
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.Scheduler.StatsInterval <= 0 {
		cfg.Scheduler.StatsInterval = time.Minute
	}
}

// Validate performs minimal sanity checks on a defaulted config.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" && !c.Runtime.Dev {
		return errors.New("auth.jwt_secret is required (or set JWT_SECRET)")
	}
	seen := make(map[string]bool, len(c.Modules))
	for _, m := range c.Modules {
		if m.ID == "" {
			return errors.New("modules: id is required")
		}
		if seen[m.ID] {
			return fmt.Errorf("modules: duplicate id %q", m.ID)
		}
		seen[m.ID] = true
	}
	switch c.Storage.Driver {
	case "file", "memory", "sqlite":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return errors.New("storage.postgres_url is required for the postgres driver")
		}
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for the redis driver")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	return nil
}
