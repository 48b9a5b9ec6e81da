package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/cardplanner/internal/domain"
	"github.com/alejandrodnm/cardplanner/internal/ips"
	"github.com/alejandrodnm/cardplanner/internal/optimizer"
)

// Config es la configuración completa del planner.
type Config struct {
	Budget      *domain.BudgetConfig `yaml:"budget"` // se usa cuando el snapshot no trae budget
	Optimizer   optimizer.Options    `yaml:"optimizer"`
	IPS         ips.Config           `yaml:"ips"`
	Seasonality SeasonalityConfig    `yaml:"seasonality"`
	Marketplace MarketplaceConfig    `yaml:"marketplace"`
	Storage     StorageConfig        `yaml:"storage"`
	Cache       CacheConfig          `yaml:"cache"`
	Server      ServerConfig         `yaml:"server"`
	Log         LogConfig            `yaml:"log"`
}

// SeasonalityConfig apunta al calendario de eventos.
type SeasonalityConfig struct {
	Path  string `yaml:"path"`  // YAML o TOML; vacío = factor 1.0 siempre
	Watch bool   `yaml:"watch"` // recarga al cambiar el archivo en modo -serve
}

// SourceConfig describe un marketplace.
type SourceConfig struct {
	Name           string  `yaml:"name"`
	Kind           string  `yaml:"kind"` // http | file
	BaseURL        string  `yaml:"base_url"`
	Path           string  `yaml:"path"`
	RatePerSec     float64 `yaml:"rate_per_sec"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Timeout devuelve el timeout HTTP como time.Duration.
func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// MarketplaceConfig controla el agregador de ofertas.
type MarketplaceConfig struct {
	Sources         []SourceConfig `yaml:"sources"`
	Parallelism     int            `yaml:"parallelism"`
	CacheTTLMinutes int            `yaml:"cache_ttl_minutes"`
}

// CacheTTL devuelve el TTL del cache de ofertas como time.Duration.
func (m MarketplaceConfig) CacheTTL() time.Duration {
	return time.Duration(m.CacheTTLMinutes) * time.Minute
}

// StorageConfig controla dónde se registran los runs.
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`    // ruta SQLite, ":memory:", o URL de postgres
}

// CacheConfig elige el backend del cache de ofertas.
type CacheConfig struct {
	Driver   string `yaml:"driver"` // memory | redis | none
	RedisURL string `yaml:"redis_url"`
}

// ServerConfig controla la API HTTP.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben el YAML para las keys que cubren.
func Load(path string) (*Config, error) {
	// cargar .env si existe (sin error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodifica el YAML sobre los defaults y aplica los overrides de entorno.
func Parse(data []byte) (*Config, error) {
	cfg := Config{
		Optimizer: optimizer.DefaultOptions(),
		IPS:       ips.DefaultConfig(),
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
		cfg.Cache.Driver = "redis"
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SEASONALITY_PATH"); v != "" {
		cfg.Seasonality.Path = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Budget != nil && cfg.Budget.Mode == "" {
		cfg.Budget.Mode = domain.BudgetStrict
	}
	for i := range cfg.Marketplace.Sources {
		s := &cfg.Marketplace.Sources[i]
		if s.Kind == "" {
			s.Kind = "http"
			if s.Path != "" {
				s.Kind = "file"
			}
		}
		if s.RatePerSec <= 0 {
			s.RatePerSec = 10
		}
		if s.TimeoutSeconds <= 0 {
			s.TimeoutSeconds = 10
		}
	}
	if cfg.Marketplace.Parallelism <= 0 {
		cfg.Marketplace.Parallelism = 4
	}
	if cfg.Marketplace.CacheTTLMinutes <= 0 {
		cfg.Marketplace.CacheTTLMinutes = 15
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "cardplanner.db"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
		if strings.HasPrefix(cfg.Storage.DSN, "postgres://") || strings.HasPrefix(cfg.Storage.DSN, "postgresql://") {
			cfg.Storage.Driver = "postgres"
		}
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = "memory"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver: unknown %q", c.Storage.Driver)
	}
	switch c.Cache.Driver {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redis_url is required for the redis driver")
		}
	default:
		return fmt.Errorf("cache.driver: unknown %q", c.Cache.Driver)
	}
	for _, s := range c.Marketplace.Sources {
		if s.Name == "" {
			return fmt.Errorf("marketplace source without name")
		}
		switch s.Kind {
		case "http":
			if s.BaseURL == "" {
				return fmt.Errorf("marketplace source %s: base_url is required", s.Name)
			}
		case "file":
			if s.Path == "" {
				return fmt.Errorf("marketplace source %s: path is required", s.Name)
			}
		default:
			return fmt.Errorf("marketplace source %s: unknown kind %q", s.Name, s.Kind)
		}
	}
	if c.Budget != nil {
		if c.Budget.MaxTotalSpend < 0 {
			return fmt.Errorf("budget.max_total_spend must not be negative")
		}
		if c.Budget.Mode != domain.BudgetStrict && c.Budget.Mode != domain.BudgetSoft {
			return fmt.Errorf("budget.budget_mode: unknown %q", c.Budget.Mode)
		}
	}
	return nil
}
