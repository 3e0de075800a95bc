package config

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Prefix is prepended to every environment variable name.
const Prefix = "COWORKING_"

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort       int           `env:"HTTP_PORT" envDefault:"8080"`
	JWTSecret      string        `env:"JWT_SECRET,required,notEmpty"`
	JWTTTL         time.Duration `env:"JWT_TTL" envDefault:"720h"`
	StoreTimeout   time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	CORSOrigins    []string      `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
	MetricsEnabled bool          `env:"METRICS_ENABLED" envDefault:"true"`

	Storage StorageConfig
	Cache   CacheConfig `envPrefix:"CACHE_"`
	NATS    NATSConfig  `envPrefix:"NATS_"`
	Log     LogConfig   `envPrefix:"LOG_"`
}

// StorageConfig selects and locates the backing store.
type StorageConfig struct {
	Driver    string `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	SQLiteDSN string `env:"SQLITE_DSN" envDefault:"file:coworking.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"`
	Postgres  PostgresConfig
}

// DSN returns the data source name for the selected driver.
func (s StorageConfig) DSN() string {
	if s.Driver == DriverPostgres {
		return s.Postgres.DSN()
	}
	return s.SQLiteDSN
}

type PostgresConfig struct {
	URL string `env:"POSTGRES_URL"`

	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_NAME" envDefault:"coworking"`
	SSL      string `env:"POSTGRES_SSL" envDefault:"disable"`
}

// DSN prefers URL and otherwise assembles a postgresql:// URL from the parts.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSL,
	)
}

// CacheConfig controls the response cache and its per-route TTLs.
type CacheConfig struct {
	Enabled     bool          `env:"ENABLED" envDefault:"true"`
	Size        int           `env:"SIZE" envDefault:"512"`
	RoomListTTL time.Duration `env:"ROOM_LIST_TTL" envDefault:"10m"`
	RoomTTL     time.Duration `env:"ROOM_TTL" envDefault:"5m"`
	BookingTTL  time.Duration `env:"BOOKING_TTL" envDefault:"30s"`
}

// MaxTTL returns the longest configured TTL.
func (c CacheConfig) MaxTTL() time.Duration {
	longest := c.RoomListTTL
	for _, ttl := range []time.Duration{c.RoomTTL, c.BookingTTL} {
		if ttl > longest {
			longest = ttl
		}
	}
	return longest
}

// NATSConfig enables the optional NATS event sink when URL is set.
type NATSConfig struct {
	URL           string `env:"URL"`
	SubjectPrefix string `env:"SUBJECT_PREFIX" envDefault:"coworking"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  slog.Level `env:"LEVEL" envDefault:"info"`
	Format string     `env:"FORMAT" envDefault:"json"`
}

// Load parses configuration values from the current process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses configuration values from environ instead of the process
// environment. Keys include the COWORKING_ prefix.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every environment value outside its allowed range.
func (c Config) Validate() error {
	invalid := make([]string, 0, 4)

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		invalid = append(invalid, Prefix+"HTTP_PORT")
	}
	if c.JWTTTL <= 0 {
		invalid = append(invalid, Prefix+"JWT_TTL")
	}
	if c.StoreTimeout <= 0 {
		invalid = append(invalid, Prefix+"STORE_TIMEOUT")
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		invalid = append(invalid, Prefix+"STORAGE_DRIVER")
	}
	if c.Storage.Driver == DriverSQLite && strings.TrimSpace(c.Storage.SQLiteDSN) == "" {
		invalid = append(invalid, Prefix+"SQLITE_DSN")
	}
	if c.Cache.Size <= 0 {
		invalid = append(invalid, Prefix+"CACHE_SIZE")
	}
	for name, ttl := range map[string]time.Duration{
		"CACHE_ROOM_LIST_TTL": c.Cache.RoomListTTL,
		"CACHE_ROOM_TTL":      c.Cache.RoomTTL,
		"CACHE_BOOKING_TTL":   c.Cache.BookingTTL,
	} {
		if ttl < 0 {
			invalid = append(invalid, Prefix+name)
		}
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		invalid = append(invalid, Prefix+"LOG_FORMAT")
	}

	if len(invalid) > 0 {
		sort.Strings(invalid)
		return fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}
	return nil
}
