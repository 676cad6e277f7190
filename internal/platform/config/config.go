// Package config loads the service configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Auth      AuthConfig      `koanf:"auth"`
	Cache     CacheConfig     `koanf:"cache"`
	Storage   StorageConfig   `koanf:"storage"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig selects the SQL driver. When DSN is empty it is built from
// the individual connection fields (see db.BuildDSN).
type DatabaseConfig struct {
	Driver         string        `koanf:"driver"`
	DSN            string        `koanf:"dsn"`
	Host           string        `koanf:"host"`
	Port           string        `koanf:"port"`
	User           string        `koanf:"user"`
	Password       string        `koanf:"password"`
	Name           string        `koanf:"name"`
	InstanceName   string        `koanf:"instance_name"`
	SQLitePath     string        `koanf:"sqlite_path"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	RunMigrations  bool          `koanf:"run_migrations"`
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type AuthConfig struct {
	JWTSecret   string        `koanf:"jwt_secret"`
	TokenTTL    time.Duration `koanf:"token_ttl"`
	BcryptCost  int           `koanf:"bcrypt_cost"`
	AdminEmails []string      `koanf:"admin_emails"`
}

type CacheConfig struct {
	TTL       time.Duration `koanf:"ttl"`
	Namespace string        `koanf:"namespace"`
}

type StorageConfig struct {
	Driver         string   `koanf:"driver"`
	LocalDir       string   `koanf:"local_dir"`
	PublicPrefix   string   `koanf:"public_prefix"`
	MaxUploadBytes int64    `koanf:"max_upload_bytes"`
	S3             S3Config `koanf:"s3"`
}

type S3Config struct {
	Bucket    string        `koanf:"bucket"`
	Region    string        `koanf:"region"`
	Endpoint  string        `koanf:"endpoint"`
	AccessKey string        `koanf:"access_key"`
	SecretKey string        `koanf:"secret_key"`
	PublicURL string        `koanf:"public_url"`
	Timeout   time.Duration `koanf:"timeout"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
	FailOpen bool          `koanf:"fail_open"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load builds a Config. configPath may be empty, in which case only defaults
// and environment variables are used.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "scholarly-library",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "60s",
		"server.shutdown_timeout": "15s",

		"database.driver":          "sqlite",
		"database.sqlite_path":     "./library.db",
		"database.connect_timeout": "60s",
		"database.run_migrations":  true,

		"redis.enabled": false,
		"redis.host":    "localhost",
		"redis.port":    "6379",
		"redis.db":      0,

		"auth.token_ttl":   "24h",
		"auth.bcrypt_cost": 10,

		"cache.ttl":       "5m",
		"cache.namespace": "papers",

		"storage.driver":           "local",
		"storage.local_dir":        "./uploads",
		"storage.public_prefix":    "/uploads",
		"storage.max_upload_bytes": 10 << 20,
		"storage.s3.region":        "us-east-1",
		"storage.s3.timeout":       "30s",

		"rate_limit.requests":  20,
		"rate_limit.window":    "1m",
		"rate_limit.burst":     5,
		"rate_limit.fail_open": true,

		"cors.allowed_origins": []string{"http://localhost:3000"},

		"log.level":  "info",
		"log.format": "json",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}
	return nil
}

var envKeyMap = map[string]string{
	"ENVIRONMENT":              "app.environment",
	"HOST":                     "server.host",
	"PORT":                     "server.port",
	"DATABASE_DRIVER":          "database.driver",
	"DATABASE_DSN":             "database.dsn",
	"DB_HOST":                  "database.host",
	"DB_PORT":                  "database.port",
	"DB_USER":                  "database.user",
	"DB_PASSWORD":              "database.password",
	"DB_NAME":                  "database.name",
	"INSTANCE_CONNECTION_NAME": "database.instance_name",
	"SQLITE_PATH":              "database.sqlite_path",
	"RUN_MIGRATIONS":           "database.run_migrations",
	"REDIS_ENABLED":            "redis.enabled",
	"REDIS_HOST":               "redis.host",
	"REDIS_PORT":               "redis.port",
	"REDIS_PASSWORD":           "redis.password",
	"JWT_SECRET":               "auth.jwt_secret",
	"JWT_TTL":                  "auth.token_ttl",
	"BCRYPT_COST":              "auth.bcrypt_cost",
	"CACHE_TTL":                "cache.ttl",
	"STORAGE_DRIVER":           "storage.driver",
	"UPLOAD_DIR":               "storage.local_dir",
	"MAX_UPLOAD_BYTES":         "storage.max_upload_bytes",
	"S3_BUCKET":                "storage.s3.bucket",
	"S3_REGION":                "storage.s3.region",
	"S3_ENDPOINT":              "storage.s3.endpoint",
	"S3_ACCESS_KEY":            "storage.s3.access_key",
	"S3_SECRET_KEY":            "storage.s3.secret_key",
	"S3_PUBLIC_URL":            "storage.s3.public_url",
	"RATE_LIMIT_REQUESTS":      "rate_limit.requests",
	"RATE_LIMIT_WINDOW":        "rate_limit.window",
	"LOG_LEVEL":                "log.level",
	"LOG_FORMAT":               "log.format",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Storage.Driver {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local driver")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}

	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("storage.max_upload_bytes must be positive")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}

	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.requests and rate_limit.window must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
