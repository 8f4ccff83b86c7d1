// Package config loads storefront settings from an optional YAML file, an
// optional .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/kvstore"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"golang.org/x/text/currency"
	"gopkg.in/yaml.v3"
)

type Storage struct {
	Backend       string        `yaml:"backend"`
	Path          string        `yaml:"path"`
	Prefix        string        `yaml:"prefix"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDb"`
	RedisTTL      time.Duration `yaml:"redisTtl"`
	MongoURI      string        `yaml:"mongoUri"`
	MongoDBName   string        `yaml:"mongoDbName"`
}

type Config struct {
	APIBaseURL             string        `yaml:"apiBaseUrl"`
	Storage                Storage       `yaml:"storage"`
	HTTPPort               string        `yaml:"httpPort"`
	FEURL                  string        `yaml:"feUrl"`
	RequestTimeout         time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout        time.Duration `yaml:"shutdownTimeout"`
	JWTSecret              string        `yaml:"jwtSecret"`
	ClearInvalidCredential bool          `yaml:"clearInvalidCredential"`
	Currency               string        `yaml:"currency"`
	KafkaBrokers           []string      `yaml:"kafkaBrokers"`
	KafkaTopic             string        `yaml:"kafkaTopic"`
}

func Default() *Config {
	return &Config{
		APIBaseURL: api.DefaultBaseURL,
		Storage: Storage{
			Backend:     kvstore.BackendSQLite,
			Path:        defaultStoragePath(),
			Prefix:      "storefront",
			RedisAddr:   "localhost:6379",
			MongoURI:    "mongodb://localhost:27017",
			MongoDBName: "storefront",
		},
		HTTPPort:        "3000",
		FEURL:           "http://localhost:5173",
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Currency:        "USD",
		KafkaTopic:      events.DefaultTopic,
	}
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".storefront", "storefront.db")
	}
	return filepath.Join(dir, "storefront", "storefront.db")
}

// Load reads .env (if present), then the YAML file named by STOREFRONT_CONFIG
// (if set), then applies environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("STOREFRONT_CONFIG"); path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.APIBaseURL = getEnv("API_BASE_URL", c.APIBaseURL)
	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.Path = getEnv("STORAGE_PATH", c.Storage.Path)
	c.Storage.Prefix = getEnv("STORAGE_PREFIX", c.Storage.Prefix)
	c.Storage.RedisAddr = getEnv("REDIS_ADDR", c.Storage.RedisAddr)
	c.Storage.RedisPassword = getEnv("REDIS_PASSWORD", c.Storage.RedisPassword)
	c.Storage.MongoURI = getEnv("MONGO_URI", c.Storage.MongoURI)
	c.Storage.MongoDBName = getEnv("MONGO_DB_NAME", c.Storage.MongoDBName)
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.FEURL = getEnv("FE_URL", c.FEURL)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.Currency = getEnv("CURRENCY", c.Currency)
	c.KafkaTopic = getEnv("KAFKA_TOPIC", c.KafkaTopic)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}

	var err error
	if c.Storage.RedisDB, err = getEnvInt("REDIS_DB", c.Storage.RedisDB); err != nil {
		return err
	}
	if c.Storage.RedisTTL, err = getEnvDuration("REDIS_TTL", c.Storage.RedisTTL); err != nil {
		return err
	}
	if c.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.ClearInvalidCredential, err = getEnvBool("CLEAR_INVALID_CREDENTIAL", c.ClearInvalidCredential); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case kvstore.BackendSQLite, kvstore.BackendRedis, kvstore.BackendMongo, kvstore.BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == kvstore.BackendSQLite && c.Storage.Path == "" {
		return errors.New("storage path is required for sqlite")
	}
	if c.HTTPPort == "" {
		return errors.New("http port is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if _, err := currency.ParseISO(c.Currency); err != nil {
		return fmt.Errorf("currency %q: %w", c.Currency, err)
	}
	return nil
}

func (c *Config) StorageOptions() kvstore.Options {
	return kvstore.Options{
		Backend:       c.Storage.Backend,
		Prefix:        c.Storage.Prefix,
		Path:          c.Storage.Path,
		RedisAddr:     c.Storage.RedisAddr,
		RedisPassword: c.Storage.RedisPassword,
		RedisDB:       c.Storage.RedisDB,
		RedisTTL:      c.Storage.RedisTTL,
		MongoURI:      c.Storage.MongoURI,
		MongoDBName:   c.Storage.MongoDBName,
	}
}

// CurrencyUnit falls back to USD; Validate reports a bad code.
func (c *Config) CurrencyUnit() currency.Unit {
	unit, err := currency.ParseISO(c.Currency)
	if err != nil {
		return currency.USD
	}
	return unit
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := cast.ToIntE(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := cast.ToBoolE(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
