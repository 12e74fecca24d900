package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Staging   StagingConfig
	Cache     CacheConfig
	Remote    RemoteConfig
	Inventory InventoryConfig
	Events    EventsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"catalogo-sync-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	LoginKey    string `envconfig:"LOGIN_KEY" default:""` // Operator login key for mutating routes
}

// StagingConfig holds staging-log and image blob store settings.
type StagingConfig struct {
	DBType string `envconfig:"STAGING_DB_TYPE" default:"sqlite"` // sqlite, postgres, or mysql
	Path   string `envconfig:"STAGING_DB_PATH" default:"./data/staging.db"`

	// PostgreSQL settings
	Host     string `envconfig:"STAGING_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"STAGING_DB_PORT" default:"5432"`
	Name     string `envconfig:"STAGING_DB_NAME" default:"catalogo"`
	User     string `envconfig:"STAGING_DB_USER" default:"postgres"`
	Password string `envconfig:"STAGING_DB_PASS" default:""`
	SSLMode  string `envconfig:"STAGING_DB_SSLMODE" default:"disable"`

	// MySQL settings
	MySQLPort int `envconfig:"STAGING_MYSQL_PORT" default:"3306"`

	// BlobDir is where staged image payloads are kept until sync.
	BlobDir string `envconfig:"STAGING_BLOB_DIR" default:"./data/blobs"`
}

// CacheConfig holds inventory cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"`
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"10m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// RemoteConfig holds settings for the version-controlled catalog store.
type RemoteConfig struct {
	BaseURL      string        `envconfig:"REMOTE_BASE_URL" default:"https://api.github.com"`
	Repo         string        `envconfig:"REMOTE_REPO" default:""` // owner/name
	Branch       string        `envconfig:"REMOTE_BRANCH" default:"main"`
	Token        string        `envconfig:"REMOTE_TOKEN" default:""`
	DocumentPath string        `envconfig:"REMOTE_DOCUMENT_PATH" default:"data/catalog.json"`
	Timeout      time.Duration `envconfig:"REMOTE_TIMEOUT" default:"15s"`
	CommitAuthor string        `envconfig:"REMOTE_COMMIT_AUTHOR" default:"catalogo-sync"`
	CommitEmail  string        `envconfig:"REMOTE_COMMIT_EMAIL" default:"sync@catalogo.local"`
}

// InventoryConfig holds settings for the inventory service client.
type InventoryConfig struct {
	BaseURL     string        `envconfig:"INVENTORY_BASE_URL" default:"http://localhost:9090"`
	Timeout     time.Duration `envconfig:"INVENTORY_TIMEOUT" default:"15s"`
	SoftTimeout time.Duration `envconfig:"INVENTORY_SOFT_TIMEOUT" default:"3s"`
	MaxRetries  int           `envconfig:"INVENTORY_MAX_RETRIES" default:"2"`
	BackoffBase time.Duration `envconfig:"INVENTORY_BACKOFF_BASE" default:"200ms"`
	BatchSize   int           `envconfig:"INVENTORY_BATCH_SIZE" default:"10"`
}

// EventsConfig holds lifecycle event publishing settings.
type EventsConfig struct {
	Type    string   `envconfig:"EVENTS_TYPE" default:"log"` // log or kafka
	Brokers []string `envconfig:"EVENTS_KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"EVENTS_KAFKA_TOPIC" default:"catalog-lifecycle"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StagingConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Name, s.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (s *StagingConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.User, s.Password, s.Host, s.MySQLPort, s.Name)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
