package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vocabustudy/admin-portal/firebase"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Firebase      FirebaseConfig
	Google        GoogleConfig
	Hosting       HostingConfig
	Cache         CacheConfig
	Database      DatabaseConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	CORS          CORSConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// FirebaseConfig holds ID token verification settings
type FirebaseConfig struct {
	ProjectID    string // expected aud; also names the issuer
	CustomKey    string // PEM pinned under kid "custom-key"; disables key fetching
	UseEmulators bool
	KeysURL      string
	FetchTimeout time.Duration
	KeyCacheTTL  time.Duration
}

// GoogleConfig holds service-account credentials and API endpoints.
// Endpoints are overridable so emulators and tests can stand in for Google.
type GoogleConfig struct {
	ServiceAccountEmail string
	ServiceAccountKey   string
	TokenURL            string
	IdentityToolkitURL  string
	FirestoreURL        string
	MonitoringURL       string
	HostingURL          string
	Timeout             time.Duration
}

// HostingConfig identifies the Firebase Hosting site managed by the portal
type HostingConfig struct {
	SiteID        string
	Domain        string
	StatsCacheTTL time.Duration
}

// CacheConfig selects the shared response cache
type CacheConfig struct {
	RedisURL   string // empty selects the in-process cache
	KeyPrefix  string
	MaxEntries int
}

// DatabaseConfig holds PostgreSQL configuration for the audit trail.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuditConfig controls the asynchronous audit writer
type AuditConfig struct {
	BufferSize int
	Workers    int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// CORSConfig lists the browser origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins []string
}

var defaultAllowedOrigins = []string{
	"https://vocabustudy.org",
	"https://nightly.vocabustudy.org",
	"https://backend.vocabustudy.org",
	"https://admin.vocabustudy.org",
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 45*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Firebase: FirebaseConfig{
			ProjectID:    getEnv("GCP_PROJECT_ID", ""),
			CustomKey:    getEnv("CUSTOM_JWK", ""),
			UseEmulators: getEnvAsBool("USE_FIREBASE_EMULATORS", false),
			KeysURL:      getEnv("FIREBASE_KEYS_URL", firebase.DefaultKeysURL),
			FetchTimeout: getEnvAsDuration("KEY_FETCH_TIMEOUT", 5*time.Second),
			KeyCacheTTL:  getEnvAsDuration("KEY_CACHE_TTL", time.Hour),
		},
		Google: GoogleConfig{
			ServiceAccountEmail: getEnv("SERVICE_ACCOUNT_EMAIL", ""),
			ServiceAccountKey:   getEnv("SERVICE_ACCOUNT_KEY", ""),
			TokenURL:            getEnv("GOOGLE_TOKEN_URL", "https://www.googleapis.com/oauth2/v4/token"),
			IdentityToolkitURL:  getEnv("GOOGLE_IDENTITY_TOOLKIT_URL", "https://identitytoolkit.googleapis.com"),
			FirestoreURL:        getEnv("GOOGLE_FIRESTORE_URL", "https://firestore.googleapis.com"),
			MonitoringURL:       getEnv("GOOGLE_MONITORING_URL", "https://monitoring.googleapis.com"),
			HostingURL:          getEnv("GOOGLE_HOSTING_URL", "https://firebasehosting.googleapis.com"),
			Timeout:             getEnvAsDuration("GOOGLE_API_TIMEOUT", 30*time.Second),
		},
		Hosting: HostingConfig{
			SiteID:        getEnv("HOSTING_SITE_ID", "vocabustudyonline"),
			Domain:        getEnv("HOSTING_DOMAIN", "vocabustudy.org"),
			StatsCacheTTL: getEnvAsDuration("STATS_CACHE_TTL", 2*time.Hour),
		},
		Cache: CacheConfig{
			RedisURL:   getEnv("REDIS_URL", ""),
			KeyPrefix:  getEnv("CACHE_KEY_PREFIX", "admin-portal"),
			MaxEntries: getEnvAsInt("CACHE_MAX_ENTRIES", 256),
		},
		Database: loadDatabaseConfig(),
		Audit: AuditConfig{
			BufferSize: getEnvAsInt("AUDIT_BUFFER_SIZE", 256),
			Workers:    getEnvAsInt("AUDIT_WORKERS", 2),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Firebase.ProjectID == "" {
		return fmt.Errorf("GCP_PROJECT_ID is required")
	}

	if c.Firebase.UseEmulators && c.IsProduction() {
		return fmt.Errorf("firebase emulators cannot be used in production")
	}

	if c.Firebase.CustomKey != "" {
		if _, err := firebase.ParseCustomKey(c.Firebase.CustomKey); err != nil {
			return fmt.Errorf("CUSTOM_JWK: %w", err)
		}
	}

	if !c.Firebase.UseEmulators {
		if c.Google.ServiceAccountEmail == "" {
			return fmt.Errorf("SERVICE_ACCOUNT_EMAIL is required unless emulators are enabled")
		}
		if c.Google.ServiceAccountKey == "" {
			return fmt.Errorf("SERVICE_ACCOUNT_KEY is required unless emulators are enabled")
		}
	}

	if c.Database.Enabled() && c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Audit.Workers < 1 {
		return fmt.Errorf("audit workers must be at least 1")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Enabled reports whether an audit database has been configured
func (c *DatabaseConfig) Enabled() bool {
	return c.ConnectionString != "" || c.Host != ""
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

func loadDatabaseConfig() DatabaseConfig {
	pool := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		pool.ConnectionString = dbURL
		return pool
	}

	pool.Host = getEnv("DB_HOST", "")
	pool.Port = getEnvAsInt("DB_PORT", 5432)
	pool.User = getEnv("DB_USER", "")
	pool.Password = getEnv("DB_PASSWORD", "")
	pool.Database = getEnv("DB_NAME", "")
	pool.SSLMode = getEnv("DB_SSLMODE", "require")
	return pool
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
