package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Object store and ledger backend names.
const (
	BackendDrive    = "drive"
	BackendMinIO    = "minio"
	BackendGitHub   = "github"
	BackendGCS      = "gcs"
	BackendS3       = "s3"
	BackendMemory   = "memory"
	BackendSheets   = "sheets"
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
)

// Config aggregates runtime configuration for the survey intake service.
type Config struct {
	Server      ServerConfig
	Postgres    PostgresConfig
	MinIO       MinIOConfig
	Google      GoogleConfig
	GitHub      GitHubConfig
	GCS         GCSConfig
	S3          S3Config
	ObjectStore ObjectStoreConfig
	Ledger      LedgerConfig
	Pipeline    PipelineConfig
	Auth        AuthConfig
	Catalog     CatalogConfig
	Metrics     MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// MaxUploadBytes caps a multipart submission body.
	MaxUploadBytes int64
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	// MaxConns caps the ledger pool.
	MaxConns       int32
	ConnectTimeout time.Duration
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	// PresignTTL bounds media redirect links.
	PresignTTL time.Duration
}

// GoogleConfig covers Drive uploads, the Sheets ledger and Cloud Storage credentials.
type GoogleConfig struct {
	CredentialsFile string
	DriveFolderID   string
	ShareWithLink   bool
	SpreadsheetID   string
}

// GitHubConfig locates the repository used as a versioned blob store.
type GitHubConfig struct {
	Token       string
	BaseURL     string
	Owner       string
	Repo        string
	Branch      string
	Prefix      string
	AuthorName  string
	AuthorEmail string
}

// GCSConfig names the Cloud Storage bucket.
type GCSConfig struct {
	Bucket string
}

// S3Config carries S3 or S3-compatible connection details.
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// ObjectStoreConfig selects the media backend and its retry budget.
type ObjectStoreConfig struct {
	Backend       string
	PublicBaseURL string
	RetryAttempts int
	RetryInterval time.Duration
}

// LedgerConfig selects the ledger backend. BlobBackend and Prefix apply to the csv backend.
type LedgerConfig struct {
	Backend     string
	BlobBackend string
	Prefix      string
}

// PipelineConfig tunes media stamping and upload.
type PipelineConfig struct {
	Timezone          string
	FontPath          string
	JPEGQuality       int
	UploadConcurrency int
}

// Location resolves the reference timezone.
func (p PipelineConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenTTL    time.Duration
	BcryptCost        int
}

// CatalogConfig points at the staff and network catalog.
type CatalogConfig struct {
	Path string
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:           getString("STOPSURVEY_API_HOST", "0.0.0.0"),
			Port:           getInt("STOPSURVEY_API_PORT", 8080),
			ReadTimeout:    getDuration("STOPSURVEY_API_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:   getDuration("STOPSURVEY_API_WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:    getDuration("STOPSURVEY_API_IDLE_TIMEOUT", 60*time.Second),
			MaxUploadBytes: int64(getInt("STOPSURVEY_API_MAX_UPLOAD_MB", 64)) << 20,
		},
		Postgres: PostgresConfig{
			Host:           getString("POSTGRES_HOST", "localhost"),
			Port:           getInt("POSTGRES_PORT", 5432),
			User:           getString("POSTGRES_USER", "stopsurvey"),
			Password:       getString("POSTGRES_PASSWORD", "change-me"),
			Database:       getString("POSTGRES_DB", "stopsurvey"),
			SSLMode:        strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
			MaxConns:       int32(getInt("POSTGRES_MAX_CONNS", 4)),
			ConnectTimeout: getDuration("POSTGRES_CONNECT_TIMEOUT", 5*time.Second),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "stopsurvey"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			Bucket:          getString("MINIO_BUCKET", "survey-media"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
			PresignTTL:      getDuration("MINIO_PRESIGN_TTL", 15*time.Minute),
		},
		Google: GoogleConfig{
			CredentialsFile: getString("GOOGLE_APPLICATION_CREDENTIALS", ""),
			DriveFolderID:   getString("STOPSURVEY_DRIVE_FOLDER_ID", ""),
			ShareWithLink:   getBool("STOPSURVEY_DRIVE_SHARE_WITH_LINK", true),
			SpreadsheetID:   getString("STOPSURVEY_SPREADSHEET_ID", ""),
		},
		GitHub: GitHubConfig{
			Token:       getString("GITHUB_TOKEN", ""),
			BaseURL:     getString("GITHUB_API_URL", ""),
			Owner:       getString("STOPSURVEY_GITHUB_OWNER", ""),
			Repo:        getString("STOPSURVEY_GITHUB_REPO", ""),
			Branch:      getString("STOPSURVEY_GITHUB_BRANCH", ""),
			Prefix:      getString("STOPSURVEY_GITHUB_PREFIX", ""),
			AuthorName:  getString("STOPSURVEY_GITHUB_AUTHOR_NAME", ""),
			AuthorEmail: getString("STOPSURVEY_GITHUB_AUTHOR_EMAIL", ""),
		},
		GCS: GCSConfig{
			Bucket: getString("STOPSURVEY_GCS_BUCKET", ""),
		},
		S3: S3Config{
			Endpoint:        getString("STOPSURVEY_S3_ENDPOINT", ""),
			Region:          getString("AWS_REGION", "us-east-1"),
			Bucket:          getString("STOPSURVEY_S3_BUCKET", ""),
			AccessKeyID:     getString("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getString("AWS_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getBool("STOPSURVEY_S3_PATH_STYLE", false),
		},
		ObjectStore: ObjectStoreConfig{
			Backend:       strings.ToLower(getString("STOPSURVEY_STORE_BACKEND", BackendMinIO)),
			PublicBaseURL: getString("STOPSURVEY_PUBLIC_BASE_URL", "http://localhost:8080"),
			RetryAttempts: getInt("STOPSURVEY_STORE_RETRY_ATTEMPTS", 3),
			RetryInterval: getDuration("STOPSURVEY_STORE_RETRY_INTERVAL", 200*time.Millisecond),
		},
		Ledger: LedgerConfig{
			Backend:     strings.ToLower(getString("STOPSURVEY_LEDGER_BACKEND", BackendPostgres)),
			BlobBackend: strings.ToLower(getString("STOPSURVEY_LEDGER_BLOB_BACKEND", BackendMemory)),
			Prefix:      getString("STOPSURVEY_LEDGER_PREFIX", "ledgers"),
		},
		Pipeline: PipelineConfig{
			Timezone:          getString("STOPSURVEY_TIMEZONE", "Asia/Kolkata"),
			FontPath:          getString("STOPSURVEY_FONT_PATH", ""),
			JPEGQuality:       getInt("STOPSURVEY_JPEG_QUALITY", 95),
			UploadConcurrency: getInt("STOPSURVEY_UPLOAD_CONCURRENCY", 1),
		},
		Auth: loadAuthConfig(),
		Catalog: CatalogConfig{
			Path: getString("STOPSURVEY_CATALOG_PATH", "catalog.yaml"),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("STOPSURVEY_METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.ObjectStore.Backend {
	case BackendDrive, BackendMinIO, BackendGitHub, BackendGCS, BackendS3, BackendMemory:
	default:
		return fmt.Errorf("unknown object store backend %q", c.ObjectStore.Backend)
	}

	switch c.Ledger.Backend {
	case BackendSheets, BackendPostgres:
	case BackendCSV:
		switch c.Ledger.BlobBackend {
		case BackendGitHub, BackendGCS, BackendS3, BackendMemory:
		default:
			return fmt.Errorf("csv ledger needs a versioned blob backend, got %q", c.Ledger.BlobBackend)
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}

	if c.ObjectStore.RetryAttempts < 1 {
		return fmt.Errorf("store retry attempts must be at least 1, got %d", c.ObjectStore.RetryAttempts)
	}
	if _, err := c.Pipeline.Location(); err != nil {
		return err
	}
	return nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func loadAuthConfig() AuthConfig {
	cost := getInt("STOPSURVEY_AUTH_BCRYPT_COST", 12)
	if cost < 4 || cost > 31 {
		cost = 12
	}

	return AuthConfig{
		AccessTokenSecret: getString("STOPSURVEY_JWT_SECRET", "change-me-to-a-32-byte-secret"),
		AccessTokenTTL:    getDuration("STOPSURVEY_AUTH_ACCESS_TOKEN_TTL", 12*time.Hour),
		BcryptCost:        cost,
	}
}
