package config

import (
	"strings"
	"time"

	"github.com/darshan-hindocha/plexe-technical/internal/platform/logger"
)

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	CORSOrigins     []string
}

type DBConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	// DSN is the sqlite file path or postgres connection string.
	DSN string
}

type StorageConfig struct {
	// Backend is "local" or "minio".
	Backend string

	// Local backend.
	LocalDir string

	// MinIO backend.
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Config struct {
	Env     string
	HTTP    HTTPConfig
	DB      DBConfig
	Storage StorageConfig
}

// Load reads configuration from the environment, falling back to development
// defaults (sqlite file, local artifact directory).
func Load(log *logger.Logger) *Config {
	cfg := &Config{
		Env: GetEnv("LOG_MODE", "development", log),
		HTTP: HTTPConfig{
			Addr:            GetEnv("HTTP_ADDR", ":8000", log),
			ShutdownTimeout: time.Duration(GetEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 15, log)) * time.Second,
			MaxUploadBytes:  int64(GetEnvAsInt("MAX_UPLOAD_MB", 100, log)) << 20,
			CORSOrigins:     splitAndTrim(GetEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173", log)),
		},
		DB: DBConfig{
			Driver: GetEnv("DB_DRIVER", "sqlite", log),
			DSN:    GetEnv("DB_DSN", "./storage/registry.db", log),
		},
		Storage: StorageConfig{
			Backend:   GetEnv("STORAGE_BACKEND", "local", log),
			LocalDir:  GetEnv("STORAGE_LOCAL_DIR", "./storage/models", log),
			Endpoint:  GetEnv("MINIO_ENDPOINT", "localhost:9000", log),
			AccessKey: GetEnv("MINIO_ACCESS_KEY", "minioadmin", log),
			SecretKey: GetEnv("MINIO_SECRET_KEY", "minioadmin", log),
			Bucket:    GetEnv("MINIO_BUCKET", "models", log),
			UseSSL:    GetEnvAsBool("MINIO_USE_SSL", false, log),
		},
	}

	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	return cfg
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
