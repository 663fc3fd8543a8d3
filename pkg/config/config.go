package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Env         string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

// StorageConfig selects the image store driver. "local" writes under
// MediaDir and serves files from MediaURL; "s3" and "gcs" push to the
// configured bucket.
type StorageConfig struct {
	Driver   string
	MediaDir string
	MediaURL string

	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string

	GCSBucket          string
	GCSCredentialsFile string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

// splitList parses a comma-separated env value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("SERVER_CORS_ORIGINS", "")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "recipebox")
	v.SetDefault("DATABASE_PASSWORD", "recipebox_secret")
	v.SetDefault("DATABASE_NAME", "recipebox")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("STORAGE_MEDIA_DIR", "./media")
	v.SetDefault("STORAGE_MEDIA_URL", "/media")
	v.SetDefault("STORAGE_S3_REGION", "us-east-1")
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host:        v.GetString("SERVER_HOST"),
			Port:        v.GetInt("SERVER_PORT"),
			Env:         v.GetString("SERVER_ENV"),
			CORSOrigins: splitList(v.GetString("SERVER_CORS_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		Storage: StorageConfig{
			Driver:             v.GetString("STORAGE_DRIVER"),
			MediaDir:           v.GetString("STORAGE_MEDIA_DIR"),
			MediaURL:           v.GetString("STORAGE_MEDIA_URL"),
			S3Bucket:           v.GetString("STORAGE_S3_BUCKET"),
			S3Region:           v.GetString("STORAGE_S3_REGION"),
			S3AccessKey:        v.GetString("STORAGE_S3_ACCESS_KEY"),
			S3SecretKey:        v.GetString("STORAGE_S3_SECRET_KEY"),
			GCSBucket:          v.GetString("STORAGE_GCS_BUCKET"),
			GCSCredentialsFile: v.GetString("STORAGE_GCS_CREDENTIALS_FILE"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	return cfg, nil
}
