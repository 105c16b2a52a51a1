package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	DatabaseURL string

	JWTAccessSecret  []byte
	JWTRefreshSecret []byte
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	AccessCookieTTL  time.Duration
	RefreshCookieTTL time.Duration
	CookieSecure     bool

	Storage StorageConfig
	Upload  UploadConfig

	KafkaBrokers []string

	ESURL          string
	ESUser         string
	ESPassword     string
	ESUploadsIndex string
}

const (
	StorageMinio  = "minio"
	StorageMemory = "memory"
)

type StorageConfig struct {
	Driver        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

type UploadConfig struct {
	URLTTL   time.Duration
	Timeout  time.Duration
	Retries  int
	MaxBytes int64
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}
	return FromEnv()
}

func FromEnv() Config {
	accessTTL := EnvDurationDefault("JWT_ACCESS_TTL", 15*time.Minute)
	refreshTTL := EnvDurationDefault("JWT_REFRESH_TTL", 7*24*time.Hour)

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "learnhub"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret:  []byte(os.Getenv("JWT_SECRET")),
		JWTRefreshSecret: []byte(os.Getenv("JWT_REFRESH_SECRET")),
		AccessTTL:        accessTTL,
		RefreshTTL:       refreshTTL,
		AccessCookieTTL:  EnvDurationDefault("ACCESS_COOKIE_TTL", accessTTL),
		RefreshCookieTTL: EnvDurationDefault("REFRESH_COOKIE_TTL", refreshTTL),
		CookieSecure:     EnvBoolDefault("COOKIE_SECURE", true),

		Storage: StorageConfig{
			Driver:        EnvDefault("STORAGE_DRIVER", StorageMinio),
			Endpoint:      os.Getenv("S3_ENDPOINT"),
			AccessKey:     os.Getenv("S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("S3_SECRET_KEY"),
			Bucket:        EnvDefault("S3_BUCKET", "uploads"),
			PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		},
		Upload: UploadConfig{
			URLTTL:   EnvDurationDefault("UPLOAD_URL_TTL", 7*24*time.Hour),
			Timeout:  EnvDurationDefault("UPLOAD_TIMEOUT", 30*time.Second),
			Retries:  EnvIntDefault("UPLOAD_RETRIES", 0),
			MaxBytes: int64(EnvIntDefault("UPLOAD_MAX_BYTES", 20<<20)),
		},

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		ESURL:          os.Getenv("ES_URL"),
		ESUser:         os.Getenv("ES_USER"),
		ESPassword:     os.Getenv("ES_PASSWORD"),
		ESUploadsIndex: EnvDefault("ES_UPLOADS_INDEX", "uploads"),
	}
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if len(c.JWTAccessSecret) == 0 {
		errs = append(errs, errors.New("missing required env JWT_SECRET"))
	}
	if len(c.JWTRefreshSecret) == 0 {
		errs = append(errs, errors.New("missing required env JWT_REFRESH_SECRET"))
	}
	if len(c.JWTAccessSecret) > 0 && bytes.Equal(c.JWTAccessSecret, c.JWTRefreshSecret) {
		errs = append(errs, errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing required env DATABASE_URL"))
	}
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageMinio:
		if c.Storage.Endpoint == "" {
			errs = append(errs, errors.New("missing required env S3_ENDPOINT"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// EnvDurationDefault accepts Go durations ("15m") or plain seconds ("900").
func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
