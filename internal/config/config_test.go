package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("JWT_ACCESS_TTL", "")
	t.Setenv("JWT_REFRESH_TTL", "")
	t.Setenv("ACCESS_COOKIE_TTL", "")
	t.Setenv("REFRESH_COOKIE_TTL", "")
	t.Setenv("UPLOAD_TIMEOUT", "")
	t.Setenv("STORAGE_DRIVER", "")

	cfg := FromEnv()

	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, cfg.AccessTTL, cfg.AccessCookieTTL)
	assert.Equal(t, cfg.RefreshTTL, cfg.RefreshCookieTTL)
	assert.Equal(t, 30*time.Second, cfg.Upload.Timeout)
	assert.Equal(t, "minio", cfg.Storage.Driver)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("JWT_REFRESH_TTL", "3600")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("UPLOAD_RETRIES", "2")
	t.Setenv("COOKIE_SECURE", "false")

	cfg := FromEnv()

	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, time.Hour, cfg.RefreshTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2, cfg.Upload.Retries)
	assert.False(t, cfg.CookieSecure)
}

func TestValidate(t *testing.T) {
	valid := Config{
		DatabaseURL:      "postgres://localhost/db",
		JWTAccessSecret:  []byte("access"),
		JWTRefreshSecret: []byte("refresh"),
		AccessTTL:        time.Minute,
		RefreshTTL:       time.Hour,
		Storage:          StorageConfig{Driver: "memory"},
	}
	require.NoError(t, valid.Validate())

	sameSecrets := valid
	sameSecrets.JWTRefreshSecret = []byte("access")
	require.ErrorContains(t, sameSecrets.Validate(), "must differ")

	missing := valid
	missing.JWTAccessSecret = nil
	require.ErrorContains(t, missing.Validate(), "JWT_SECRET")

	noEndpoint := valid
	noEndpoint.Storage.Driver = "minio"
	require.ErrorContains(t, noEndpoint.Validate(), "S3_ENDPOINT")
}
