package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devforge-org/devforge-backend/internal/logger"
)

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("SESSION_TTL", "120")
	t.Setenv("BUCKET_DRIVER", "local")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("CORS_ORIGINS", " http://a.test , ,http://b.test")
	t.Setenv("PUBLIC_BASE_URL", "https://devforge.example/")
	t.Setenv("QDRANT_ADDR", "qdrant:6334")
	t.Setenv("TEMPLATE_WATCH", "true")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := Load(logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Auth.SessionTTL)
	assert.Equal(t, int64(1024), cfg.App.MaxUploadBytes)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.App.CorsOrigins)
	assert.Equal(t, "https://devforge.example", cfg.App.PublicBaseURL)
	assert.True(t, cfg.Vector.Enabled())
	assert.True(t, cfg.Templates.Watch)
	assert.Equal(t, 2.5, cfg.App.RateLimitRPS)
}

func TestLoad_Validation(t *testing.T) {
	base := map[string]string{
		"DB_DRIVER":        "sqlite",
		"SESSION_STORE":    "memory",
		"SESSION_TTL":      "60",
		"BUCKET_DRIVER":    "local",
		"MAX_UPLOAD_BYTES": "10",
		"REDIS_ADDRESS":    "",
	}
	cases := []struct {
		name     string
		override map[string]string
		want     string
	}{
		{"db driver", map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"session store", map[string]string{"SESSION_STORE": "file"}, "SESSION_STORE must be"},
		{"redis address", map[string]string{"SESSION_STORE": "redis"}, "requires REDIS_ADDRESS"},
		{"bucket driver", map[string]string{"BUCKET_DRIVER": "s3"}, "BUCKET_DRIVER"},
		{"ttl", map[string]string{"SESSION_TTL": "0"}, "SESSION_TTL"},
		{"upload size", map[string]string{"MAX_UPLOAD_BYTES": "0"}, "MAX_UPLOAD_BYTES"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range base {
				t.Setenv(k, v)
			}
			for k, v := range tc.override {
				t.Setenv(k, v)
			}
			_, err := Load(logger.NewNop())
			assert.ErrorContains(t, err, tc.want)
		})
	}
}
