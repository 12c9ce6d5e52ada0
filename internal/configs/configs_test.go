package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	req.NoError(err)

	req.Equal(EnvDevelopment, cfg.Environment)
	req.Equal(8080, cfg.Port)
	req.Equal(developmentJWTSecret, cfg.JWTSecret)
	req.Equal(24*time.Hour, cfg.JWTExpiration)
	req.True(cfg.StrictJoin)
	req.Equal(StoreDriverPostgres, cfg.StoreDriver)
	req.Equal(developmentDSN, cfg.DatabaseDSN)
	req.Empty(cfg.AllowedOrigins)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())

	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "s3cr3t")
	t.Setenv("ALLOWED_ORIGINS", "https://echo.dev, https://app.echo.dev,")
	t.Setenv("STORE_DRIVER", StoreDriverBadger)
	t.Setenv("BADGER_PATH", "/var/lib/echo")

	cfg, err := LoadConfig()
	req.NoError(err)

	req.Equal(9090, cfg.Port)
	req.Equal([]string{"https://echo.dev", "https://app.echo.dev"}, cfg.AllowedOrigins)
	req.Equal("/var/lib/echo", cfg.BadgerPath)
	req.False(cfg.IsDevelopment())
}

func TestLoadConfig_Rejections(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"privileged port", map[string]string{"PORT": "80"}},
		{"missing secret in production", map[string]string{"ENVIRONMENT": "production", "DATABASE_URL": "postgres://x"}},
		{"missing dsn in production", map[string]string{"ENVIRONMENT": "production", "JWT_SECRET": "s"}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"in-memory badger in production", map[string]string{"ENVIRONMENT": "production", "JWT_SECRET": "s", "STORE_DRIVER": "badger"}},
		{"loose join in production", map[string]string{"ENVIRONMENT": "production", "JWT_SECRET": "s", "DATABASE_URL": "postgres://x", "STRICT_JOIN": "false"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			req.Error(err)
		})
	}
}
