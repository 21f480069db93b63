package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  path: "/tmp/test.db"
auth:
  jwt_secret: "secret"
logger:
  level: "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "debug", cfg.Logger.Level)

	// Defaults fill in what the file omits
	assert.Equal(t, "campusflow", cfg.Auth.Issuer)
	assert.Equal(t, "migrations", cfg.Database.MigrationsDir)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
auth:
  jwt_secret: "secret"
`)

	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_MissingSecret(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg: Config{
				Server:   ServerConfig{Port: 8080},
				Database: DatabaseConfig{Path: "data/app.db"},
				Auth:     AuthConfig{JWTSecret: "s"},
			},
			wantErr: false,
		},
		{
			name: "port out of range",
			cfg: Config{
				Server:   ServerConfig{Port: 70000},
				Database: DatabaseConfig{Path: "data/app.db"},
				Auth:     AuthConfig{JWTSecret: "s"},
			},
			wantErr: true,
		},
		{
			name: "missing database path",
			cfg: Config{
				Server: ServerConfig{Port: 8080},
				Auth:   AuthConfig{JWTSecret: "s"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
