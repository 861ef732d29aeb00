package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	c, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "8092", c.HTTPPort)
	assert.Equal(t, StorageMemory, c.Storage)
	assert.Equal(t, "payment.exchange", c.PaymentExchange)
	assert.Equal(t, 10, c.BcryptCost)
	assert.True(t, c.SeedDemo)
	assert.Equal(t, 30*time.Minute, c.TokenTTL())
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nHTTP_PORT=9000\n"), 0o600))

	for _, key := range []string{"JWT_SECRET", "HTTP_PORT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", c.JWTSecret)
	assert.Equal(t, "9000", c.HTTPPort)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoad_PostgresNeedsDSN(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE", StoragePostgres)

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorIs(t, err, ErrStorage)
}

func TestLoad_UnknownStorage(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE", "redis")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorIs(t, err, ErrStorage)
}
