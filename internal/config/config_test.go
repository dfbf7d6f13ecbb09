package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yaml := `
app:
  port: "9090"
database:
  driver: memory
auth:
  jwtSecret: user-secret
  adminJwtSecret: admin-secret
razorpay:
  keyId: rzp_test
  keySecret: file-secret
kafka:
  brokers: ["k1:9092"]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("APP_ENV", "test")
	t.Setenv("RAZORPAY_KEYSECRET", "env-secret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "env-secret", cfg.Razorpay.KeySecret)
	assert.Equal(t, []string{"k1:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 10*time.Second, cfg.Razorpay.Timeout)
	assert.Equal(t, 100*24*time.Hour, cfg.Auth.RefreshTokenTTL)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Database: DatabaseConfig{Driver: "postgres", DSN: "postgres://localhost/db"},
		Auth:     AuthConfig{JWTSecret: "a", AdminJWTSecret: "b"},
		Razorpay: RazorpayConfig{KeySecret: "s"},
	}
	require.NoError(t, valid.Validate())

	sameSecrets := valid
	sameSecrets.Auth.AdminJWTSecret = "a"
	assert.Error(t, sameSecrets.Validate())

	noDSN := valid
	noDSN.Database.DSN = ""
	assert.Error(t, noDSN.Validate())

	prodMemory := valid
	prodMemory.App.Env = "production"
	prodMemory.Database.Driver = "memory"
	assert.Error(t, prodMemory.Validate())
}

func TestSplitList(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"a:1", "b:2"}, splitList([]string{"a:1, b:2"}))
	assert.Nil(t, splitList(nil))
}
