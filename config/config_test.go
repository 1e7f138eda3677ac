package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "estate-sync/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORE_DRIVER", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.False(t, cfg.CollapseDuplicates)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("COLLAPSE_DUPLICATES", "true")
	t.Setenv("WEBHOOK_TIMEOUT", "30s")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
	assert.True(t, cfg.CollapseDuplicates)
	assert.Equal(t, 30*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 3, cfg.MaxRetries, "invalid ints fall back")
}

func TestLoadYAMLFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store_driver: memory
webhook_url: http://hook.local/scrape
export_dir: /srv/exports
listen_addr: ":9000"
sync_cooldown: 2m
`), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("LISTEN_ADDR", ":9100")
	t.Setenv("WEBHOOK_URL", "")
	t.Setenv("SYNC_COOLDOWN", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "http://hook.local/scrape", cfg.WebhookURL)
	assert.Equal(t, "/srv/exports", cfg.ExportDir)
	assert.Equal(t, ":9100", cfg.ListenAddr, "env wins over file")
	assert.Equal(t, 2*time.Minute, cfg.SyncCooldown)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.True(t, apperrors.IsUnavailable(err))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.StoreDriver = "mongo"
	assert.True(t, apperrors.IsUnavailable(cfg.Validate()))

	cfg = Default()
	cfg.StoreDriver = DriverSQLite
	cfg.SQLitePath = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.PostgresHost = ""
	assert.Error(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	cfg := Default()
	assert.Equal(t,
		"host=localhost port=5432 user=estate password=estate123 dbname=estate_db sslmode=disable",
		cfg.DSN())
}
