package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadPartialFileKeepsDefaultsForOmittedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
motd = ["custom message"]

[limitations]
can_upload = false
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"custom message"}, cfg.MOTD)
	assert.False(t, cfg.Limitations.CanUpload)
	assert.Equal(t, defaultConfig().Limitations.MaxAvatarSize, cfg.Limitations.MaxAvatarSize)
}

func TestLoadAdvancedUsersBadgeOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[advanced_users."00000000-0000-0000-0000-000000000001"]
special = [1, 0, 0, 0, 0, 0]
pride = [1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	badges, ok := cfg.AdvancedUsers["00000000-0000-0000-0000-000000000001"]
	require.True(t, ok)
	assert.Equal(t, 1, badges.Special[0])
}

func TestLoadEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"LISTEN_ADDR", "CONFIG", "LOGS", "ASSETS", "AVATARS",
		"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB", "CACHE_ENABLED",
		"NATS_URL", "NATS_USER", "NATS_PASSWORD",
		"ORACLE_URL", "ORACLE_PROVIDER", "ORACLE_TIMEOUT",
		"ASSET_MANIFEST_URL", "ASSET_BASE_URL", "ASSET_SYNC_CRON",
	} {
		t.Setenv(key, "")
	}
	env := LoadEnv()
	assert.Equal(t, ":8080", env.ListenAddr)
	assert.Equal(t, "Config.toml", env.ConfigFile)
	assert.Equal(t, "logs", env.LogsDir)
	assert.Equal(t, "data/assets", env.AssetsDir)
	assert.Equal(t, "data/avatars", env.AvatarsDir)
	assert.False(t, env.RedisEnable)
	assert.Equal(t, "localhost", env.RedisHost)
	assert.Equal(t, "6379", env.RedisPort)
	assert.Equal(t, "mojang", env.OracleName)
	assert.Equal(t, "@every 1h", env.AssetSyncCron)
}

func TestLoadEnvRedisDBParsesOverride(t *testing.T) {
	t.Setenv("REDIS_DB", "3")
	env := LoadEnv()
	assert.Equal(t, 3, env.RedisDB)
}
