// Package config loads the server's runtime configuration: environment
// variables for process-level paths and connection strings, and a
// Config.toml file for the tunables that operators adjust without a
// redeploy (upload permissions, avatar limits, badge allow-lists, rate
// limits, MOTD). Missing file or keys fall back to built-in defaults,
// the same graceful-degradation posture cache.NewCache takes toward a
// disabled Redis.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Env holds the process-level configuration read from environment
// variables.
type Env struct {
	ListenAddr  string
	ConfigFile  string
	LogsDir     string
	AssetsDir   string
	AvatarsDir  string
	LogLevel    string
	LogPretty   bool

	RedisHost    string
	RedisPort    string
	RedisPass    string
	RedisDB      int
	RedisEnable  bool

	NATSURL  string
	NATSUser string
	NATSPass string

	OracleBaseURL string
	OracleName    string
	OracleTimeout time.Duration

	AssetManifestURL string
	AssetBaseURL     string
	AssetSyncCron    string
}

// LoadEnv reads process configuration from the environment, applying the
// same defaults the original server shipped with.
func LoadEnv() Env {
	return Env{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		ConfigFile: getEnv("CONFIG", "Config.toml"),
		LogsDir:    getEnv("LOGS", "logs"),
		AssetsDir:  getEnv("ASSETS", "data/assets"),
		AvatarsDir: getEnv("AVATARS", "data/avatars"),
		LogLevel:   getEnv("LOGGER", "info"),
		LogPretty:  getEnv("LOG_PRETTY", "false") == "true",

		RedisHost:   getEnv("REDIS_HOST", "localhost"),
		RedisPort:   getEnv("REDIS_PORT", "6379"),
		RedisPass:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		RedisEnable: getEnv("CACHE_ENABLED", "false") == "true",

		NATSURL:  os.Getenv("NATS_URL"),
		NATSUser: os.Getenv("NATS_USER"),
		NATSPass: os.Getenv("NATS_PASSWORD"),

		OracleBaseURL: getEnv("ORACLE_URL", "https://sessionserver.mojang.com/session/minecraft/hasJoined"),
		OracleName:    getEnv("ORACLE_PROVIDER", "mojang"),
		OracleTimeout: getEnvDuration("ORACLE_TIMEOUT", 5*time.Second),

		AssetManifestURL: os.Getenv("ASSET_MANIFEST_URL"),
		AssetBaseURL:     os.Getenv("ASSET_BASE_URL"),
		AssetSyncCron:    getEnv("ASSET_SYNC_CRON", "@every 1h"),
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// AdvancedBadges is a per-user override of the default badge set, keyed
// by UUID string in Config.toml under [advanced_users].
type AdvancedBadges struct {
	Special []int `toml:"special"`
	Pride   []int `toml:"pride"`
}

// Limitations mirrors the tunables reported by /limits and enforced by
// the avatar upload path.
type Limitations struct {
	CanUpload     bool  `toml:"can_upload"`
	MaxAvatarSize int64 `toml:"max_avatar_size"`
	MaxAvatars    int   `toml:"max_avatars"`
}

// RateLimits mirrors the numbers reported under the "rate" key of
// /limits: PingSize is a ping payload size, the others are per-operation
// rates.
type RateLimits struct {
	PingSize int `toml:"ping_size"`
	PingRate int `toml:"ping_rate"`
	Equip    int `toml:"equip"`
	Download int `toml:"download"`
	Upload   int `toml:"upload"`
}

// Config is the operator-editable tunable set, loaded from Config.toml.
type Config struct {
	MOTD          []string                  `toml:"motd"`
	Limitations   Limitations               `toml:"limitations"`
	Rate          RateLimits                `toml:"rate"`
	AdvancedUsers map[string]AdvancedBadges `toml:"advanced_users"`
}

// defaultConfig is used whole-cloth when Config.toml is absent, and as
// the base for any keys a present-but-partial file omits.
func defaultConfig() Config {
	return Config{
		MOTD: []string{"Welcome to the avatar relay."},
		Limitations: Limitations{
			CanUpload:     true,
			MaxAvatarSize: 100,
			MaxAvatars:    1,
		},
		Rate: RateLimits{
			PingSize: 1024,
			PingRate: 6000,
			Equip:    60,
			Download: 600,
			Upload:   20,
		},
		AdvancedUsers: map[string]AdvancedBadges{},
	}
}

// Load reads path as a TOML document and decodes it into Config. A
// missing file is not an error: it yields the built-in defaults, since
// operators are not required to ship a Config.toml at all.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.AdvancedUsers == nil {
		cfg.AdvancedUsers = map[string]AdvancedBadges{}
	}
	return cfg, nil
}
