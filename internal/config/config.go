package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/genricoloni/nowplayingd/internal/domain"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

const (
	defaultConfigPath        = "~/.config/nowplayingd/config.toml"
	defaultHost              = "127.0.0.1"
	defaultPort              = 7271
	defaultPollInterval      = time.Second
	defaultBroadcastCapacity = 100
	defaultLogLevel          = "info"
	defaultLabel             = "Apple Music"
	defaultImage             = "image_logo"
	defaultCountry           = "us"
	defaultArtworkSize       = 512
	defaultCacheTTL          = 24 * time.Hour
	defaultCoverSize         = 512
	defaultCoverDebounce     = 500 * time.Millisecond

	envPrefix = "NOWPLAYING_"
)

// AppConfig holds application configuration
type AppConfig struct {
	Host              string
	Port              int
	PollInterval      time.Duration
	BroadcastCapacity int

	Log      LogConfig
	Mpris    MprisConfig
	Presence PresenceConfig
	Artwork  ArtworkConfig
	Redis    RedisConfig
	Cover    CoverConfig

	// HostRewritten is set when "localhost" was replaced by the loopback address
	HostRewritten bool
	// Source is the config file that was read, empty when none was found
	Source string
}

// LogConfig controls the logger and optional file rotation
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// MprisConfig selects the preferred player on Linux
type MprisConfig struct {
	Player string
}

// PresenceConfig configures the Discord presence mirror
type PresenceConfig struct {
	ClientID     string
	Label        string
	DefaultImage string
	PausePolicy  domain.PausePolicy
}

// ArtworkConfig configures the iTunes artwork lookup
type ArtworkConfig struct {
	Country  string
	Size     int
	CacheTTL time.Duration
}

// RedisConfig enables the shared artwork cache when Addr is set
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CoverConfig configures the rendered cover card
type CoverConfig struct {
	Dir      string
	Size     int
	Debounce time.Duration
}

// Overrides carries command-line values. Nil fields were not set by the user.
type Overrides struct {
	ConfigPath string
	Host       *string
	Port       *int
	LogLevel   *string
}

// fileConfig mirrors the TOML layout. Durations are strings like "1s".
type fileConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	PollInterval      string `toml:"poll_interval"`
	BroadcastCapacity int    `toml:"broadcast_capacity"`

	Log struct {
		Level      string `toml:"level"`
		File       string `toml:"file"`
		MaxSizeMB  int    `toml:"max_size_mb"`
		MaxBackups int    `toml:"max_backups"`
		MaxAgeDays int    `toml:"max_age_days"`
		Compress   *bool  `toml:"compress"`
	} `toml:"log"`

	Mpris struct {
		Player string `toml:"player"`
	} `toml:"mpris"`

	Presence struct {
		ClientID     string `toml:"client_id"`
		Label        string `toml:"label"`
		DefaultImage string `toml:"default_image"`
		PausePolicy  string `toml:"pause_policy"`
	} `toml:"presence"`

	Artwork struct {
		Country  string `toml:"country"`
		Size     int    `toml:"size"`
		CacheTTL string `toml:"cache_ttl"`
	} `toml:"artwork"`

	Redis struct {
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
	} `toml:"redis"`

	Cover struct {
		Dir      string `toml:"dir"`
		Size     int    `toml:"size"`
		Debounce string `toml:"debounce"`
	} `toml:"cover"`
}

// Default returns the compiled-in configuration
func Default() *AppConfig {
	return &AppConfig{
		Host:              defaultHost,
		Port:              defaultPort,
		PollInterval:      defaultPollInterval,
		BroadcastCapacity: defaultBroadcastCapacity,
		Log: LogConfig{
			Level:      defaultLogLevel,
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Presence: PresenceConfig{
			Label:        defaultLabel,
			DefaultImage: defaultImage,
			PausePolicy:  domain.PauseShow,
		},
		Artwork: ArtworkConfig{
			Country:  defaultCountry,
			Size:     defaultArtworkSize,
			CacheTTL: defaultCacheTTL,
		},
		Cover: CoverConfig{
			Size:     defaultCoverSize,
			Debounce: defaultCoverDebounce,
		},
	}
}

// Load builds the configuration from defaults, the TOML file, .env, the
// environment and finally the command-line overrides.
func Load(overrides Overrides) (*AppConfig, error) {
	cfg := Default()

	path := overrides.ConfigPath
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = defaultConfigPath
	}
	resolved, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyFile(resolved, explicit); err != nil {
		return nil, err
	}

	// A missing .env is the normal case; real environment variables win over it
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if overrides.Host != nil {
		cfg.Host = *overrides.Host
	}
	if overrides.Port != nil {
		cfg.Port = *overrides.Port
	}
	if overrides.LogLevel != nil {
		cfg.Log.Level = *overrides.LogLevel
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr returns host:port for the HTTP listener
func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogSummary reports the effective configuration
func (c *AppConfig) LogSummary(logger *zap.Logger) {
	if c.HostRewritten {
		logger.Warn("Replaced host localhost with 127.0.0.1")
	}
	logger.Info("Configuration loaded",
		zap.String("source", c.Source),
		zap.String("addr", c.Addr()),
		zap.Duration("pollInterval", c.PollInterval),
		zap.Bool("presence", c.Presence.ClientID != ""),
		zap.String("pausePolicy", string(c.Presence.PausePolicy)),
		zap.Bool("redisCache", c.Redis.Addr != ""),
		zap.String("coverDir", c.Cover.Dir))
}

func (c *AppConfig) applyFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.Source = path

	setString(&c.Host, raw.Host)
	setInt(&c.Port, raw.Port)
	setInt(&c.BroadcastCapacity, raw.BroadcastCapacity)
	if err := setDuration(&c.PollInterval, raw.PollInterval, "poll_interval"); err != nil {
		return err
	}

	setString(&c.Log.Level, raw.Log.Level)
	setString(&c.Log.File, raw.Log.File)
	setInt(&c.Log.MaxSizeMB, raw.Log.MaxSizeMB)
	setInt(&c.Log.MaxBackups, raw.Log.MaxBackups)
	setInt(&c.Log.MaxAgeDays, raw.Log.MaxAgeDays)
	if raw.Log.Compress != nil {
		c.Log.Compress = *raw.Log.Compress
	}

	setString(&c.Mpris.Player, raw.Mpris.Player)

	setString(&c.Presence.ClientID, raw.Presence.ClientID)
	setString(&c.Presence.Label, raw.Presence.Label)
	setString(&c.Presence.DefaultImage, raw.Presence.DefaultImage)
	if raw.Presence.PausePolicy != "" {
		c.Presence.PausePolicy = domain.PausePolicy(raw.Presence.PausePolicy)
	}

	setString(&c.Artwork.Country, raw.Artwork.Country)
	setInt(&c.Artwork.Size, raw.Artwork.Size)
	if err := setDuration(&c.Artwork.CacheTTL, raw.Artwork.CacheTTL, "artwork.cache_ttl"); err != nil {
		return err
	}

	setString(&c.Redis.Addr, raw.Redis.Addr)
	setString(&c.Redis.Password, raw.Redis.Password)
	setInt(&c.Redis.DB, raw.Redis.DB)

	setString(&c.Cover.Dir, raw.Cover.Dir)
	setInt(&c.Cover.Size, raw.Cover.Size)
	return setDuration(&c.Cover.Debounce, raw.Cover.Debounce, "cover.debounce")
}

func (c *AppConfig) applyEnv() error {
	setString(&c.Host, getEnv("HOST"))
	setString(&c.Log.Level, getEnv("LOG_LEVEL"))
	setString(&c.Log.File, getEnv("LOG_FILE"))
	setString(&c.Mpris.Player, getEnv("MPRIS_PLAYER"))
	setString(&c.Presence.ClientID, getEnv("PRESENCE_CLIENT_ID"))
	setString(&c.Presence.Label, getEnv("PRESENCE_LABEL"))
	setString(&c.Presence.DefaultImage, getEnv("PRESENCE_DEFAULT_IMAGE"))
	if v := getEnv("PRESENCE_PAUSE_POLICY"); v != "" {
		c.Presence.PausePolicy = domain.PausePolicy(v)
	}
	setString(&c.Artwork.Country, getEnv("ARTWORK_COUNTRY"))
	setString(&c.Redis.Addr, getEnv("REDIS_ADDR"))
	setString(&c.Redis.Password, getEnv("REDIS_PASSWORD"))
	setString(&c.Cover.Dir, getEnv("COVER_DIR"))

	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &c.Port},
		{"BROADCAST_CAPACITY", &c.BroadcastCapacity},
		{"ARTWORK_SIZE", &c.Artwork.Size},
		{"REDIS_DB", &c.Redis.DB},
		{"COVER_SIZE", &c.Cover.Size},
	}
	for _, e := range ints {
		v := getEnv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, e.key, err)
		}
		*e.dst = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"POLL_INTERVAL", &c.PollInterval},
		{"ARTWORK_CACHE_TTL", &c.Artwork.CacheTTL},
		{"COVER_DEBOUNCE", &c.Cover.Debounce},
	}
	for _, e := range durations {
		if err := setDuration(e.dst, getEnv(e.key), envPrefix+e.key); err != nil {
			return err
		}
	}
	return nil
}

// finalize normalizes values and rejects configurations the daemon cannot run with
func (c *AppConfig) finalize() error {
	c.Host = strings.TrimSpace(c.Host)
	if c.Host == "" {
		c.Host = defaultHost
	}
	if strings.EqualFold(c.Host, "localhost") {
		c.Host = defaultHost
		c.HostRewritten = true
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.BroadcastCapacity <= 0 {
		return fmt.Errorf("broadcast_capacity must be positive, got %d", c.BroadcastCapacity)
	}

	switch c.Presence.PausePolicy {
	case domain.PauseShow, domain.PauseClear:
	default:
		return fmt.Errorf("invalid presence.pause_policy %q (expected %q or %q)",
			c.Presence.PausePolicy, domain.PauseShow, domain.PauseClear)
	}

	if c.Artwork.Size <= 0 || c.Cover.Size <= 0 {
		return fmt.Errorf("artwork and cover sizes must be positive")
	}

	if c.Log.File != "" {
		path, err := expandPath(c.Log.File)
		if err != nil {
			return err
		}
		c.Log.File = path
	}
	if c.Cover.Dir != "" {
		path, err := expandPath(c.Cover.Dir)
		if err != nil {
			return err
		}
		c.Cover.Dir = path
	}
	return nil
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v, key string) error {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

// expandPath resolves a leading ~ and environment variables
func expandPath(path string) (string, error) {
	trimmed := os.ExpandEnv(strings.TrimSpace(path))
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
