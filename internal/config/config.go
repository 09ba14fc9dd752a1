// Package config resolves server settings from flags, MIM_* environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mcoot/makeitmeme/internal/model"
)

// EnvPrefix prefixes every environment variable read by the server
const EnvPrefix = "MIM"

var storageTypes = []string{"memory", "redis", "sqlite", "postgres"}

// Config holds the server settings
type Config struct {
	ConfigFile string

	Host      string
	Port      int
	PublicURL string
	LogLevel  string
	LogFormat string

	Storage     string
	RedisURL    string
	DatabaseDSN string

	TemplatesFile    string
	TemplateCacheTTL time.Duration

	NATSURL    string
	NATSPrefix string

	CORSOrigins     []string
	AdminUsernames  []string
	SessionDuration time.Duration
	SweepInterval   time.Duration

	MaxPlayers        int
	Rounds            int
	RoundDuration     time.Duration
	TemplatesPerRound int
	AutoStartAfter    time.Duration
	CancelAfter       time.Duration
}

// RegisterFlags defines the server flags on fs, writing into cfg
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	rules := model.DefaultSessionConfig()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.ConfigFile, "config", "c", "", "path to a YAML config file (env: MIM_CONFIG)")
	fs.StringVarP(&cfg.Host, "host", "b", "", "address to bind to (env: MIM_HOST)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: MIM_PORT)")
	fs.StringVar(&cfg.PublicURL, "public-url", "http://localhost:8080", "base URL used in join links (env: MIM_PUBLIC_URL)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error (env: MIM_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", "json", "log format: json, text (env: MIM_LOG_FORMAT)")

	fs.StringVar(&cfg.Storage, "storage", "memory", "storage backend: memory, redis, sqlite, postgres (env: MIM_STORAGE)")
	fs.StringVar(&cfg.RedisURL, "redis-url", "redis://localhost:6379", "redis connection URL (env: MIM_REDIS_URL)")
	fs.StringVar(&cfg.DatabaseDSN, "database-dsn", "", "sqlite or postgres connection string (env: MIM_DATABASE_DSN)")

	fs.StringVar(&cfg.TemplatesFile, "templates-file", "", "YAML template catalogue; built-in demo templates if empty (env: MIM_TEMPLATES_FILE)")
	fs.DurationVar(&cfg.TemplateCacheTTL, "template-cache-ttl", 300*time.Second, "how long the template list is cached (env: MIM_TEMPLATE_CACHE_TTL)")

	fs.StringVar(&cfg.NATSURL, "nats-url", "", "NATS server for cross-instance events; disabled if empty (env: MIM_NATS_URL)")
	fs.StringVar(&cfg.NATSPrefix, "nats-prefix", "makeitmeme", "NATS subject prefix (env: MIM_NATS_PREFIX)")

	fs.StringSliceVar(&cfg.CORSOrigins, "cors-origins", nil, "allowed CORS origins; any if empty (env: MIM_CORS_ORIGINS)")
	fs.StringSliceVar(&cfg.AdminUsernames, "admin-usernames", nil, "registered usernames with admin access (env: MIM_ADMIN_USERNAMES)")
	fs.DurationVar(&cfg.SessionDuration, "session-duration", 24*time.Hour, "lifetime of login tokens (env: MIM_SESSION_DURATION)")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", 5*time.Second, "how often session timers are checked (env: MIM_SWEEP_INTERVAL)")

	fs.IntVar(&cfg.MaxPlayers, "max-players", rules.MaxPlayers, "players allowed per session (env: MIM_MAX_PLAYERS)")
	fs.IntVar(&cfg.Rounds, "rounds", rules.Rounds, "rounds per game (env: MIM_ROUNDS)")
	fs.DurationVar(&cfg.RoundDuration, "round-duration", rules.RoundDuration, "submission window per round (env: MIM_ROUND_DURATION)")
	fs.IntVar(&cfg.TemplatesPerRound, "templates-per-round", rules.TemplatesPerRound, "templates offered to each player per round (env: MIM_TEMPLATES_PER_ROUND)")
	fs.DurationVar(&cfg.AutoStartAfter, "auto-start-after", rules.AutoStartAfter, "waiting time before a session starts on its own (env: MIM_AUTO_START_AFTER)")
	fs.DurationVar(&cfg.CancelAfter, "cancel-after", rules.CancelAfter, "waiting time before a lone player's session is dropped (env: MIM_CANCEL_AFTER)")
}

// Resolve fills every flag not set on the command line from the
// environment, then from the config file
func Resolve(fs *pflag.FlagSet, cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	configFile := cfg.ConfigFile
	if !fs.Changed("config") {
		_ = v.BindEnv("config")
		if f := v.GetString("config"); f != "" {
			configFile = f
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindEnv(f.Name)
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		value := fmt.Sprintf("%v", v.Get(f.Name))
		if f.Value.Type() == "stringSlice" {
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		}
		if err := fs.Set(f.Name, value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
		}
	})
	cfg.ConfigFile = configFile
	return errors.Join(errs...)
}

// Validate checks the settings are usable
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if !slices.Contains(storageTypes, c.Storage) {
		return fmt.Errorf("invalid storage %q: must be one of %s", c.Storage, strings.Join(storageTypes, ", "))
	}
	if c.Storage == "redis" && c.RedisURL == "" {
		return errors.New("--redis-url is required with redis storage")
	}
	if (c.Storage == "sqlite" || c.Storage == "postgres") && c.DatabaseDSN == "" {
		return fmt.Errorf("--database-dsn is required with %s storage", c.Storage)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("invalid log format %q: must be json or text", c.LogFormat)
	}
	if c.SessionDuration <= 0 || c.SweepInterval <= 0 || c.TemplateCacheTTL <= 0 {
		return errors.New("durations must be positive")
	}
	if err := c.Rules().Validate(); err != nil {
		return fmt.Errorf("game rules: %w", err)
	}
	return nil
}

// Level parses the configured log level
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

// Rules returns the game rules applied to new sessions
func (c *Config) Rules() model.SessionConfig {
	return model.SessionConfig{
		MaxPlayers:        c.MaxPlayers,
		Rounds:            c.Rounds,
		RoundDuration:     c.RoundDuration,
		TemplatesPerRound: c.TemplatesPerRound,
		AutoStartAfter:    c.AutoStartAfter,
		CancelAfter:       c.CancelAfter,
	}
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
