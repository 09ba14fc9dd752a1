// Package factory wires the application's components together.
package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"

	"github.com/mcoot/makeitmeme/internal/content"
	"github.com/mcoot/makeitmeme/internal/dependencies/clock"
	"github.com/mcoot/makeitmeme/internal/dependencies/random"
	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/realtime"
	"github.com/mcoot/makeitmeme/internal/services/auth"
	"github.com/mcoot/makeitmeme/internal/services/distribution"
	"github.com/mcoot/makeitmeme/internal/services/registry"
	"github.com/mcoot/makeitmeme/internal/services/session"
	"github.com/mcoot/makeitmeme/internal/services/submission"
	"github.com/mcoot/makeitmeme/internal/services/voting"
	"github.com/mcoot/makeitmeme/internal/storage"
	"github.com/mcoot/makeitmeme/internal/storage/memory"
	redisstorage "github.com/mcoot/makeitmeme/internal/storage/redis"
	"github.com/mcoot/makeitmeme/internal/storage/sqlstore"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypeSQLite   = "sqlite"
	StorageTypePostgres = "postgres"
)

// DefaultNATSPrefix is the subject prefix used when none is configured
const DefaultNATSPrefix = "makeitmeme"

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Templates         *content.Pool
	Registry          *registry.Registry
	SessionController *session.Controller
	AuthService       *auth.Service
	Sweeper           *registry.Sweeper

	// Realtime delivery
	Realtime *realtime.Manager
	WSServer *realtime.WSServer
	Notifier session.Notifier

	closers []func() error
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis", "sqlite" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// DatabaseDSN is the connection string for the sqlite and postgres backends
	DatabaseDSN string
	// SessionRules are applied to new sessions. If zero value, defaults to
	// model.DefaultSessionConfig()
	SessionRules model.SessionConfig
	// TemplatesPath is a YAML template catalogue. If empty, the built-in
	// demo templates are served.
	TemplatesPath string
	// TemplateCacheTTL is how long the active template list is cached
	TemplateCacheTTL time.Duration
	// NATSURL enables cross-instance event fan-out when set
	NATSURL string
	// NATSPrefix prefixes NATS subjects. Defaults to DefaultNATSPrefix.
	NATSPrefix string
	// SweepInterval is how often the sweeper ticks every session
	SweepInterval time.Duration
	// CheckOrigin validates websocket origins. If nil, same-origin is required.
	CheckOrigin func(r *http.Request) bool
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	if cfg.SessionRules == (model.SessionConfig{}) {
		cfg.SessionRules = model.DefaultSessionConfig()
	}
	if err := cfg.SessionRules.Validate(); err != nil {
		return nil, err
	}

	store, closeStore, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	var source content.Source
	if cfg.TemplatesPath != "" {
		source = content.NewFileSource(cfg.TemplatesPath)
	} else {
		source = content.NewStaticSource(content.DemoTemplates()...)
	}

	app := newWithDependencies(deps{
		store:  store,
		clock:  clk,
		ticker: clk,
		random: rnd,
		source: source,
		cfg:    cfg,
		logger: logger,
	})
	if closeStore != nil {
		app.closers = append(app.closers, closeStore)
	}

	if cfg.NATSURL != "" {
		if err := app.connectNATS(cfg, logger); err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	return app, nil
}

func newStorage(cfg Config) (storage.Storage, func() error, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil, nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, nil, err
		}
		return redisStore, redisStore.Close, nil
	case StorageTypeSQLite, StorageTypePostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sqlStore, err := sqlstore.Open(ctx, storageType, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return sqlStore, sqlStore.Close, nil
	default:
		return nil, nil, fmt.Errorf("invalid StorageType %q: must be memory, redis, sqlite or postgres", storageType)
	}
}

type deps struct {
	store  storage.Storage
	clock  clock.Clock
	ticker clockwork.Clock
	random random.Random
	source content.Source
	cfg    Config
	logger *slog.Logger
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(d deps) *App {
	cfg := d.cfg
	if cfg.SessionRules == (model.SessionConfig{}) {
		cfg.SessionRules = model.DefaultSessionConfig()
	}
	authCfg := cfg.AuthConfig
	if authCfg.SessionDuration == 0 {
		authCfg.SessionDuration = auth.DefaultConfig().SessionDuration
	}
	ttl := cfg.TemplateCacheTTL
	if ttl == 0 {
		ttl = content.DefaultCacheTTL
	}
	interval := cfg.SweepInterval
	if interval == 0 {
		interval = registry.DefaultSweepInterval
	}

	manager := realtime.NewManager(d.logger)
	wsConfig := realtime.DefaultWSConfig()
	wsConfig.CheckOrigin = cfg.CheckOrigin

	app := &App{
		Storage:  d.store,
		Clock:    d.clock,
		Random:   d.random,
		Realtime: manager,
		WSServer: realtime.NewWSServer(manager, wsConfig, d.logger),
		Notifier: realtime.NewHubNotifier(manager, d.logger),
	}

	// Create services
	app.Templates = content.NewPool(d.source, d.clock, ttl, d.logger)
	app.Registry = registry.New(d.store, d.random)
	app.SessionController = session.NewController(
		d.store,
		app.Registry,
		app.Templates,
		distribution.New(d.random),
		submission.New(d.store, app.Templates, d.clock),
		voting.New(d.store, d.clock),
		notifierFunc(func(ctx context.Context, e model.Event) { app.Notifier.Publish(ctx, e) }),
		d.clock,
		cfg.SessionRules,
		d.logger,
	)
	app.AuthService = auth.New(d.store, app.SessionController, d.clock, authCfg, d.logger)
	app.Sweeper = registry.NewSweeper(d.store, app.SessionController, d.ticker, interval, d.logger,
		func() { manager.CleanupEmptyHubs() },
		func() { app.AuthService.CleanExpiredSessions() },
	)

	return app
}

// connectNATS routes events through NATS so every instance's hubs receive them
func (a *App) connectNATS(cfg Config, logger *slog.Logger) error {
	prefix := cfg.NATSPrefix
	if prefix == "" {
		prefix = DefaultNATSPrefix
	}

	conn, err := realtime.DialNATS(cfg.NATSURL, logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		conn.Close()
		return nil
	})

	return a.useNATS(conn, conn, prefix, logger)
}

func (a *App) useNATS(pub realtime.Publisher, sub realtime.Subscriber, prefix string, logger *slog.Logger) error {
	relay := realtime.NewRelay(sub, prefix, a.Realtime, logger)
	subscription, err := relay.Start()
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		if subscription == nil {
			return nil
		}
		if err := subscription.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			return err
		}
		return nil
	})
	a.Notifier = realtime.NewNATSNotifier(pub, prefix, logger)
	return nil
}

// Close releases the storage backend and message bus connections
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

type notifierFunc func(ctx context.Context, e model.Event)

func (f notifierFunc) Publish(ctx context.Context, e model.Event) { f(ctx, e) }
