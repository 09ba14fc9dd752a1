package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mcoot/makeitmeme/internal/api"
	"github.com/mcoot/makeitmeme/internal/config"
	"github.com/mcoot/makeitmeme/internal/factory"
	"github.com/mcoot/makeitmeme/internal/services/auth"
	redisstorage "github.com/mcoot/makeitmeme/internal/storage/redis"
)

const releaseVersion = "0.1.0"

func main() {
	// A .env file is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load .env file", slog.String("error", err.Error()))
	}

	cfg := &config.Config{}
	if err := newCmd(cfg).Execute(); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "makeitmeme",
		Short:         "Game server for make it meme, the caption-a-template party game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Resolve(cmd.Flags(), cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	config.RegisterFlags(cmd.Flags(), cfg)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("makeitmeme v{{.Version}}\n")

	return cmd
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, _ := cfg.Level()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func factoryConfig(cfg *config.Config, logger *slog.Logger) factory.Config {
	authCfg := auth.DefaultConfig()
	authCfg.SessionDuration = cfg.SessionDuration
	authCfg.AdminUsernames = cfg.AdminUsernames

	fc := factory.Config{
		AuthConfig:       authCfg,
		Logger:           logger,
		StorageType:      cfg.Storage,
		DatabaseDSN:      cfg.DatabaseDSN,
		SessionRules:     cfg.Rules(),
		TemplatesPath:    cfg.TemplatesFile,
		TemplateCacheTTL: cfg.TemplateCacheTTL,
		NATSURL:          cfg.NATSURL,
		NATSPrefix:       cfg.NATSPrefix,
		SweepInterval:    cfg.SweepInterval,
		CheckOrigin:      checkOrigin(cfg.CORSOrigins),
	}

	if cfg.Storage == factory.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		fc.RedisConfig = &redisCfg
	}

	return fc
}

// checkOrigin lets websocket upgrades through from the configured origins.
// With none configured, the same-origin default applies.
func checkOrigin(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	if cfg.ConfigFile != "" {
		logger.Info("loaded config file", slog.String("path", cfg.ConfigFile))
	}

	app, err := factory.New(factoryConfig(cfg, logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close application", slog.String("error", err.Error()))
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		Logger:            logger,
		AuthService:       app.AuthService,
		SessionController: app.SessionController,
		TemplatePool:      app.Templates,
		Realtime:          app.Realtime,
		WSServer:          app.WSServer,
		PublicURL:         cfg.PublicURL,
		CORSOrigins:       cfg.CORSOrigins,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	server := api.NewServer(router, serverConfig, logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.Sweeper.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.Storage),
		slog.Bool("nats", cfg.NATSURL != ""),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if err := server.Shutdown(context.Background()); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
