package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/genricoloni/nowplayingd/internal/artwork"
	"github.com/genricoloni/nowplayingd/internal/broadcast"
	"github.com/genricoloni/nowplayingd/internal/config"
	"github.com/genricoloni/nowplayingd/internal/domain"
	"github.com/genricoloni/nowplayingd/internal/engine"
	"github.com/genricoloni/nowplayingd/internal/fetcher"
	"github.com/genricoloni/nowplayingd/internal/logger"
	"github.com/genricoloni/nowplayingd/internal/monitor"
	"github.com/genricoloni/nowplayingd/internal/playback"
	"github.com/genricoloni/nowplayingd/internal/poller"
	"github.com/genricoloni/nowplayingd/internal/presence"
	"github.com/genricoloni/nowplayingd/internal/presence/discord"
	"github.com/genricoloni/nowplayingd/internal/processor"
	"github.com/genricoloni/nowplayingd/internal/server"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		host       string
		port       int
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:          "nowplayingd",
		Short:        "Mirror the media player's now-playing state to subscribers and Discord",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := config.Overrides{ConfigPath: configPath}
			if cmd.Flags().Changed("host") {
				overrides.Host = &host
			}
			if cmd.Flags().Changed("port") {
				overrides.Port = &port
			}
			if cmd.Flags().Changed("log-level") {
				overrides.LogLevel = &logLevel
			}

			cfg, err := config.Load(overrides)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&host, "host", "H", "127.0.0.1", "address to bind the server to")
	cmd.Flags().IntVarP(&port, "port", "p", 7271, "port to bind the server to")
	cmd.Flags().StringVar(&configPath, "config", "", "path to the TOML config file (default ~/.config/nowplayingd/config.toml)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	return cmd
}

func run(parent context.Context, cfg *config.AppConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	app := fx.New(
		AppOptions(cfg),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

// AppOptions is the application graph for cfg
func AppOptions(cfg *config.AppConfig) fx.Option {
	return fx.Options(
		fx.Supply(cfg),

		fx.Provide(
			newLogger,
			newHub,
			playback.NewState,
			newDetector,
			monitor.NewProvider,
			newPoller,
			newArtworkCache,
			newArtworkSearcher,
			newArtworkResolver,
			newPresenceClient,
			newSynchronizer,
			newFetcher,
			newImageProcessor,
			newEngine,
			newServer,
		),

		fx.Invoke(registerHooks),
	)
}

// newLogger creates the daemon logger from configuration
func newLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	cfg.LogSummary(log)
	return log, nil
}

func newHub(cfg *config.AppConfig) *broadcast.Hub {
	return broadcast.New(cfg.BroadcastCapacity)
}

func newDetector(log *zap.Logger, state *playback.State, hub *broadcast.Hub) *playback.Detector {
	return playback.NewDetector(log, state, hub)
}

func newPoller(log *zap.Logger, provider domain.Provider, detector *playback.Detector, cfg *config.AppConfig) *poller.Poller {
	return poller.New(log, provider, detector, cfg.PollInterval)
}

// newArtworkCache uses Redis when configured and reachable, memory otherwise
func newArtworkCache(lc fx.Lifecycle, log *zap.Logger, cfg *config.AppConfig) domain.ArtworkCache {
	if cfg.Redis.Addr == "" {
		return artwork.NewMemoryCache(cfg.Artwork.CacheTTL)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, using in-memory artwork cache",
			zap.String("addr", cfg.Redis.Addr),
			zap.Error(err))
		client.Close()
		return artwork.NewMemoryCache(cfg.Artwork.CacheTTL)
	}

	log.Info("Using Redis artwork cache", zap.String("addr", cfg.Redis.Addr))
	cache := artwork.NewRedisCache(client, cfg.Artwork.CacheTTL)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return cache.Close()
		},
	})
	return cache
}

func newArtworkSearcher(log *zap.Logger, cfg *config.AppConfig) domain.ArtworkSearcher {
	return artwork.NewITunesClient(log, cfg.Artwork.Country)
}

func newArtworkResolver(log *zap.Logger, searcher domain.ArtworkSearcher, cache domain.ArtworkCache, cfg *config.AppConfig) domain.ArtworkResolver {
	return artwork.NewResolver(log, searcher, cache, cfg.Artwork.Size)
}

func newPresenceClient(log *zap.Logger, cfg *config.AppConfig) domain.PresenceClient {
	if cfg.Presence.ClientID == "" {
		log.Info("No presence client id configured, presence disabled")
		return presence.NopClient{}
	}
	return discord.New(log, cfg.Presence.ClientID)
}

func newSynchronizer(
	log *zap.Logger,
	hub *broadcast.Hub,
	state *playback.State,
	client domain.PresenceClient,
	resolver domain.ArtworkResolver,
	cfg *config.AppConfig,
) *presence.Synchronizer {
	return presence.NewSynchronizer(log, hub, state, client, resolver, presence.Options{
		Label:        cfg.Presence.Label,
		DefaultImage: cfg.Presence.DefaultImage,
		PausePolicy:  cfg.Presence.PausePolicy,
	})
}

func newFetcher(log *zap.Logger) domain.Fetcher {
	return fetcher.NewHTTPFetcher(log)
}

func newImageProcessor(log *zap.Logger, cfg *config.AppConfig) domain.ImageProcessor {
	return processor.NewBlurProcessor(log, cfg.Cover.Size)
}

func newEngine(
	log *zap.Logger,
	hub *broadcast.Hub,
	resolver domain.ArtworkResolver,
	fetch domain.Fetcher,
	proc domain.ImageProcessor,
	cfg *config.AppConfig,
) *engine.Engine {
	return engine.NewEngine(log, hub, resolver, fetch, proc, engine.Options{
		Dir:      cfg.Cover.Dir,
		Debounce: cfg.Cover.Debounce,
	})
}

func newServer(log *zap.Logger, cfg *config.AppConfig, hub *broadcast.Hub, state *playback.State, eng *engine.Engine) *server.Server {
	return server.New(log, cfg.Addr(), hub, state, eng)
}

// registerHooks sets up application lifecycle hooks. Hooks stop in reverse
// order: the poller stops publishing first, then the provider and the hub
// close so every subscriber drains and exits. The transport goes down last.
func registerHooks(
	lc fx.Lifecycle,
	log *zap.Logger,
	provider domain.Provider,
	hub *broadcast.Hub,
	srv *server.Server,
	sync *presence.Synchronizer,
	eng *engine.Engine,
	p *poller.Poller,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("nowplayingd started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down")
			_ = log.Sync()
			return nil
		},
	})
	lc.Append(fx.StartStopHook(srv.Start, srv.Stop))
	lc.Append(fx.StartStopHook(sync.Start, sync.Stop))
	lc.Append(fx.StartStopHook(eng.Start, eng.Stop))
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			hub.Close()
			return nil
		},
	})
	if closer, ok := provider.(io.Closer); ok {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return closer.Close()
			},
		})
	}
	lc.Append(fx.StartStopHook(p.Start, p.Stop))
}
