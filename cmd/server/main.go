package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oakmoss-dev/enrichqueue/internal/alert"
	"github.com/oakmoss-dev/enrichqueue/internal/clients/discogs"
	"github.com/oakmoss-dev/enrichqueue/internal/clients/genius"
	"github.com/oakmoss-dev/enrichqueue/internal/clients/spotify"
	"github.com/oakmoss-dev/enrichqueue/internal/config"
	"github.com/oakmoss-dev/enrichqueue/internal/cron"
	"github.com/oakmoss-dev/enrichqueue/internal/dispatcher"
	"github.com/oakmoss-dev/enrichqueue/internal/handlers"
	"github.com/oakmoss-dev/enrichqueue/internal/httpapi"
	"github.com/oakmoss-dev/enrichqueue/internal/maintenance"
	"github.com/oakmoss-dev/enrichqueue/internal/monitor"
	"github.com/oakmoss-dev/enrichqueue/internal/ratelimit"
	"github.com/oakmoss-dev/enrichqueue/internal/registry"
	"github.com/oakmoss-dev/enrichqueue/internal/storage"
	"github.com/oakmoss-dev/enrichqueue/internal/store"
	"github.com/oakmoss-dev/enrichqueue/internal/telemetry"
	"github.com/oakmoss-dev/enrichqueue/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	ctx := context.Background()

	shutdownTracing, err := telemetry.Init(ctx, cfg, "enrichqueue-server")
	if err != nil {
		logger.Error("tracing init error", "err", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	pool, err := storage.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("postgres connect error", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.NewPostgres(pool)

	gate := ratelimit.New(st)
	spotifyClient := spotify.New(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
	geniusClient := genius.New(cfg.GeniusAccessToken)
	discogsClient := discogs.New(cfg.DiscogsKey, cfg.DiscogsSecret)

	spotifyThrottle := worker.NewThrottler(spotify.APIName, 4, 10)
	geniusThrottle := worker.NewThrottler(genius.APIName, 2, 5)
	discogsThrottle := worker.NewThrottler(discogs.APIName, 2, 5)

	reg := registry.New()
	reg.Register("discover-artists", handlers.NewDiscoverArtists(spotifyClient, gate, spotifyThrottle, st))
	albumPage := handlers.NewAlbumPage(spotifyClient, gate, spotifyThrottle, st)
	reg.Register("album_page", albumPage)
	reg.Alias("album_discovery", "album_page")
	trackPage := handlers.NewTrackPage(spotifyClient, gate, spotifyThrottle, st)
	reg.Register("track_page", trackPage)
	reg.Alias("track_discovery", "track_page")
	reg.Register("producer_discovery", handlers.NewProducerDiscovery(
		geniusClient, discogsClient, gate, gate, geniusThrottle, discogsThrottle, st,
	))

	d := dispatcher.New(st, reg, cfg.MaxConcurrentJobs, "enrichqueue-server", logger)
	maint := maintenance.New(st, cfg.LeaseExpiryMinutes, cfg.DLQRequeueLimit, cfg.CleanupRetainDays, logger)

	var sink alert.Sink = alert.NewLogSink(logger)
	var redisPinger httpapi.Pinger
	if cfg.RedisAddr != "" {
		redisSink := alert.NewRedisSink(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "enrichqueue:alerts")
		sink = alert.NewMultiSink(alert.NewLogSink(logger), redisSink)
		redisPinger = redisSink
	}
	mon := monitor.New(st, sink, logger)
	invoker := cron.NewInvoker(cfg.InvokeBaseURL, cfg.InvokeBearer, logger)

	srv := httpapi.NewServer(cfg.HTTPAddr, st, redisPinger, d, maint, mon, invoker, logger)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil {
			logger.Error("server stopped", "err", err)
		}
	}()

	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
