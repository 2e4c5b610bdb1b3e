// Command worker runs the dispatch loop continuously in its own
// process, for operators who horizontally scale worker capacity
// independent of the scheduler's HTTP-triggered /worker tick.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oakmoss-dev/enrichqueue/internal/clients/discogs"
	"github.com/oakmoss-dev/enrichqueue/internal/clients/genius"
	"github.com/oakmoss-dev/enrichqueue/internal/clients/spotify"
	"github.com/oakmoss-dev/enrichqueue/internal/config"
	"github.com/oakmoss-dev/enrichqueue/internal/dispatcher"
	"github.com/oakmoss-dev/enrichqueue/internal/handlers"
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

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	shutdown, err := telemetry.Init(ctx, cfg, "enrichqueue-worker")
	if err != nil {
		logger.Error("tracing init error", "err", err)
		os.Exit(1)
	}
	defer func() { _ = shutdown(context.Background()) }()

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
	reg.Register("album_page", handlers.NewAlbumPage(spotifyClient, gate, spotifyThrottle, st))
	reg.Alias("album_discovery", "album_page")
	reg.Register("track_page", handlers.NewTrackPage(spotifyClient, gate, spotifyThrottle, st))
	reg.Alias("track_discovery", "track_page")
	reg.Register("producer_discovery", handlers.NewProducerDiscovery(
		geniusClient, discogsClient, gate, gate, geniusThrottle, discogsThrottle, st,
	))

	workerID := "worker-" + time.Now().UTC().Format("20060102T150405")
	d := dispatcher.New(st, reg, cfg.MaxConcurrentJobs, workerID, logger)

	stop, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			summary, err := d.Tick(stop)
			if err != nil {
				logger.Error("dispatcher tick failed", "err", err)
				continue
			}
			if summary.Claimed > 0 {
				logger.Info("dispatcher tick", "claimed", summary.Claimed, "completed", summary.Completed, "failed", summary.Failed)
			}
		case <-stop.Done():
			return
		}
	}
}
