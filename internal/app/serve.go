package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sh3rwan/erbil-api/internal/cache"
	"github.com/sh3rwan/erbil-api/internal/config"
	"github.com/sh3rwan/erbil-api/internal/scrape"
	"github.com/sh3rwan/erbil-api/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the flight-board API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}

		return newApp(cfg).run(ctx)
	},
}

// app holds all long-running components of the serve command.
type app struct {
	config    config.Config
	client    *scrape.Client
	cache     *cache.Cache
	scheduler *cache.Scheduler
	server    *server.Server
	watcher   *config.Watcher
}

func newApp(cfg config.Config) *app {
	clientOpts := []scrape.Option{
		scrape.WithTimeout(cfg.FetchTimeout),
		scrape.WithProfile(cfg.Profile),
	}
	if cfg.UserAgent != "" {
		clientOpts = append(clientOpts, scrape.WithUserAgent(cfg.UserAgent))
	}
	client := scrape.NewClient(cfg.SourceURL, clientOpts...)

	c := cache.New(client.Fetch, cache.WithTTL(cfg.CacheTTL))

	a := &app{
		config:    cfg,
		client:    client,
		cache:     c,
		scheduler: cache.NewScheduler(c, cfg.RefreshInterval),
		server:    server.New(fmt.Sprintf("%s:%d", cfg.HTTPAddr, cfg.HTTPPort), cfg.BasePath, c),
	}

	if configFile != "" {
		// Hot-reload the page-shape profile on config edits. Server and
		// cache settings still need a restart.
		a.watcher = config.NewWatcher(configFile, func(next config.Config) {
			a.client.SetProfile(next.Profile)
		})
	}

	return a
}

func (a *app) run(ctx context.Context) error {
	log.Println("erbil-api starting...")
	log.Printf("Configuration: addr=%s:%d base=%s source=%s ttl=%s refresh=%s",
		a.config.HTTPAddr, a.config.HTTPPort, a.config.BasePath,
		a.config.SourceURL, a.config.CacheTTL, a.config.RefreshInterval)

	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			log.Printf("Config watcher not started: %v", err)
			a.watcher = nil
		}
	}

	a.server.Start()

	// Warm the cache so the first client read doesn't pay the scrape cost.
	log.Println("Fetching initial flight board...")
	if snap, err := a.cache.Get(ctx, false); err != nil {
		log.Printf("Initial fetch failed, serving empty board until a fetch succeeds: %v", err)
	} else {
		log.Printf("Cached %d flights (fetched %s)", len(snap.Records), snap.FetchedAt.Format(time.RFC3339))
	}

	if err := a.scheduler.Start(ctx); err != nil {
		log.Printf("Refresh scheduler not started: %v", err)
	}

	<-ctx.Done()
	log.Println("Shutting down...")
	return a.shutdown()
}

func (a *app) shutdown() error {
	a.scheduler.Stop()
	if a.watcher != nil {
		a.watcher.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("erbil-api stopped")
	return nil
}
