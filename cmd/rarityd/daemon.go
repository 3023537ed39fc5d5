package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ramonehamilton/nft-rarity/internal/api"
	"github.com/ramonehamilton/nft-rarity/internal/config"
	"github.com/ramonehamilton/nft-rarity/internal/events"
	"github.com/ramonehamilton/nft-rarity/internal/metadata"
	"github.com/ramonehamilton/nft-rarity/internal/metrics"
	"github.com/ramonehamilton/nft-rarity/internal/ranking"
	"github.com/ramonehamilton/nft-rarity/internal/storage"
	"github.com/ramonehamilton/nft-rarity/internal/version"
	"github.com/ramonehamilton/nft-rarity/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

// daemon owns the long-running components of rarityd.
type daemon struct {
	cfg     *config.Config
	db      *storage.DB
	store   *storage.Service
	server  *api.Server
	watcher *watcher.Watcher
	backups *storage.BackupScheduler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// newDaemon opens the database and wires every component.
func newDaemon(cfg *config.Config) (*daemon, error) {
	dbConfig := storage.DefaultConfig(cfg.Database.Path)
	dbConfig.AutoMigrate = cfg.Database.AutoMigrate
	db, err := storage.Open(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	log.Printf("[Daemon] Database: %s", db.Path())

	store := storage.NewService(db)
	dispatcher := events.NewEventDispatcher()
	dispatcher.Register(events.NewLogObserver(cfg.App.DebugMode))

	client := metadata.NewClient(metadata.ClientOptions{
		BaseURL:    cfg.Metadata.BaseURL,
		RateLimit:  rate.Every(cfg.MetadataRateInterval()),
		Timeout:    cfg.MetadataTimeout(),
		MaxRetries: cfg.Metadata.MaxRetries,
		Workers:    cfg.Metadata.Workers,
		UserAgent:  cfg.Metadata.UserAgent,
	})

	svc := ranking.NewService(store, dispatcher, metrics.NewScoringMetrics()).WithFetcher(client)

	server := api.NewServer(&api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout(),
	}, svc, client)
	dispatcher.Register(server.NewWebSocketObserver())

	d := &daemon{cfg: cfg, db: db, store: store, server: server}
	if cfg.Watcher.Enabled {
		d.watcher = watcher.New(watcher.Config{
			Dir:          cfg.Watcher.Dir,
			PollInterval: cfg.WatcherPollInterval(),
		}, svc)
	}
	if interval := cfg.BackupInterval(); interval > 0 {
		d.backups = storage.NewBackupScheduler(storage.NewBackupManager(db, cfg.Database.BackupDir), storage.SchedulerConfig{
			Interval: interval,
			Options:  storage.BackupOptions{Verify: true},
			Keep:     cfg.Database.BackupKeep,
		})
	}
	return d, nil
}

// start launches the API server and the watcher.
func (d *daemon) start() error {
	log.Printf("[Daemon] rarityd %s starting", version.GetVersion())

	if err := d.server.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	if d.watcher != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.watcher.Start(ctx); err != nil {
				log.Printf("[Daemon] Watcher stopped: %v", err)
			}
		}()
	}

	if d.backups != nil {
		if err := d.backups.Start(ctx); err != nil {
			log.Printf("[Daemon] Backup scheduler not started: %v", err)
		}
	}

	log.Printf("[Daemon] API server running at http://localhost:%d", d.server.Port())
	return nil
}

// stop shuts everything down in reverse order of start.
func (d *daemon) stop() {
	log.Println("[Daemon] Shutting down...")

	if d.cancel != nil {
		d.cancel()
	}
	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.wg.Wait()
	if d.backups != nil && d.backups.IsRunning() {
		_ = d.backups.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.server.Shutdown(ctx); err != nil {
		log.Printf("[Daemon] Error during API shutdown: %v", err)
	}

	if err := d.store.Close(); err != nil {
		log.Printf("[Daemon] Error closing database: %v", err)
	}
	log.Println("[Daemon] Stopped")
}
