// Package main provides the unified auction service:
// - Settlement engine with one actor per auction
// - Kaspa node watcher feeding on-chain payments as bids
// - Lifecycle scheduler driving status transitions
// - HTTP API and websocket hub for clients
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kaspa-auction-engine/config"
	"kaspa-auction-engine/internal/archive"
	"kaspa-auction-engine/internal/domain"
	"kaspa-auction-engine/internal/engine"
	"kaspa-auction-engine/internal/events/wshub"
	"kaspa-auction-engine/internal/lifecycle"
	"kaspa-auction-engine/internal/observability"
	"kaspa-auction-engine/internal/storage"
	chstore "kaspa-auction-engine/internal/storage/clickhouse"
	"kaspa-auction-engine/internal/storage/memory"
	"kaspa-auction-engine/internal/storage/migrations"
	pgstore "kaspa-auction-engine/internal/storage/postgres"
	"kaspa-auction-engine/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	noWatcher := flag.Bool("no-watcher", false, "Run without a Kaspa node connection (bids only via tests/tools)")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores
	store, decisionArchive, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("auction_engine")

	// Decision archive writer (optional)
	var recorder *archive.Recorder
	if decisionArchive != nil {
		recorder = archive.NewRecorder(archive.RecorderOptions{
			Store:         decisionArchive,
			Logger:        logger,
			BufferSize:    cfg.Archive.BufferSize,
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.ArchiveFlushInterval(),
		})
	}

	// Websocket hub. The snapshot closure closes over eng, which is
	// assigned below; clients can only request snapshots after the API
	// is listening, by which time the engine exists.
	var eng *engine.Engine
	hub := wshub.New(wshub.Options{
		Snapshot: func(ctx context.Context) ([]*domain.Auction, error) {
			return eng.ListAuctions(ctx)
		},
		Logger:           logger,
		OnClientsChanged: func(n int) { metrics.WSClients.Set(float64(n)) },
		OnDropped:        func() { metrics.IncEventsDropped("wshub") },
	})
	go hub.Run(ctx)

	// Engine
	engineOpts := engine.Options{
		Store:     store,
		Publisher: hub,
		Metrics:   metrics,
		Logger:    logger,
		Config: engine.Config{
			EndingSoonThreshold: cfg.EndingSoonThreshold(),
			ActorGrace:          cfg.ActorGrace(),
			MailboxSize:         cfg.Engine.MailboxSize,
		},
	}
	if recorder != nil {
		engineOpts.Recorder = recorder
	}
	eng = engine.New(engineOpts)

	if err := eng.Start(ctx); err != nil {
		logger.Fatalf("Failed to start engine: %v", err)
	}

	// Node watcher
	var w *watcher.Watcher
	if !*noWatcher {
		client, err := watcher.NewClient(ctx, cfg.Node.WSEndpoint, nil, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to node at %s: %v", cfg.Node.WSEndpoint, err)
		}
		defer client.Close()
		client.OnReconnect = func() { metrics.WatcherReconnects.Inc() }

		w = watcher.New(watcher.Options{
			Source:            client,
			Engine:            eng,
			Logger:            logger,
			ConfirmationDepth: cfg.Node.ConfirmationDepth,
			OnMessage:         func() { metrics.WatcherMessagesProcessed.Inc() },
		})
		go func() {
			if err := w.Run(ctx); err != nil && err != context.Canceled {
				logger.Printf("Watcher stopped: %v", err)
			}
		}()

		// Resume tracking seller addresses for open auctions.
		open, err := eng.ListAuctions(ctx)
		if err != nil {
			logger.Fatalf("Failed to list auctions for tracking: %v", err)
		}
		for _, a := range open {
			if a.Status == domain.StatusEnded {
				continue
			}
			if err := w.Track(ctx, a.ID, a.Seller.Address); err != nil {
				logger.Printf("Failed to track auction %s: %v", a.ID, err)
			}
		}
	} else {
		logger.Println("Watcher disabled, on-chain bids will not be ingested")
	}

	// Lifecycle scheduler
	scheduler := lifecycle.NewScheduler(eng, cfg.TickInterval(), logger)
	go func() {
		if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("Scheduler stopped: %v", err)
		}
	}()

	// HTTP servers
	api := &apiServer{engine: eng, watcher: w, hub: hub, logger: logger, started: time.Now().UTC()}
	apiSrv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: api.routes()}
	go func() {
		logger.Printf("API listening on %s", cfg.Server.ListenAddr)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("API server error: %v", err)
		}
	}()

	metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux()}
	go func() {
		logger.Printf("Metrics listening on %s", cfg.Server.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("Metrics server error: %v", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Printf("Received signal %v, shutting down...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("API shutdown: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Metrics shutdown: %v", err)
	}

	cancel()
	eng.Close()
	if recorder != nil {
		recorder.Close()
	}

	logger.Println("Shutdown complete")
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// createStores builds the auction store and the optional decision
// archive per configuration.
func createStores(ctx context.Context, cfg *config.Config) (storage.AuctionStore, storage.DecisionArchive, func(), error) {
	if cfg.Storage.UseMemory {
		return memory.NewAuctionStore(), memory.NewDecisionArchive(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	// ClickHouse is optional; without it decisions are simply not archived.
	if cfg.Storage.ClickhouseDSN == "" {
		return pgstore.NewAuctionStore(pool), nil, pool.Close, nil
	}

	chConn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
		chConn.Close()
		pool.Close()
		return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return pgstore.NewAuctionStore(pool), chstore.NewDecisionArchiveStore(chConn), cleanup, nil
}
