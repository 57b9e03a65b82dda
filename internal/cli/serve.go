package cli

import (
	"GDALedger/internal/config"
	"GDALedger/internal/core"
	"GDALedger/internal/ingestion"
	"GDALedger/internal/ledger"
	"GDALedger/internal/marketplace"
	"GDALedger/internal/observability"
	"GDALedger/internal/persistence"
	"GDALedger/internal/projection"
	"GDALedger/internal/query"
	"GDALedger/internal/server"
	"GDALedger/internal/state"
	"GDALedger/internal/store"
	"GDALedger/migrations"
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ledger: command intake, persistence, projections and the API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg, log)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func openStore(cfg config.StoreConfig) (*store.PebbleKV, error) {
	if cfg.Dir == "" {
		return store.OpenInMemory()
	}
	return store.OpenPebble(cfg.Dir)
}

func runServe(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	log.Info().Msg("GDALedger starting")

	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	// --- Postgres ---
	db, err := openDB(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	health.Register("postgres", func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})

	if _, err := persistence.NewMigrator(db, migrations.FS, log).Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// --- Local store ---
	kv, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()
	cache, err := state.NewListingCache(cfg.Store.ListingCache)
	if err != nil {
		return err
	}

	// --- NATS ---
	var (
		js     jetstream.JetStream
		market marketplace.Marketplace = marketplace.NewRecorder()
	)
	if cfg.NATS.Enabled {
		nc, stream, err := ingestion.ConnectNATS(cfg.NATS.URL, log)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		js = stream
		if err := ingestion.EnsureStreams(ctx, js); err != nil {
			return fmt.Errorf("ensure streams: %w", err)
		}
		if err := ingestion.EnsureOutboundStream(ctx, js); err != nil {
			return fmt.Errorf("ensure outbound stream: %w", err)
		}
		market = marketplace.NewJetStreamMarketplace(js, cfg.Marketplace.Timeout, log)
		health.Register("nats", func() error {
			if !nc.IsConnected() {
				return fmt.Errorf("nats status %s", nc.Status())
			}
			return nil
		})
	} else {
		log.Warn().Msg("NATS disabled: sell orders are recorded in memory only")
	}

	// --- Core ---
	persistChan := make(chan core.CoreOutput, cfg.Channels.Persist)
	projectionChan := make(chan core.CoreOutput, cfg.Channels.Projection)
	persistDone := make(chan struct{})

	engine, err := core.NewEngine(core.Config{
		KV:                  kv,
		Cache:               cache,
		Book:                ledger.DefaultAddressBook(),
		Rent:                ledger.DefaultRent,
		Marketplace:         market,
		Clock:               core.SystemClock{},
		DBChecker:           persistence.NewPostgresIdempotencyChecker(db),
		IdempotencyCapacity: cfg.Idempotency.LRUCapacity,
		Metrics:             metrics,
		Logger:              log,
		PersistChan:         persistChan,
		ProjectionChan:      projectionChan,
		PersistDone:         persistDone,
	})
	if err != nil {
		return err
	}

	// --- Recovery checks ---
	reader := persistence.NewEventLogReader(db)
	head := engine.GetSequence() - 1
	if err := reader.CheckHead(ctx, head, engine.GetStateHash()); err != nil {
		return err
	}
	if latest, err := reader.GetLatestSequence(ctx); err == nil && latest < head {
		log.Warn().Int64("log", latest).Int64("local", head).
			Msg("event log is behind the local head; the missing commands were not flushed before the last shutdown")
	}
	if cfg.Idempotency.WarmKeys > 0 {
		keys, err := reader.RecentIdempotencyKeys(ctx, cfg.Idempotency.WarmKeys)
		if err != nil {
			return fmt.Errorf("warm idempotency: %w", err)
		}
		engine.WarmIdempotency(keys)
		log.Info().Int("keys", len(keys)).Msg("idempotency cache warmed")
	}
	log.Info().Int64("head", head).Msg("engine recovered")

	// --- Workers ---
	dispatcher := core.NewDispatcher(engine, cfg.Channels.Commands, metrics, log.With().Str("component", "dispatcher").Logger())
	persistWorker := persistence.NewPersistenceWorker(db, persistChan, cfg.Persist.BatchSize, cfg.Persist.FlushTimeout, metrics, log.With().Str("component", "persistence").Logger())
	projectionWorker := projection.NewProjectionWorker(db, projectionChan, metrics, log.With().Str("component", "projection").Logger())

	queries := query.NewQueryService(db, metrics)
	srv := server.New(server.NewService(dispatcher, engine, queries, log), server.Options{
		GRPCAddr:      cfg.Server.GRPCAddr,
		HTTPAddr:      cfg.Server.HTTPAddr,
		HealthChecker: health,
	}, log.With().Str("component", "server").Logger())

	// The engine is the only sender on persistChan and projectionChan, and
	// it runs on the dispatcher goroutine, so both close once the front has
	// stopped.
	p := &pipeline{
		closeSinks: func() {
			close(persistChan)
			close(projectionChan)
		},
		drainTimeout: cfg.Persist.DrainTimeout,
	}
	p.addFront(dispatcher.Run)
	p.addSink(projectionWorker.Run)

	var publishChan chan core.CoreOutput
	if js != nil {
		publishChan = make(chan core.CoreOutput, cfg.Channels.Publish)
		persistWorker.ForwardTo(publishChan)
		publisher := ingestion.NewOutboundPublisher(js, publishChan, log.With().Str("component", "publisher").Logger())
		p.addSink(publisher.Run)

		inbound := make(chan ingestion.RawEvent, cfg.Channels.Inbound)
		subscriber := ingestion.NewNATSSubscriber(js, inbound, log.With().Str("component", "subscriber").Logger())
		subCtx, cancelSub := context.WithCancel(ctx)
		defer cancelSub()
		if err := subscriber.Subscribe(subCtx, ingestion.DefaultSubjects()); err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
		defer subscriber.Stop()
		p.addFront(func(ctx context.Context) error {
			<-ctx.Done()
			cancelSub()
			subscriber.Stop()
			return nil
		})
		router := ingestion.NewRouter(dispatcher, inbound, log.With().Str("component", "router").Logger())
		p.addFront(router.Run)
	}
	p.addSink(func(ctx context.Context) error {
		defer close(persistDone)
		err := persistWorker.Run(ctx)
		if publishChan != nil {
			close(publishChan)
		}
		return err
	})

	if cfg.Server.GRPCAddr != "" {
		p.addFront(srv.ServeGRPC)
	}
	if cfg.Server.HTTPAddr != "" {
		p.addFront(srv.ServeHTTP)
	}

	health.SetReady(true)
	log.Info().Msg("GDALedger ready")

	err = p.run(ctx)
	health.SetReady(false)
	log.Info().Err(err).Msg("GDALedger stopped")
	return err
}
