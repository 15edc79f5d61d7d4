package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"entrypass/internal/destination"
	jwttoken "entrypass/internal/jwt_token"
	"entrypass/internal/photos"
	"entrypass/internal/platform/config"
	"entrypass/internal/platform/httpserver"
	"entrypass/internal/platform/logger"
	"entrypass/internal/platform/metrics"
	"entrypass/internal/platform/postgres"
	"entrypass/internal/platform/redis"
	"entrypass/internal/profile/debounce"
	profilehandler "entrypass/internal/profile/handler"
	profilemetrics "entrypass/internal/profile/metrics"
	profileservice "entrypass/internal/profile/service"
	"entrypass/internal/profile/store"
	"entrypass/internal/submission/client"
	submissionhandler "entrypass/internal/submission/handler"
	"entrypass/internal/submission/lock"
	submissionmetrics "entrypass/internal/submission/metrics"
	"entrypass/internal/submission/remote"
	submissionservice "entrypass/internal/submission/service"
	"entrypass/internal/submission/snapshot"
	httptransport "entrypass/internal/transport/http"
	id "entrypass/pkg/domain"
	audit "entrypass/pkg/platform/audit"
	"entrypass/pkg/platform/audit/publisher"
	auditkafka "entrypass/pkg/platform/audit/store/kafka"
	auditmemory "entrypass/pkg/platform/audit/store/memory"
	auditpostgres "entrypass/pkg/platform/audit/store/postgres"
	"entrypass/pkg/platform/circuit"
)

// main wires dependencies from the environment and runs the HTTP server until
// SIGINT or SIGTERM. PostgreSQL, Redis, Kafka and S3 are each optional; the
// in-memory implementations stand in when one is not configured.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	destinations, err := destination.Load(cfg.DestinationsDir)
	if err != nil {
		return err
	}

	db, err := postgres.Open(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	checks := map[string]httptransport.HealthCheck{}
	if db != nil {
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		checks["postgres"] = db.PingContext
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = redisClient.Health
	}

	auditStore, closeAudit, err := newAuditStore(ctx, cfg.Audit, db, log)
	if err != nil {
		return err
	}
	defer closeAudit()
	auditor := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(cfg.Audit.Buffer),
		publisher.WithLogger(log),
	)
	defer auditor.Close()

	backend, err := newProfileBackend(cfg.Database, db)
	if err != nil {
		return err
	}
	pMetrics := profilemetrics.New()
	profiles := profileservice.New(backend,
		profileservice.WithLogger(log),
		profileservice.WithMetrics(pMetrics),
		profileservice.WithAuditPublisher(auditor),
		profileservice.WithRetry(cfg.Profile.StorageRetries, cfg.Profile.StorageBackoff),
	)
	saver := debounce.New(profiles.Save,
		debounce.WithTargetResolver(profiles.TargetID),
		debounce.WithDelay(cfg.Profile.SaveDebounce),
		debounce.WithLogger(log),
		debounce.WithMetrics(pMetrics),
	)

	var snapshotStore snapshot.Store = snapshot.NewInMemoryStore()
	if db != nil {
		snapshotStore = snapshot.NewPostgresStore(db)
	}
	sMetrics := submissionmetrics.New()
	writer := snapshot.NewWriter(snapshotStore,
		snapshot.WithAuditPublisher(auditor),
		snapshot.WithMetrics(sMetrics),
		snapshot.WithLogger(log),
	)

	var locker lock.Locker = lock.NewInMemoryLocker()
	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient.Client, redisClient.Key("submit")+":")
	}
	remoteClient := remote.New(cfg.Submit.RemoteBaseURL, cfg.Submit.RemoteTimeout)
	submissions := submissionservice.New(profiles, destinations,
		func(destinationID id.DestinationID) submissionservice.Remote {
			return remoteClient.For(destinationID)
		},
		writer,
		submissionservice.WithFlusher(saver),
		submissionservice.WithLocker(locker, cfg.Submit.LockTTL),
		submissionservice.WithAuditPublisher(auditor),
		submissionservice.WithMetrics(sMetrics),
		submissionservice.WithLogger(log),
		submissionservice.WithClientOptions(client.WithRetry(cfg.Submit.MaxRetries, cfg.Submit.Backoff)),
		submissionservice.WithBreakerOptions(
			circuit.WithFailureThreshold(cfg.Submit.BreakerFailure),
			circuit.WithSuccessThreshold(cfg.Submit.BreakerSuccess),
		),
	)

	var (
		uploader  httptransport.PhotoUploader
		ownership profilehandler.PhotoOwnership
	)
	if cfg.Photos.Bucket != "" {
		photoService, err := photos.New(ctx, cfg.Photos, photos.WithLogger(log))
		if err != nil {
			return err
		}
		uploader, ownership = photoService, photoService
	}

	validator := jwttoken.NewMiddlewareAdapter(jwttoken.NewVerifier(cfg.JWTSigningKey, jwttoken.WithIssuer(cfg.JWTIssuer)))
	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        metrics.New(),
		Validator:      validator,
		RequestTimeout: cfg.RequestTimeout,
		Handler:        httptransport.NewHandler(destinations, uploader, checks, log),
		Handlers: []httptransport.Registrar{
			profilehandler.New(profiles, saver, destinations, ownership, log),
			submissionhandler.New(submissions, log),
		},
	})
	srv := httpserver.New(cfg.Addr, router, cfg.RequestTimeout, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting entrypass", "addr", cfg.Addr, "destinations", len(destinations.List()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	// Edits still waiting on their debounce timer are written before exit.
	if err := saver.Close(shutdownCtx); err != nil {
		log.Error("pending edits lost on shutdown", "error", err)
	}
	return nil
}

func newProfileBackend(cfg config.DatabaseConfig, db *sql.DB) (store.Backend, error) {
	if db == nil {
		return store.NewInMemoryBackend(), nil
	}
	var opts []store.PostgresOption
	if len(cfg.EncryptionKey) > 0 {
		sealer, err := store.NewSealer(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, store.WithSealer(sealer))
	}
	return store.NewPostgresBackend(db, opts...), nil
}

// newAuditStore prefers Kafka, mirrored into PostgreSQL or memory for reads.
func newAuditStore(ctx context.Context, cfg config.AuditConfig, db *sql.DB, log *slog.Logger) (audit.Store, func(), error) {
	var local audit.Store = auditmemory.NewInMemoryStore()
	if db != nil {
		local = auditpostgres.New(db)
	}
	if len(cfg.Brokers) == 0 {
		return local, func() {}, nil
	}

	kafkaClient, err := auditkafka.NewClient(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, nil, err
	}
	if err := auditkafka.EnsureTopic(ctx, kafkaClient, cfg.Topic, 3, 1); err != nil {
		log.Warn("audit topic not provisioned", "topic", cfg.Topic, "error", err)
	}
	closeFn := func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := kafkaClient.Flush(flushCtx); err != nil {
			log.Warn("audit producer flush failed", "error", err)
		}
		kafkaClient.Close()
	}
	return auditkafka.NewSink(kafkaClient, cfg.Topic, auditkafka.WithMirror(local)), closeFn, nil
}
