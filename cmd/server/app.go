package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"heirloom/internal/authz"
	confirmationhandler "heirloom/internal/confirmation/handler"
	confirmationmetrics "heirloom/internal/confirmation/metrics"
	confirmationservice "heirloom/internal/confirmation/service"
	confirmationstore "heirloom/internal/confirmation/store/confirmation"
	contacthandler "heirloom/internal/contacts/handler"
	contactservice "heirloom/internal/contacts/service"
	contactstore "heirloom/internal/contacts/store/contact"
	httpapi "heirloom/internal/http"
	identityhandler "heirloom/internal/identity/handler"
	identityservice "heirloom/internal/identity/service"
	personstore "heirloom/internal/identity/store/person"
	jwttoken "heirloom/internal/jwt_token"
	"heirloom/internal/platform/config"
	"heirloom/internal/platform/database"
	"heirloom/internal/platform/kafka"
	platformmetrics "heirloom/internal/platform/metrics"
	platformredis "heirloom/internal/platform/redis"
	"heirloom/internal/reconciliation"
	reconciliationhandler "heirloom/internal/reconciliation/handler"
	reconciliationmetrics "heirloom/internal/reconciliation/metrics"
	"heirloom/internal/release/adapters/contentapi"
	"heirloom/internal/release/adapters/memory"
	releasehandler "heirloom/internal/release/handler"
	releasemetrics "heirloom/internal/release/metrics"
	"heirloom/internal/release/ports"
	releaseservice "heirloom/internal/release/service"
	sharestore "heirloom/internal/release/store/share"
	"heirloom/internal/release/trigger"
	trusthandler "heirloom/internal/trust/handler"
	trustmetrics "heirloom/internal/trust/metrics"
	trustservice "heirloom/internal/trust/service"
	truststore "heirloom/internal/trust/store"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/audit/publisher"
	auditmemory "heirloom/pkg/platform/audit/store/memory"
	auditpostgres "heirloom/pkg/platform/audit/store/postgres"
	"heirloom/pkg/platform/audit/worker"
	"heirloom/pkg/platform/circuit"
)

// backgroundWorker is a long-running background loop started alongside the server.
type backgroundWorker struct {
	name string
	run  func(ctx context.Context) error
}

// app holds the composed router plus the resources main must start and
// release.
type app struct {
	handler http.Handler
	workers []backgroundWorker
	closers []func()
	logger  *slog.Logger
}

// contentPorts overrides the content service adapters; nil fields fall back
// to the configured client or the in-memory adapters.
type contentPorts struct {
	catalog ports.ContentCatalog
	sharer  ports.ContentSharer
}

// personRepo is the union of what identity and confirmation need from the
// person store.
type personRepo interface {
	identityservice.PersonStore
	confirmationservice.PersonStore
}

// contactRepo is the union of what the registry, index, orchestrator and
// reconciliation job need from the contact store.
type contactRepo interface {
	contactservice.Store
	trustservice.ContactSource
	releaseservice.ContactLookup
	reconciliation.ContactStore
}

type confirmationRepo interface {
	confirmationservice.Store
	releaseservice.ConfirmationSource
}

// newApp wires every component from cfg. Postgres, Redis, Kafka and the
// content service are each optional: an unset URL selects the in-memory
// counterpart.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, content contentPorts) (*app, error) {
	a := &app{logger: logger}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	healthChecks := make(map[string]httpapi.HealthCheck)

	var (
		db            *sql.DB
		persons       personRepo
		contacts      contactRepo
		confirmations confirmationRepo
		shares        releaseservice.Store
		auditStore    audit.Store
		txRunner      confirmationservice.TxRunner
	)
	if cfg.Database.URL != "" {
		var err error
		db, err = database.Open(ctx, cfg.Database.URL, database.PoolOptions{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(cfg.Database.URL, logger); err != nil {
				a.close()
				return nil, err
			}
		}
		healthChecks["postgres"] = database.NewReadinessChecker(db).CheckReady
		persons = personstore.NewPostgres(db)
		contacts = contactstore.NewPostgres(db)
		confirmations = confirmationstore.NewPostgres(db)
		shares = sharestore.NewPostgres(db)
		auditStore = auditpostgres.New(db)
		txRunner = newConfirmationPostgresTx(db)
		logger.Info("using postgres stores")
	} else {
		persons = personstore.NewInMemory()
		contacts = contactstore.NewInMemory()
		confirmations = confirmationstore.NewInMemory()
		shares = sharestore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
		txRunner = confirmationservice.NewShardedTx()
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	var cache trustservice.Cache = truststore.NewInMemoryCache(cfg.Redis.IndexTTL)
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		a.close()
		return nil, err
	}
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		healthChecks["redis"] = redisClient.Health
		cache = truststore.NewRedisCache(redisClient.Client, cfg.Redis.IndexTTL)
		logger.Info("trust index cached in redis")
	}

	auditPublisher := publisher.NewPublisher(auditStore,
		publisher.WithLogger(logger),
		publisher.WithMetrics(publisher.NewMetrics(registry)),
		publisher.WithAsyncBuffer(256),
	)
	a.closers = append(a.closers, auditPublisher.Close)

	identities := identityservice.New(persons,
		identityservice.WithLogger(logger),
		identityservice.WithAuditPublisher(auditPublisher),
	)
	index := trustservice.New(contacts, cache,
		trustservice.WithLogger(logger),
		trustservice.WithMetrics(trustmetrics.New(registry)),
	)
	contactRegistry := contactservice.New(contacts, identities,
		contactservice.WithLogger(logger),
		contactservice.WithAuditPublisher(auditPublisher),
		contactservice.WithIndexInvalidator(index),
	)
	guard := authz.NewGuard(index, logger)

	catalog, sharer := content.catalog, content.sharer
	if catalog == nil || sharer == nil {
		if cfg.Release.ContentAPIURL != "" {
			client := contentapi.New(cfg.Release.ContentAPIURL, cfg.Release.ContentAPIToken, cfg.Release.CallTimeout,
				contentapi.WithBreaker(circuit.New("content-api")),
				contentapi.WithLogger(logger),
			)
			catalog, sharer = client, client
		} else {
			catalog, sharer = memory.NewCatalog(), memory.NewSharer()
			logger.Warn("CONTENT_API_URL not set, releases go to the in-memory content adapter")
		}
	}
	orchestrator := releaseservice.New(confirmations, contacts, catalog, sharer, shares,
		releaseservice.WithLogger(logger),
		releaseservice.WithAuditPublisher(auditPublisher),
		releaseservice.WithMetrics(releasemetrics.New(registry)),
		releaseservice.WithMaxParallel(cfg.Release.MaxParallel),
	)

	releaseTrigger, err := a.wireTransport(ctx, cfg, db, orchestrator)
	if err != nil {
		a.close()
		return nil, err
	}

	confirmationSvc := confirmationservice.New(guard, persons, confirmations,
		confirmationservice.WithLogger(logger),
		confirmationservice.WithAuditPublisher(auditPublisher),
		confirmationservice.WithMetrics(confirmationmetrics.New(registry)),
		confirmationservice.WithReleaseTrigger(releaseTrigger),
		confirmationservice.WithTxRunner(txRunner),
	)

	job := reconciliation.NewJob(contacts, identities, index,
		reconciliation.WithLogger(logger),
		reconciliation.WithAuditPublisher(auditPublisher),
		reconciliation.WithMetrics(reconciliationmetrics.New(registry)),
		reconciliation.WithBatchSize(cfg.Reconciliation.BatchSize),
	)
	scheduler := reconciliation.NewScheduler(job, cfg.Reconciliation.Interval, logger)
	a.workers = append(a.workers, backgroundWorker{name: "reconciliation", run: scheduler.Run})

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	releaseRoutes := releasehandler.New(orchestrator, logger)
	a.handler = httpapi.NewRouter(httpapi.Options{
		AdminToken:     cfg.Server.AdminToken,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Validator:      jwttoken.NewJWTServiceAdapter(jwtService),
		Observer:       platformmetrics.New(registry),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		HealthChecks:   healthChecks,
	}, httpapi.Handlers{
		Identity: identityhandler.New(identities, logger),
		User: []httpapi.Routes{
			contacthandler.New(contactRegistry, logger),
			trusthandler.New(index, logger),
			confirmationhandler.New(confirmationSvc, logger),
			releaseRoutes,
		},
		Admin: []httpapi.AdminRoutes{
			releaseRoutes,
			reconciliationhandler.New(job, logger),
		},
	}, logger)
	return a, nil
}

// wireTransport picks the release hand-off. With brokers configured the
// confirmation publishes to Kafka and a consumer group runs the release;
// the audit outbox relay needs both Kafka and Postgres.
func (a *app) wireTransport(ctx context.Context, cfg config.Config, db *sql.DB, orchestrator *releaseservice.Orchestrator) (confirmationservice.ReleaseTrigger, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		async := trigger.NewAsync(orchestrator, 0, a.logger)
		a.workers = append(a.workers, backgroundWorker{name: "release-queue", run: func(ctx context.Context) error {
			async.Start(ctx)
			<-ctx.Done()
			async.Wait()
			return ctx.Err()
		}})
		a.logger.Warn("KAFKA_BROKERS not set, releases run on the in-process queue")
		return async, nil
	}

	if err := kafka.EnsureTopics(ctx, cfg.Kafka.Brokers, 3, 1, cfg.Kafka.ReleaseTopic, cfg.Kafka.AuditTopic); err != nil {
		return nil, fmt.Errorf("ensure kafka topics: %w", err)
	}
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, producer.Close)

	consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup,
		[]string{cfg.Kafka.ReleaseTopic}, trigger.Handler(orchestrator, a.logger), a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, consumer.Close)
	a.workers = append(a.workers, backgroundWorker{name: "release-consumer", run: consumer.Run})

	if db != nil {
		relay := worker.NewRelay(auditpostgres.New(db), producer, cfg.Kafka.AuditTopic, 0, a.logger)
		a.workers = append(a.workers, backgroundWorker{name: "audit-relay", run: relay.Run})
	}
	return trigger.NewKafka(producer, cfg.Kafka.ReleaseTopic), nil
}

// close releases resources in reverse acquisition order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
