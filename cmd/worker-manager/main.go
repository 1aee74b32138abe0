// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"scholarship-workers/internal/api"
	"scholarship-workers/internal/blob"
	"scholarship-workers/internal/checkout"
	"scholarship-workers/internal/common/auth"
	awsclient "scholarship-workers/internal/common/aws"
	"scholarship-workers/internal/common/camunda"
	"scholarship-workers/internal/common/config"
	"scholarship-workers/internal/common/database"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/common/observability"
	"scholarship-workers/internal/notification"
	"scholarship-workers/internal/scheduler"
	"scholarship-workers/internal/scholarship"
	"scholarship-workers/internal/search"
	"scholarship-workers/internal/store"

	// Scholarship workers (5)
	iai "scholarship-workers/internal/workers/scholarship/issue-application-id"
	sa "scholarship-workers/internal/workers/scholarship/search-applications"
	sn "scholarship-workers/internal/workers/scholarship/send-notification"
	sub "scholarship-workers/internal/workers/scholarship/submit-application"
	vs "scholarship-workers/internal/workers/scholarship/validate-step"

	// Checkout workers (2)
	po "scholarship-workers/internal/workers/checkout/place-order"
	qc "scholarship-workers/internal/workers/checkout/quote-coupon"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("version", cfg.App.Version))

	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint, log)
	defer obs.Shutdown()

	ctx := context.Background()
	startup := camunda.DefaultRetryConfig
	checks := map[string]api.ReadinessCheck{}

	// --- Document store ---
	var (
		docs    store.DocumentStore
		mem     *store.MemoryStore
		pg      *database.PostgresClient
		counter store.AtomicCounter
	)
	switch cfg.Storage.Driver {
	case "memory":
		mem = store.NewMemoryStore()
		docs = mem
		zapLog.Warn("Using in-memory document store; data is lost on restart")
	default:
		err = camunda.Retry(ctx, startup, log, "PostgreSQL connection", func(ctx context.Context) error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		})
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.Migrate(ctx, cfg.Storage.Table); err != nil {
			zapLog.Fatal("postgres migration failed", zap.Error(err))
		}
		docs = store.NewPostgresDocuments(pg.DB, cfg.Storage.Table)
		checks["postgres"] = pg.Ping
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Redis (counter backend and settings cache) ---
	var rdb *database.RedisClient
	if cfg.Database.Redis.Address != "" {
		err = camunda.Retry(ctx, startup, log, "Redis connection", func(ctx context.Context) error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		})
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		checks["redis"] = rdb.Ping
		zapLog.Info("Redis connected successfully")
	}

	// --- Application ID counter ---
	switch cfg.Scholarship.CounterBackend {
	case "redis":
		if rdb == nil {
			zapLog.Fatal("redis counter backend requires database.redis.address")
		}
		counter = store.NewRedisCounter(rdb.Client, "counters:", cfg.Scholarship.CounterStart)
	case "memory":
		// config validation pairs the memory counter with the memory store
		counter = store.NewMemoryCounter(mem, cfg.Scholarship.CounterStart)
	default:
		if pg == nil {
			zapLog.Fatal("postgres counter backend requires storage.driver postgres")
		}
		counter = store.NewPostgresCounter(pg.DB, cfg.Storage.Table, cfg.Scholarship.CounterStart)
	}

	// --- Payment settings ---
	var settings scholarship.SettingsProvider = scholarship.NewStoreSettings(docs)
	if rdb != nil && cfg.Scholarship.SettingsCacheTTL > 0 {
		settings = scholarship.NewCachedSettings(settings, rdb.Client,
			time.Duration(cfg.Scholarship.SettingsCacheTTL)*time.Second, log)
	}

	// --- AWS: S3 uploads, SES email, SNS SMS ---
	var (
		blobs blob.Store = blob.InlineStore{}
		email notification.EmailSender
		sms   notification.SMSSender
	)
	awsCfg := cfg.Integrations.AWS
	if awsCfg.S3.Enabled || awsCfg.SES.Enabled || awsCfg.SNS.Enabled {
		sdkCfg, err := awsclient.LoadConfig(ctx, awsCfg.Region)
		if err != nil {
			zapLog.Fatal("aws config load failed", zap.Error(err))
		}
		if awsCfg.S3.Enabled {
			blobs = blob.TieredStore{
				Inline:         blob.InlineStore{},
				External:       blob.NewS3Store(awsclient.NewS3Client(sdkCfg), awsCfg.S3.Bucket, awsCfg.S3.Prefix),
				InlineMaxBytes: cfg.Storage.InlineMaxBytes,
			}
		}
		if awsCfg.SES.Enabled {
			email = awsclient.NewEmailSender(awsclient.NewSESClient(sdkCfg), awsCfg.SES.FromEmail)
		}
		if awsCfg.SNS.Enabled {
			sms = awsclient.NewSMSSender(awsclient.NewSNSClient(sdkCfg), awsCfg.SNS.DefaultSMSSenderID)
		}
		zapLog.Info("AWS clients initialized",
			zap.Bool("s3", awsCfg.S3.Enabled),
			zap.Bool("ses", awsCfg.SES.Enabled),
			zap.Bool("sns", awsCfg.SNS.Enabled),
		)
	}

	// --- Identity provider ---
	var keycloak *auth.KeycloakClient
	var notifierOpts []notification.NotifierOption
	if cfg.Auth.Keycloak.URL != "" {
		keycloak = auth.NewKeycloakClient(
			cfg.Auth.Keycloak.URL,
			cfg.Auth.Keycloak.Realm,
			cfg.Auth.Keycloak.ClientID,
			cfg.Auth.Keycloak.ClientSecret,
		)
		notifierOpts = append(notifierOpts, notification.WithContactResolver(keycloak))
	}

	notifier := notification.NewNotifier(docs, email, sms, notification.Options{
		EmailEnabled: email != nil,
		SMSEnabled:   sms != nil,
	}, log, notifierOpts...)

	// --- Search index ---
	var index *search.ApplicationIndex
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = camunda.Retry(ctx, startup, log, "Elasticsearch connection", func(ctx context.Context) error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		})
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		index = search.NewApplicationIndex(esClient.Client, cfg.Database.Elasticsearch.ApplicationIndex, log)
		if err := index.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("elasticsearch index setup failed", zap.Error(err))
		}
		checks["elasticsearch"] = esClient.Ping
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Scholarship wizard and commit protocol ---
	var listeners []scholarship.Listener
	if cfg.Scholarship.NotifyOnSubmit {
		listeners = append(listeners, notifier)
	}
	if cfg.Scholarship.IndexOnSubmit && index != nil {
		listeners = append(listeners, index)
	}
	submitter := scholarship.NewSubmitter(docs, counter, blobs, settings, log, scholarship.WithListeners(listeners...))
	catalog := scholarship.NewCatalog(scholarship.StepOptions{
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		MinimumAge:     cfg.Scholarship.MinimumApplicantAge,
	})
	wizard := scholarship.NewWizard(catalog, submitter)

	shop := checkout.NewService(docs, settings, checkout.Options{
		VerificationCharge: cfg.Checkout.VerificationCharge,
		Currency:           cfg.Checkout.Currency,
	}, log)

	// --- Orphan payment reconciliation ---
	reconciler := scholarship.NewReconciler(docs,
		time.Duration(cfg.Scholarship.OrphanPaymentAfter)*time.Minute, log)
	cron := scheduler.New(log, scheduler.ReconcilePayments(reconciler, cfg.Scholarship.ReconcileSchedule))
	cron.Start()

	// --- Zeebe workers ---
	var (
		zeebe   *camunda.Client
		workers *camunda.Workers
	)
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.Connect(ctx, camunda.ClientConfigFrom(cfg.Camunda), log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		checks["zeebe"] = zeebe.HealthCheck
		zapLog.Info("Zeebe client connected successfully")

		workers = camunda.NewWorkers(zeebe.Zeebe(), log, obs)

		workers.Start(vs.TaskType, config.GetWorkerConfig(cfg, vs.TaskType),
			vs.NewHandler(&vs.Config{Timeout: workerTimeout(cfg, vs.TaskType, vs.LoadConfig().Timeout)}, wizard, log))
		workers.Start(sub.TaskType, config.GetWorkerConfig(cfg, sub.TaskType),
			sub.NewHandler(&sub.Config{Timeout: workerTimeout(cfg, sub.TaskType, sub.LoadConfig().Timeout)}, wizard, log))
		issueConfig := iai.LoadConfig()
		issueConfig.Timeout = workerTimeout(cfg, iai.TaskType, issueConfig.Timeout)
		workers.Start(iai.TaskType, config.GetWorkerConfig(cfg, iai.TaskType), iai.NewHandler(issueConfig, counter, log))
		workers.Start(sn.TaskType, config.GetWorkerConfig(cfg, sn.TaskType),
			sn.NewHandler(&sn.Config{Timeout: workerTimeout(cfg, sn.TaskType, sn.LoadConfig().Timeout)}, notifier, log))
		if index != nil {
			workers.Start(sa.TaskType, config.GetWorkerConfig(cfg, sa.TaskType),
				sa.NewHandler(&sa.Config{Timeout: workerTimeout(cfg, sa.TaskType, sa.LoadConfig().Timeout)}, index, log))
		}
		workers.Start(qc.TaskType, config.GetWorkerConfig(cfg, qc.TaskType),
			qc.NewHandler(&qc.Config{Timeout: workerTimeout(cfg, qc.TaskType, qc.LoadConfig().Timeout)}, shop, log))
		workers.Start(po.TaskType, config.GetWorkerConfig(cfg, po.TaskType),
			po.NewHandler(&po.Config{Timeout: workerTimeout(cfg, po.TaskType, po.LoadConfig().Timeout)}, shop, log))

		zapLog.Info("Workers registered", zap.Strings("taskTypes", workers.Running()))
	}

	// --- HTTP API, health and metrics ---
	deps := api.Dependencies{
		Wizard:    wizard,
		Documents: docs,
		Settings:  settings,
		Checkout:  shop,
		Verifier:  auth.NewJWTVerifier(cfg.Auth.JWT.Secret, cfg.Auth.JWT.Issuer, cfg.Auth.JWT.Audience),
		Checks:    checks,
		Logger:    log,
	}
	if keycloak != nil {
		deps.Enricher = keycloak
	}
	server := api.NewServer(cfg.HTTP.Address, api.NewRouter(api.NewHandler(deps), cfg.HTTP.AllowedOrigins),
		config.GetDuration(cfg.HTTP.ReadTimeout), config.GetDuration(cfg.HTTP.WriteTimeout))
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	if workers != nil {
		workers.Close()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	select {
	case <-cron.Stop().Done():
	case <-shutdownCtx.Done():
		zapLog.Warn("Scheduled jobs still running at shutdown")
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// workerTimeout prefers the per-worker timeout from config over the
// handler's built-in default.
func workerTimeout(cfg *config.Config, taskType string, fallback time.Duration) time.Duration {
	if w, ok := cfg.Workers[taskType]; ok && w.Timeout > 0 {
		return config.GetDuration(w.Timeout)
	}
	return fallback
}
