package main

// @title LeadDesk API
// @version 1.0
// @description Lead and conversation unification with first-response SLA tracking.

// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/jordanlanch/leaddesk/config"
	apierrors "github.com/jordanlanch/leaddesk/pkg/api/errors"
	"github.com/jordanlanch/leaddesk/pkg/api/handlers"
	"github.com/jordanlanch/leaddesk/pkg/attachments"
	"github.com/jordanlanch/leaddesk/pkg/audit"
	"github.com/jordanlanch/leaddesk/pkg/cache"
	"github.com/jordanlanch/leaddesk/pkg/conversation"
	"github.com/jordanlanch/leaddesk/pkg/database"
	"github.com/jordanlanch/leaddesk/pkg/dedup"
	"github.com/jordanlanch/leaddesk/pkg/email"
	"github.com/jordanlanch/leaddesk/pkg/export"
	"github.com/jordanlanch/leaddesk/pkg/ingest"
	"github.com/jordanlanch/leaddesk/pkg/jobs"
	"github.com/jordanlanch/leaddesk/pkg/leadassignment"
	"github.com/jordanlanch/leaddesk/pkg/logger"
	"github.com/jordanlanch/leaddesk/pkg/metrics"
	custommiddleware "github.com/jordanlanch/leaddesk/pkg/middleware"
	"github.com/jordanlanch/leaddesk/pkg/normalizer"
	"github.com/jordanlanch/leaddesk/pkg/policy"
	"github.com/jordanlanch/leaddesk/pkg/secrets"
	"github.com/jordanlanch/leaddesk/pkg/sla"
	"github.com/jordanlanch/leaddesk/pkg/slack"
	"github.com/jordanlanch/leaddesk/pkg/store"
	"github.com/jordanlanch/leaddesk/pkg/store/memory"
	"github.com/jordanlanch/leaddesk/pkg/store/sqlstore"
	"github.com/jordanlanch/leaddesk/pkg/whatsapp"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	apierrors.SetLogger(log)

	if err := run(cfg, log); err != nil {
		log.Error("leaddesk stopped", "error", err)
		os.Exit(1)
	}
}

// coordination bundles the cross-worker primitives: Redis when configured,
// process-local otherwise.
type coordination struct {
	locker  store.Locker
	leaser  store.Leaser
	cursors store.CursorStore
	redis   *cache.Client
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := applySecrets(ctx, cfg, log); err != nil {
		return err
	}

	// Sentry for error tracking
	var extra []echo.MiddlewareFunc
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Warn("failed to initialize sentry", "error", err)
		} else {
			log.Info("sentry initialized", "environment", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
			extra = append(extra, sentryecho.New(sentryecho.Options{Repanic: true}))
		}
	}

	st, db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	coord, err := openCoordination(cfg, log)
	if err != nil {
		return err
	}
	if coord.redis != nil {
		defer coord.redis.Close()
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	templates := policy.NewTemplates(nil)
	if cfg.PolicyPath != "" {
		doc, err := policy.Load(cfg.PolicyPath)
		if err != nil {
			return err
		}
		if err := policy.Seed(ctx, st, doc, time.Now()); err != nil {
			return err
		}
		templates = policy.NewTemplates(doc.Templates)
		log.Info("policy seeded", "sla_configs", len(doc.SLAConfigs), "rules", len(doc.Rules), "templates", len(doc.Templates))
	}

	var slackClient slack.SlackClient
	if cfg.SlackWebhookURL != "" {
		slackClient = slack.NewWebhookClient(cfg.SlackWebhookURL)
		log.Info("slack alerts enabled")
	}
	alerts := slack.NewService(slackClient, cfg.ConsoleURL)

	// Services
	auditSvc := audit.NewService(st, audit.WithLogger(log), audit.WithMetrics(m))
	convs := conversation.NewService(st,
		conversation.WithAudit(auditSvc),
		conversation.WithMetrics(m),
		conversation.WithLogger(log),
	)
	slaSvc := sla.NewService(st, st, st,
		sla.WithMirror(convs),
		sla.WithAlerter(alerts),
		sla.WithAudit(auditSvc),
		sla.WithMetrics(m),
		sla.WithLogger(log),
	)
	resolver := dedup.NewService(st,
		dedup.WithLocker(coord.locker),
		dedup.WithAudit(auditSvc),
		dedup.WithLogger(log),
		dedup.WithWindow(cfg.DedupWindow),
	)
	assigner := leadassignment.NewService(st, st, coord.cursors, st,
		leadassignment.WithConversations(convs),
		leadassignment.WithAlerter(alerts),
		leadassignment.WithAudit(auditSvc),
		leadassignment.WithMetrics(m),
		leadassignment.WithLogger(log),
	)
	norm := normalizer.New(
		normalizer.WithRegion(cfg.PhoneRegion),
		normalizer.WithDefaultProject(cfg.DefaultProject),
	)

	ingestCfg := ingest.DefaultConfig()
	ingestCfg.Timeout = cfg.IngestTimeout
	ingestCfg.Attempts = cfg.IngestAttempts
	ingestCfg.AssignWait = cfg.AssignWait
	pipeline := ingest.NewPipeline(norm, resolver, convs, slaSvc, assigner,
		ingest.WithAudit(auditSvc),
		ingest.WithMetrics(m),
		ingest.WithLogger(log),
		ingest.WithConfig(ingestCfg),
	)

	emailSvc := email.NewService(email.Config{
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
		APIKey:    cfg.SendGridAPIKey,
	}, log)
	waClient := whatsapp.NewClient(whatsapp.Config{
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		AccessToken:   cfg.WhatsAppAccessToken,
	}, log)
	replier := ingest.NewReplier(convs, st, slaSvc, emailSvc, waClient,
		ingest.WithTemplates(templates),
		ingest.WithReplyAudit(auditSvc),
		ingest.WithReplyMetrics(m),
		ingest.WithReplyLogger(log),
	)

	// Scheduled jobs
	sweeper := sla.NewSweeper(slaSvc, st, coord.leaser, sla.SweeperConfig{
		BatchSize: cfg.SweepBatchSize,
		Workers:   cfg.SweepWorkers,
		Shard:     cfg.SweepShard,
		Shards:    cfg.SweepShards,
	}, log, m)
	schedule := jobs.DefaultSchedule()
	schedule.Sweep = cfg.SweepSchedule
	schedule.SweepTimeout = cfg.SweepTimeout
	schedule.Reconcile = cfg.ReconcileSchedule
	cronManager := jobs.NewCronManager(sweeper, auditSvc, schedule, log)
	if err := cronManager.SetupJobs(); err != nil {
		return fmt.Errorf("failed to setup cron jobs: %w", err)
	}
	cronManager.Start()

	rateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	go rateLimiter.Cleanup(ctx, 5*time.Minute)

	var inboundOpts []handlers.InboundOption
	if cfg.AttachmentsBucket != "" {
		files, err := attachments.NewS3Store(ctx, attachments.Config{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.AttachmentsBucket,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Endpoint:        cfg.AttachmentsEndpoint,
		}, log)
		if err != nil {
			return err
		}
		inboundOpts = append(inboundOpts, handlers.WithAttachmentStore(files))
		log.Info("attachment storage enabled", "bucket", cfg.AttachmentsBucket)
	}

	e := newServer(serverDeps{
		Log:         log,
		Metrics:     m,
		Gatherer:    prometheus.DefaultGatherer,
		RateLimiter: rateLimiter,
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSAllowedOrigins,
		BodyLimit:   cfg.BodyLimit,
		Extra:       extra,
		Health: func(ctx context.Context) map[string]string {
			checks := map[string]string{}
			if db != nil {
				checks["database"] = upDown(db.Ping(ctx))
			}
			if coord.redis != nil {
				checks["redis"] = upDown(coord.redis.Ping(ctx))
			}
			return checks
		},
		Inbound:       handlers.NewInboundHandler(pipeline, cfg.IngestTimeout*time.Duration(max(cfg.IngestAttempts, 1))+5*time.Second, inboundOpts...),
		Replies:       handlers.NewReplyHandler(replier),
		Conversations: handlers.NewConversationHandler(convs, slaSvc),
		Leads:         handlers.NewLeadHandler(st, convs, slaSvc, assigner),
		Audit:         handlers.NewAuditHandler(auditSvc),
		Admin:         handlers.NewAdminHandler(cronManager, export.NewService(st, st)),
	})

	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	errCh := make(chan error, 1)
	go func() {
		log.Info("leaddesk api starting", "address", address, "environment", cfg.APIEnvironment, "store", cfg.StoreDriver)
		if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	cronManager.Stop(shutdownCtx)
	pipeline.Wait()
	auditSvc.Wait()
	log.Info("server gracefully stopped")
	return nil
}

// applySecrets overlays credentials from the secrets backend onto cfg.
// The env backend is a no-op since Load already read the environment.
func applySecrets(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	if cfg.SecretsBackend == "" || cfg.SecretsBackend == "env" {
		return nil
	}
	mgr, err := secrets.NewManager(secrets.Config{
		Backend:       cfg.SecretsBackend,
		AWSRegion:     cfg.AWSRegion,
		CacheDuration: cfg.SecretsCacheDuration,
	}, log)
	if err != nil {
		return err
	}
	creds, err := secrets.LoadCredentials(ctx, mgr, secrets.Credentials{
		DatabaseURL:         cfg.DatabaseURL,
		RedisURL:            cfg.RedisURL,
		SendGridAPIKey:      cfg.SendGridAPIKey,
		WhatsAppAccessToken: cfg.WhatsAppAccessToken,
		SlackWebhookURL:     cfg.SlackWebhookURL,
		SentryDSN:           cfg.SentryDSN,
	})
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	cfg.JWTSecret = creds.JWTSecret
	cfg.DatabaseURL = creds.DatabaseURL
	cfg.RedisURL = creds.RedisURL
	cfg.SendGridAPIKey = creds.SendGridAPIKey
	cfg.WhatsAppAccessToken = creds.WhatsAppAccessToken
	cfg.SlackWebhookURL = creds.SlackWebhookURL
	cfg.SentryDSN = creds.SentryDSN
	log.Info("credentials loaded from secrets backend", "backend", cfg.SecretsBackend)
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (store.Store, *database.Client, error) {
	if cfg.StoreDriver == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		return memory.New(), nil, nil
	}

	pool := database.DefaultPoolConfig()
	pool.MaxOpenConns = cfg.DBMaxOpenConns
	pool.MaxIdleConns = cfg.DBMaxIdleConns
	db, err := database.NewClient(ctx, cfg.DatabaseURL, pool, &database.SSLConfig{
		Mode:         cfg.DBSSLMode,
		CertPath:     cfg.DBSSLCertPath,
		KeyPath:      cfg.DBSSLKeyPath,
		RootCertPath: cfg.DBSSLRootCertPath,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	st := sqlstore.New(db.DB, sqlstore.Postgres)
	if err := st.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return st, db, nil
}

func openCoordination(cfg *config.Config, log logger.Logger) (*coordination, error) {
	if cfg.RedisURL == "" {
		log.Warn("redis not configured, locks and leases are process-local")
		return &coordination{
			locker:  memory.NewLocker(),
			leaser:  memory.NewLeaser(),
			cursors: memory.NewCursors(),
		}, nil
	}
	rc, err := cache.NewClient(cfg.RedisURL, log)
	if err != nil {
		return nil, err
	}
	return &coordination{
		locker:  cache.NewLocker(rc),
		leaser:  cache.NewLeaser(rc),
		cursors: cache.NewCursors(rc),
		redis:   rc,
	}, nil
}

func upDown(err error) string {
	if err != nil {
		return "down"
	}
	return "up"
}
