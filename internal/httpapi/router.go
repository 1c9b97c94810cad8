package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wahans/throttl/internal/config"
	"github.com/wahans/throttl/internal/logging"
	"github.com/wahans/throttl/internal/metrics"
	"github.com/wahans/throttl/internal/middleware"
	"github.com/wahans/throttl/internal/ratelimit"
	"github.com/wahans/throttl/internal/storage"
	"github.com/wahans/throttl/internal/store"
	"github.com/wahans/throttl/internal/usage"
	"github.com/wahans/throttl/internal/utils"
	"github.com/wahans/throttl/internal/webhooks"
)

// Dependencies holds every component the router serves, so the caller can
// shut them down in order.
type Dependencies struct {
	Keys     store.KeyStore
	Plans    store.PlanStore
	Webhooks store.WebhookStore

	Engine     *usage.Engine
	Reporter   *usage.Reporter
	Dispatcher *webhooks.Dispatcher
	Queue      webhooks.DeliveryQueue
	DLQ        webhooks.DeadLetterQueue
	Sink       logging.Sink
	Metrics    metrics.Metrics

	db     *storage.DB
	redis  *storage.RedisClient
	logger *utils.Logger
}

// BuildDependencies wires the service from configuration. An empty database
// URL selects the in-memory stores, an empty Redis address the in-memory
// counter, gate and queue, so a bare binary runs with no external services.
func BuildDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	logger := utils.NewLogger("throttl")
	deps := &Dependencies{logger: logger}

	if cfg.Database.URL != "" {
		db, err := storage.NewDB(storage.DBConfig{
			DSN:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
			KeyCacheSize:    cfg.Database.KeyCacheSize,
			KeyCacheTTL:     cfg.Database.KeyCacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("schema: %w", err)
		}
		deps.db = db
		deps.Keys = storage.NewKeyRepository(db)
		deps.Plans = storage.NewPlanRepository(db)
		deps.Webhooks = storage.NewWebhookRepository(db)
		logger.Info("using postgres stores")
	} else {
		deps.Keys = store.NewMemoryKeyStore()
		deps.Plans = store.NewMemoryPlanStore()
		deps.Webhooks = store.NewMemoryWebhookStore()
		logger.Info("using in-memory stores")
	}

	var counter usage.Counter
	var gate usage.Gate
	var limiter usage.Limiter

	if cfg.Redis.Address != "" {
		rc, err := storage.NewRedisClient(storage.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		deps.redis = rc
		counter = usage.NewRedisCounter(rc.Client())
		gate = usage.NewRedisGate(rc.Client())
		deps.Queue = webhooks.NewRedisQueue(rc.Client(), "webhook-deliveries")
		deps.DLQ = webhooks.NewRedisDeadLetterQueue(rc.Client(), "webhook-deliveries")
		if cfg.RateLimit.Enforce {
			limiter = ratelimit.NewRateLimiter(rc.Client())
		}
		logger.Info("using redis usage state", "address", cfg.Redis.Address)
	} else {
		counter = usage.NewMemoryCounter()
		gate = usage.NewMemoryGate()
		deps.Queue = webhooks.NewMemoryQueue(cfg.Webhook.QueueSize)
		deps.DLQ = webhooks.NewMemoryDeadLetterQueue()
		if cfg.RateLimit.Enforce {
			limiter = ratelimit.NewMemoryLimiter()
		}
		logger.Info("using in-memory usage state")
	}

	deps.Metrics = metrics.NewPrometheusMetrics()

	deps.Sink = logging.NewNoopSink()
	if cfg.DeliveryLog.Enabled {
		writer, err := logging.NewS3Writer(ctx, cfg.DeliveryLog.S3Bucket, cfg.DeliveryLog.S3Region, cfg.DeliveryLog.S3Prefix, cfg.DeliveryLog.PodName)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("delivery log: %w", err)
		}
		deps.Sink = logging.NewBufferedSink(writer, logging.BufferedSinkConfig{
			BufferSize:    cfg.DeliveryLog.BufferSize,
			FlushSize:     cfg.DeliveryLog.FlushSize,
			FlushInterval: cfg.DeliveryLog.FlushInterval,
		})
	}

	deps.Dispatcher = webhooks.NewDispatcher(webhooks.DispatcherConfig{
		Webhooks:        deps.Webhooks,
		Queue:           deps.Queue,
		DLQ:             deps.DLQ,
		Sink:            deps.Sink,
		Metrics:         deps.Metrics,
		Workers:         cfg.Webhook.Workers,
		DeliveryTimeout: cfg.Webhook.DeliveryTimeout,
	})
	deps.Dispatcher.Start()

	deps.Engine = usage.NewEngine(usage.EngineConfig{
		Keys:     deps.Keys,
		Plans:    deps.Plans,
		Counter:  counter,
		Gate:     gate,
		Notifier: deps.Dispatcher,
		Limiter:  limiter,
	})
	deps.Reporter = usage.NewReporter(deps.Keys, deps.Plans, counter, nil)

	if err := store.SeedDefaultPlans(ctx, deps.Plans); err != nil {
		deps.Close()
		return nil, fmt.Errorf("seed plans: %w", err)
	}

	return deps, nil
}

// Close shuts components down in dependency order: stop accepting
// deliveries, flush the log, then drop connections.
func (d *Dependencies) Close() {
	if d.Dispatcher != nil {
		d.Dispatcher.Stop()
	}
	if d.Queue != nil {
		d.Queue.Close()
	}
	if d.DLQ != nil {
		d.DLQ.Close()
	}
	if d.Sink != nil {
		if err := d.Sink.Close(); err != nil {
			d.logger.Error("failed to close delivery sink", "error", err)
		}
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			d.logger.Error("failed to close redis", "error", err)
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			d.logger.Error("failed to close database", "error", err)
		}
	}
}

// NewRouter builds the HTTP mux. Management endpoints go behind JWT auth
// when a secret is configured; the validate endpoint never does, callers
// authenticate with the key itself.
func NewRouter(deps *Dependencies, adminSecret []byte) *http.ServeMux {
	mux := http.NewServeMux()

	validateHandler := NewValidateHandler(deps.Engine, deps.Metrics)
	keysHandler := NewKeysHandler(deps.Keys, deps.Plans, deps.Engine)
	plansHandler := NewPlansHandler(deps.Plans)
	webhooksHandler := NewWebhooksHandler(deps.Webhooks)
	exportHandler := NewExportHandler(deps.Reporter)

	admin := func(h http.HandlerFunc) http.Handler {
		if len(adminSecret) == 0 {
			return h
		}
		return middleware.AdminJWT(adminSecret)(h)
	}

	mux.HandleFunc("/api/validate", validateHandler.Handle)

	mux.Handle("/api/keys", admin(keysHandler.Collection))
	mux.Handle("/api/keys/", admin(keysHandler.Item))
	mux.Handle("/api/plans", admin(plansHandler.Collection))
	mux.Handle("/api/plans/", admin(plansHandler.Item))
	mux.Handle("/api/webhooks", admin(webhooksHandler.Collection))
	mux.Handle("/api/webhooks/", admin(webhooksHandler.Item))
	mux.Handle("/api/usage/export", admin(exportHandler.Export))

	mux.Handle("/metrics", deps.Metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}
