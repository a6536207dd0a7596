package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vocabustudy/admin-portal/cache"
	"github.com/vocabustudy/admin-portal/config"
	"github.com/vocabustudy/admin-portal/firebase"
	"github.com/vocabustudy/admin-portal/googleapi"
	"github.com/vocabustudy/admin-portal/handlers"
	"github.com/vocabustudy/admin-portal/internal/observability"
	"github.com/vocabustudy/admin-portal/middleware"
	"github.com/vocabustudy/admin-portal/repositories"
	"github.com/vocabustudy/admin-portal/repositories/postgres"
	"github.com/vocabustudy/admin-portal/services"
	"github.com/vocabustudy/admin-portal/services/audit"
	"go.uber.org/zap"
)

const (
	auditHistorySize     = 500
	cacheCleanupInterval = time.Minute
	auditStopTimeout     = 5 * time.Second
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Cache   cache.ResponseCache
	Redis   *redis.Client
	DB      *postgres.DB

	// Token verification
	Keys *firebase.KeySource
	Gate *firebase.Gate

	// Google APIs
	Google  *googleapi.Client
	Users   *services.UserService
	Hosting *services.HostingService
	Stats   *services.StatsService
	Audit   *audit.AuditService

	// HTTP
	AuthMiddleware *middleware.AuthMiddleware
	HealthHandler  *handlers.HealthHandler
	UserHandler    *handlers.UserHandler
	StatsHandler   *handlers.StatsHandler
	HostingHandler *handlers.HostingHandler
	AuditHandler   *handlers.AuditHandler

	stopCleanup chan struct{}
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		Metrics:     observability.NewMetrics(),
		stopCleanup: make(chan struct{}),
	}

	if err := deps.initCache(ctx, cfg); err != nil {
		deps.cleanup()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	if err := deps.initGate(cfg); err != nil {
		deps.cleanup()
		return nil, fmt.Errorf("failed to initialize token verification: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		deps.cleanup()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := deps.initAudit(ctx, cfg); err != nil {
		deps.cleanup()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initHTTP()

	logger.Info("all dependencies initialized successfully",
		zap.String("project_id", cfg.Firebase.ProjectID),
		zap.Bool("emulators", cfg.Firebase.UseEmulators))
	return deps, nil
}

// initCache selects Redis when REDIS_URL is set, otherwise an in-process cache
func (d *Dependencies) initCache(ctx context.Context, cfg *config.Config) error {
	if cfg.Cache.RedisURL == "" {
		mem := cache.NewMemoryCache(cfg.Cache.MaxEntries)
		go mem.StartCleanupWorker(cacheCleanupInterval, d.stopCleanup)
		d.Cache = mem
		d.observeMemoryCache(mem)
		d.Logger.Info("using in-memory response cache", zap.Int("max_entries", cfg.Cache.MaxEntries))
		return nil
	}

	rc, client, err := cache.NewRedisCacheFromURL(cfg.Cache.RedisURL, cache.WithKeyPrefix(cfg.Cache.KeyPrefix))
	if err != nil {
		return err
	}
	d.Redis = client

	if err := rc.Ping(ctx); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	d.Cache = rc
	d.Logger.Info("using redis response cache", zap.String("key_prefix", cfg.Cache.KeyPrefix))
	return nil
}

func (d *Dependencies) initGate(cfg *config.Config) error {
	gateCfg := firebase.GateConfig{
		ProjectID:    cfg.Firebase.ProjectID,
		EmulatorMode: cfg.Firebase.UseEmulators,
		Recorder:     d.Metrics,
	}

	if cfg.Firebase.UseEmulators {
		d.Logger.Warn("firebase emulators enabled, token signatures are not verified")
		d.Gate = firebase.NewGate(gateCfg, nil)
		return nil
	}

	keys, err := firebase.NewKeySource(firebase.KeySourceConfig{
		URL:          cfg.Firebase.KeysURL,
		CustomKey:    cfg.Firebase.CustomKey,
		FetchTimeout: cfg.Firebase.FetchTimeout,
		DefaultTTL:   cfg.Firebase.KeyCacheTTL,
		Recorder:     d.Metrics,
	}, d.Cache, d.Logger)
	if err != nil {
		return err
	}
	if keys.HasOverride() {
		d.Logger.Info("using pinned signing key", zap.String("kid", firebase.CustomKeyID))
	}

	d.Keys = keys
	d.Gate = firebase.NewGate(gateCfg, keys)
	return nil
}

func (d *Dependencies) initServices(cfg *config.Config) error {
	httpClient := &http.Client{Timeout: cfg.Google.Timeout}

	var tokens googleapi.TokenSource
	if cfg.Firebase.UseEmulators {
		tokens = googleapi.StaticTokenSource("owner")
	} else {
		key, err := googleapi.ParsePrivateKey(cfg.Google.ServiceAccountKey)
		if err != nil {
			return err
		}
		tokens = googleapi.NewServiceAccountTokenSource(cfg.Google.ServiceAccountEmail, key, cfg.Google.TokenURL, httpClient)
	}

	d.Google = googleapi.NewClient(tokens, httpClient, d.Metrics, d.Logger.Named("googleapi"))

	d.Users = services.NewUserService(d.Google, cfg.Google.IdentityToolkitURL, cfg.Firebase.ProjectID, d.Logger)
	d.Hosting = services.NewHostingService(d.Google, cfg.Google.HostingURL, cfg.Hosting.SiteID, d.Logger)
	d.Stats = services.NewStatsService(d.Google, d.Cache, d.Users, d.Hosting, services.StatsConfig{
		ProjectID:     cfg.Firebase.ProjectID,
		FirestoreURL:  cfg.Google.FirestoreURL,
		MonitoringURL: cfg.Google.MonitoringURL,
		Domain:        cfg.Hosting.Domain,
		CacheTTL:      cfg.Hosting.StatsCacheTTL,
	}, d.Logger)

	return nil
}

// initAudit persists the audit trail to PostgreSQL when configured, otherwise to the log
func (d *Dependencies) initAudit(ctx context.Context, cfg *config.Config) error {
	var repo repositories.AuditRepository
	if cfg.Database.Enabled() {
		db, err := postgres.NewDB(cfg.Database, d.Logger)
		if err != nil {
			return err
		}
		d.DB = db

		if err := db.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize audit schema: %w", err)
		}
		repo = postgres.NewAuditRepository(db, d.Logger)
	} else {
		d.Logger.Info("no audit database configured, audit events go to the log")
		repo = repositories.NewLogAuditRepository(d.Logger, auditHistorySize)
	}

	d.Audit = audit.NewAuditService(repo, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.Workers,
	})
	if err := d.Audit.Start(); err != nil {
		return err
	}

	d.Metrics.GaugeFunc("audit_pending_events", "Audit events waiting to be written", func() float64 {
		return float64(d.Audit.GetStats().PendingEvents)
	})
	return nil
}

func (d *Dependencies) observeMemoryCache(mem *cache.MemoryCache) {
	d.Metrics.GaugeFunc("response_cache_entries", "Entries held by the in-process response cache", func() float64 {
		return float64(mem.Stats().Size)
	})
	d.Metrics.CounterFunc("response_cache_hits_total", "In-process response cache hits", func() float64 {
		return float64(mem.Stats().Hits)
	})
	d.Metrics.CounterFunc("response_cache_misses_total", "In-process response cache misses", func() float64 {
		return float64(mem.Stats().Misses)
	})
}

func (d *Dependencies) initHTTP() {
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Gate, d.Logger)

	checks := map[string]handlers.CheckFunc{}
	if d.DB != nil {
		checks["database"] = d.DB.HealthCheck
	}
	if rc, ok := d.Cache.(*cache.RedisCache); ok {
		checks["cache"] = rc.Ping
	}

	d.HealthHandler = handlers.NewHealthHandler(checks, d.Logger)
	d.UserHandler = handlers.NewUserHandler(d.Users, d.Audit, d.Logger)
	d.StatsHandler = handlers.NewStatsHandler(d.Stats, d.Logger)
	d.HostingHandler = handlers.NewHostingHandler(d.Hosting, d.Audit, d.Logger)
	d.AuditHandler = handlers.NewAuditHandler(d.Audit, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Audit != nil {
		timeout := auditStopTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil && !errors.Is(err, audit.ErrNotStarted) {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	errs = append(errs, d.cleanup()...)

	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

// cleanup releases connections; safe to call on a partially built Dependencies
func (d *Dependencies) cleanup() []error {
	var errs []error

	if d.stopCleanup != nil {
		close(d.stopCleanup)
		d.stopCleanup = nil
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.DB = nil
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
		d.Redis = nil
	}

	return errs
}
