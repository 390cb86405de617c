package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/olegbarsky/digistore/internal/config"
	s3infra "github.com/olegbarsky/digistore/internal/infra/s3"
	"github.com/olegbarsky/digistore/internal/jobs/cleanup"
	pgrepo "github.com/olegbarsky/digistore/internal/repo/postgres"
	redrepo "github.com/olegbarsky/digistore/internal/repo/redis"
	artifactsvc "github.com/olegbarsky/digistore/internal/services/artifacts"
	authsvc "github.com/olegbarsky/digistore/internal/services/auth"
	catalogsvc "github.com/olegbarsky/digistore/internal/services/catalog"
	checkoutsvc "github.com/olegbarsky/digistore/internal/services/checkout"
	purchasesvc "github.com/olegbarsky/digistore/internal/services/purchases"
	ratesvc "github.com/olegbarsky/digistore/internal/services/rate"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	cleanupJob *cleanup.Job
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
		if cfg.Postgres.MigrationsDir != "" {
			if err := pgrepo.RunMigrations(cfg.Postgres.DSN, cfg.Postgres.MigrationsDir); err != nil {
				log.Warn("migrations failed, continuing with existing schema", zap.Error(err))
			}
		}
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	quoteRepo := redrepo.NewQuoteRepo(redisClient)
	rateRepo := redrepo.NewRateRepo(redisClient)

	projectRepo := pgrepo.NewProjectRepo(pool)
	purchaseRepo := pgrepo.NewPurchaseRepo(pool)
	userRepo := pgrepo.NewUserRepo(pool)

	var s3Client *minio.Client
	if cfg.S3.Endpoint != "" {
		if c, err := s3infra.NewClient(s3infra.Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			UseSSL:    cfg.S3.UseSSL,
		}); err != nil {
			log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
		} else {
			s3Client = c
		}
	}

	artifactService := artifactsvc.NewService(s3Client, cfg.S3.Bucket, cfg.Download.URLTTL)
	if s3Client != nil {
		if err := artifactService.EnsureBucket(ctx); err != nil {
			log.Warn("artifact bucket check failed", zap.Error(err))
		}
	}

	authService := authsvc.NewService(authsvc.NewJWTManager(cfg.Auth.JWTSecret))
	catalogService := catalogsvc.NewService(projectRepo)
	checkoutService := checkoutsvc.NewService(catalogService, quoteRepo, checkoutsvc.Config{
		QuoteTTL: cfg.Checkout.QuoteTTL,
	}, log)
	purchaseService := purchasesvc.NewService(purchasesvc.Dependencies{
		Catalog:   catalogService,
		Store:     purchaseRepo,
		Quotes:    quoteRepo,
		Users:     userRepo,
		Verifier:  purchasesvc.NewSimulatedVerifier(),
		Downloads: artifactService,
		Logger:    log,
	}, purchasesvc.Config{
		OracleTimeout: cfg.Verify.OracleTimeout,
	})
	verifyLimiter := ratesvc.NewLimiter(rateRepo, cfg.Verify.RatePerMinute, cfg.Verify.RatePer10Sec)

	RegisterRoutes(r, Dependencies{
		AuthService:     authService,
		CheckoutService: checkoutService,
		PurchaseService: purchaseService,
		ArtifactService: artifactService,
		VerifyLimiter:   verifyLimiter,
		Logger:          log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		cleanupJob: cleanup.New(purchaseRepo, cfg.Cleanup.PendingRetention, log),
		httpRouter: r,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	go a.runCleanupLoop(ctx)

	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) runCleanupLoop(ctx context.Context) {
	if a.postgres == nil || a.cfg.Cleanup.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(a.cfg.Cleanup.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.cleanupJob.Run(ctx); err != nil {
				a.logger.Warn("cleanup job failed", zap.Error(err))
			}
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
