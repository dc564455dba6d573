package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tryout_backend/internal/config"
	"tryout_backend/internal/controller"
	"tryout_backend/internal/engine"
	"tryout_backend/internal/middleware"
	"tryout_backend/internal/repository"
	"tryout_backend/internal/service"
	"tryout_backend/pkg/database"
	"tryout_backend/pkg/logger"
	"tryout_backend/pkg/monitoring"
	"tryout_backend/pkg/security"
	"tryout_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	Sessions *engine.Manager

	services  *services
	scheduler *cron.Cron
}

type repositories struct {
	user     *repository.UserRepository
	tryout   *repository.TryoutRepository
	question *repository.QuestionRepository
	attempt  *repository.AttemptRepository
	cache    *repository.SnapshotCache
}

type services struct {
	auth    *service.AuthService
	tryout  *service.TryoutService
	attempt *service.AttemptService
	review  *service.ReviewService
}

type controllers struct {
	auth    *controller.AuthController
	tryout  *controller.TryoutController
	attempt *controller.AttemptController
	health  *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		user:     repository.NewUserRepository(db),
		tryout:   repository.NewTryoutRepository(db),
		question: repository.NewQuestionRepository(db),
		attempt:  repository.NewAttemptRepository(db),
		cache:    repository.NewSnapshotCache(rdb, a.Config.Exam.SnapshotTTL()),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.auth = service.NewAuthService(repos.user, cfg)
	s.tryout = service.NewTryoutService(repos.tryout, repos.question, repos.attempt)
	s.attempt = service.NewAttemptService(
		repos.tryout,
		repos.question,
		repos.attempt,
		repos.cache,
		a.Sessions,
		s.tryout,
		cfg.Exam,
		nil,
	)
	s.review = service.NewReviewService(repos.tryout, repos.question, repos.attempt)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:    controller.NewAuthController(s.auth),
		tryout:  controller.NewTryoutController(s.tryout),
		attempt: controller.NewAttemptController(s.attempt, s.review),
		health:  controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.RequestID())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 100000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startScheduler runs the background jobs: reaping idle sessions back to their
// snapshots and expiring stale manual access overrides.
func (a *App) startScheduler(s *services) {
	c := cron.New()

	c.AddFunc("@every 1m", func() {
		if n := s.attempt.ReapIdleSessions(); n > 0 {
			logger.Log.Info("reaped idle exam sessions", zap.Int("count", n))
		}
	})

	c.AddFunc("@every 1m", func() {
		if n, err := s.tryout.SweepManualModes(); err != nil {
			logger.Log.Error("availability sweep failed", zap.Error(err))
		} else if n > 0 {
			logger.Log.Info("expired manual tryout overrides", zap.Int64("count", n))
		}
	})

	c.Start()
	a.scheduler = c
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg.Server.Mode)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Sessions: engine.NewManager(),
	}

	repos := app.initRepositories(db, rdb)
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services, db)

	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("tryout-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	app.startScheduler(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	// Flush every live session once so open attempts resume from a fresh
	// snapshot after the restart.
	if n := a.Sessions.ReapIdle(0, a.Config.Exam.SaveTimeout()); n > 0 {
		logger.Log.Info("flushed live sessions on shutdown", zap.Int("count", n))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
