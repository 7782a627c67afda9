package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YJLINa/peer-review-form/internal/config"
	"github.com/YJLINa/peer-review-form/internal/controller"
	"github.com/YJLINa/peer-review-form/internal/repository"
	"github.com/YJLINa/peer-review-form/internal/service"
	"github.com/YJLINa/peer-review-form/internal/util"
	"github.com/YJLINa/peer-review-form/pkg/database"
	"github.com/YJLINa/peer-review-form/pkg/logger"
	"github.com/YJLINa/peer-review-form/pkg/monitoring"
	"github.com/YJLINa/peer-review-form/pkg/security"
	"github.com/YJLINa/peer-review-form/pkg/tracing"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	services *services
	tracer   *sdktrace.TracerProvider
	ctx      context.Context
	cancel   context.CancelFunc
}

type repositories struct {
	results  repository.ResultStore
	registry repository.SubmissionRegistry
	writer   repository.SubmissionWriter
	sessions *repository.SessionRepository
	lock     *repository.FinalizeLock
}

type services struct {
	roster  *service.RosterService
	survey  *service.SurveyService
	auth    *service.AuthService
	results *service.ResultsService
	archive *service.ArchiveService
	upload  *service.ConfigUploadService
}

type controllers struct {
	survey *controller.SurveyController
	admin  *controller.AdminController
	health *controller.HealthController
}

func needsDatabase(cfg *config.SurveyConfig) bool {
	return cfg.ResultsBackend == util.BackendDatabase || cfg.RegistryBackend == util.BackendDatabase
}

// initRepositories 按配置选择结果表与已提交名单的存储
func (a *App) initRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	surveyID := cfg.Survey.ID
	repos := &repositories{
		sessions: repository.NewSessionRepository(a.Redis, surveyID, cfg.Survey.SessionTTL),
		lock:     repository.NewFinalizeLock(a.Redis, surveyID, cfg.Survey.LockTTL),
	}

	switch cfg.Survey.ResultsBackend {
	case util.BackendDatabase:
		repos.results = repository.NewResultRepository(a.DB, surveyID)
	case util.BackendSheets:
		sheetsRepo, err := repository.NewSheetsResultRepository(ctx, &cfg.Sheets)
		if err != nil {
			return nil, err
		}
		repos.results = sheetsRepo
	default:
		repos.results = repository.NewCSVResultRepository(cfg.Survey.ResultsPath)
	}

	switch cfg.Survey.RegistryBackend {
	case util.BackendDatabase:
		repos.registry = repository.NewSubmissionRepository(a.DB, surveyID)
	default:
		repos.registry = repository.NewCSVSubmissionRepository(cfg.Survey.RegistryPath)
	}

	// 两者都在数据库时用同一事务写入
	if cfg.Survey.ResultsBackend == util.BackendDatabase && cfg.Survey.RegistryBackend == util.BackendDatabase {
		repos.writer = repository.NewTxWriter(a.DB, surveyID)
	} else {
		repos.writer = repository.NewSplitWriter(repos.results, repos.registry)
	}

	logger.Log.Info("Stores selected",
		zap.String("results", cfg.Survey.ResultsBackend),
		zap.String("registry", cfg.Survey.RegistryBackend),
	)
	return repos, nil
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.roster = service.NewRosterService(&cfg.Survey)
	s.survey = service.NewSurveyService(&cfg.Survey, s.roster, repos.sessions, repos.registry, repos.writer, repos.lock)
	s.auth = service.NewAuthService(&cfg.Admin)
	s.results = service.NewResultsService(repos.results, repos.registry)
	s.archive = service.NewArchiveService(cfg)
	s.upload = service.NewConfigUploadService(&cfg.Survey, s.roster, s.archive)

	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		survey: controller.NewSurveyController(s.survey),
		admin:  controller.NewAdminController(s.auth, s.results, s.upload, s.archive, s.roster, a.Config.Survey.ID),
		health: controller.NewHealthController(a.DB, a.Redis, s.roster),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	limiter := security.NewLimiter(cfg.RateLimit.MaxRequests, window)
	go limiter.Cleanup(a.ctx, window*3)
	router.Use(limiter.Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 加载设定档并监听变化；缺失时服务照常启动
func (a *App) startBackgroundTasks(s *services) {
	if err := s.roster.Reload(); err != nil {
		logger.Log.Warn("Survey configuration not loaded yet", zap.Error(err))
	}

	if !a.Config.Survey.WatchFiles {
		return
	}
	go func() {
		if err := s.roster.Watch(a.ctx); err != nil {
			logger.Log.Error("Config watcher stopped", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{Config: cfg, ctx: ctx, cancel: cancel}

	if needsDatabase(&cfg.Survey) || cfg.MigrateOnly {
		db, err := database.InitDB(&cfg.Database)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("initialize database: %w", err)
		}
		app.DB = db
	}
	if cfg.MigrateOnly {
		return app, nil
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("initialize redis: %w", err)
	}
	app.Redis = rdb

	repos, err := app.initRepositories(ctx, cfg)
	if err != nil {
		cancel()
		return nil, err
	}
	app.services = app.initServices(repos, cfg)
	ctrls := app.initControllers(app.services)

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("peer-review-form", cfg.Survey.ID, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.tracer = tp
		}
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, ctrls, cfg)
	app.startBackgroundTasks(app.services)

	return app, nil
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	a.Close()

	logger.Log.Info("Server exiting")
}

// Close 停止后台任务并释放连接
func (a *App) Close() {
	a.cancel()
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	logger.Log.Sync()
}
