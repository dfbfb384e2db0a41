package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/careercopilot/internal/ai"
	"github.com/xxxsen/careercopilot/internal/config"
	"github.com/xxxsen/careercopilot/internal/crag"
	"github.com/xxxsen/careercopilot/internal/db"
	"github.com/xxxsen/careercopilot/internal/embedcache"
	"github.com/xxxsen/careercopilot/internal/filestore"
	"github.com/xxxsen/careercopilot/internal/handler"
	"github.com/xxxsen/careercopilot/internal/ingest"
	"github.com/xxxsen/careercopilot/internal/job"
	"github.com/xxxsen/careercopilot/internal/middleware"
	"github.com/xxxsen/careercopilot/internal/repo"
	"github.com/xxxsen/careercopilot/internal/schedule"
	"github.com/xxxsen/careercopilot/internal/service"
	"github.com/xxxsen/careercopilot/internal/vectorindex"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "careercopilot",
		Short: "career copilot backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run career copilot server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(configPath)
			if err != nil {
				return err
			}
			defer app.close()
			return runServer(app)
		},
	}

	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "embed every resume and job that changed since its last index",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(configPath)
			if err != nil {
				return err
			}
			defer app.close()
			return reindex(cmd.Context(), app)
		},
	}

	for _, cmd := range []*cobra.Command{runCmd, reindexCmd} {
		cmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
		rootCmd.AddCommand(cmd)
	}

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

type app struct {
	cfg     *config.Config
	db      *sql.DB
	manager *ai.Manager
	index   vectorindex.Index
	files   filestore.Store
	indexer *service.IndexService
}

func (a *app) close() {
	if a.index != nil {
		_ = a.index.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func setup(configPath string) (*app, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	ctx := context.Background()
	logutil.GetLogger(ctx).Info("config loaded", zap.String("config", configPath))

	a := &app{cfg: cfg}
	if a.db, err = db.Open(ctx, cfg.Database); err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(ctx, a.db); err != nil {
		a.close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	if a.manager, err = ai.NewManagerFromConfig(cfg.AI); err != nil {
		a.close()
		return nil, fmt.Errorf("init ai providers: %w", err)
	}
	embedder := embedcache.Wrap(a.manager, a.manager.EmbedModel(),
		cfg.AI.EmbedCache.Size, time.Duration(cfg.AI.EmbedCache.TTLSeconds)*time.Second)
	if a.index, err = vectorindex.New(cfg.VectorIndex, vectorindex.Deps{Embedder: embedder, DB: a.db}); err != nil {
		a.close()
		return nil, fmt.Errorf("init vector index: %w", err)
	}
	if a.files, err = filestore.New(cfg.FileStore); err != nil {
		a.close()
		return nil, fmt.Errorf("init file store: %w", err)
	}
	a.indexer = service.NewIndexService(a.index, repo.NewResumeRepo(a.db), repo.NewJobRepo(a.db), cfg.IndexSync.Workers)
	return a, nil
}

func reindex(ctx context.Context, a *app) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var total service.SyncStats
	for {
		stats, err := a.indexer.SyncPending(ctx, a.cfg.IndexSync.Batch)
		if err != nil {
			return err
		}
		total.Resumes += stats.Resumes
		total.Jobs += stats.Jobs
		total.Failed += stats.Failed
		if stats.Indexed() == 0 {
			break
		}
	}
	logutil.GetLogger(ctx).Info("reindex finished",
		zap.Int("resumes", total.Resumes),
		zap.Int("jobs", total.Jobs),
		zap.Int("failed", total.Failed),
	)
	return nil
}

func runServer(a *app) error {
	cfg := a.cfg
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_index", cfg.VectorIndex.Type),
		zap.String("file_store", a.files.Type()),
		zap.String("embed_model", a.manager.EmbedModel()),
	)

	userRepo := repo.NewUserRepo(a.db)
	resumeRepo := repo.NewResumeRepo(a.db)
	jobRepo := repo.NewJobRepo(a.db)
	analysisRepo := repo.NewAnalysisRepo(a.db)
	applicationRepo := repo.NewApplicationRepo(a.db)

	secret := []byte(cfg.JWTSecret)
	authService := service.NewAuthService(userRepo, secret, time.Hour*time.Duration(cfg.JWTTTLHours))
	resumeService := service.NewResumeService(resumeRepo, a.indexer, a.files)
	jobService := service.NewJobService(jobRepo, a.indexer)
	copilotService := service.NewCopilotService(
		crag.NewLoop(a.index, crag.NewScorer(a.manager)),
		crag.NewGenerator(a.manager),
		resumeRepo,
		jobRepo,
		analysisRepo,
		service.CopilotConfig{InitialTopK: cfg.CRAG.InitialTopK, MaxRetries: cfg.CRAG.Retries()},
	)

	deps := handler.RouterDeps{
		Auth: handler.NewAuthHandler(authService),
		Properties: handler.NewPropertiesHandler(handler.Properties{
			MaxUploadBytes: cfg.MaxUploadBytes,
			UploadTypes:    ingest.SupportedExtensions(),
			DefaultTopK:    cfg.CRAG.InitialTopK,
			MaxTopK:        config.MaxTopK,
			RateLimitMs:    cfg.RateLimitMs,
		}),
		Resumes:      handler.NewResumeHandler(resumeService, cfg.MaxUploadBytes),
		Jobs:         handler.NewJobHandler(jobService),
		Applications: handler.NewApplicationHandler(service.NewApplicationService(applicationRepo)),
		Copilot:      handler.NewCopilotHandler(copilotService),
		Files:        handler.NewFileHandler(resumeService),
		JWTSecret:    secret,
		RateLimit:    time.Duration(cfg.RateLimitMs) * time.Millisecond,
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.IndexSync.Disabled {
		scheduler := schedule.NewCronScheduler(schedule.WithRunTimeout(30 * time.Minute))
		syncJob := job.NewIndexSyncJob(a.indexer, cfg.IndexSync.Batch)
		if err := scheduler.AddJob(syncJob, cfg.IndexSync.Cron); err != nil {
			return fmt.Errorf("schedule index sync: %w", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
		if err := scheduler.RunOnce(syncJob.Name()); err != nil {
			return err
		}
	}

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
