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

	"github.com/xxxsen/suma/internal/ai"
	"github.com/xxxsen/suma/internal/config"
	"github.com/xxxsen/suma/internal/db"
	"github.com/xxxsen/suma/internal/embedcache"
	"github.com/xxxsen/suma/internal/filestore"
	"github.com/xxxsen/suma/internal/handler"
	"github.com/xxxsen/suma/internal/job"
	"github.com/xxxsen/suma/internal/middleware"
	"github.com/xxxsen/suma/internal/overlap"
	"github.com/xxxsen/suma/internal/rag"
	"github.com/xxxsen/suma/internal/repo"
	"github.com/xxxsen/suma/internal/schedule"
	"github.com/xxxsen/suma/internal/service"
)

const (
	authRateWindow = time.Second
	quizCacheTTL   = 10 * time.Minute
)

func main() {
	var configPath string
	var force bool

	rootCmd := &cobra.Command{
		Use:   "suma",
		Short: "study assignment analyzer backend",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run suma server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sqlDB, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			return runServer(cfg, sqlDB)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sqlDB, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}

	buildIndexCmd := &cobra.Command{
		Use:   "build-index",
		Short: "embed the textbook directory into the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sqlDB, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			app, err := newApp(cfg, sqlDB)
			if err != nil {
				return err
			}
			res, err := app.ragService.Build(cmd.Context(), force)
			if err != nil {
				return err
			}
			logutil.GetLogger(cmd.Context()).Info("build index finished",
				zap.String("corpus_id", res.CorpusID),
				zap.Bool("rebuilt", res.Rebuilt),
				zap.Int("documents", res.Documents),
				zap.Int("chunks", res.Chunks),
			)
			return nil
		},
	}
	buildIndexCmd.Flags().BoolVar(&force, "force", false, "rebuild even when an index exists")

	rootCmd.AddCommand(runCmd, migrateCmd, buildIndexCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

// bootstrap loads config, initialises logging and opens a migrated database.
func bootstrap(configPath string) (*config.Config, *sql.DB, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	sqlDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(context.Background(), sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, sqlDB, nil
}

type app struct {
	authService     *service.AuthService
	analysisService *service.AnalysisService
	ragService      *rag.Service
	index           *rag.Index
	quizzes         *rag.QuizLoader
	embedCache      *repo.EmbeddingCacheRepo
	files           filestore.Store
}

func newApp(cfg *config.Config, sqlDB *sql.DB) (*app, error) {
	manager, err := buildAIManager(cfg, sqlDB)
	if err != nil {
		return nil, err
	}
	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}

	userRepo := repo.NewUserRepo(sqlDB)
	analysisRepo := repo.NewAnalysisRepo(sqlDB)
	chunkRepo := repo.NewChunkRepo(sqlDB)

	index := rag.NewIndex(chunkRepo, manager, rag.IndexConfig{
		CorpusID:     cfg.RAG.CorpusID,
		TextbookDir:  cfg.RAG.TextbookDir,
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
		Dimension:    cfg.AI.EmbedDim,
	})
	quizzes := rag.NewQuizLoader(cfg.RAG.QuizDir, quizCacheTTL)
	scorer := overlap.NewScorer(index)

	return &app{
		authService: service.NewAuthService(userRepo, []byte(cfg.JWTSecret),
			time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute,
			time.Duration(cfg.RefreshTokenTTLDays)*24*time.Hour),
		analysisService: service.NewAnalysisService(analysisRepo, manager, scorer, quizzes, store,
			service.AnalysisOptions{StrictOverlap: cfg.RAG.StrictOverlap}),
		ragService: rag.NewService(index, manager),
		index:      index,
		quizzes:    quizzes,
		embedCache: repo.NewEmbeddingCacheRepo(sqlDB),
		files:      store,
	}, nil
}

// buildAIManager creates one generator and, where supported, one embedder per
// configured provider, in configured order, then layers the embedding caches.
func buildAIManager(cfg *config.Config, sqlDB *sql.DB) (*ai.Manager, error) {
	logger := logutil.GetLogger(context.Background())
	var generators []ai.GeneratorEntry
	var embedders []ai.EmbedderEntry
	for _, p := range cfg.AI.Providers {
		provider, err := ai.NewProvider(p.Type, p.Data)
		if err != nil {
			return nil, fmt.Errorf("init ai provider %s: %w", p.Name, err)
		}
		generators = append(generators, ai.GeneratorEntry{
			Name:      p.Name,
			Generator: ai.NewGenerator(provider, cfg.AI.GenerateModel),
		})
		embedProvider, err := ai.NewEmbedProvider(p.Type, p.Data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider %s: %w", p.Name, err)
		}
		if embedProvider == nil {
			logger.Info("provider has no embedding support", zap.String("provider", p.Name))
			continue
		}
		embedders = append(embedders, ai.EmbedderEntry{
			Name:     p.Name,
			Embedder: ai.NewEmbedder(embedProvider, cfg.AI.EmbedModel),
		})
	}

	embedder := ai.NewGroupEmbedder(embedders)
	if embedder != nil {
		if cfg.AI.EmbedCache.DBEnabled {
			embedder = embedcache.WrapDB(embedder, repo.NewEmbeddingCacheRepo(sqlDB))
		}
		if cfg.AI.EmbedCache.LRUSize > 0 {
			embedder = embedcache.WrapLRU(embedder, cfg.AI.EmbedCache.LRUSize,
				time.Duration(cfg.AI.EmbedCache.LRUTTLSeconds)*time.Second)
		}
	}
	generator := ai.NewGroupGenerator(generators)
	logger.Info("ai providers ready", zap.Int("generators", len(generators)), zap.Int("embedders", len(embedders)))
	return ai.NewManager(generator, generator, embedder, ai.ManagerConfig{
		Timeout:       cfg.AI.Timeout,
		MaxInputChars: cfg.AI.MaxInputChars,
	}), nil
}

func runServer(cfg *config.Config, sqlDB *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("corpus_id", cfg.RAG.CorpusID),
	)
	app, err := newApp(cfg, sqlDB)
	if err != nil {
		return err
	}

	deps := handler.RouterDeps{
		Auth: handler.NewAuthHandler(app.authService, handler.CookieConfig{
			Secure: cfg.CookieSecure,
			MaxAge: int(app.authService.RefreshTTL() / time.Second),
		}),
		Analyses:    handler.NewAnalysisHandler(app.analysisService, app.files, cfg.UploadMaxBytes),
		RAG:         handler.NewRAGHandler(app.ragService, app.analysisService, cfg.UploadMaxBytes),
		JWTSecret:   []byte(cfg.JWTSecret),
		AuthLimiter: authRateWindow,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
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

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewCorpusRefreshJob(app.index, app.quizzes), cfg.Schedule.CorpusRefresh); err != nil {
		return err
	}
	if cfg.AI.EmbedCache.DBEnabled {
		cleanup := job.NewEmbeddingCacheCleanupJob(app.embedCache, cfg.AI.EmbedCache.MaxAgeDays)
		if err := scheduler.AddJob(cleanup, cfg.Schedule.CacheCleanup); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
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
