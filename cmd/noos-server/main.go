// Command noos-server is the wire & CLI glue entry point: it wires the
// Storage Adapter, Task Engine, Ingestion Pipeline, NOOS Algorithm, and
// Parameter-Set Manager together behind the HTTP/JSON surface, applies
// schema migrations, recovers interrupted tasks, and
// optionally watches a hot folder for whole-file upload submissions.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/retaildata/noosengine/pkg/common/config"
	"github.com/retaildata/noosengine/pkg/common/logging"
	"github.com/retaildata/noosengine/pkg/common/validation"
	"github.com/retaildata/noosengine/pkg/ingestion"
	"github.com/retaildata/noosengine/pkg/noos"
	"github.com/retaildata/noosengine/pkg/params"
	"github.com/retaildata/noosengine/pkg/storage/postgres"
	"github.com/retaildata/noosengine/pkg/tasks"
)

// server bundles every wired component a request handler needs. Handlers
// are methods on *server so they share one set of dependencies without a
// global.
type server struct {
	db        *postgres.Database
	engine    *tasks.Engine
	pipeline  *ingestion.Pipeline
	algorithm *noos.Algorithm
	params    *params.Manager
	artifacts *ingestion.FileArtifactStore
	validator *validation.Validator
	logger    *logging.Logger
	cfg       *config.Config
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file (JSON)")
		addr       = flag.String("addr", "", "HTTP listen address, overrides config (host:port)")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(3)
	}

	logger, err := cfg.BuildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(3)
	}
	logger = logger.WithComponent("server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewDatabase(ctx, &postgres.Config{
		ConnectionString: cfg.Database.ConnectionString,
		MaxConnections:   cfg.Database.MaxConnections,
		ConnectTimeout:   cfg.Database.ConnectTimeout,
		MigrationsPath:   cfg.Database.MigrationsPath,
	})
	if err != nil {
		logger.Errorf("failed to connect to database: %v", err)
		os.Exit(3)
	}
	defer db.Close()

	if err := db.MigrateToLatest(ctx); err != nil {
		logger.Errorf("failed to apply migrations: %v", err)
		os.Exit(3)
	}

	engine, err := tasks.NewEngine(db, logger, tasks.Config{
		UploadWorkers:    cfg.Tasks.UploadWorkers,
		DownloadWorkers:  cfg.Tasks.DownloadWorkers,
		ComputeWorkers:   cfg.Tasks.ComputeWorkers,
		QueueMultiplier:  cfg.Tasks.QueueMultiplier,
		UploadTimeout:    cfg.Tasks.UploadTimeout,
		DownloadTimeout:  cfg.Tasks.DownloadTimeout,
		ComputeTimeout:   cfg.Tasks.ComputeTimeout,
		ProgressFlushPct: cfg.Tasks.ProgressFlushPct,
		ProgressFlushDur: cfg.Tasks.ProgressFlushDur,
	})
	if err != nil {
		logger.Errorf("failed to build task engine: %v", err)
		os.Exit(3)
	}
	defer engine.Shutdown()

	pipeline := ingestion.NewPipeline(db, ingestion.Config{ChunkSize: cfg.Ingestion.ChunkSize})
	algorithm := noos.NewAlgorithm(db, logger)
	paramsManager := params.NewManager(db, logger)
	artifacts := ingestion.NewFileArtifactStore(cfg.Ingestion.ErrorArtifactDir)

	validator := validation.NewValidator()
	validator.SetAllowedExtensions([]string{".tsv", ".txt"})

	s := &server{
		db:        db,
		engine:    engine,
		pipeline:  pipeline,
		algorithm: algorithm,
		params:    paramsManager,
		artifacts: artifacts,
		validator: validator,
		logger:    logger,
		cfg:       cfg,
	}

	engine.RegisterHandler(tasks.TypeUpload, tasks.HandlerFunc(s.handleUploadTask))
	engine.RegisterHandler(tasks.TypeDownload, tasks.HandlerFunc(s.handleDownloadTask))
	engine.RegisterHandler(tasks.TypeCompute, tasks.HandlerFunc(s.handleComputeTask))

	if err := engine.RecoverOnStartup(ctx); err != nil {
		logger.Errorf("failed to recover tasks on startup: %v", err)
		os.Exit(3)
	}

	var watcher *hotFolderWatcher
	if cfg.Server.WatchEnabled {
		watcher, err = newHotFolderWatcher(cfg.Server.WatchDir, cfg.Server.WatchDebounce, s)
		if err != nil {
			logger.Errorf("failed to start hot-folder watcher: %v", err)
			os.Exit(3)
		}
		defer watcher.Close()
	}

	router := s.buildRouter()
	addrVal := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if *addr != "" {
		addrVal = *addr
	}

	httpServer := &http.Server{
		Addr:              addrVal,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", addrVal)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Infof("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("error during http shutdown: %v", err)
	}
}
