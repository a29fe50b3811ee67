package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/metadata"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/oai"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/platform/env"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/platform/httpserver"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/platform/objectstore"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/platform/postgres"
	repopg "github.com/au-research/igsn-metadata-registry-sub001/internal/repo/postgres"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/schema"
	derivesvc "github.com/au-research/igsn-metadata-registry-sub001/internal/service/derive"
	importsvc "github.com/au-research/igsn-metadata-registry-sub001/internal/service/imports"
	versionsvc "github.com/au-research/igsn-metadata-registry-sub001/internal/service/versions"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/storage/payloads"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/transform"
)

const serviceName = "igsn-registry"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("IGSN_REGISTRY_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("IGSN_REGISTRY_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := postgres.Migrate(db); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(2)
	}
	storeClient, err := objectstore.NewMinIOClient(storeCfg)
	if err != nil {
		logger.Error("object store client init failed", "error", err)
		os.Exit(2)
	}
	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := objectstore.EnsureBucket(startupCtx, storeClient, storeCfg); err != nil {
		cancel()
		logger.Error("object store unavailable", "error", err)
		os.Exit(1)
	}
	cancel()

	schemas, err := schema.Default()
	if err != nil {
		logger.Error("schema catalog init failed", "error", err)
		os.Exit(2)
	}
	providers, err := metadata.NewRegistry(schemas)
	if err != nil {
		logger.Error("provider registry init failed", "error", err)
		os.Exit(2)
	}
	transforms, err := transform.NewEngine(schemas)
	if err != nil {
		logger.Error("transform engine init failed", "error", err)
		os.Exit(2)
	}

	recordStore := repopg.NewRecordStore(db)
	identifierStore := repopg.NewIdentifierStore(db)
	versionStore := repopg.NewVersionStore(db)
	eventStore := repopg.NewEventStore(db)

	versionService, err := versionsvc.NewService(versionStore)
	if err != nil {
		logger.Error("versioning service init failed", "error", err)
		os.Exit(2)
	}
	deriveTask, err := derivesvc.NewTask(logger, schemas, providers, versionService, recordStore, identifierStore, eventStore)
	if err != nil {
		logger.Error("derivation task init failed", "error", err)
		os.Exit(2)
	}

	archive, err := payloads.NewMinioArchive(storeClient, storeCfg.BucketPayloads)
	if err != nil {
		logger.Error("payload archive init failed", "error", err)
		os.Exit(2)
	}

	importConcurrency, err := env.Int("IGSN_IMPORT_CONCURRENCY", 5)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	importService, err := importsvc.NewService(
		logger,
		schemas,
		providers,
		transforms,
		versionService,
		recordStore,
		identifierStore,
		eventStore,
		deriveTask,
		importsvc.Options{
			Archive:        archive,
			RegistrantName: env.String("IGSN_REGISTRANT_NAME", "ARDC"),
			Concurrency:    importConcurrency,
		},
	)
	if err != nil {
		logger.Error("import service init failed", "error", err)
		os.Exit(2)
	}

	oaiPageSize, err := env.Int("IGSN_OAI_PAGE_SIZE", 100)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	responder, err := oai.NewResponder(
		logger,
		schemas,
		recordStore,
		versionService,
		versionStore,
		oai.Config{
			RepositoryName: env.String("IGSN_OAI_REPOSITORY_NAME", "IGSN Metadata Registry"),
			BaseURL:        env.String("IGSN_OAI_BASE_URL", "http://localhost:8080/api/service/oai"),
			AdminEmail:     env.String("IGSN_OAI_ADMIN_EMAIL", "services@ardc.edu.au"),
			PageSize:       oaiPageSize,
		},
	)
	if err != nil {
		logger.Error("oai responder init failed", "error", err)
		os.Exit(2)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz(serviceName))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			serviceName,
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
			httpserver.ReadinessCheck{
				Name: "minio",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return objectstore.CheckBucket(checkCtx, storeClient, storeCfg)
				},
			},
		),
	)

	api := newRegistryAPI(logger, responder, importService)
	api.register(mux)

	cfg := httpserver.Config{
		Service:         serviceName,
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, serviceName, mux)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
