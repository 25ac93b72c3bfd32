// Package server initializes and runs the application server.
// It opens the database, runs migrations, wires the Drive, storage and
// CMS clients into the services, and serves the REST API with graceful
// shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"golang.org/x/oauth2"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/editorial-eng/packsync/internal/logging"
	"github.com/editorial-eng/packsync/internal/server/config"
	"github.com/editorial-eng/packsync/internal/server/drive"
	"github.com/editorial-eng/packsync/internal/server/httpapi"
	"github.com/editorial-eng/packsync/internal/server/media"
	"github.com/editorial-eng/packsync/internal/server/repositories/repomanager"
	"github.com/editorial-eng/packsync/internal/server/services"
	"github.com/editorial-eng/packsync/internal/server/wordpress"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	handlers *httpapi.Handlers
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	dc, err := drive.NewGoogleClient(ctx, oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: cfg.GoogleOAuthToken}))
	if err != nil {
		return nil, fmt.Errorf("drive init error: %w", err)
	}

	images := media.NewService(dc, media.Options{
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		Region:       cfg.S3Region,
		Bucket:       cfg.S3Bucket,
		BaseEndpoint: cfg.S3BaseEndpoint,
		Quality:      cfg.ImageQuality,
		LinkTTL:      cfg.MediaLinkTTL,
	})

	cms := wordpress.NewClient(cfg.WordPressURL, cfg.WordPressUser, cfg.WordPressPassword, nil)
	renderer := wordpress.NewRenderer(cms, cms)

	packageService := services.NewPackageService(db, rm, dc, images, logger)
	setService := services.NewPackageSetService(db, rm, dc, packageService, logger)
	publishService := services.NewPublishService(db, rm, cms, renderer, packageService, logger)
	tasks := services.NewTaskRunner(logger)

	h := httpapi.NewHandlers(setService, packageService, publishService, tasks, logger)

	return &App{config: cfg, logger: logger, db: db, handlers: h}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	router := httpapi.NewRouter(app.handlers)

	srv := &http.Server{
		Addr: app.config.EndpointAddr,
		Handler: handlers.RecoveryHandler()(
			handlers.LoggingHandler(os.Stdout, router)),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
