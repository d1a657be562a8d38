// Package server initializes and runs the FileVault server: it opens the
// metadata database and the blob store, wires the services, starts the
// reconciler and serves the gRPC API until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/filevault/internal/filex"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/reconcile"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"

	gs "github.com/dmitrijs2005/filevault/internal/server/grpc"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	fileService  *services.FileService
	ownerService *services.OwnerService
	sweeper      *reconcile.Sweeper
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	spoolDir, err := filex.EnsureDir(c.SpoolDir)
	if err != nil {
		return nil, fmt.Errorf("spool dir error: %w", err)
	}
	c.SpoolDir = spoolDir

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	blobs, err := openBlobStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	app := &App{
		config:       c,
		logger:       logger,
		db:           db,
		fileService:  services.NewFileService(db, rm, blobs, logger, c),
		ownerService: services.NewOwnerService(db, rm, logger, c),
		sweeper: reconcile.NewSweeper(reconcile.Options{
			DB:          db,
			Repos:       rm,
			Blobs:       blobs,
			Logger:      logger,
			GracePeriod: c.PendingGracePeriod,
		}),
	}
	return app, nil
}

// openBlobStore connects to the configured bucket, creating it when absent,
// and applies the configured compression.
func openBlobStore(ctx context.Context, c *config.Config) (blobstore.Store, error) {
	compression := strings.ToLower(strings.TrimSpace(c.BlobCompression))
	if compression != "" && compression != "none" && compression != "zstd" {
		return nil, fmt.Errorf("unknown blob compression %q", c.BlobCompression)
	}

	s3, err := blobstore.NewS3Store(ctx, blobstore.S3Options{
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	if err != nil {
		return nil, err
	}
	if err := s3.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	if compression == "zstd" {
		return blobstore.NewCompressed(s3, c.SpoolDir), nil
	}
	return s3, nil
}

// IssueToken signs an access token for an already registered owner.
func (app *App) IssueToken(ctx context.Context, email string) (string, error) {
	return app.ownerService.IssueToken(ctx, email)
}

func (app *App) Close() error {
	return app.db.Close()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.fileService, app.ownerService, app.config.SecretKey)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	stopSweeper := app.sweeper.Start(ctx, app.config.ReconcileInterval)
	defer stopSweeper()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(ctx, "App stopped")
}
