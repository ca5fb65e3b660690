// Package server wires configuration, storage, the user service and both
// transports together and runs them until shutdown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/audit"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/dmitrijs2005/authkeeper/internal/server/telemetry"

	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"
	hs "github.com/dmitrijs2005/authkeeper/internal/server/http"
)

const serviceName = "authkeeper"

type App struct {
	config      *config.Config
	logger      logging.Logger
	rm          repomanager.RepositoryManager
	codec       *auth.Codec
	userService *services.UserService
}

// NewApp validates c, opens the store and applies migrations.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogLevel, c.LogFormat, os.Stdout)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rm, err := repomanager.New(ctx, c.StorageDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	sink, err := newAuditSink(ctx, c, logger)
	if err != nil {
		_ = rm.Close()
		return nil, err
	}

	codec := auth.NewCodec(auth.CodecConfig{
		AccessSecret:  []byte(c.AccessSecret),
		RefreshSecret: []byte(c.RefreshSecret),
		Issuer:        c.Issuer,
		Audience:      c.Audience,
		AccessTTL:     c.AccessTokenTTL,
		RefreshTTL:    c.RefreshTokenTTL,
	})

	us := services.NewUserService(rm, codec, auth.NewPasswordHasher(c.BcryptRounds), sink, logger)

	return &App{config: c, logger: logger, rm: rm, codec: codec, userService: us}, nil
}

func newAuditSink(ctx context.Context, c *config.Config, logger logging.Logger) (audit.Sink, error) {
	sinks := audit.Multi{audit.NewLogSink(logger)}
	if c.AuditS3Bucket == "" {
		return sinks, nil
	}

	s3, err := audit.NewS3Sink(ctx, audit.S3Config{
		Bucket:       c.AuditS3Bucket,
		Prefix:       c.AuditS3Prefix,
		Region:       c.AuditS3Region,
		BaseEndpoint: c.AuditS3Endpoint,
		AccessKey:    c.AuditS3AccessKey,
		SecretKey:    c.AuditS3SecretKey,
	})
	if err != nil {
		return nil, fmt.Errorf("audit s3 sink: %w", err)
	}
	return append(sinks, s3), nil
}

// UserService exposes the wired service, for the admin tool.
func (app *App) UserService() *services.UserService { return app.userService }

// Close releases the store.
func (app *App) Close() error { return app.rm.Close() }

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.codec)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := hs.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.userService, app.codec)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves gRPC and HTTP, and sweeps stale refresh tokens, until ctx is
// cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, app.config.OTLPEndpoint)
	if err != nil {
		app.logger.Warn(ctx, "tracing disabled", "error", err)
	}

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		services.RunSweeper(ctx, app.userService, app.config.PurgeInterval, app.logger)
	}()

	wg.Wait()

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(sctx); err != nil {
		app.logger.Warn(sctx, "tracing shutdown", "error", err)
	}
	if err := app.rm.Close(); err != nil {
		app.logger.Error(sctx, "close store", "error", err)
	}

	app.logger.Info(sctx, "App stopped")
}
