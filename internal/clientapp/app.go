// Package clientapp wires the focus client: wallet key, ledger connection, local
// cache, orchestrator, background syncs and the local HTTP API.
package clientapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/focusledger/internal/client"
	"github.com/MarkoPoloResearchLab/focusledger/internal/clientapi"
	"github.com/MarkoPoloResearchLab/focusledger/internal/events"
	"github.com/MarkoPoloResearchLab/focusledger/internal/gateway"
	"github.com/MarkoPoloResearchLab/focusledger/internal/localstate"
	"github.com/MarkoPoloResearchLab/focusledger/internal/scheduler"
	"github.com/MarkoPoloResearchLab/focusledger/internal/signer"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	eventBuffer     = 32
	shutdownTimeout = 5 * time.Second
)

// App holds the wired client and the resources it owns.
type App struct {
	Client *client.Client
	Cache  *localstate.Store
	Bus    *events.Bus
	Signer *signer.Signer

	cfg         Config
	logger      *zap.Logger
	conn        *grpc.ClientConn
	redisClient *redis.Client
}

// Open loads the wallet key, connects to the ledger node and opens the local cache.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	walletSigner, err := signer.LoadOrCreate(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load wallet key: %w", err)
	}

	conn, err := dialLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &App{Signer: walletSigner, cfg: cfg, logger: logger, conn: conn, Bus: events.NewBus(eventBuffer)}

	backend, err := app.openBackend(ctx)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	cache, err := localstate.Open(ctx, backend, localstate.WithPublisher(app.Bus), localstate.WithLogger(logger.Named("localstate")))
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("open local state: %w", err)
	}
	app.Cache = cache

	ledger := gateway.NewRemote(conn, walletSigner, gateway.WithPollInterval(cfg.PollInterval))
	orchestrator, err := client.New(ledger, ledger, cache, cfg.ClientConfig(),
		client.WithPublisher(app.Bus),
		client.WithLogger(logger.Named("client")),
	)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Client = orchestrator
	logger.Info("focus client ready",
		zap.String("address", walletSigner.Address().String()),
		zap.String("ledger", cfg.LedgerAddress),
		zap.String("network", cfg.Network),
	)
	return app, nil
}

// Close releases the ledger connection and the redis client.
func (app *App) Close() error {
	var closeErr error
	if app.redisClient != nil {
		closeErr = errors.Join(closeErr, app.redisClient.Close())
	}
	if app.conn != nil {
		closeErr = errors.Join(closeErr, app.conn.Close())
	}
	return closeErr
}

// Serve runs the HTTP API, the scheduler and the cache watcher until ctx ends or
// one of them fails.
func (app *App) Serve(ctx context.Context) error {
	jobs, err := scheduler.New(app.Client, app.cfg.Schedule, app.logger.Named("scheduler"))
	if err != nil {
		return err
	}
	router := clientapi.NewRouter(app.Client, app.Bus, clientapi.Config{
		AllowedOrigins: app.cfg.AllowedOrigins,
	}, app.logger.Named("api"))
	server := &http.Server{
		Addr:              app.cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if _, err := app.Client.ResolvePendingClaims(ctx); err != nil {
		app.logger.Warn("resolve pending claims at startup failed", zap.Error(err))
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		app.logger.Info("focus client listening", zap.String("addr", app.cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.logger.Warn("server shutdown error", zap.Error(err))
		}
		return nil
	})
	group.Go(func() error {
		return jobs.Run(groupCtx)
	})
	group.Go(func() error {
		return app.Cache.Watch(groupCtx)
	})
	return group.Wait()
}

// Run boots the focus client using the supplied configuration.
func Run(ctx context.Context, cfg Config) error {
	logger, err := NewLogger(cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	app, err := Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	return app.Serve(ctx)
}

// NewLogger builds the production logger, or a development one when dev is set.
func NewLogger(dev bool) (*zap.Logger, error) {
	build := zap.NewProduction
	if dev {
		build = zap.NewDevelopment
	}
	logger, err := build()
	if err != nil {
		return nil, fmt.Errorf("zap init: %w", err)
	}
	return logger, nil
}

func (app *App) openBackend(ctx context.Context) (localstate.Backend, error) {
	if app.cfg.RedisURL == "" {
		backend, err := localstate.NewFileBackend(app.cfg.StateDir, app.cfg.StorageKey, app.logger.Named("localstate"))
		if err != nil {
			return nil, fmt.Errorf("open state dir: %w", err)
		}
		return backend, nil
	}
	options, err := redis.ParseURL(app.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	app.redisClient = redis.NewClient(options)
	if err := app.redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return localstate.NewRedisBackend(app.redisClient, app.cfg.StorageKey), nil
}

func dialLedger(ctx context.Context, cfg Config) (*grpc.ClientConn, error) {
	dialOptions := []grpc.DialOption{}
	if cfg.LedgerInsecure {
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	conn, err := grpc.NewClient(cfg.LedgerAddress, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("connect ledger: %w", err)
	}
	conn.Connect()
	readyCtx, cancel := context.WithTimeout(ctx, cfg.LedgerTimeout)
	defer cancel()
	if err := waitForClientReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connect ledger %s: %w", cfg.LedgerAddress, err)
	}
	return conn, nil
}

func waitForClientReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			return nil
		}
		if state == connectivity.Shutdown {
			return errors.New("grpc connection shutdown before ready")
		}
		if !conn.WaitForStateChange(ctx, state) {
			if err := ctx.Err(); err != nil {
				return err
			}
			return errors.New("grpc connection failed to reach ready state")
		}
	}
}
