package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	economyv1 "github.com/MarkoPoloResearchLab/focusledger/api/economy/v1"
	"github.com/MarkoPoloResearchLab/focusledger/internal/genesis"
	"github.com/MarkoPoloResearchLab/focusledger/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/focusledger/internal/ratelimit"
	"github.com/MarkoPoloResearchLab/focusledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const (
	flagDatabaseURL    = "database-url"
	flagListenAddr     = "listen-addr"
	flagGenesis        = "genesis"
	flagNetwork        = "network"
	flagGasPerCall     = "gas-per-call"
	flagFaucetAmount   = "faucet-amount"
	flagFaucetCooldown = "faucet-cooldown"
	flagRedisURL       = "redis-url"
	flagSubmitRate     = "submit-rate"
	flagSubmitBurst    = "submit-burst"
	flagLogDev         = "log-dev"

	envPrefix             = "FOCUSLEDGER"
	defaultDatabaseURL    = "sqlite:///tmp/focusledger.db"
	defaultGRPCListenAddr = ":7000"
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	GenesisPath    string
	Network        string
	GasPerCall     uint64
	FaucetAmount   uint64
	FaucetCooldown time.Duration
	RedisURL       string
	SubmitRate     int
	SubmitBurst    int
	LogDev         bool
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "focusledgerd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "focusledgerd",
		Short:         "Focus reward ledger gRPC server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or SQLite connection string")
	cmd.Flags().String(flagListenAddr, defaultGRPCListenAddr, "gRPC listen address")
	cmd.Flags().String(flagGenesis, "", "genesis YAML applied at startup when the ledger is empty")
	cmd.Flags().String(flagNetwork, economy.DefaultNetwork, "network name submissions must carry")
	cmd.Flags().Uint64(flagGasPerCall, economy.DefaultGasPerCall, "gas charged per submission")
	cmd.Flags().Uint64(flagFaucetAmount, economy.DefaultFaucetAmount, "gas granted per faucet request")
	cmd.Flags().Duration(flagFaucetCooldown, time.Duration(economy.DefaultFaucetCooldownMillis)*time.Millisecond, "minimum time between faucet requests per account")
	cmd.Flags().String(flagRedisURL, "", "redis URL for per-sender submit rate limiting (disabled when empty)")
	cmd.Flags().Int(flagSubmitRate, 60, "submissions allowed per sender and minute")
	cmd.Flags().Int(flagSubmitBurst, 10, "submission burst per sender")
	cmd.Flags().Bool(flagLogDev, false, "human-readable development logging")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	config := viper.New()
	config.SetEnvPrefix(envPrefix)
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	config.AutomaticEnv()
	if err := config.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg.DatabaseURL = strings.TrimSpace(config.GetString(flagDatabaseURL))
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = strings.TrimSpace(config.GetString(flagListenAddr))
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultGRPCListenAddr
	}
	cfg.GenesisPath = strings.TrimSpace(config.GetString(flagGenesis))
	cfg.Network = strings.TrimSpace(config.GetString(flagNetwork))
	cfg.GasPerCall = config.GetUint64(flagGasPerCall)
	cfg.FaucetAmount = config.GetUint64(flagFaucetAmount)
	cfg.FaucetCooldown = config.GetDuration(flagFaucetCooldown)
	cfg.RedisURL = strings.TrimSpace(config.GetString(flagRedisURL))
	cfg.SubmitRate = config.GetInt(flagSubmitRate)
	cfg.SubmitBurst = config.GetInt(flagSubmitBurst)
	cfg.LogDev = config.GetBool(flagLogDev)

	if cfg.Network == "" {
		return fmt.Errorf("network is required")
	}
	if cfg.GasPerCall == 0 {
		return fmt.Errorf("gas per call must be positive")
	}
	if cfg.FaucetCooldown < 0 {
		return fmt.Errorf("faucet cooldown must not be negative")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	newLogger := zap.NewProduction
	if cfg.LogDev {
		newLogger = zap.NewDevelopment
	}
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	if err := prepareSchema(ctx, gormDB, driver, cfg.DatabaseURL); err != nil {
		return err
	}

	store := gormstore.New(gormDB)
	clock := func() int64 { return time.Now().UTC().UnixMilli() }
	economyService, err := economy.NewService(store, clock,
		economy.WithNetwork(cfg.Network),
		economy.WithGasPerCall(cfg.GasPerCall),
		economy.WithFaucet(cfg.FaucetAmount, cfg.FaucetCooldown.Milliseconds()),
		economy.WithOperationLogger(economy.NewZapOperationLogger(logger.Named("economy"))),
	)
	if err != nil {
		return fmt.Errorf("economy service init: %w", err)
	}

	if cfg.GenesisPath != "" {
		genesisDoc, err := genesis.Load(cfg.GenesisPath)
		if err != nil {
			return err
		}
		if err := economyService.Bootstrap(ctx, genesisDoc); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}

	serverOptions := []grpcserver.Option{grpcserver.WithLogger(logger.Named("grpc"))}
	if cfg.RedisURL != "" {
		redisOptions, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient := redis.NewClient(redisOptions)
		defer func() { _ = redisClient.Close() }()
		limiter, err := ratelimit.NewRedis(redisClient, cfg.SubmitRate, cfg.SubmitBurst)
		if err != nil {
			return err
		}
		serverOptions = append(serverOptions, grpcserver.WithSubmitLimiter(limiter))
	}

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	grpcServer := grpc.NewServer()
	economyv1.RegisterEconomyServiceServer(grpcServer, grpcserver.NewEconomyServiceServer(economyService, serverOptions...))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC server starting",
			zap.String("listen_addr", cfg.ListenAddr),
			zap.String("network", cfg.Network),
			zap.String("driver", driver),
		)
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
		grpcServer.GracefulStop()
		if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			return serveErr
		}
		return nil
	case serveErr := <-errCh:
		if errors.Is(serveErr, grpc.ErrServerStopped) {
			return nil
		}
		return serveErr
	}
}
