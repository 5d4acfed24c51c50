package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/focusledger/internal/client"
	"github.com/MarkoPoloResearchLab/focusledger/internal/clientapp"
	"github.com/MarkoPoloResearchLab/focusledger/internal/scheduler"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagListenAddr        = "listen-addr"
	flagLedgerAddr        = "ledger-addr"
	flagLedgerInsecure    = "ledger-insecure"
	flagLedgerTimeout     = "ledger-timeout"
	flagNetwork           = "network"
	flagKeyPath           = "key-path"
	flagStateDir          = "state-dir"
	flagStorageKey        = "storage-key"
	flagRedisURL          = "redis-url"
	flagAllowedOrigins    = "allowed-origins"
	flagGasBudget         = "gas-budget"
	flagConfirmTimeout    = "confirm-timeout"
	flagMaxRetries        = "max-retries"
	flagRetryBackoff      = "retry-backoff"
	flagPointsPerSession  = "points-per-session"
	flagPollInterval      = "poll-interval"
	flagTreasuryInterval  = "treasury-interval"
	flagPetStatsInterval  = "pet-stats-interval"
	flagInventoryInterval = "inventory-interval"
	flagDecayInterval     = "decay-interval"
	flagLogDev            = "log-dev"
	flagQuantity          = "quantity"
	envPrefix             = "FOCUSCLIENT"
)

var configFlags = []string{
	flagListenAddr, flagLedgerAddr, flagLedgerInsecure, flagLedgerTimeout, flagNetwork,
	flagKeyPath, flagStateDir, flagStorageKey, flagRedisURL, flagAllowedOrigins,
	flagGasBudget, flagConfirmTimeout, flagMaxRetries, flagRetryBackoff, flagPointsPerSession,
	flagPollInterval, flagTreasuryInterval, flagPetStatsInterval, flagInventoryInterval, flagDecayInterval,
	flagLogDev,
}

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "focusclient: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &clientapp.Config{}
	cmd := &cobra.Command{
		Use:           "focusclient",
		Short:         "Focus reward wallet, pet and local API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagListenAddr, "", "local HTTP listen address")
	flags.String(flagLedgerAddr, "", "ledger node gRPC address")
	flags.Bool(flagLedgerInsecure, false, "connect to the ledger without TLS")
	flags.Duration(flagLedgerTimeout, 0, "time allowed to reach the ledger node")
	flags.String(flagNetwork, "", "network the wallet signs for")
	flags.String(flagKeyPath, "", "wallet key file (created when missing)")
	flags.String(flagStateDir, "", "directory for the local state file")
	flags.String(flagStorageKey, "", "name of the persisted local state")
	flags.String(flagRedisURL, "", "keep the local state in redis instead of a file")
	flags.String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	flags.Uint64(flagGasBudget, 0, "gas budget per submission")
	flags.Duration(flagConfirmTimeout, 0, "how long to wait for a confirmation")
	flags.Int(flagMaxRetries, 0, "retries for transient claim failures (negative disables)")
	flags.Duration(flagRetryBackoff, 0, "linear backoff step between claim retries")
	flags.Uint64(flagPointsPerSession, 0, "points recorded per completed session")
	flags.Duration(flagPollInterval, 0, "confirmation poll interval")
	flags.Duration(flagTreasuryInterval, 0, "treasury refresh period (negative disables)")
	flags.Duration(flagPetStatsInterval, 0, "pet stats sync period (negative disables)")
	flags.Duration(flagInventoryInterval, 0, "inventory sync period (negative disables)")
	flags.Duration(flagDecayInterval, 0, "pet decay period (negative disables)")
	flags.Bool(flagLogDev, false, "human-readable development logging")

	cmd.AddCommand(
		newServeCommand(cfg),
		newKeygenCommand(cfg),
		newStatusCommand(cfg),
		newClaimCommand(cfg),
		newResolveCommand(cfg),
		newBuyCommand(cfg),
		newAdoptCommand(cfg),
		newFeedCommand(cfg),
		newPlayCommand(cfg),
		newReviveCommand(cfg),
		newSyncCommand(cfg),
		newFaucetCommand(cfg),
	)
	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *clientapp.Config) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, flagName := range configFlags {
		if err := v.BindPFlag(flagName, cmd.Flag(flagName)); err != nil {
			return err
		}
	}

	cfg.ListenAddr = strings.TrimSpace(v.GetString(flagListenAddr))
	cfg.LedgerAddress = strings.TrimSpace(v.GetString(flagLedgerAddr))
	cfg.LedgerInsecure = v.GetBool(flagLedgerInsecure)
	cfg.LedgerTimeout = v.GetDuration(flagLedgerTimeout)
	cfg.Network = strings.TrimSpace(v.GetString(flagNetwork))
	cfg.KeyPath = strings.TrimSpace(v.GetString(flagKeyPath))
	cfg.StateDir = strings.TrimSpace(v.GetString(flagStateDir))
	cfg.StorageKey = strings.TrimSpace(v.GetString(flagStorageKey))
	cfg.RedisURL = strings.TrimSpace(v.GetString(flagRedisURL))
	cfg.AllowedOrigins = clientapp.ParseAllowedOrigins(v.GetString(flagAllowedOrigins))
	cfg.GasBudget = v.GetUint64(flagGasBudget)
	cfg.ConfirmTimeout = v.GetDuration(flagConfirmTimeout)
	cfg.MaxRetries = v.GetInt(flagMaxRetries)
	cfg.RetryBackoff = v.GetDuration(flagRetryBackoff)
	cfg.PointsPerSession = v.GetUint64(flagPointsPerSession)
	cfg.PollInterval = v.GetDuration(flagPollInterval)
	cfg.LogDev = v.GetBool(flagLogDev)
	cfg.Schedule = scheduler.Config{
		TreasuryInterval:  v.GetDuration(flagTreasuryInterval),
		PetStatsInterval:  v.GetDuration(flagPetStatsInterval),
		InventoryInterval: v.GetDuration(flagInventoryInterval),
		DecayInterval:     v.GetDuration(flagDecayInterval),
	}

	return cfg.Validate()
}

func newServeCommand(cfg *clientapp.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP API with background ledger syncs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return clientapp.Run(ctx, *cfg)
		},
	}
}

func newSyncCommand(cfg *clientapp.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run every background sync once",
		Args:  cobra.NoArgs,
		RunE: withApp(cfg, func(cmd *cobra.Command, app *clientapp.App, args []string) (any, error) {
			jobs, err := scheduler.New(app.Client, cfg.Schedule, nil)
			if err != nil {
				return nil, err
			}
			if err := jobs.RunOnce(cmd.Context()); err != nil {
				return nil, err
			}
			return app.Client.State(), nil
		}),
	}
}

func newClaimCommand(cfg *clientapp.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Claim the reward for one completed focus session",
		Args:  cobra.NoArgs,
		RunE: withApp(cfg, func(cmd *cobra.Command, app *clientapp.App, args []string) (any, error) {
			return app.Client.ClaimSessionReward(cmd.Context())
		}),
	}
}

func newResolveCommand(cfg *clientapp.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve claims whose outcome is unknown",
		Args:  cobra.NoArgs,
		RunE: withApp(cfg, func(cmd *cobra.Command, app *clientapp.App, args []string) (any, error) {
			return app.Client.ResolvePendingClaims(cmd.Context())
		}),
	}
}

func newStatusCommand(cfg *clientapp.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the wallet account, the treasury and the local state",
		Args:  cobra.NoArgs,
		RunE: withApp(cfg, func(cmd *cobra.Command, app *clientapp.App, args []string) (any, error) {
			return app.Client.Status(cmd.Context())
		}),
	}
}

func newBuyCommand(cfg *clientapp.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buy ITEM_ID",
		Short: "Buy a food or toy; the payment is burned",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(cfg, func(cmd *cobra.Command, app *clientapp.App, args []string) (any, error) {
			itemID, err := parseID(args[0])
			if err != nil {
				return nil, err
			}
			quantity, err := cmd.Flags().GetUint64(flagQuantity)
			if err != nil {
				return nil, err
			}
			return app.Client.PurchaseItem(cmd.Context(), itemID, quantity)
		}),
	}
	cmd.Flags().Uint64(flagQuantity, 1, "number of units to buy")
	return cmd
}

func newAdoptCommand(cfg *clientapp.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "adopt SPECIES_ID",
		Short: "Buy a pet of the given species",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(cfg, func(cmd *cobra.Command, app *clientapp.App, args []string) (any, error) {
			speciesID, err := parseID(args[0])
			if err != nil {
				return nil, err
			}
			return app.Client.PurchasePet(cmd.Context(), speciesID)
		}),
	}
}

func newFeedCommand(cfg *clientapp.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "feed FOOD_ID",
		Short: "Feed the selected pet",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(cfg, func(cmd *cobra.Command, app *clientapp.App, args []string) (any, error) {
			foodID, err := parseID(args[0])
			if err != nil {
				return nil, err
			}
			return app.Client.FeedPet(cmd.Context(), foodID)
		}),
	}
}

func newPlayCommand(cfg *clientapp.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "play [TOY_ID]",
		Short: "Play with the selected pet, or pet it when no toy is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(cfg, func(cmd *cobra.Command, app *clientapp.App, args []string) (any, error) {
			if len(args) == 0 {
				return app.Client.PlayWithPet(cmd.Context(), nil)
			}
			toyID, err := parseID(args[0])
			if err != nil {
				return nil, err
			}
			return app.Client.PlayWithPet(cmd.Context(), &toyID)
		}),
	}
}

func newReviveCommand(cfg *clientapp.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "revive",
		Short: "Bring the default pet back with fresh stats",
		Args:  cobra.NoArgs,
		RunE: withApp(cfg, func(cmd *cobra.Command, app *clientapp.App, args []string) (any, error) {
			return app.Client.ReviveDefaultPet(cmd.Context())
		}),
	}
}

func newFaucetCommand(cfg *clientapp.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "faucet",
		Short: "Request gas for the wallet",
		Args:  cobra.NoArgs,
		RunE: withApp(cfg, func(cmd *cobra.Command, app *clientapp.App, args []string) (any, error) {
			return app.Client.RequestGas(cmd.Context())
		}),
	}
}

func newKeygenCommand(cfg *clientapp.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Create the wallet key if missing and print its address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := ensureWallet(cfg.KeyPath)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"address": address, "keyPath": cfg.KeyPath})
		},
	}
}

// commandTimeout bounds one-shot commands; claims may retry and wait for confirmation.
func commandTimeout(cfg *clientapp.Config) time.Duration {
	confirm := cfg.ConfirmTimeout
	if confirm <= 0 {
		confirm = client.DefaultConfirmTimeout
	}
	retries := client.Config{MaxRetries: cfg.MaxRetries}.RetryLimit()
	return confirm*time.Duration(retries+2) + cfg.LedgerTimeout
}
