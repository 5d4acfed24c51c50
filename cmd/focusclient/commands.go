package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/focusledger/internal/client"
	"github.com/MarkoPoloResearchLab/focusledger/internal/clientapp"
	"github.com/MarkoPoloResearchLab/focusledger/internal/signer"
	"github.com/spf13/cobra"
)

type appAction func(cmd *cobra.Command, app *clientapp.App, args []string) (any, error)

// withApp opens the client for one command, prints the result as JSON and
// reports classified failures with their kind.
func withApp(cfg *clientapp.Config, action appAction) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout(cfg))
		defer cancel()
		cmd.SetContext(ctx)

		logger, err := clientapp.NewLogger(cfg.LogDev)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		app, err := clientapp.Open(ctx, *cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		result, err := action(cmd, app, args)
		if err != nil {
			return describeError(err)
		}
		return printJSON(cmd, result)
	}
}

func describeError(err error) error {
	classified := client.Classify(client.StageLocal, err)
	if classified.CanRetry() {
		return fmt.Errorf("%w; retry later", classified)
	}
	return classified
}

func printJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func parseID(raw string) (uint64, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", raw, err)
	}
	return parsed, nil
}

func ensureWallet(keyPath string) (string, error) {
	walletSigner, err := signer.LoadOrCreate(keyPath)
	if err != nil {
		return "", fmt.Errorf("load wallet key: %w", err)
	}
	return walletSigner.Address().String(), nil
}
