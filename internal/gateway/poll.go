// Package gateway implements the client's wallet and ledger capabilities, either over
// gRPC against a ledger node or directly against an in-process economy.Service.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/focusledger/internal/client"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
)

const defaultPollInterval = 250 * time.Millisecond

// Option configures a gateway.
type Option func(*options)

type options struct {
	pollInterval time.Duration
}

// WithPollInterval sets how often WaitForTransaction polls for a confirmation.
func WithPollInterval(interval time.Duration) Option {
	return func(opts *options) {
		if interval > 0 {
			opts.pollInterval = interval
		}
	}
}

func resolveOptions(opts []Option) options {
	resolved := options{pollInterval: defaultPollInterval}
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}
	return resolved
}

type transactionFetcher func(ctx context.Context, digest string) (economy.TransactionRecord, error)

// waitForTransaction polls fetch until the digest is known. Running out of time is an
// unknown outcome, never a failure.
func waitForTransaction(ctx context.Context, interval time.Duration, digest string, fetch transactionFetcher) (economy.TransactionRecord, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		record, err := fetch(ctx, digest)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, economy.ErrUnknownTransaction) && !errors.Is(err, client.ErrUnavailable) {
			return economy.TransactionRecord{}, err
		}
		select {
		case <-ctx.Done():
			return economy.TransactionRecord{}, fmt.Errorf("%w: waiting for %s: %v", client.ErrOutcomeUnknown, digest, ctx.Err())
		case <-ticker.C:
		}
	}
}
