// Package client orchestrates ledger operations for one wallet: preflight checks,
// signed submission, confirmation, bounded retries and reconciliation of the local
// cache with confirmed ledger state.
package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/focusledger/internal/events"
	"github.com/MarkoPoloResearchLab/focusledger/internal/localstate"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"github.com/gojek/heimdall/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMaxRetries       = 2
	DefaultRetryBackoff     = 2 * time.Second
	DefaultConfirmTimeout   = 30 * time.Second
	DefaultPointsPerSession = uint64(10)
	DefaultGasBudget        = economy.DefaultGasPerCall
)

// Config tunes the orchestrator.
type Config struct {
	Network        string
	GasBudget      uint64
	ConfirmTimeout time.Duration
	// MaxRetries bounds retries of transient failures. Zero selects
	// DefaultMaxRetries and a negative value disables retries.
	MaxRetries       int
	RetryBackoff     time.Duration
	PointsPerSession uint64
}

// RetryLimit is the number of retries MaxRetries allows.
func (config Config) RetryLimit() int {
	switch {
	case config.MaxRetries < 0:
		return 0
	case config.MaxRetries == 0:
		return DefaultMaxRetries
	default:
		return config.MaxRetries
	}
}

// Validate fills defaults and rejects unusable values.
func (config Config) Validate() (Config, error) {
	config.Network = strings.TrimSpace(config.Network)
	if config.Network == "" {
		return Config{}, fmt.Errorf("%w: network is required", ErrInvalidConfig)
	}
	if config.GasBudget == 0 {
		config.GasBudget = DefaultGasBudget
	}
	if config.ConfirmTimeout <= 0 {
		config.ConfirmTimeout = DefaultConfirmTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultRetryBackoff
	}
	if config.PointsPerSession == 0 {
		config.PointsPerSession = DefaultPointsPerSession
	}
	return config, nil
}

// Option configures a Client.
type Option func(*Client)

// WithPublisher sets where treasury.updated notifications go.
func WithPublisher(publisher events.Publisher) Option {
	return func(client *Client) {
		client.publisher = publisher
	}
}

// WithLogger sets the logger for best-effort follow-ups.
func WithLogger(logger *zap.Logger) Option {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(client *Client) {
		client.now = now
	}
}

// WithRetrier replaces the retry backoff schedule.
func WithRetrier(retrier heimdall.Retriable) Option {
	return func(client *Client) {
		client.retrier = retrier
	}
}

// WithSleeper replaces how the client waits between retries.
func WithSleeper(sleep func(ctx context.Context, delay time.Duration) error) Option {
	return func(client *Client) {
		client.sleep = sleep
	}
}

// WithKeyGenerator replaces the claim idempotency key source.
func WithKeyGenerator(newKey func() string) Option {
	return func(client *Client) {
		client.newKey = newKey
	}
}

// Client drives one wallet against the ledger and mirrors results into the local cache.
type Client struct {
	wallet    Wallet
	ledger    Ledger
	cache     *localstate.Store
	publisher events.Publisher
	logger    *zap.Logger
	config    Config
	retrier   heimdall.Retriable
	sleep     func(ctx context.Context, delay time.Duration) error
	now       func() time.Time
	newKey    func() string

	claimMutex sync.Mutex
}

// New validates config and wires the client.
func New(wallet Wallet, ledger Ledger, cache *localstate.Store, config Config, options ...Option) (*Client, error) {
	if wallet == nil || ledger == nil || cache == nil {
		return nil, fmt.Errorf("%w: wallet, ledger and cache are required", ErrInvalidConfig)
	}
	validated, err := config.Validate()
	if err != nil {
		return nil, err
	}
	client := &Client{
		wallet: wallet,
		ledger: ledger,
		cache:  cache,
		logger: zap.NewNop(),
		config: validated,
		sleep:  sleepContext,
		now:    time.Now,
		newKey: uuid.NewString,
	}
	client.retrier = linearRetrier(validated.RetryBackoff)
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client, nil
}

// Config returns the validated configuration.
func (client *Client) Config() Config {
	return client.config
}

// State returns the current local cache.
func (client *Client) State() localstate.State {
	return client.cache.Snapshot()
}

// linearRetrier waits backoff, 2×backoff, ... before successive retries.
func linearRetrier(backoff time.Duration) heimdall.Retriable {
	return heimdall.NewRetrierFunc(func(retry int) time.Duration {
		return time.Duration(retry+1) * backoff
	})
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retry runs attempt until it succeeds or fails with a non-retryable kind. An
// object_not_found failure is retried at most once.
func (client *Client) retry(ctx context.Context, attempt func(ctx context.Context) error) error {
	notFoundRetried := false
	for retry := 0; ; retry++ {
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		classified := Classify(StageSubmit, err)
		if !classified.CanRetry() || retry >= client.config.RetryLimit() {
			return classified
		}
		if classified.Kind == KindObjectNotFound {
			if notFoundRetried {
				return classified
			}
			notFoundRetried = true
		}
		delay := client.retrier.NextInterval(retry)
		client.logger.Info("retrying ledger operation",
			zap.String("kind", string(classified.Kind)),
			zap.String("stage", string(classified.Stage)),
			zap.Int("retry", retry+1),
			zap.Duration("delay", delay),
		)
		if err := client.sleep(ctx, delay); err != nil {
			return Classify(classified.Stage, err)
		}
	}
}

// submitAndConfirm dispatches call and waits for its confirmation. Once dispatched
// the wait ignores caller cancellation and ends only on confirmation, failure or
// the confirmation timeout.
func (client *Client) submitAndConfirm(ctx context.Context, call economy.Call) (string, economy.TransactionRecord, error) {
	digest, err := client.wallet.SignAndSubmit(ctx, call, client.config.GasBudget)
	if err != nil {
		return digest, economy.TransactionRecord{}, Classify(StageSubmit, err)
	}
	confirmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), client.config.ConfirmTimeout)
	defer cancel()
	record, err := client.ledger.WaitForTransaction(confirmCtx, digest)
	if err != nil {
		return digest, economy.TransactionRecord{}, Classify(StageConfirm, err)
	}
	return digest, record, nil
}

func (client *Client) nowMillis() int64 {
	return client.now().UnixMilli()
}

func (client *Client) publishTreasury(treasury economy.Treasury) {
	if client.publisher == nil {
		return
	}
	client.publisher.Publish(events.Event{Topic: events.TopicTreasuryUpdated, Payload: treasury})
}
