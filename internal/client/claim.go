package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/focusledger/internal/localstate"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"go.uber.org/zap"
)

// PreflightReport is the ledger state a claim was validated against.
type PreflightReport struct {
	Address  economy.Address
	Account  economy.Account
	Treasury economy.Treasury
	Config   economy.EconomyConfig
}

// ClaimResult describes a confirmed claim.
type ClaimResult struct {
	PaidAmount     economy.Amount `json:"paidAmount"`
	Digest         string         `json:"txRef"`
	IdempotencyKey string         `json:"idempotencyKey"`
	Replayed       bool           `json:"replayed"`
	Payout         economy.Payout `json:"payout"`
}

// Preflight validates everything a claim needs without writing to the ledger.
func (client *Client) Preflight(ctx context.Context) (PreflightReport, error) {
	address, err := client.wallet.Connect(ctx)
	if err != nil {
		return PreflightReport{}, Classify(StagePreflight, err)
	}
	network, err := client.wallet.Network(ctx)
	if err != nil {
		return PreflightReport{}, Classify(StagePreflight, err)
	}
	if network != client.config.Network {
		return PreflightReport{}, Classify(StagePreflight, fmt.Errorf("%w: wallet on %q, expected %q", economy.ErrWrongNetwork, network, client.config.Network))
	}
	account, err := client.wallet.Account(ctx)
	if err != nil {
		return PreflightReport{}, Classify(StagePreflight, err)
	}
	if account.GasBalance < client.config.GasBudget {
		return PreflightReport{}, Classify(StagePreflight, fmt.Errorf("%w: balance %d, budget %d", economy.ErrInsufficientGas, account.GasBalance, client.config.GasBudget))
	}
	treasury, err := client.ledger.Treasury(ctx)
	if err != nil {
		return PreflightReport{}, Classify(StagePreflight, err)
	}
	config, err := client.ledger.EconomyConfig(ctx)
	if err != nil {
		return PreflightReport{}, Classify(StagePreflight, err)
	}
	if treasury.Balance < config.SessionReward {
		violation := &economy.RuleViolation{
			Rule:      economy.RuleTreasuryUnderfunded,
			Limit:     config.SessionReward.Uint64(),
			Remaining: treasury.Balance.Uint64(),
		}
		return PreflightReport{}, Classify(StagePreflight, fmt.Errorf("%w: %w", ErrTreasuryDepleted, violation))
	}
	return PreflightReport{Address: address, Account: account, Treasury: treasury, Config: config}, nil
}

// ClaimSessionReward claims one completed session. Only one claim runs at a time.
// The claim is recorded as pending under a fresh idempotency key before it is
// submitted; retries reuse the key, so the ledger pays it at most once.
func (client *Client) ClaimSessionReward(ctx context.Context) (ClaimResult, error) {
	if !client.claimMutex.TryLock() {
		return ClaimResult{}, Classify(StagePreflight, ErrClaimInProgress)
	}
	defer client.claimMutex.Unlock()
	return client.runClaim(ctx, client.newKey())
}

// ResolvePendingClaims settles claims whose outcome was unknown. A claim the ledger
// paid is reconciled; a claim it never executed is submitted again under its key.
func (client *Client) ResolvePendingClaims(ctx context.Context) ([]ClaimResult, error) {
	if !client.claimMutex.TryLock() {
		return nil, Classify(StagePreflight, ErrClaimInProgress)
	}
	defer client.claimMutex.Unlock()

	pending := client.cache.Snapshot().PendingClaims
	if len(pending) == 0 {
		return nil, nil
	}
	address, err := client.wallet.Connect(ctx)
	if err != nil {
		return nil, Classify(StagePreflight, err)
	}
	results := make([]ClaimResult, 0, len(pending))
	for _, claim := range pending {
		payout, err := client.ledger.Payout(ctx, address, claim.IdempotencyKey)
		if err == nil {
			result, err := client.reconcileClaim(ctx, claim.IdempotencyKey, payout, true)
			if err != nil {
				return results, err
			}
			results = append(results, result)
			continue
		}
		if !errors.Is(err, economy.ErrObjectNotFound) {
			return results, Classify(StageConfirm, err)
		}
		result, err := client.runClaim(ctx, claim.IdempotencyKey)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (client *Client) runClaim(ctx context.Context, idempotencyKey string) (ClaimResult, error) {
	var result ClaimResult
	dispatched := false
	err := client.retry(ctx, func(ctx context.Context) error {
		report, err := client.Preflight(ctx)
		if err != nil {
			return err
		}
		if err := client.markPending(ctx, idempotencyKey, ""); err != nil {
			return Classify(StageSubmit, err)
		}
		call := economy.Call{
			Kind:            economy.CallClaimSessionReward,
			IdempotencyKey:  idempotencyKey,
			TreasuryVersion: report.Treasury.Version,
		}
		dispatched = true
		digest, record, err := client.submitAndConfirm(ctx, call)
		if err != nil {
			var classified *Error
			if errors.As(err, &classified) && classified.Kind == KindPending && digest != "" {
				if markErr := client.markPending(ctx, idempotencyKey, digest); markErr != nil {
					client.logger.Warn("record pending digest failed", zap.String("idempotency_key", idempotencyKey), zap.Error(markErr))
				}
			}
			return err
		}
		if record.Effects.Payout == nil {
			return Classify(StageConfirm, fmt.Errorf("transaction %s carries no payout", digest))
		}
		result, err = client.reconcileClaim(ctx, idempotencyKey, *record.Effects.Payout, record.Effects.Replayed)
		return err
	})
	if err != nil {
		var classified *Error
		if errors.As(err, &classified) && isDefiniteRejection(classified.Kind) {
			if !dispatched {
				client.dropPending(ctx, idempotencyKey)
				return ClaimResult{}, err
			}
			// An earlier attempt may have been executed before its outcome was lost.
			recovered, paid, lookupErr := client.recoverDispatchedClaim(ctx, idempotencyKey)
			if paid {
				return recovered, lookupErr
			}
			if lookupErr != nil {
				client.logger.Warn("payout lookup after rejection failed, keeping pending claim",
					zap.String("idempotency_key", idempotencyKey), zap.Error(lookupErr))
				return ClaimResult{}, err
			}
			client.dropPending(ctx, idempotencyKey)
		}
		return ClaimResult{}, err
	}
	return result, nil
}

// recoverDispatchedClaim reconciles a submitted claim the ledger already paid.
// paid is false with a nil error only when the ledger holds no payout for the key.
func (client *Client) recoverDispatchedClaim(ctx context.Context, idempotencyKey string) (ClaimResult, bool, error) {
	address, err := client.wallet.Connect(ctx)
	if err != nil {
		return ClaimResult{}, false, Classify(StageConfirm, err)
	}
	payout, err := client.ledger.Payout(ctx, address, idempotencyKey)
	if errors.Is(err, economy.ErrObjectNotFound) {
		return ClaimResult{}, false, nil
	}
	if err != nil {
		return ClaimResult{}, false, Classify(StageConfirm, err)
	}
	result, err := client.reconcileClaim(ctx, idempotencyKey, payout, true)
	return result, true, err
}

// isDefiniteRejection reports kinds after which the ledger certainly did not pay.
func isDefiniteRejection(kind Kind) bool {
	switch kind {
	case KindNetworkError, KindUnknown, KindPending, KindInProgress:
		return false
	default:
		return true
	}
}

func (client *Client) markPending(ctx context.Context, idempotencyKey string, digest string) error {
	_, err := client.cache.Update(ctx, func(state *localstate.State) error {
		claim, found := state.PendingClaim(idempotencyKey)
		if !found {
			claim = localstate.PendingClaim{IdempotencyKey: idempotencyKey, CreatedUnixMilli: client.nowMillis()}
		}
		if digest == "" {
			claim.Attempts++
		} else {
			claim.Digest = digest
		}
		state.UpsertPendingClaim(claim)
		return nil
	})
	return err
}

func (client *Client) dropPending(ctx context.Context, idempotencyKey string) {
	if _, found := client.cache.Snapshot().PendingClaim(idempotencyKey); !found {
		return
	}
	if _, err := client.cache.Update(ctx, func(state *localstate.State) error {
		state.RemovePendingClaim(idempotencyKey)
		return nil
	}); err != nil {
		client.logger.Warn("drop pending claim failed", zap.String("idempotency_key", idempotencyKey), zap.Error(err))
	}
}

// reconcileClaim mirrors a confirmed payout into the local cache exactly once per
// payout transaction, then refreshes the treasury balance.
func (client *Client) reconcileClaim(ctx context.Context, idempotencyKey string, payout economy.Payout, replayed bool) (ClaimResult, error) {
	_, err := client.cache.Update(ctx, func(state *localstate.State) error {
		if !state.HasHistory(payout.TransactionDigest) {
			state.Coins += client.config.PointsPerSession
			state.CompletedSessions++
			state.TransactionHistory = append(state.TransactionHistory, localstate.HistoryEntry{
				Kind:        localstate.HistoryClaim,
				Digest:      payout.TransactionDigest,
				Amount:      payout.Amount.Uint64(),
				Points:      client.config.PointsPerSession,
				AtUnixMilli: payout.PaidUnixMilli,
			})
		}
		state.RemovePendingClaim(idempotencyKey)
		return nil
	})
	if err != nil {
		return ClaimResult{}, Classify(StageReconcile, err)
	}
	if _, err := client.RefreshTreasury(ctx); err != nil {
		client.logger.Warn("refresh treasury after claim failed", zap.Error(err))
	}
	return ClaimResult{
		PaidAmount:     payout.Amount,
		Digest:         payout.TransactionDigest,
		IdempotencyKey: idempotencyKey,
		Replayed:       replayed,
		Payout:         payout,
	}, nil
}

// RefreshTreasury reads the treasury and publishes treasury.updated.
func (client *Client) RefreshTreasury(ctx context.Context) (economy.Treasury, error) {
	treasury, err := client.ledger.Treasury(ctx)
	if err != nil {
		return economy.Treasury{}, Classify(StagePreflight, err)
	}
	client.publishTreasury(treasury)
	return treasury, nil
}
